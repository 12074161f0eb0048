// SPDX-FileCopyrightText: 2025 The vmforge authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package initrd packs a rootfs directory tree into a newc cpio
// archive, the format the kernel accepts as initial ramdisk. It is
// used to build initrd-boot variants of test images.
package initrd
