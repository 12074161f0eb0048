// SPDX-FileCopyrightText: 2025 The vmforge authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package run executes external programs. All tools the provisioner
// drives (chroot, apt-get, gcc, sfdisk, mkfs.ext4) are used only via
// their command line contracts, so they are invoked through a single
// [Runner] interface that can be replaced in tests.
package run
