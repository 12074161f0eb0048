// SPDX-FileCopyrightText: 2025 The vmforge authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// vmforge prepares guest rootfs disk images for microVM CI runs.
//
// The rootfs subcommand mounts a base image and mutates it in place:
// fixed hostname, a oneshot network setup service ordered before sshd,
// root SSH access with a freshly generated key pair, an intentionally
// weakened sshd configuration, a replacement init compiled from the
// resource bundle that signals boot completion to the host, two
// diagnostic helper binaries, and a base package set installed from
// the architecture's package mirror:
//
//	$ vmforge rootfs ./build ./resources rootfs.ext4 jammy
//
// The private half of the SSH key pair is left in ./build/ssh/id_rsa
// for the caller to reach the guest later.
//
// The partuuid subcommand builds a partitioned variant of an image for
// boot-by-partuuid configuration tests:
//
//	$ vmforge partuuid rootfs.ext4 rootfs-partuuid.img
//
// The initrd subcommand packs a directory tree into a newc cpio
// archive usable as initial ramdisk:
//
//	$ vmforge initrd ./rootfs-tree initrd.cpio
//
// Mounting, loop device handling and package installation require root
// privileges on the build host.
package main
