// SPDX-FileCopyrightText: 2025 The vmforge authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package image provisions guest rootfs disk images for microVM CI
// runs. It mutates a base image in place (hostname, network setup
// service, SSH access, replacement init, diagnostic helpers, package
// installation) and builds partitioned image variants for
// boot-by-partuuid testing.
package image
