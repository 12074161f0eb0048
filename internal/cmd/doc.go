// SPDX-FileCopyrightText: 2025 The vmforge authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package cmd provides the vmforge CLI: subcommands for provisioning a
// rootfs image, building a partuuid image variant and packing an
// initrd archive. It handles flag parsing, logging setup and error
// reporting.
package cmd
