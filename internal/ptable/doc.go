// SPDX-FileCopyrightText: 2025 The vmforge authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package ptable creates partition tables by driving sfdisk with a
// scripted stdin, replacing the interactive fdisk session the old
// provisioning scripts required an operator for.
package ptable
