// SPDX-FileCopyrightText: 2025 The vmforge authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package sys provides host system introspection, currently limited to
// the machine architecture the provisioner builds images for.
package sys
