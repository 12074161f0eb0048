// SPDX-FileCopyrightText: 2025 The vmforge authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package initrd

import "errors"

var (
	// ErrUnsupportedFile is returned for file types that cannot be
	// represented in the archive, like sockets or device nodes.
	ErrUnsupportedFile = errors.New("unsupported file type")

	// ErrNoReadLink is returned if the source contains a symbolic
	// link but the file system does not support reading link targets.
	ErrNoReadLink = errors.New("file system does not support readlink")
)
