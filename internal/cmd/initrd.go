// SPDX-FileCopyrightText: 2025 The vmforge authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/vmforge/vmforge/internal/initrd"
)

func newInitrdCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "initrd <src-dir> <dst-archive>",
		Short: "Pack a rootfs directory tree into a newc cpio initrd",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return initrd.Build(args[0], args[1])
		},
	}
}
