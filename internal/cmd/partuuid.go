// SPDX-FileCopyrightText: 2025 The vmforge authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/vmforge/vmforge/internal/image"
)

func newPartuuidCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "partuuid <src-image> <dst-image>",
		Short: "Build a partitioned copy of a rootfs image",
		Long: `Creates a new image 100 MiB larger than the source, with a single
bootable Linux partition starting at sector 2048 holding a raw copy of
the source image. Used for boot-by-partuuid configuration tests. A
partially written destination is left behind on failure and should be
discarded.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return image.BuildPartuuidImage(
				cmd.Context(),
				image.PartuuidConfig{
					SourcePath: args[0],
					DestPath:   args[1],
				},
			)
		},
	}
}
