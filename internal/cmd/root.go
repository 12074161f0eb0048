// SPDX-FileCopyrightText: 2025 The vmforge authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Set on build.
var version = "dev"

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context) int {
	root := NewRootCommand()

	err := root.ExecuteContext(ctx)
	if err != nil {
		slog.Error(err.Error())
		return 1
	}

	return 0
}

// NewRootCommand builds the vmforge command tree.
func NewRootCommand() *cobra.Command {
	var debug bool

	root := &cobra.Command{
		Use:     "vmforge",
		Short:   "Build and provision guest rootfs images for microVM CI runs",
		Version: version,

		// Errors are logged once in Execute.
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			setupLogging(os.Stderr, debug)
		},
	}

	root.PersistentFlags().BoolVar(
		&debug, "debug", false, "enable debug logging",
	)

	root.AddCommand(
		newRootfsCommand(),
		newPartuuidCommand(),
		newInitrdCommand(),
	)

	return root
}
