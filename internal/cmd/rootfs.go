// SPDX-FileCopyrightText: 2025 The vmforge authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/vmforge/vmforge/internal/config"
	"github.com/vmforge/vmforge/internal/image"
	"github.com/vmforge/vmforge/internal/sys"
)

func newRootfsCommand() *cobra.Command {
	var (
		arch           sys.Arch
		locale         string
		installTimeout time.Duration
		configPath     string
	)

	cmd := &cobra.Command{
		Use:   "rootfs <build-dir> <resource-dir> <image> <flavour>",
		Short: "Provision a base rootfs image into a CI guest image",
		Long: `Mounts the given rootfs image and mutates it in place: sets the
hostname, installs the network setup service and an SSH key pair for
root, replaces init with a boot-complete signalling binary, compiles
the diagnostic helpers and installs the base package set for the given
release flavour. The private SSH key is left in <build-dir>/ssh.`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			if arch == "" {
				native, err := sys.NativeArch()
				if err != nil {
					return err
				}

				arch = native
			}

			var cfgFile *config.File

			if configPath != "" {
				var err error

				cfgFile, err = config.Load(configPath)
				if err != nil {
					return err
				}
			}

			return image.ProvisionRootfs(cmd.Context(), image.Config{
				BuildDir:       args[0],
				ResourceDir:    args[1],
				ImagePath:      args[2],
				Flavour:        args[3],
				Arch:           arch,
				Locale:         locale,
				Mirror:         cfgFile.Mirror(arch),
				Packages:       cfgFile.PackageList(arch),
				InstallTimeout: installTimeout,
			})
		},
	}

	cmd.Flags().Var(
		&arch, "arch", "target architecture (x86_64 or aarch64)",
	)
	cmd.Flags().StringVar(
		&locale, "locale", "C.UTF-8", "locale forced on tools run in the image",
	)
	cmd.Flags().DurationVar(
		&installTimeout,
		"install-timeout",
		20*time.Minute,
		"timeout for the package installation step",
	)
	cmd.Flags().StringVar(
		&configPath, "config", "", "TOML file overriding mirrors and packages",
	)

	return cmd
}
