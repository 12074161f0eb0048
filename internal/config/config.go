// SPDX-FileCopyrightText: 2025 The vmforge authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads optional TOML configuration overriding the
// built-in mirror and package selection, e.g. to point CI at a local
// package cache:
//
//	[mirrors]
//	x86_64 = "http://mirror.example.com/ubuntu"
//
//	[packages]
//	base = ["udev", "systemd-sysv", "openssh-server"]
//
//	[packages.extra]
//	x86_64 = ["cpuid", "msr-tools"]
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/vmforge/vmforge/internal/aptsrc"
	"github.com/vmforge/vmforge/internal/sys"
)

// File is the TOML configuration file content. The zero value (and a
// nil pointer) fall back to the built-in defaults everywhere.
type File struct {
	// Mirrors maps architecture names to mirror URLs.
	Mirrors map[string]string `toml:"mirrors"`

	Packages struct {
		// Base replaces the built-in base package set if non-empty.
		Base []string `toml:"base"`

		// Extra maps architecture names to additional packages,
		// replacing the built-in per-architecture additions.
		Extra map[string][]string `toml:"extra"`
	} `toml:"packages"`
}

// Load reads and decodes the file at path.
func Load(path string) (*File, error) {
	var file File

	_, err := toml.DecodeFile(path, &file)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	return &file, nil
}

// Mirror returns the configured mirror for the architecture, or the
// built-in default.
func (f *File) Mirror(arch sys.Arch) string {
	if f != nil {
		if mirror, ok := f.Mirrors[arch.String()]; ok {
			return mirror
		}
	}

	return aptsrc.DefaultMirror(arch)
}

// PackageList returns the package set to install for the architecture:
// the configured base set (or the built-in one) plus the configured
// per-architecture extras (or the built-in ones).
func (f *File) PackageList(arch sys.Arch) []string {
	base := aptsrc.BasePackages()
	extra := aptsrc.ExtraPackages(arch)

	if f != nil {
		if f.Packages.Base != nil {
			base = append([]string(nil), f.Packages.Base...)
		}

		if f.Packages.Extra != nil {
			extra = append([]string(nil), f.Packages.Extra[arch.String()]...)
		}
	}

	return append(base, extra...)
}
