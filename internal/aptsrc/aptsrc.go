// SPDX-FileCopyrightText: 2025 The vmforge authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package aptsrc selects package mirrors and package sets for a guest
// image by architecture and release flavour.
package aptsrc

import (
	"fmt"

	"github.com/vmforge/vmforge/internal/sys"
)

// Mirrors by architecture. Only x86_64 is served from the primary
// archive; everything else lives on the ports mirror.
const (
	ArchiveMirror = "http://archive.ubuntu.com/ubuntu"
	PortsMirror   = "http://ports.ubuntu.com/ubuntu-ports"
)

var basePackages = []string{
	"udev",
	"systemd-sysv",
	"openssh-server",
	"iproute2",
	"iputils-ping",
}

var extraPackages = map[sys.Arch][]string{
	// cpuid is used by CPU feature tests and exists for x86 only.
	sys.X8664: {"cpuid"},
}

// DefaultMirror returns the package mirror URL for the architecture.
func DefaultMirror(arch sys.Arch) string {
	if arch == sys.X8664 {
		return ArchiveMirror
	}

	return PortsMirror
}

// BasePackages returns the architecture independent base package set.
func BasePackages() []string {
	pkgs := make([]string, len(basePackages))
	copy(pkgs, basePackages)

	return pkgs
}

// ExtraPackages returns the architecture specific additions.
func ExtraPackages(arch sys.Arch) []string {
	return append([]string(nil), extraPackages[arch]...)
}

// DefaultPackages returns the base package set plus architecture
// specific additions.
func DefaultPackages(arch sys.Arch) []string {
	return append(BasePackages(), ExtraPackages(arch)...)
}

// Lines returns the sources.list entries enabling the release and
// release-updates pockets for the given mirror and flavour.
func Lines(mirror, flavour string) []string {
	return []string{
		fmt.Sprintf("deb %s %s universe", mirror, flavour),
		fmt.Sprintf("deb %s %s-updates main universe", mirror, flavour),
	}
}
