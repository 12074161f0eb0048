// SPDX-FileCopyrightText: 2025 The vmforge authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sys

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Arch is a machine architecture in kernel naming, as reported by
// uname. Mirror and package selection branch on it.
type Arch string

// Supported image architectures.
const (
	X8664   Arch = "x86_64"
	AArch64 Arch = "aarch64"
)

var ErrArchNotSupported = errors.New("architecture not supported")

func (a Arch) String() string {
	return string(a)
}

// Set implements the flag value interface.
func (a *Arch) Set(s string) error {
	switch Arch(s) {
	case X8664, AArch64:
		*a = Arch(s)
	default:
		return fmt.Errorf("%w: %s", ErrArchNotSupported, s)
	}

	return nil
}

// Type implements the pflag value interface.
func (a *Arch) Type() string {
	return "arch"
}

// NativeArch returns the architecture of the host kernel.
func NativeArch() (Arch, error) {
	var uname unix.Utsname

	err := unix.Uname(&uname)
	if err != nil {
		return "", fmt.Errorf("uname: %w", err)
	}

	machine := unix.ByteSliceToString(uname.Machine[:])

	var arch Arch

	err = arch.Set(machine)
	if err != nil {
		return "", err
	}

	return arch, nil
}
