// SPDX-FileCopyrightText: 2025 The vmforge authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package image

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/vmforge/vmforge/internal/loopdev"
)

// Mount is a mounted file system. Close releases it; only the first
// call unmounts, so it is safe in deferred cleanup paths that may run
// after an explicit release.
type Mount interface {
	Close() error
}

// Mounter mounts a disk image file onto a directory.
type Mounter interface {
	MountImage(imagePath, target string) (Mount, error)
}

// LoopMounter is the [Mounter] used outside of tests. It attaches the
// image to a loop device and mounts that, since the mount syscall does
// not accept regular files as source.
type LoopMounter struct {
	// FSType of the image file system. Defaults to ext4.
	FSType string
}

// MountImage implements [Mounter]. The target directory is created if
// needed.
func (m LoopMounter) MountImage(imagePath, target string) (Mount, error) {
	fsType := m.FSType
	if fsType == "" {
		fsType = "ext4"
	}

	err := os.MkdirAll(target, 0o755)
	if err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", target, err)
	}

	dev, err := loopdev.Attach(imagePath, false)
	if err != nil {
		return nil, fmt.Errorf("attach image: %w", err)
	}

	err = unix.Mount(dev.Path(), target, fsType, 0, "")
	if err != nil {
		_ = dev.Detach()
		return nil, fmt.Errorf("mount %s on %s: %w", dev.Path(), target, err)
	}

	return &loopMount{target: target, dev: dev}, nil
}

type loopMount struct {
	target   string
	dev      *loopdev.Device
	released bool
}

// Close implements [Mount]. It unmounts the file system and detaches
// the loop device exactly once.
func (m *loopMount) Close() error {
	if m.released {
		return nil
	}

	m.released = true

	unmountErr := unix.Unmount(m.target, 0)

	detachErr := m.dev.Detach()
	if unmountErr != nil {
		return fmt.Errorf("unmount %s: %w", m.target, unmountErr)
	}

	if detachErr != nil {
		return fmt.Errorf("detach: %w", detachErr)
	}

	return nil
}
