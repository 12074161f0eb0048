// SPDX-FileCopyrightText: 2025 The vmforge authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package loopdev

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const controlPath = "/dev/loop-control"

// Device is a loop device with a file attached. It must be released
// with [Device.Detach] once the device is no longer needed. Detach is
// safe to call multiple times; only the first call detaches.
type Device struct {
	num      int
	file     *os.File
	attached bool
}

// Attach binds the file at path to a free loop device. With partScan
// set, the kernel parses the partition table of the file and creates
// partition device nodes, so a reattach cycle to pick up partitions is
// not needed.
func Attach(path string, partScan bool) (*Device, error) {
	ctl, err := os.OpenFile(controlPath, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open loop control: %w", err)
	}
	defer ctl.Close()

	num, err := unix.IoctlRetInt(int(ctl.Fd()), unix.LOOP_CTL_GET_FREE)
	if err != nil {
		return nil, fmt.Errorf("get free loop device: %w", err)
	}

	backing, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open backing file: %w", err)
	}
	defer backing.Close()

	dev := &Device{num: num}

	dev.file, err = os.OpenFile(dev.Path(), os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dev.Path(), err)
	}

	err = unix.IoctlSetInt(int(dev.file.Fd()), unix.LOOP_SET_FD, int(backing.Fd()))
	if err != nil {
		_ = dev.file.Close()
		return nil, fmt.Errorf("attach %s: %w", path, err)
	}

	dev.attached = true

	status := unix.LoopInfo64{}
	copy(status.File_name[:], path)

	if partScan {
		status.Flags |= unix.LO_FLAGS_PARTSCAN
	}

	err = unix.IoctlLoopSetStatus64(int(dev.file.Fd()), &status)
	if err != nil {
		_ = dev.Detach()
		return nil, fmt.Errorf("set loop status: %w", err)
	}

	return dev, nil
}

// Path returns the loop device node path.
func (d *Device) Path() string {
	return fmt.Sprintf("/dev/loop%d", d.num)
}

// PartitionPath returns the device node path of the given partition,
// counted from 1.
func (d *Device) PartitionPath(num int) string {
	return fmt.Sprintf("%sp%d", d.Path(), num)
}

// Detach releases the loop device.
func (d *Device) Detach() error {
	if !d.attached {
		return nil
	}

	d.attached = false

	err := unix.IoctlSetInt(int(d.file.Fd()), unix.LOOP_CLR_FD, 0)

	closeErr := d.file.Close()
	if err != nil {
		return fmt.Errorf("detach %s: %w", d.Path(), err)
	}

	if closeErr != nil {
		return fmt.Errorf("close %s: %w", d.Path(), closeErr)
	}

	return nil
}
