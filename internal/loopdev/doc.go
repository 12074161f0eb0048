// SPDX-FileCopyrightText: 2025 The vmforge authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package loopdev attaches disk image files to kernel loop devices.
// It talks to /dev/loop-control and the loop device ioctls directly
// instead of shelling out to losetup.
package loopdev
