// SPDX-FileCopyrightText: 2025 The vmforge authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package image

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vmforge/vmforge/internal/loopdev"
	"github.com/vmforge/vmforge/internal/ptable"
	"github.com/vmforge/vmforge/internal/run"
)

// Headroom added to the destination image beyond the source size, in
// MiB. Covers partition table overhead and ext4 metadata growth.
const partuuidHeadroomMiB = 100

// LoopDevice is the part of [loopdev.Device] the partuuid builder
// needs.
type LoopDevice interface {
	Path() string
	PartitionPath(num int) string
	Detach() error
}

// AttachFunc attaches an image file to a loop device.
type AttachFunc func(path string, partScan bool) (LoopDevice, error)

// PartuuidConfig describes a partuuid image build.
type PartuuidConfig struct {
	// SourcePath is the rootfs image to copy. Read-only.
	SourcePath string

	// DestPath is the partitioned image to create. Overwritten if it
	// exists; left partially constructed on failure.
	DestPath string

	// Runner executes external tools. Defaults to [run.ExecRunner].
	Runner run.Runner

	// Attach attaches the destination to a loop device. Defaults to
	// [loopdev.Attach].
	Attach AttachFunc
}

func (c *PartuuidConfig) applyDefaults() {
	if c.Runner == nil {
		c.Runner = run.ExecRunner{}
	}

	if c.Attach == nil {
		c.Attach = func(path string, partScan bool) (LoopDevice, error) {
			return loopdev.Attach(path, partScan)
		}
	}
}

// BuildPartuuidImage creates a new image at cfg.DestPath, 100 MiB
// larger than the source, holding a single bootable Linux partition
// starting at sector 2048 whose content is a raw byte copy of the
// source image. Bootloaders can then refer to the rootfs by PARTUUID.
//
// The loop device is detached on every exit path.
func BuildPartuuidImage(ctx context.Context, cfg PartuuidConfig) (err error) {
	cfg.applyDefaults()

	if cfg.SourcePath == "" || cfg.DestPath == "" {
		return fmt.Errorf(
			"%w: source and destination must not be empty", ErrInvalidConfig,
		)
	}

	info, err := os.Stat(cfg.SourcePath)
	if err != nil {
		return fmt.Errorf("source image: %w", err)
	}

	srcMiB := ptable.CeilMiB(info.Size())
	dstBytes := (srcMiB + partuuidHeadroomMiB) * ptable.MiB

	slog.Info("Allocating destination image",
		slog.String("path", cfg.DestPath),
		slog.Int64("size_mib", srcMiB+partuuidHeadroomMiB))

	err = allocate(cfg.DestPath, dstBytes)
	if err != nil {
		return err
	}

	table := ptable.NewDosTable()
	table.Partitions = []ptable.Partition{
		{Start: ptable.FirstUsableSector, Type: "L", Bootable: true},
	}

	err = table.Apply(ctx, cfg.Runner, cfg.DestPath)
	if err != nil {
		return err
	}

	dev, err := cfg.Attach(cfg.DestPath, true)
	if err != nil {
		return fmt.Errorf("attach destination: %w", err)
	}

	defer func() {
		detachErr := dev.Detach()
		if detachErr != nil && err == nil {
			err = detachErr
		}
	}()

	partition := dev.PartitionPath(1)

	err = cfg.Runner.Run(ctx, run.Command{
		Path: "mkfs.ext4",
		Args: []string{partition},
	})
	if err != nil {
		return fmt.Errorf("format partition: %w", err)
	}

	err = copyRaw(cfg.SourcePath, partition)
	if err != nil {
		return err
	}

	slog.Info("Partition ready", slog.String("partuuid", table.PartUUID(1)))

	return nil
}

func allocate(path string, size int64) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	defer func() {
		closeErr := file.Close()
		if closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()

	err = file.Truncate(size)
	if err != nil {
		return fmt.Errorf("allocate %s: %w", path, err)
	}

	return nil
}

// copyRaw copies the source image into the partition device at the
// block level.
func copyRaw(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", srcPath, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(dstPath, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", dstPath, err)
	}

	_, err = io.Copy(dst, src)
	if err != nil {
		_ = dst.Close()
		return fmt.Errorf("copy image: %w", err)
	}

	err = dst.Sync()
	if err != nil {
		_ = dst.Close()
		return fmt.Errorf("sync %s: %w", dstPath, err)
	}

	err = dst.Close()
	if err != nil {
		return fmt.Errorf("close %s: %w", dstPath, err)
	}

	return nil
}
