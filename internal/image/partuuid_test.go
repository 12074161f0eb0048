// SPDX-FileCopyrightText: 2025 The vmforge authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package image_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmforge/vmforge/internal/image"
	"github.com/vmforge/vmforge/internal/ptable"
)

func writeSourceImage(t *testing.T, size int) (string, []byte) {
	t.Helper()

	content := bytes.Repeat([]byte{0xab}, size)

	path := filepath.Join(t.TempDir(), "source.ext4")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	return path, content
}

func newPartuuidConfig(
	t *testing.T,
	srcSize int,
) (image.PartuuidConfig, *fakeRunner, *fakeLoopDevice, []byte) {
	t.Helper()

	srcPath, content := writeSourceImage(t, srcSize)

	partition := filepath.Join(t.TempDir(), "p1")
	require.NoError(t, os.WriteFile(partition, nil, 0o644))

	dev := &fakeLoopDevice{partition: partition}
	runner := &fakeRunner{}

	cfg := image.PartuuidConfig{
		SourcePath: srcPath,
		DestPath:   filepath.Join(t.TempDir(), "partuuid.img"),
		Runner:     runner,
		Attach: func(path string, partScan bool) (image.LoopDevice, error) {
			assert.True(t, partScan, "partition scan requested")
			return dev, nil
		},
	}

	return cfg, runner, dev, content
}

func TestBuildPartuuidImage(t *testing.T) {
	// 3 MiB and a bit, so rounding up matters.
	srcSize := 3*ptable.MiB + 100

	cfg, runner, dev, content := newPartuuidConfig(t, srcSize)

	err := image.BuildPartuuidImage(context.Background(), cfg)
	require.NoError(t, err)

	t.Run("destination size", func(t *testing.T) {
		info, err := os.Stat(cfg.DestPath)
		require.NoError(t, err)
		assert.EqualValues(t, (4+100)*ptable.MiB, info.Size())
	})

	t.Run("partition table", func(t *testing.T) {
		applied := runner.matching("sfdisk")
		require.Len(t, applied, 1)
		assert.Contains(t, applied[0].line, cfg.DestPath)
		assert.Contains(t, applied[0].stdin, "label: dos\n")
		assert.Contains(t, applied[0].stdin, "start=2048, type=L, bootable\n")
	})

	t.Run("filesystem", func(t *testing.T) {
		formatted := runner.matching("mkfs.ext4")
		require.Len(t, formatted, 1)
		assert.Contains(t, formatted[0].line, dev.partition)
	})

	t.Run("raw copy", func(t *testing.T) {
		copied, err := os.ReadFile(dev.partition)
		require.NoError(t, err)
		assert.Equal(t, content, copied)
	})

	t.Run("detached", func(t *testing.T) {
		assert.Equal(t, 1, dev.detaches)
	})
}

func TestBuildPartuuidImageFormatFailure(t *testing.T) {
	injected := errors.New("bad blocks")

	cfg, runner, dev, _ := newPartuuidConfig(t, ptable.MiB)
	runner.failOn = "mkfs.ext4"
	runner.failErr = injected

	err := image.BuildPartuuidImage(context.Background(), cfg)
	require.ErrorIs(t, err, injected)

	// No copy happened, but the loop device was released.
	copied, readErr := os.ReadFile(dev.partition)
	require.NoError(t, readErr)
	assert.Empty(t, copied)
	assert.Equal(t, 1, dev.detaches)
}

func TestBuildPartuuidImageAttachFailure(t *testing.T) {
	injected := errors.New("no free loop device")

	cfg, _, _, _ := newPartuuidConfig(t, ptable.MiB)
	cfg.Attach = func(string, bool) (image.LoopDevice, error) {
		return nil, injected
	}

	err := image.BuildPartuuidImage(context.Background(), cfg)
	require.ErrorIs(t, err, injected)
}

func TestBuildPartuuidImageMissingSource(t *testing.T) {
	cfg := image.PartuuidConfig{
		SourcePath: filepath.Join(t.TempDir(), "nope.ext4"),
		DestPath:   filepath.Join(t.TempDir(), "out.img"),
		Runner:     &fakeRunner{},
	}

	err := image.BuildPartuuidImage(context.Background(), cfg)
	require.ErrorIs(t, err, os.ErrNotExist)
}
