// SPDX-FileCopyrightText: 2025 The vmforge authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package initrd_test

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/cavaliergopher/cpio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmforge/vmforge/internal/initrd"
)

type archiveEntry struct {
	name     string
	mode     cpio.FileMode
	linkname string
	body     []byte
}

func readArchive(t *testing.T, r io.Reader) []archiveEntry {
	t.Helper()

	var entries []archiveEntry

	reader := cpio.NewReader(r)

	for {
		hdr, err := reader.Next()
		if err == io.EOF {
			break
		}

		require.NoError(t, err)

		body, err := io.ReadAll(reader)
		require.NoError(t, err)

		entries = append(entries, archiveEntry{
			name:     hdr.Name,
			mode:     hdr.Mode,
			linkname: hdr.Linkname,
			body:     body,
		})
	}

	return entries
}

func TestWrite(t *testing.T) {
	testFS := fstest.MapFS{
		"sbin":         &fstest.MapFile{Mode: fs.ModeDir | 0o755},
		"sbin/init":    &fstest.MapFile{Data: []byte("#!/bin/sh\n"), Mode: 0o755},
		"etc":          &fstest.MapFile{Mode: fs.ModeDir | 0o755},
		"etc/hostname": &fstest.MapFile{Data: []byte("guest\n"), Mode: 0o644},
	}

	var buf bytes.Buffer

	err := initrd.Write(&buf, testFS)
	require.NoError(t, err)

	entries := readArchive(t, &buf)
	require.Len(t, entries, 4)

	byName := map[string]archiveEntry{}
	for _, e := range entries {
		byName[e.name] = e
	}

	assert.EqualValues(t, cpio.TypeDir|0o755, byName["sbin"].mode)
	assert.EqualValues(t, cpio.TypeReg|0o755, byName["sbin/init"].mode)
	assert.Equal(t, []byte("#!/bin/sh\n"), byName["sbin/init"].body)
	assert.Equal(t, []byte("guest\n"), byName["etc/hostname"].body)
}

func TestWriteUnsupportedFile(t *testing.T) {
	testFS := fstest.MapFS{
		"dev/null": &fstest.MapFile{Mode: fs.ModeDevice},
	}

	var buf bytes.Buffer

	err := initrd.Write(&buf, testFS)
	require.ErrorIs(t, err, initrd.ErrUnsupportedFile)
}

func TestBuild(t *testing.T) {
	srcDir := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(srcDir, "sbin"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(srcDir, "sbin", "fillmem"), []byte("ELF"), 0o755,
	))
	require.NoError(t, os.Symlink(
		"fillmem", filepath.Join(srcDir, "sbin", "fillmem-alias"),
	))

	dstPath := filepath.Join(t.TempDir(), "initrd.cpio")

	err := initrd.Build(srcDir, dstPath)
	require.NoError(t, err)

	dst, err := os.Open(dstPath)
	require.NoError(t, err)

	defer dst.Close()

	entries := readArchive(t, dst)

	byName := map[string]archiveEntry{}
	for _, e := range entries {
		byName[e.name] = e
	}

	require.Contains(t, byName, "sbin/fillmem")
	assert.Equal(t, []byte("ELF"), byName["sbin/fillmem"].body)

	require.Contains(t, byName, "sbin/fillmem-alias")
	link := byName["sbin/fillmem-alias"]
	assert.EqualValues(t, cpio.TypeSymlink|cpio.ModePerm, link.mode)
	assert.Equal(t, "fillmem", link.linkname)
}
