// SPDX-FileCopyrightText: 2025 The vmforge authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package initrd

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cavaliergopher/cpio"
)

// ReadLinkFS is a [fs.FS] that can read symbolic link targets.
//
// Replace with [fs.ReadLinkFS] once the module requires Go 1.25. See
// https://github.com/golang/go/issues/49580
type ReadLinkFS interface {
	fs.FS

	ReadLink(name string) (string, error)
}

// Build packs the directory tree at srcDir into a newc cpio archive
// at dstPath, overwriting an existing file.
func Build(srcDir, dstPath string) (err error) {
	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", dstPath, err)
	}

	defer func() {
		closeErr := dst.Close()
		if err == nil && closeErr != nil {
			err = fmt.Errorf("close %s: %w", dstPath, closeErr)
		}
	}()

	return Write(dst, DirFS(srcDir))
}

// Write packs the complete file tree of fsys into a newc cpio archive
// written to w. Directories, regular files and symbolic links are
// supported. Entry names are the slash separated paths relative to the
// root of fsys.
func Write(w io.Writer, fsys fs.FS) error {
	writer := cpio.NewWriter(w)

	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if path == "." {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}

		return writeEntry(writer, fsys, path, info)
	})
	if err != nil {
		return fmt.Errorf("walk: %w", err)
	}

	err = writer.Close()
	if err != nil {
		return fmt.Errorf("close archive: %w", err)
	}

	return nil
}

func writeEntry(
	writer *cpio.Writer,
	fsys fs.FS,
	path string,
	info fs.FileInfo,
) error {
	switch {
	case info.IsDir():
		return writeDirectory(writer, path, info.Mode())
	case info.Mode().Type() == fs.ModeSymlink:
		return writeLink(writer, fsys, path)
	case info.Mode().IsRegular():
		return writeRegular(writer, fsys, path, info)
	default:
		return &fs.PathError{
			Op:   "write",
			Path: path,
			Err:  ErrUnsupportedFile,
		}
	}
}

func writeDirectory(writer *cpio.Writer, path string, mode fs.FileMode) error {
	header := &cpio.Header{
		Name: path,
		Mode: cpio.TypeDir | cpio.FileMode(mode.Perm()),
	}

	return writeHeader(writer, header)
}

func writeLink(writer *cpio.Writer, fsys fs.FS, path string) error {
	rlFS, ok := fsys.(ReadLinkFS)
	if !ok {
		return &fs.PathError{
			Op:   "readlink",
			Path: path,
			Err:  ErrNoReadLink,
		}
	}

	target, err := rlFS.ReadLink(path)
	if err != nil {
		return fmt.Errorf("readlink %s: %w", path, err)
	}

	header := &cpio.Header{
		Name: path,
		Mode: cpio.TypeSymlink | cpio.ModePerm,
		Size: int64(len(target)),
	}

	err = writeHeader(writer, header)
	if err != nil {
		return err
	}

	// The body of a symlink entry is the target path.
	_, err = writer.Write([]byte(target))
	if err != nil {
		return fmt.Errorf("write body for %s: %w", path, err)
	}

	return nil
}

func writeRegular(
	writer *cpio.Writer,
	fsys fs.FS,
	path string,
	info fs.FileInfo,
) error {
	header, err := cpio.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("create header for %s: %w", path, err)
	}

	header.Name = path

	err = writeHeader(writer, header)
	if err != nil {
		return err
	}

	source, err := fsys.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer source.Close()

	_, err = io.Copy(writer, source)
	if err != nil {
		return fmt.Errorf("write body for %s: %w", path, err)
	}

	return nil
}

func writeHeader(writer *cpio.Writer, header *cpio.Header) error {
	err := writer.WriteHeader(header)
	if err != nil {
		return fmt.Errorf("write header for %s: %w", header.Name, err)
	}

	return nil
}

// DirFS returns a [ReadLinkFS] for the directory tree rooted at dir.
// Unlike [os.DirFS], opening a symbolic link does not follow it for
// the purpose of [Write]; link targets are read with [os.Readlink].
func DirFS(dir string) fs.FS {
	return &dirFS{FS: os.DirFS(dir), root: dir}
}

type dirFS struct {
	fs.FS

	root string
}

// ReadLink implements [ReadLinkFS].
func (fsys *dirFS) ReadLink(name string) (string, error) {
	target, err := os.Readlink(filepath.Join(fsys.root, filepath.FromSlash(name)))
	if err != nil {
		return "", err //nolint:wrapcheck
	}

	return target, nil
}
