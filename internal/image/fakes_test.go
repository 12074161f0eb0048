// SPDX-FileCopyrightText: 2025 The vmforge authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package image_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vmforge/vmforge/internal/image"
	"github.com/vmforge/vmforge/internal/run"
)

type recordedCmd struct {
	line        string
	env         []string
	stdin       string
	hasDeadline bool
}

// fakeRunner records commands instead of executing them. The helpers
// step compiles concurrently, so access is serialized.
type fakeRunner struct {
	mu      sync.Mutex
	cmds    []recordedCmd
	failOn  string
	failErr error
}

func (r *fakeRunner) Run(ctx context.Context, cmd run.Command) error {
	stdin := ""

	if cmd.Stdin != nil {
		b, err := io.ReadAll(cmd.Stdin)
		if err != nil {
			return err
		}

		stdin = string(b)
	}

	_, hasDeadline := ctx.Deadline()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.cmds = append(r.cmds, recordedCmd{
		line:        cmd.String(),
		env:         cmd.Env,
		stdin:       stdin,
		hasDeadline: hasDeadline,
	})

	if r.failOn != "" && strings.Contains(cmd.String(), r.failOn) {
		return r.failErr
	}

	return nil
}

func (r *fakeRunner) lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	lines := make([]string, len(r.cmds))
	for idx, cmd := range r.cmds {
		lines[idx] = cmd.line
	}

	return lines
}

func (r *fakeRunner) matching(substr string) []recordedCmd {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []recordedCmd

	for _, cmd := range r.cmds {
		if strings.Contains(cmd.line, substr) {
			matched = append(matched, cmd)
		}
	}

	return matched
}

type fakeMount struct {
	closes int
}

func (m *fakeMount) Close() error {
	m.closes++
	return nil
}

// fakeMounter populates the mount target with the minimal file tree
// the provisioning steps expect from a real rootfs image.
type fakeMounter struct {
	mount *fakeMount
	err   error
}

func (m *fakeMounter) MountImage(_, target string) (image.Mount, error) {
	if m.err != nil {
		return nil, m.err
	}

	for _, dir := range []string{"etc/ssh", "etc/apt", "sbin"} {
		err := os.MkdirAll(filepath.Join(target, dir), 0o755)
		if err != nil {
			return nil, err
		}
	}

	err := os.WriteFile(
		filepath.Join(target, "etc", "ssh", "sshd_config"),
		[]byte("Port 22\nPermitRootLogin no\n"),
		0o644,
	)
	if err != nil {
		return nil, err
	}

	err = os.WriteFile(
		filepath.Join(target, "sbin", "init"),
		[]byte("original init"),
		0o755,
	)
	if err != nil {
		return nil, err
	}

	m.mount = &fakeMount{}

	return m.mount, nil
}

type fakeLoopDevice struct {
	partition string
	detaches  int
}

func (d *fakeLoopDevice) Path() string {
	return "/dev/loop9"
}

func (d *fakeLoopDevice) PartitionPath(num int) string {
	if num == 1 {
		return d.partition
	}

	return "/dev/loop9p2"
}

func (d *fakeLoopDevice) Detach() error {
	d.detaches++
	return nil
}

func writeResources(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()

	for name, content := range map[string]string{
		"fcnet-setup.sh": "#!/bin/sh\nip link set eth0 up\n",
		"init.c":         "int main(void) { return 0; }\n",
		"fillmem.c":      "int main(void) { return 1; }\n",
		"readmem.c":      "int main(void) { return 2; }\n",
	} {
		err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644)
		require.NoError(t, err)
	}

	return dir
}

func writeImageFile(t *testing.T, size int64) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "rootfs.ext4")

	file, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, file.Truncate(size))
	require.NoError(t, file.Close())

	return path
}
