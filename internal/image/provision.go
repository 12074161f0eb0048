// SPDX-FileCopyrightText: 2025 The vmforge authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package image

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vmforge/vmforge/internal/aptsrc"
	"github.com/vmforge/vmforge/internal/run"
	"github.com/vmforge/vmforge/internal/sshdconf"
	"github.com/vmforge/vmforge/internal/sshkey"
	"github.com/vmforge/vmforge/internal/sys"
)

// Payload files that must exist in the resource directory.
const (
	resourceNetSetup = "fcnet-setup.sh"
	resourceInit     = "init.c"
	resourceFillmem  = "fillmem.c"
	resourceReadmem  = "readmem.c"
)

var resourceFiles = []string{
	resourceNetSetup,
	resourceInit,
	resourceFillmem,
	resourceReadmem,
}

// Fixed paths inside the mounted image.
const (
	hostnamePath       = "etc/hostname"
	netSetupPath       = "usr/local/bin/fcnet-setup.sh"
	networkUnitPath    = "etc/systemd/system/fcnet.service"
	sshdWantsDir       = "etc/systemd/system/sshd.service.wants"
	authorizedKeysPath = "root/.ssh/authorized_keys"
	sshdConfigPath     = "etc/ssh/sshd_config"
	initPath           = "sbin/init"
	initBackupPath     = "sbin/init.orig"
	sourcesListPath    = "etc/apt/sources.list"
	helperDir          = "sbin"
)

const imageHostname = "fc-test-microvm"

// The network setup service runs once before sshd so the guest is
// reachable as soon as SSH accepts connections.
const networkUnit = `[Unit]
Description=Configure guest network interfaces
Before=sshd.service

[Service]
Type=oneshot
ExecStart=/usr/local/bin/fcnet-setup.sh

[Install]
WantedBy=sshd.service
`

const (
	defaultLocale         = "C.UTF-8"
	defaultInstallTimeout = 20 * time.Minute
)

// Step names as reported in [StepError].
const (
	StepMount          = "mount"
	StepHostname       = "hostname"
	StepNetworkService = "network-service"
	StepSSHKey         = "ssh-key"
	StepSSHDConfig     = "sshd-config"
	StepRootPassword   = "root-password"
	StepInit           = "init"
	StepHelpers        = "helpers"
	StepAptSources     = "apt-sources"
	StepPackages       = "packages"
	StepUnmount        = "unmount"
)

// Config describes a rootfs provisioning run.
type Config struct {
	// BuildDir receives the mount point and the generated SSH key
	// pair.
	BuildDir string

	// ResourceDir contains the payload files (fcnet-setup.sh, init.c,
	// fillmem.c, readmem.c). Read-only.
	ResourceDir string

	// ImagePath is the mountable rootfs image, mutated in place.
	ImagePath string

	// Flavour is the package repository release codename, e.g.
	// "jammy".
	Flavour string

	// Arch selects mirror and package set. Defaults to the host
	// architecture.
	Arch sys.Arch

	// Locale forced on tools run inside the image. Defaults to
	// C.UTF-8.
	Locale string

	// Mirror overrides the architecture default package mirror.
	Mirror string

	// Packages overrides the architecture default package set.
	Packages []string

	// InstallTimeout bounds the package manager step, the only step
	// that depends on a network mirror. Defaults to 20m.
	InstallTimeout time.Duration

	// Runner executes external tools. Defaults to [run.ExecRunner].
	Runner run.Runner

	// Mounter mounts the image. Defaults to [LoopMounter].
	Mounter Mounter
}

func (c *Config) applyDefaults() error {
	if c.Arch == "" {
		arch, err := sys.NativeArch()
		if err != nil {
			return err
		}

		c.Arch = arch
	}

	if c.Locale == "" {
		c.Locale = defaultLocale
	}

	if c.Mirror == "" {
		c.Mirror = aptsrc.DefaultMirror(c.Arch)
	}

	if c.Packages == nil {
		c.Packages = aptsrc.DefaultPackages(c.Arch)
	}

	if c.InstallTimeout == 0 {
		c.InstallTimeout = defaultInstallTimeout
	}

	if c.Runner == nil {
		c.Runner = run.ExecRunner{}
	}

	if c.Mounter == nil {
		c.Mounter = LoopMounter{}
	}

	return nil
}

func (c *Config) validate() error {
	for name, value := range map[string]string{
		"build dir":    c.BuildDir,
		"resource dir": c.ResourceDir,
		"image path":   c.ImagePath,
		"flavour":      c.Flavour,
	} {
		if value == "" {
			return fmt.Errorf("%w: %s must not be empty", ErrInvalidConfig, name)
		}
	}

	_, err := os.Stat(c.ImagePath)
	if err != nil {
		return fmt.Errorf("image: %w", err)
	}

	for _, name := range resourceFiles {
		_, err := os.Stat(filepath.Join(c.ResourceDir, name))
		if err != nil {
			return fmt.Errorf("%w: %s", ErrResourceMissing, name)
		}
	}

	return nil
}

// ProvisionRootfs mounts the image at cfg.ImagePath and mutates it
// into a bootable CI guest: fixed hostname, network setup service,
// root SSH access with a freshly generated key pair, a replacement
// init that signals boot completion, diagnostic helper binaries and a
// base package set.
//
// Steps run in a fixed order and the first failure aborts the run.
// The mount point is released on every exit path.
func ProvisionRootfs(ctx context.Context, cfg Config) (err error) {
	err = cfg.applyDefaults()
	if err != nil {
		return err
	}

	err = cfg.validate()
	if err != nil {
		return err
	}

	root := filepath.Join(cfg.BuildDir, "rootfs")

	slog.Info("Mounting image",
		slog.String("image", cfg.ImagePath),
		slog.String("target", root))

	mnt, err := cfg.Mounter.MountImage(cfg.ImagePath, root)
	if err != nil {
		return &StepError{Step: StepMount, Err: err}
	}

	defer func() {
		closeErr := mnt.Close()
		if closeErr != nil && err == nil {
			err = &StepError{Step: StepUnmount, Err: closeErr}
		}
	}()

	p := &provisioner{cfg: cfg, root: root}

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{StepHostname, p.writeHostname},
		{StepNetworkService, p.installNetworkService},
		{StepSSHKey, p.installSSHKey},
		{StepSSHDConfig, p.rewriteSSHDConfig},
		{StepRootPassword, p.clearRootPassword},
		{StepInit, p.replaceInit},
		{StepHelpers, p.buildHelpers},
		{StepAptSources, p.appendAptSources},
		{StepPackages, p.installPackages},
	}

	for _, step := range steps {
		slog.Info("Provisioning", slog.String("step", step.name))

		stepErr := step.fn(ctx)
		if stepErr != nil {
			return &StepError{Step: step.name, Err: stepErr}
		}
	}

	return nil
}

type provisioner struct {
	cfg  Config
	root string
}

// path returns the host path of a fixed location inside the image.
func (p *provisioner) path(imagePath string) string {
	return filepath.Join(p.root, imagePath)
}

func (p *provisioner) resource(name string) string {
	return filepath.Join(p.cfg.ResourceDir, name)
}

func (p *provisioner) localeEnv() []string {
	return []string{
		"LC_ALL=" + p.cfg.Locale,
		"LANG=" + p.cfg.Locale,
	}
}

func (p *provisioner) writeHostname(_ context.Context) error {
	err := os.WriteFile(p.path(hostnamePath), []byte(imageHostname+"\n"), 0o644)
	if err != nil {
		return fmt.Errorf("write hostname: %w", err)
	}

	return nil
}

func (p *provisioner) installNetworkService(_ context.Context) error {
	setup, err := os.ReadFile(p.resource(resourceNetSetup))
	if err != nil {
		return fmt.Errorf("read %s: %w", resourceNetSetup, err)
	}

	err = os.MkdirAll(filepath.Dir(p.path(netSetupPath)), 0o755)
	if err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	err = os.WriteFile(p.path(netSetupPath), setup, 0o755)
	if err != nil {
		return fmt.Errorf("install %s: %w", resourceNetSetup, err)
	}

	err = os.MkdirAll(filepath.Dir(p.path(networkUnitPath)), 0o755)
	if err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	err = os.WriteFile(p.path(networkUnitPath), []byte(networkUnit), 0o644)
	if err != nil {
		return fmt.Errorf("write unit: %w", err)
	}

	err = os.MkdirAll(p.path(sshdWantsDir), 0o755)
	if err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	link := filepath.Join(p.path(sshdWantsDir), "fcnet.service")

	// Repeated provisioning runs leave a link behind.
	err = os.Remove(link)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale link: %w", err)
	}

	err = os.Symlink("../fcnet.service", link)
	if err != nil {
		return fmt.Errorf("enable unit: %w", err)
	}

	return nil
}

func (p *provisioner) installSSHKey(_ context.Context) error {
	pair, err := sshkey.Generate(filepath.Join(p.cfg.BuildDir, "ssh"))
	if err != nil {
		return err
	}

	slog.Debug("Generated SSH key pair",
		slog.String("private", pair.PrivatePath))

	err = os.MkdirAll(filepath.Dir(p.path(authorizedKeysPath)), 0o700)
	if err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	err = os.WriteFile(p.path(authorizedKeysPath), pair.AuthorizedKey, 0o600)
	if err != nil {
		return fmt.Errorf("install authorized key: %w", err)
	}

	return nil
}

func (p *provisioner) rewriteSSHDConfig(_ context.Context) error {
	path := p.path(sshdConfigPath)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("sshd config: %w", err)
	}

	config, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read sshd config: %w", err)
	}

	err = os.WriteFile(path, sshdconf.Rewrite(config), info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("write sshd config: %w", err)
	}

	return nil
}

func (p *provisioner) clearRootPassword(ctx context.Context) error {
	return p.cfg.Runner.Run(ctx, run.Command{
		Path: "chroot",
		Args: []string{p.root, "passwd", "-d", "root"},
		Env:  p.localeEnv(),
	})
}

func (p *provisioner) replaceInit(ctx context.Context) error {
	err := os.Rename(p.path(initPath), p.path(initBackupPath))
	if err != nil {
		return fmt.Errorf("move init aside: %w", err)
	}

	return p.compile(ctx, resourceInit, initPath)
}

func (p *provisioner) buildHelpers(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	for _, source := range []string{resourceFillmem, resourceReadmem} {
		source := source
		target := filepath.Join(
			helperDir, source[:len(source)-len(filepath.Ext(source))],
		)

		eg.Go(func() error {
			return p.compile(ctx, source, target)
		})
	}

	return eg.Wait()
}

// compile builds a resource C source into a static binary inside the
// image. Static linking keeps the binaries independent of whatever
// libc the image ships.
func (p *provisioner) compile(ctx context.Context, source, target string) error {
	return p.cfg.Runner.Run(ctx, run.Command{
		Path: "gcc",
		Args: []string{
			"-O2", "-static",
			"-o", p.path(target),
			p.resource(source),
		},
	})
}

func (p *provisioner) appendAptSources(_ context.Context) error {
	file, err := os.OpenFile(
		p.path(sourcesListPath),
		os.O_WRONLY|os.O_CREATE|os.O_APPEND,
		0o644,
	)
	if err != nil {
		return fmt.Errorf("open sources list: %w", err)
	}

	for _, line := range aptsrc.Lines(p.cfg.Mirror, p.cfg.Flavour) {
		_, err = fmt.Fprintln(file, line)
		if err != nil {
			_ = file.Close()
			return fmt.Errorf("append sources list: %w", err)
		}
	}

	err = file.Close()
	if err != nil {
		return fmt.Errorf("close sources list: %w", err)
	}

	return nil
}

func (p *provisioner) installPackages(ctx context.Context) error {
	// The only step that needs to reach a network mirror, so it is
	// the only one with a dedicated timeout.
	ctx, cancel := context.WithTimeout(ctx, p.cfg.InstallTimeout)
	defer cancel()

	env := append(p.localeEnv(), "DEBIAN_FRONTEND=noninteractive")

	err := p.cfg.Runner.Run(ctx, run.Command{
		Path: "chroot",
		Args: []string{p.root, "apt-get", "update"},
		Env:  env,
	})
	if err != nil {
		return fmt.Errorf("update package lists: %w", err)
	}

	args := append(
		[]string{p.root, "apt-get", "install", "-y", "--no-install-recommends"},
		p.cfg.Packages...,
	)

	err = p.cfg.Runner.Run(ctx, run.Command{
		Path: "chroot",
		Args: args,
		Env:  env,
	})
	if err != nil {
		return fmt.Errorf("install packages: %w", err)
	}

	return nil
}
