// SPDX-FileCopyrightText: 2025 The vmforge authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package run

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Command is a single external program invocation.
type Command struct {
	// Path is the program to run. Looked up in PATH if not absolute.
	Path string

	// Args are the arguments passed to the program, not including the
	// program name itself.
	Args []string

	// Env contains additional environment variables in "KEY=value"
	// form. They are appended to the current process environment.
	Env []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Stdin is attached to the program's standard input if set.
	Stdin io.Reader
}

// String returns the command in a loggable single line form.
func (c Command) String() string {
	return strings.Join(append([]string{c.Path}, c.Args...), " ")
}

// Runner executes external commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExecRunner is the [Runner] that actually executes commands with
// [os/exec]. Stderr is captured and attached to the returned
// [CommandError] so tool diagnostics survive into the error chain.
// Stdout is discarded.
type ExecRunner struct{}

// Run implements [Runner].
func (ExecRunner) Run(ctx context.Context, cmd Command) error {
	slog.Debug("Running command", slog.String("command", cmd.String()))

	execCmd := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	execCmd.Dir = cmd.Dir
	execCmd.Stdin = cmd.Stdin

	if len(cmd.Env) > 0 {
		execCmd.Env = append(os.Environ(), cmd.Env...)
	}

	var stderr bytes.Buffer
	execCmd.Stderr = &stderr

	err := execCmd.Run()
	if err != nil {
		exitCode := -1

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}

		return &CommandError{
			Cmd:      cmd.String(),
			ExitCode: exitCode,
			Stderr:   stderr.String(),
			Err:      err,
		}
	}

	return nil
}
