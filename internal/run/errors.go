// SPDX-FileCopyrightText: 2025 The vmforge authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package run

import (
	"fmt"
	"strings"
)

// CommandError is returned if an external command failed. It keeps the
// command line, the exit code and the captured stderr of the tool.
type CommandError struct {
	Cmd      string
	ExitCode int
	Stderr   string
	Err      error
}

// Error implements the [error] interface.
func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q failed with exit code %d", e.Cmd, e.ExitCode)

	stderr := strings.TrimSpace(e.Stderr)
	if stderr != "" {
		msg += ": " + stderr
	}

	return msg
}

// Is implements the [errors.Is] interface.
func (e *CommandError) Is(other error) bool {
	_, ok := other.(*CommandError)
	return ok
}

// Unwrap implements the [errors.Unwrap] interface.
func (e *CommandError) Unwrap() error {
	return e.Err
}
