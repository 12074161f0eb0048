// SPDX-FileCopyrightText: 2025 The vmforge authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package image

import "errors"

var (
	// ErrInvalidConfig is returned if a required configuration value
	// is missing or unusable.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrResourceMissing is returned if the resource directory does
	// not contain all required payload files.
	ErrResourceMissing = errors.New("resource file missing")
)

// StepError records which provisioning step failed.
type StepError struct {
	Step string
	Err  error
}

// Error implements the [error] interface.
func (e *StepError) Error() string {
	return "step " + e.Step + ": " + e.Err.Error()
}

// Is implements the [errors.Is] interface.
func (e *StepError) Is(other error) bool {
	_, ok := other.(*StepError)
	return ok
}

// Unwrap implements the [errors.Unwrap] interface.
func (e *StepError) Unwrap() error {
	return e.Err
}
