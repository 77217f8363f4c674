// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork is returned when a bundle could not be downloaded after all retries.
	ErrNetwork = errors.New("bundle download failed")

	// ErrBundleCorrupt is returned when a downloaded payload fails an integrity check
	// or cannot be extracted.
	ErrBundleCorrupt = errors.New("bundle corrupt")

	// ErrBundleNotFound is returned when the store definitively has no such bundle.
	ErrBundleNotFound = errors.New("bundle not found")

	// ErrAlreadyInstalled is returned when the destination exists and overwriting was not requested.
	ErrAlreadyInstalled = errors.New("already installed")
)

// NetworkError reports a download that kept failing.
type NetworkError struct {
	BundleID string
	// Attempts is the number of requests made before giving up.
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %s after %d attempt(s): %v", ErrNetwork, e.BundleID, e.Attempts, e.Err)
}

// Unwrap exposes ErrNetwork and the last failure.
func (e *NetworkError) Unwrap() []error {
	return []error{ErrNetwork, e.Err}
}

// CorruptError reports a payload that is not a usable bundle.
type CorruptError struct {
	// BundleID is empty when the archive was handed to the installer directly.
	BundleID string
	Reason   string
}

func (e *CorruptError) Error() string {
	if e.BundleID == "" {
		return fmt.Sprintf("%s: %s", ErrBundleCorrupt, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrBundleCorrupt, e.BundleID, e.Reason)
}

// Unwrap returns ErrBundleCorrupt.
func (*CorruptError) Unwrap() error {
	return ErrBundleCorrupt
}

func corruptf(format string, args ...any) *CorruptError {
	return &CorruptError{Reason: fmt.Sprintf(format, args...)}
}

// AlreadyInstalledError names the existing destination.
type AlreadyInstalledError struct {
	Path string
}

func (e *AlreadyInstalledError) Error() string {
	return fmt.Sprintf("%s: %s exists", ErrAlreadyInstalled, e.Path)
}

// Unwrap returns ErrAlreadyInstalled.
func (*AlreadyInstalledError) Unwrap() error {
	return ErrAlreadyInstalled
}
