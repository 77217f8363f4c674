// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package lockfile

import (
	"errors"
	"fmt"
)

// ErrLockFile is matched by every error this package returns.
var ErrLockFile = errors.New("lock file error")

// ErrUnsupportedVersion reports a lock file written by a newer format version.
// Such files can be read but are never rewritten.
var ErrUnsupportedVersion = errors.New("unsupported lockfileVersion")

// CheckWritable reports an *Error wrapping ErrUnsupportedVersion when lf was
// written by a newer format version than this package produces.
func CheckWritable(lf *LockFile, path string) error {
	if lf != nil && lf.LockfileVersion > CurrentVersion {
		return &Error{Path: path, Op: "write", Err: fmt.Errorf("%w %d, newest supported is %d",
			ErrUnsupportedVersion, lf.LockfileVersion, CurrentVersion)}
	}
	return nil
}

// Error describes a failed lock file operation.
type Error struct {
	Path string
	// Op is "read", "write" or "validate".
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", ErrLockFile, e.Op, e.Path, e.Err)
}

// Unwrap exposes ErrLockFile and the cause.
func (e *Error) Unwrap() []error {
	return []error{ErrLockFile, e.Err}
}
