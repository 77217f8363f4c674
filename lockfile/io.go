// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package lockfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Read loads the lock file at path. A missing file yields an empty lock file
// whose install location is the directory of path. Content that is not valid
// JSON or does not match the schema yields an *Error.
func Read(path string) (*LockFile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is the configured install root
	if errors.Is(err, fs.ErrNotExist) {
		return New(filepath.Dir(path)), nil
	}
	if err != nil {
		return nil, &Error{Path: path, Op: "read", Err: err}
	}

	if !json.Valid(data) {
		return nil, &Error{Path: path, Op: "read", Err: errors.New("malformed JSON")}
	}
	if err := ValidateBytes(data); err != nil {
		return nil, &Error{Path: path, Op: "validate", Err: err}
	}

	var lf LockFile
	if err := json.Unmarshal(data, &lf); err != nil {
		return nil, &Error{Path: path, Op: "read", Err: err}
	}
	normalize(&lf)
	return &lf, nil
}

// Write persists lf to path atomically: the content goes to a temporary file
// in the same directory, is synced, then renamed over path. lf is not modified.
// A lock file with a newer lockfileVersion than CurrentVersion is refused.
func Write(lf *LockFile, path string) error {
	if lf == nil {
		return &Error{Path: path, Op: "write", Err: errors.New("nil lock file")}
	}
	if err := CheckWritable(lf, path); err != nil {
		return err
	}
	out := lf.Clone()
	normalize(out)

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return &Error{Path: path, Op: "write", Err: err}
	}
	if err := ValidateBytes(data); err != nil {
		return &Error{Path: path, Op: "validate", Err: err}
	}
	data = append(data, '\n')

	if err := atomicWriteFile(path, data); err != nil {
		return &Error{Path: path, Op: "write", Err: err}
	}
	return nil
}

// atomicWriteFile writes data to a temporary file beside path and renames it into place.
func atomicWriteFile(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("writing temporary file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing temporary file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temporary file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// normalize replaces nil slices with empty ones so the encoded form always
// carries the arrays the schema requires.
func normalize(lf *LockFile) {
	if lf.Skills == nil {
		lf.Skills = []Record{}
	}
	for i := range lf.Skills {
		lf.Skills[i].Walk(func(r *Record) {
			if r.Dependencies == nil {
				r.Dependencies = []Record{}
			}
		})
	}
}
