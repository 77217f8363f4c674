// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/stacklok/toolhive-skills/logging"
)

// Installer extracts bundles and promotes them atomically into place.
// Concurrent installs to distinct destinations are safe.
type Installer struct {
	limits Limits
	logger *slog.Logger
}

// InstallerOption configures an Installer.
type InstallerOption func(*Installer)

// WithLimits overrides the extraction limits.
func WithLimits(l Limits) InstallerOption {
	return func(i *Installer) {
		i.limits = l
	}
}

// WithInstallerLogger sets the installer logger.
func WithInstallerLogger(logger *slog.Logger) InstallerOption {
	return func(i *Installer) {
		i.logger = logger
	}
}

// NewInstaller returns an Installer using DefaultLimits unless overridden.
func NewInstaller(opts ...InstallerOption) *Installer {
	i := &Installer{limits: DefaultLimits()}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = logging.Component(i.logger, "installer")
	return i
}

// Install extracts the archive read from r to dest.
//
// If dest exists and overwrite is false it returns *AlreadyInstalledError
// without reading r. Otherwise the archive is extracted into a staging
// directory beside dest and renamed into place only after extraction has
// succeeded. An existing dest is moved aside until the rename succeeds and is
// restored if it fails. On any error dest is left as it was.
func (i *Installer) Install(ctx context.Context, r io.Reader, dest string, overwrite bool) error {
	dest = filepath.Clean(dest)
	exists, err := pathExists(dest)
	if err != nil {
		return err
	}
	if exists && !overwrite {
		return &AlreadyInstalledError{Path: dest}
	}

	parent, base := filepath.Dir(dest), filepath.Base(dest)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("creating install root %s: %w", parent, err)
	}

	// The staging directory shares dest's parent so the final rename stays on one volume.
	staging, err := os.MkdirTemp(parent, "."+base+".staging-*")
	if err != nil {
		return fmt.Errorf("creating staging directory: %w", err)
	}
	if err := os.Chmod(staging, 0o755); err != nil {
		_ = os.RemoveAll(staging)
		return fmt.Errorf("preparing staging directory: %w", err)
	}

	if err := Extract(ctx, r, staging, i.limits); err != nil {
		if rmErr := os.RemoveAll(staging); rmErr != nil {
			i.logger.Warn("failed to remove staging directory", slog.String("path", staging), slog.Any("error", rmErr))
		}
		return fmt.Errorf("extracting to %s: %w", dest, err)
	}

	if err := i.promote(staging, dest); err != nil {
		_ = os.RemoveAll(staging)
		return err
	}
	i.logger.Debug("installed bundle", slog.String("path", dest), slog.Bool("replaced", exists))
	return nil
}

// promote renames staging to dest, keeping any previous dest until the rename succeeds.
func (i *Installer) promote(staging, dest string) error {
	exists, err := pathExists(dest)
	if err != nil {
		return err
	}
	if !exists {
		if err := os.Rename(staging, dest); err != nil {
			return fmt.Errorf("promoting %s: %w", dest, err)
		}
		return nil
	}

	parent, base := filepath.Dir(dest), filepath.Base(dest)
	holder, err := os.MkdirTemp(parent, "."+base+".previous-*")
	if err != nil {
		return fmt.Errorf("creating backup directory: %w", err)
	}
	backup := filepath.Join(holder, base)
	if err := os.Rename(dest, backup); err != nil {
		_ = os.Remove(holder)
		return fmt.Errorf("moving previous installation aside: %w", err)
	}

	if err := os.Rename(staging, dest); err != nil {
		if restoreErr := os.Rename(backup, dest); restoreErr != nil {
			return fmt.Errorf("promoting %s: %w (previous installation kept at %s: %v)", dest, err, backup, restoreErr)
		}
		_ = os.Remove(holder)
		return fmt.Errorf("promoting %s: %w", dest, err)
	}

	if err := os.RemoveAll(holder); err != nil {
		i.logger.Warn("failed to remove previous installation", slog.String("path", holder), slog.Any("error", err))
	}
	return nil
}

func pathExists(p string) (bool, error) {
	_, err := os.Lstat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("checking %s: %w", p, err)
	}
}
