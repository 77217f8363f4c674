// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package bundle_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolhive-skills/bundle"
	"github.com/stacklok/toolhive-skills/bundle/bundletest"
)

// failingReader fails the test if the installer reads the archive.
type failingReader struct {
	t *testing.T
}

func (r failingReader) Read([]byte) (int, error) {
	r.t.Error("archive must not be read")
	return 0, errors.New("unexpected read")
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestInstall_Fresh(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "skills")
	dest := filepath.Join(root, "alpha")
	archive := bundletest.MustArchive(t,
		bundletest.File("SKILL.md", "alpha v1"),
		bundletest.File("refs/notes.md", "notes"),
	)

	err := bundle.NewInstaller().Install(t.Context(), bytes.NewReader(archive), dest, false)
	require.NoError(t, err)

	assert.Equal(t, "alpha v1", readFile(t, filepath.Join(dest, "SKILL.md")))
	assert.Equal(t, "notes", readFile(t, filepath.Join(dest, "refs", "notes.md")))
	assert.Equal(t, []string{"alpha"}, dirEntries(t, root), "no staging directories may remain")
}

func TestInstall_AlreadyInstalled(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dest := filepath.Join(root, "alpha")
	require.NoError(t, os.MkdirAll(dest, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "SKILL.md"), []byte("old"), 0o644))

	err := bundle.NewInstaller().Install(t.Context(), failingReader{t: t}, dest, false)
	require.ErrorIs(t, err, bundle.ErrAlreadyInstalled)

	var already *bundle.AlreadyInstalledError
	require.ErrorAs(t, err, &already)
	assert.Equal(t, dest, already.Path)
	assert.Equal(t, "old", readFile(t, filepath.Join(dest, "SKILL.md")))
	assert.Equal(t, []string{"alpha"}, dirEntries(t, root))
}

func TestInstall_OverwriteReplacesPreviousVersion(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dest := filepath.Join(root, "alpha")
	installer := bundle.NewInstaller()

	v1 := bundletest.MustArchive(t, bundletest.File("SKILL.md", "v1"), bundletest.File("removed.md", "stale"))
	v2 := bundletest.MustArchive(t, bundletest.File("SKILL.md", "v2"))

	require.NoError(t, installer.Install(t.Context(), bytes.NewReader(v1), dest, false))
	require.NoError(t, installer.Install(t.Context(), bytes.NewReader(v2), dest, true))

	assert.Equal(t, "v2", readFile(t, filepath.Join(dest, "SKILL.md")))
	assert.NoFileExists(t, filepath.Join(dest, "removed.md"))
	assert.Equal(t, []string{"alpha"}, dirEntries(t, root), "backup and staging directories must be removed")
}

func TestInstall_FailedExtractionKeepsPreviousVersion(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dest := filepath.Join(root, "alpha")
	installer := bundle.NewInstaller()

	v1 := bundletest.MustArchive(t, bundletest.File("SKILL.md", "v1"))
	require.NoError(t, installer.Install(t.Context(), bytes.NewReader(v1), dest, false))

	bad := bundletest.MustArchive(t,
		bundletest.File("SKILL.md", "v2"),
		bundletest.File("../escape.md", "x"),
	)
	err := installer.Install(t.Context(), bytes.NewReader(bad), dest, true)
	require.ErrorIs(t, err, bundle.ErrBundleCorrupt)

	assert.Equal(t, "v1", readFile(t, filepath.Join(dest, "SKILL.md")))
	assert.Equal(t, []string{"alpha"}, dirEntries(t, root))
}

func TestInstall_FailedExtractionLeavesNoDestination(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dest := filepath.Join(root, "alpha")

	err := bundle.NewInstaller().Install(t.Context(), bytes.NewReader([]byte("not an archive")), dest, false)
	require.ErrorIs(t, err, bundle.ErrBundleCorrupt)

	assert.NoDirExists(t, dest)
	assert.Empty(t, dirEntries(t, root))
}

func TestInstall_Limits(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "alpha")
	installer := bundle.NewInstaller(bundle.WithLimits(bundle.Limits{MaxFileSize: 4, MaxTotalSize: 4, MaxEntries: 10}))
	archive := bundletest.MustArchive(t, bundletest.File("SKILL.md", "too long"))

	err := installer.Install(t.Context(), bytes.NewReader(archive), dest, false)
	require.ErrorIs(t, err, bundle.ErrBundleCorrupt)
	assert.NoDirExists(t, dest)
}

func TestInstall_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	dest := filepath.Join(t.TempDir(), "alpha")
	archive := bundletest.MustArchive(t, bundletest.File("SKILL.md", "x"))

	err := bundle.NewInstaller().Install(ctx, bytes.NewReader(archive), dest, false)
	require.ErrorIs(t, err, context.Canceled)
	assert.NoDirExists(t, dest)
}
