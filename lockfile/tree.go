// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package lockfile

import (
	"path/filepath"

	"github.com/stacklok/toolhive-skills/resolve"
)

// FromGraph expands g into the record tree for its root. Shared dependencies
// are repeated under every parent. installedAt supplies the timestamp for
// each skill; each skill is installed to {installRoot}/{name}.
func FromGraph(g *resolve.Graph, installRoot string, installedAt func(name string) int64) Record {
	rec := recordFor(g, g.Root(), installRoot, installedAt)
	rec.IsDirectDependency = true
	return rec
}

func recordFor(g *resolve.Graph, name, installRoot string, installedAt func(string) int64) Record {
	meta, _ := g.Metadata(name)
	deps := g.Dependencies(name)
	rec := Record{
		Name:          name,
		Version:       meta.Version,
		BundleID:      meta.BundleID,
		InstalledAt:   installedAt(name),
		InstalledPath: filepath.Join(installRoot, name),
		Dependencies:  make([]Record, 0, len(deps)),
	}
	for _, dep := range deps {
		rec.Dependencies = append(rec.Dependencies, recordFor(g, dep, installRoot, installedAt))
	}
	return rec
}
