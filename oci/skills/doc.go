// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package skills resolves skill metadata and bundles from an OCI registry.

A skill named "pdf" published under the prefix "ghcr.io/stacklok/skills" is
the artifact "ghcr.io/stacklok/skills/pdf:latest". Its manifest carries the
metadata as annotations and the bundle as a single gzip-compressed tar layer:

	dev.toolhive.skills.name      pdf
	dev.toolhive.skills.version   1.2.0
	dev.toolhive.skills.requires  ["ocr","tables"]

Registry implements both metadata.Client and bundle.Store, so one value can
back the resolver and the fetcher:

	store, err := skills.NewStore(skills.DefaultStoreRoot())
	reg, err := skills.NewRegistry("ghcr.io/stacklok/skills", store)

	meta, found, err := reg.Lookup(ctx, "pdf")
	// meta.BundleID == "ghcr.io/stacklok/skills/pdf@sha256:..."
	data, err := bundle.NewFetcher(reg).Fetch(ctx, meta.BundleID)

Lookup copies the manifest graph into the local Store through a target that
enforces size, count and digest limits, so Get usually serves the layer
without another round trip.

# Stability

This package is Alpha. Breaking changes are possible between minor versions.
*/
package skills
