// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package bundle downloads skill bundles and installs them on disk.

A bundle is a gzip-compressed tar archive addressed by an opaque identifier.
Bundles are read from a Store; the Fetcher adds retries, per-attempt timeouts
and integrity checks on top of it:

	fetcher := bundle.NewFetcher(store)
	data, err := fetcher.Fetch(ctx, bundleID)

The Installer extracts an archive into a staging directory next to the
destination and renames it into place once extraction has fully succeeded.
An existing installation is moved aside, not deleted, until the new one is in
place, so the destination always holds either the old or the new version:

	installer := bundle.NewInstaller()
	err := installer.Install(ctx, bytes.NewReader(data), "/skills/my-skill", true)

Extraction is streamed entry by entry. Absolute paths, path traversal, links
and device entries are rejected, and per-file and total size limits guard
against decompression bombs.
*/
package bundle
