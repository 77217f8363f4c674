// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package bundletest builds reproducible skill bundles for tests.
package bundletest

import (
	"archive/tar"
	"bytes"
	"cmp"
	"compress/gzip"
	"fmt"
	"slices"
	"testing"
	"time"
)

// gzipOSUnknown is the OS value for "unknown" in gzip headers (RFC 1952).
const gzipOSUnknown = 255

// Entry is one archive member. Typeflag defaults to a regular file and Mode to 0644.
type Entry struct {
	Path     string
	Content  []byte
	Mode     int64
	Typeflag byte
	Linkname string
}

// File returns a regular file entry.
func File(p, content string) Entry {
	return Entry{Path: p, Content: []byte(content)}
}

// CreateTar creates a tar archive with entries sorted by path and normalized headers.
func CreateTar(entries []Entry) ([]byte, error) {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b Entry) int { return cmp.Compare(a.Path, b.Path) })

	epoch := time.Unix(0, 0).UTC()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range sorted {
		hdr := &tar.Header{
			Name:     e.Path,
			Mode:     cmp.Or(e.Mode, 0o644),
			ModTime:  epoch,
			Typeflag: cmp.Or(e.Typeflag, tar.TypeReg),
			Linkname: e.Linkname,
			Format:   tar.FormatPAX,
		}
		if hdr.Typeflag == tar.TypeReg {
			hdr.Size = int64(len(e.Content))
		}

		if err := tw.WriteHeader(hdr); err != nil {
			return nil, fmt.Errorf("writing tar header for %s: %w", e.Path, err)
		}
		if len(e.Content) > 0 {
			if _, err := tw.Write(e.Content); err != nil {
				return nil, fmt.Errorf("writing tar content for %s: %w", e.Path, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("closing tar writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Compress gzips data with a fixed header so output is byte-for-byte reproducible.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	gw.ModTime = time.Unix(0, 0).UTC()
	gw.OS = gzipOSUnknown

	if _, err := gw.Write(data); err != nil {
		return nil, fmt.Errorf("writing gzip data: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Archive returns a .tar.gz holding entries.
func Archive(entries ...Entry) ([]byte, error) {
	tarData, err := CreateTar(entries)
	if err != nil {
		return nil, fmt.Errorf("creating tar: %w", err)
	}
	return Compress(tarData)
}

// MustArchive is Archive for tests.
func MustArchive(tb testing.TB, entries ...Entry) []byte {
	tb.Helper()
	data, err := Archive(entries...)
	if err != nil {
		tb.Fatalf("building archive: %v", err)
	}
	return data
}
