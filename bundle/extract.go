// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Limits bounds what a single archive may unpack to.
type Limits struct {
	// MaxFileSize is the largest size of a single file.
	MaxFileSize int64
	// MaxTotalSize is the largest sum of file sizes.
	MaxTotalSize int64
	// MaxEntries is the largest number of archive entries.
	MaxEntries int
}

// DefaultLimits returns the limits applied when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxFileSize:  100 * 1024 * 1024,
		MaxTotalSize: 512 * 1024 * 1024,
		MaxEntries:   10000,
	}
}

// Extract streams the gzip-compressed tar archive read from r into dir, which
// must already exist. Malformed or unsafe archives yield a *CorruptError;
// filesystem failures are returned as is. On error dir may hold a partial tree.
func Extract(ctx context.Context, r io.Reader, dir string, limits Limits) error {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return corruptf("opening gzip stream: %v", err)
	}
	defer func() { _ = gr.Close() }()

	tr := tar.NewReader(gr)
	var total int64
	entries := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			// Drain the gzip stream so a truncated or tampered trailer fails the checksum.
			if _, err := io.Copy(io.Discard, gr); err != nil {
				return corruptf("verifying gzip stream: %v", err)
			}
			return nil
		}
		if err != nil {
			return corruptf("reading tar header: %v", err)
		}

		entries++
		if limits.MaxEntries > 0 && entries > limits.MaxEntries {
			return corruptf("archive has more than %d entries", limits.MaxEntries)
		}

		name, err := validateTarPath(hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeXGlobalHeader:
			continue
		case tar.TypeDir:
			if name == "." {
				continue
			}
			if err := os.MkdirAll(filepath.Join(dir, filepath.FromSlash(name)), 0o755); err != nil {
				return fmt.Errorf("creating directory %s: %w", name, err)
			}
			continue
		case tar.TypeSymlink, tar.TypeLink:
			return corruptf("archive contains disallowed link type: %s", hdr.Name)
		case tar.TypeReg:
		default:
			return corruptf("archive contains disallowed entry type %d: %s", hdr.Typeflag, hdr.Name)
		}

		if name == "." {
			return corruptf("regular file with empty path")
		}
		if hdr.Size > limits.MaxFileSize {
			return corruptf("file %s exceeds maximum size of %d bytes", hdr.Name, limits.MaxFileSize)
		}
		if total+hdr.Size > limits.MaxTotalSize {
			return corruptf("archive exceeds maximum total size of %d bytes", limits.MaxTotalSize)
		}

		n, err := writeFile(tr, filepath.Join(dir, filepath.FromSlash(name)), hdr, limits.MaxFileSize)
		if err != nil {
			return err
		}
		total += n
	}
}

// writeFile copies one regular entry to target, enforcing the size limit while reading.
func writeFile(tr *tar.Reader, target string, hdr *tar.Header, maxSize int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("creating parent of %s: %w", hdr.Name, err)
	}

	perm := os.FileMode(0o644)
	if hdr.Mode&0o111 != 0 {
		perm = 0o755
	}
	// O_EXCL rejects archives that list the same path twice.
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return 0, corruptf("duplicate entry %s", hdr.Name)
		}
		return 0, fmt.Errorf("creating %s: %w", hdr.Name, err)
	}

	n, copyErr := io.Copy(f, io.LimitReader(tr, maxSize+1))
	closeErr := f.Close()
	switch {
	case copyErr != nil:
		return n, corruptf("reading tar content for %s: %v", hdr.Name, copyErr)
	case n > maxSize:
		return n, corruptf("file %s exceeds maximum size of %d bytes", hdr.Name, maxSize)
	case closeErr != nil:
		return n, fmt.Errorf("writing %s: %w", hdr.Name, closeErr)
	}
	return n, nil
}

// validateTarPath checks that a tar entry path is safe and returns it cleaned.
func validateTarPath(p string) (string, error) {
	if strings.ContainsRune(p, 0) {
		return "", corruptf("null byte in archive path: %q", p)
	}
	if strings.Contains(p, `\`) {
		return "", corruptf("backslash in archive path: %s", p)
	}
	// path.Clean resolves all ".." segments; any remaining leading ".."
	// means the path escapes the archive root.
	cleaned := path.Clean(p)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", corruptf("path traversal detected in archive: %s", p)
	}
	if path.IsAbs(cleaned) {
		return "", corruptf("absolute path not allowed in archive: %s", p)
	}
	return cleaned, nil
}
