// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package bundle

//go:generate mockgen -copyright_file=../.github/license-header.txt -source=store.go -destination=mocks/mock_store.go -package=mocks

import "context"

// Store is a read-only, content-addressed blob store holding skill bundles.
type Store interface {
	// Get returns the payload stored under bundleID and its declared content type.
	// Implementations return an error matching ErrBundleNotFound, or carrying an
	// httperr status of 404 or 410, when the bundle does not exist.
	Get(ctx context.Context, bundleID string) (data []byte, contentType string, err error)
}

// StoreFunc adapts a function to the Store interface.
type StoreFunc func(ctx context.Context, bundleID string) ([]byte, string, error)

// Get calls f.
func (f StoreFunc) Get(ctx context.Context, bundleID string) ([]byte, string, error) {
	return f(ctx, bundleID)
}
