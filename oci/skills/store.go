// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package skills

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content/oci"
	"oras.land/oras-go/v2/errdef"
)

// Store is the local cache of pulled skill artifacts, kept as an OCI Image Layout.
type Store struct {
	root  string
	inner *oci.Store
}

// NewStore creates a new local OCI store at the given root directory.
// The directory is initialized as an OCI Image Layout with blobs/, oci-layout, and index.json.
func NewStore(root string) (*Store, error) {
	inner, err := oci.New(root)
	if err != nil {
		return nil, fmt.Errorf("creating OCI store at %s: %w", root, err)
	}

	return &Store{root: root, inner: inner}, nil
}

// StoreRoot returns the skills store root within the given data home directory.
// This is the injectable, testable form. For the standard XDG location, use DefaultStoreRoot.
func StoreRoot(dataHome string) string {
	return filepath.Join(dataHome, "toolhive", "skills", "oci")
}

// DefaultStoreRoot returns the default store root directory using XDG base directory conventions.
func DefaultStoreRoot() string {
	return StoreRoot(xdg.DataHome)
}

// Root returns the store root directory.
func (s *Store) Root() string {
	return s.root
}

// Target returns the underlying oras.Target for direct use by registry operations.
func (s *Store) Target() oras.Target {
	return s.inner
}

// PutBlob stores a blob and returns its digest.
func (s *Store) PutBlob(ctx context.Context, mediaType string, content []byte) (digest.Digest, error) {
	d := digest.FromBytes(content)
	desc := ocispec.Descriptor{
		MediaType: mediaType,
		Digest:    d,
		Size:      int64(len(content)),
	}

	if err := s.inner.Push(ctx, desc, bytes.NewReader(content)); err != nil {
		if errors.Is(err, errdef.ErrAlreadyExists) {
			return d, nil
		}
		return "", fmt.Errorf("writing blob: %w", err)
	}

	return d, nil
}

// HasBlob reports whether the blob is cached.
func (s *Store) HasBlob(ctx context.Context, d digest.Digest) (bool, error) {
	// oci.Store locates blobs by digest alone.
	return s.inner.Exists(ctx, ocispec.Descriptor{Digest: d})
}

// GetBlob retrieves a blob by digest. A missing blob wraps errdef.ErrNotFound.
func (s *Store) GetBlob(ctx context.Context, d digest.Digest) ([]byte, error) {
	data, err := s.fetchContent(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("blob %s: %w", d, err)
	}
	return data, nil
}

// Manifest returns the skill manifest for desc. For an image index the first
// listed manifest is used; skill content does not vary by platform.
func (s *Store) Manifest(ctx context.Context, desc ocispec.Descriptor) (*ocispec.Manifest, error) {
	if desc.MediaType == ocispec.MediaTypeImageIndex {
		data, err := s.fetchContent(ctx, desc.Digest)
		if err != nil {
			return nil, fmt.Errorf("getting index: %w", err)
		}
		var index ocispec.Index
		if err := json.Unmarshal(data, &index); err != nil {
			return nil, fmt.Errorf("parsing index: %w", err)
		}
		if len(index.Manifests) == 0 {
			return nil, fmt.Errorf("index %s lists no manifests", desc.Digest)
		}
		desc = index.Manifests[0]
	}

	data, err := s.fetchContent(ctx, desc.Digest)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", desc.Digest, err)
	}
	var manifest ocispec.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &manifest, nil
}

// Resolve resolves a tag to its descriptor.
func (s *Store) Resolve(ctx context.Context, tag string) (ocispec.Descriptor, error) {
	desc, err := s.inner.Resolve(ctx, tag)
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("tag not found: %s: %w", tag, err)
	}
	return desc, nil
}

// fetchContent retrieves raw content by digest from the underlying store.
func (s *Store) fetchContent(ctx context.Context, d digest.Digest) ([]byte, error) {
	rc, err := s.inner.Fetch(ctx, ocispec.Descriptor{Digest: d})
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	return io.ReadAll(rc)
}
