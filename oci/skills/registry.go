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
	"log/slog"
	"net/http"
	"strings"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/errdef"
	"oras.land/oras-go/v2/registry"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"
	"oras.land/oras-go/v2/registry/remote/errcode"

	"github.com/stacklok/toolhive-skills/bundle"
	"github.com/stacklok/toolhive-skills/httperr"
	"github.com/stacklok/toolhive-skills/logging"
	"github.com/stacklok/toolhive-skills/metadata"
)

// DefaultTag is the tag resolved when looking up a skill.
const DefaultTag = "latest"

// MaxManifestSize is the maximum size of a manifest (1MB).
const MaxManifestSize int64 = 1 * 1024 * 1024

// MaxBlobSize is the maximum size of a blob.
const MaxBlobSize int64 = bundle.DefaultMaxBundleSize

// maxIndexManifests is the maximum number of manifests in an image index.
const maxIndexManifests = 32

// maxManifestLayers is the maximum number of layers in a manifest.
const maxManifestLayers = 64

// Compile-time interface checks.
var (
	_ metadata.Client = (*Registry)(nil)
	_ bundle.Store    = (*Registry)(nil)
	_ oras.Target     = (*validatingTarget)(nil)
)

// blobSource is implemented by remote repositories that can serve blobs by digest.
type blobSource interface {
	Blobs() registry.BlobStore
}

// Registry serves skill metadata and bundles from an OCI registry. Skill
// "name" lives at "<prefix>/name:<tag>"; pulled content is cached in a local Store.
type Registry struct {
	prefix    string
	tag       string
	store     *Store
	credStore credentials.Store
	plainHTTP bool
	logger    *slog.Logger

	// newTarget creates an oras.ReadOnlyTarget for the given reference.
	// Defaults to creating an authenticated remote.Repository.
	// Override in tests to inject an in-memory store.
	newTarget func(ref registry.Reference) (oras.ReadOnlyTarget, error)
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithPlainHTTP configures whether the registry client uses plain HTTP (insecure) connections.
func WithPlainHTTP(enabled bool) RegistryOption {
	return func(r *Registry) {
		r.plainHTTP = enabled
	}
}

// WithCredentialStore sets a custom credential store for registry authentication.
// If not provided, the default Docker credential store is used.
func WithCredentialStore(store credentials.Store) RegistryOption {
	return func(r *Registry) {
		r.credStore = store
	}
}

// WithTag sets the tag resolved by Lookup.
func WithTag(tag string) RegistryOption {
	return func(r *Registry) {
		r.tag = tag
	}
}

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates a registry client for skills published under prefix,
// for example "ghcr.io/stacklok/skills".
// By default it uses the Docker credential store for authentication.
func NewRegistry(prefix string, store *Store, opts ...RegistryOption) (*Registry, error) {
	if store == nil {
		return nil, errors.New("local store is required")
	}
	r := &Registry{
		prefix: strings.TrimRight(prefix, "/"),
		tag:    DefaultTag,
		store:  store,
	}

	for _, opt := range opts {
		opt(r)
	}

	if _, err := r.reference("skill"); err != nil {
		return nil, fmt.Errorf("invalid repository prefix %q: %w", prefix, err)
	}

	if r.credStore == nil {
		credStore, err := credentials.NewStoreFromDocker(credentials.StoreOptions{})
		if err != nil {
			return nil, fmt.Errorf("creating credential store: %w", err)
		}
		r.credStore = credStore
	}

	if r.newTarget == nil {
		r.newTarget = r.defaultNewTarget
	}
	r.logger = logging.Component(r.logger, "oci")

	return r, nil
}

// reference returns the tagged reference of a skill.
func (r *Registry) reference(name string) (registry.Reference, error) {
	return parseReference(r.prefix + "/" + name + ":" + r.tag)
}

// Lookup pulls the manifest of name into the local store and reads the skill
// metadata from its annotations. A missing repository or tag reports found == false.
func (r *Registry) Lookup(ctx context.Context, name string) (metadata.SkillMetadata, bool, error) {
	ref, err := r.reference(name)
	if err != nil {
		return metadata.SkillMetadata{}, false, httperr.WithCode(err, http.StatusBadRequest)
	}

	target, err := r.newTarget(ref)
	if err != nil {
		return metadata.SkillMetadata{}, false, fmt.Errorf("getting repository: %w", err)
	}

	validated := newValidatingTarget(r.store.Target())
	desc, err := oras.Copy(ctx, target, ref.Reference, validated, ref.String(), oras.DefaultCopyOptions)
	if errors.Is(err, errdef.ErrNotFound) {
		return metadata.SkillMetadata{}, false, nil
	}
	if err != nil {
		return metadata.SkillMetadata{}, false, fmt.Errorf("pulling %s: %w", ref, classifyRemote(err))
	}

	manifest, err := r.store.Manifest(ctx, desc)
	if err != nil {
		return metadata.SkillMetadata{}, false, err
	}
	meta, err := MetadataFromManifest(ref.Registry+"/"+ref.Repository, name, manifest)
	if err != nil {
		return metadata.SkillMetadata{}, false, httperr.WithCode(err, http.StatusUnprocessableEntity)
	}

	r.logger.Debug("resolved skill manifest",
		logging.Skill(name), logging.Version(meta.Version), slog.String("manifest", desc.Digest.String()))
	return meta, true, nil
}

// Get returns the skill layer addressed by bundleID ("<repository>@<digest>").
// Layers already pulled by Lookup are served from the local store.
func (r *Registry) Get(ctx context.Context, bundleID string) ([]byte, string, error) {
	ref, err := registry.ParseReference(bundleID)
	if err != nil {
		return nil, "", httperr.WithCode(fmt.Errorf("parsing bundle id %q: %w", bundleID, err), http.StatusBadRequest)
	}
	d, err := ref.Digest()
	if err != nil {
		return nil, "", httperr.WithCode(fmt.Errorf("bundle id %q is not a digest reference: %w", bundleID, err), http.StatusBadRequest)
	}

	cached, err := r.store.HasBlob(ctx, d)
	if err != nil {
		return nil, "", fmt.Errorf("checking local store: %w", err)
	}
	if cached {
		data, err := r.store.GetBlob(ctx, d)
		if err != nil {
			return nil, "", err
		}
		return data, MediaTypeSkillLayer, nil
	}

	data, err := r.pullBlob(ctx, ref, d)
	if errors.Is(err, errdef.ErrNotFound) {
		return nil, "", fmt.Errorf("%w: %s", bundle.ErrBundleNotFound, bundleID)
	}
	if err != nil {
		return nil, "", err
	}
	if _, err := r.store.PutBlob(ctx, MediaTypeSkillLayer, data); err != nil {
		r.logger.Warn("caching skill layer failed", logging.Bundle(bundleID), slog.Any("error", err))
	}
	return data, MediaTypeSkillLayer, nil
}

// pullBlob fetches and verifies a blob from the remote repository.
func (r *Registry) pullBlob(ctx context.Context, ref registry.Reference, d digest.Digest) ([]byte, error) {
	target, err := r.newTarget(ref)
	if err != nil {
		return nil, fmt.Errorf("getting repository: %w", err)
	}
	src, ok := target.(blobSource)
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", d, errdef.ErrNotFound)
	}

	desc, err := src.Blobs().Resolve(ctx, d.String())
	if err != nil {
		return nil, classifyRemote(err)
	}
	if desc.Size > MaxBlobSize {
		return nil, httperr.WithCode(
			fmt.Errorf("blob %s is %d bytes, exceeds maximum allowed size %d", d, desc.Size, MaxBlobSize),
			http.StatusRequestEntityTooLarge)
	}
	data, err := content.FetchAll(ctx, src.Blobs(), desc)
	if err != nil {
		return nil, classifyRemote(err)
	}
	return data, nil
}

// classifyRemote attaches the HTTP status of a registry error response so
// callers can tell transient failures apart.
func classifyRemote(err error) error {
	var resp *errcode.ErrorResponse
	if errors.As(err, &resp) && !httperr.HasCode(err) {
		return httperr.WithCode(err, resp.StatusCode)
	}
	return err
}

// validatingTarget wraps an oras.Target to enforce size and count limits
// on pushed content. This prevents OOM and resource exhaustion from
// malicious registries during pull operations.
type validatingTarget struct {
	inner oras.Target
}

func newValidatingTarget(inner oras.Target) *validatingTarget {
	return &validatingTarget{inner: inner}
}

// Fetch delegates to the inner target.
func (v *validatingTarget) Fetch(ctx context.Context, target ocispec.Descriptor) (io.ReadCloser, error) {
	return v.inner.Fetch(ctx, target)
}

// Exists delegates to the inner target.
func (v *validatingTarget) Exists(ctx context.Context, target ocispec.Descriptor) (bool, error) {
	return v.inner.Exists(ctx, target)
}

// Resolve delegates to the inner target.
func (v *validatingTarget) Resolve(ctx context.Context, reference string) (ocispec.Descriptor, error) {
	return v.inner.Resolve(ctx, reference)
}

// Tag delegates to the inner target.
func (v *validatingTarget) Tag(ctx context.Context, desc ocispec.Descriptor, reference string) error {
	return v.inner.Tag(ctx, desc, reference)
}

// Push validates size and structure limits before delegating to the inner target.
func (v *validatingTarget) Push(ctx context.Context, desc ocispec.Descriptor, blob io.Reader) error {
	maxSize := MaxBlobSize
	if isManifestMediaType(desc.MediaType) {
		maxSize = MaxManifestSize
	}

	if desc.Size < 0 {
		return fmt.Errorf("invalid negative content size %d", desc.Size)
	}
	if desc.Size > maxSize {
		return fmt.Errorf(
			"content size %d exceeds maximum allowed size %d for media type %q",
			desc.Size, maxSize, desc.MediaType,
		)
	}

	// Read with a limit to defend against lying descriptors
	data, err := io.ReadAll(io.LimitReader(blob, maxSize+1))
	if err != nil {
		return fmt.Errorf("reading content: %w", err)
	}

	if int64(len(data)) > maxSize {
		return fmt.Errorf(
			"actual content size exceeds maximum allowed size %d for media type %q",
			maxSize, desc.MediaType,
		)
	}

	actual := digest.FromBytes(data)
	if actual != desc.Digest {
		return fmt.Errorf("digest mismatch: expected %s, got %s", desc.Digest, actual)
	}

	if err := validateManifestCounts(desc.MediaType, data); err != nil {
		return err
	}

	return v.inner.Push(ctx, desc, bytes.NewReader(data))
}

// validateManifestCounts checks layer/manifest counts for resource exhaustion prevention.
func validateManifestCounts(mediaType string, data []byte) error {
	switch mediaType {
	case ocispec.MediaTypeImageIndex:
		var index ocispec.Index
		if err := json.Unmarshal(data, &index); err != nil {
			return fmt.Errorf("parsing index: %w", err)
		}
		if len(index.Manifests) > maxIndexManifests {
			return fmt.Errorf(
				"index has %d manifests, exceeds maximum of %d",
				len(index.Manifests), maxIndexManifests,
			)
		}
	case ocispec.MediaTypeImageManifest:
		var manifest ocispec.Manifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			return fmt.Errorf("parsing manifest: %w", err)
		}
		if len(manifest.Layers) > maxManifestLayers {
			return fmt.Errorf(
				"manifest has %d layers, exceeds maximum of %d",
				len(manifest.Layers), maxManifestLayers,
			)
		}
	}
	return nil
}

// isManifestMediaType returns true if the media type is a manifest or index type.
func isManifestMediaType(mediaType string) bool {
	switch mediaType {
	case ocispec.MediaTypeImageManifest, ocispec.MediaTypeImageIndex:
		return true
	default:
		return false
	}
}

// parseReference parses an OCI reference and validates it has a tag or digest.
func parseReference(ref string) (registry.Reference, error) {
	parsedRef, err := registry.ParseReference(ref)
	if err != nil {
		return registry.Reference{}, fmt.Errorf("parsing reference %q: %w", ref, err)
	}
	if parsedRef.Reference == "" {
		return registry.Reference{}, fmt.Errorf("reference %q must include a tag or digest", ref)
	}
	return parsedRef, nil
}

// defaultNewTarget creates a remote repository client for the given parsed reference.
func (r *Registry) defaultNewTarget(ref registry.Reference) (oras.ReadOnlyTarget, error) {
	repoPath := ref.Registry + "/" + ref.Repository

	repo, err := remote.NewRepository(repoPath)
	if err != nil {
		return nil, fmt.Errorf("creating repository for %q: %w", repoPath, err)
	}

	repo.Client = &auth.Client{
		Credential: credentials.Credential(r.credStore),
	}
	repo.PlainHTTP = r.plainHTTP

	return repo, nil
}
