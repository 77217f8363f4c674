// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package skills

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content/memory"
	"oras.land/oras-go/v2/registry"
	"oras.land/oras-go/v2/registry/remote/credentials"
	"oras.land/oras-go/v2/registry/remote/errcode"

	"github.com/stacklok/toolhive-skills/bundle"
	"github.com/stacklok/toolhive-skills/bundle/bundletest"
	"github.com/stacklok/toolhive-skills/httperr"
	"github.com/stacklok/toolhive-skills/metadata"
)

const testPrefix = "ghcr.io/stacklok/skills"

// fakeRemote serves one in-memory store per repository.
type fakeRemote map[string]*memory.Store

func (f fakeRemote) repo(name string) *memory.Store {
	key := "stacklok/skills/" + name
	if f[key] == nil {
		f[key] = memory.New()
	}
	return f[key]
}

func newTestRegistry(t *testing.T, remotes fakeRemote) *Registry {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	reg, err := NewRegistry(testPrefix, store, WithCredentialStore(credentials.NewMemoryStore()))
	require.NoError(t, err)
	reg.newTarget = func(ref registry.Reference) (oras.ReadOnlyTarget, error) {
		if s, ok := remotes[ref.Repository]; ok {
			return s, nil
		}
		return memory.New(), nil
	}
	return reg
}

// publish pushes a skill artifact into target and tags it "latest".
func publish(t *testing.T, target *memory.Store, annotations map[string]string, layer []byte) (manifest, layerDesc ocispec.Descriptor) {
	t.Helper()
	ctx := t.Context()

	layerDesc, err := oras.PushBytes(ctx, target, MediaTypeSkillLayer, layer)
	require.NoError(t, err)

	manifest, err = oras.PackManifest(ctx, target, oras.PackManifestVersion1_1, ArtifactTypeSkill, oras.PackManifestOptions{
		Layers:              []ocispec.Descriptor{layerDesc},
		ManifestAnnotations: annotations,
	})
	require.NoError(t, err)
	require.NoError(t, target.Tag(ctx, manifest, DefaultTag))
	return manifest, layerDesc
}

func skillAnnotations(name, version string, requires ...string) map[string]string {
	a := map[string]string{
		AnnotationSkillName:    name,
		AnnotationSkillVersion: version,
	}
	if len(requires) > 0 {
		data, _ := json.Marshal(requires)
		a[AnnotationSkillRequires] = string(data)
	}
	return a
}

func TestNewRegistry(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	reg, err := NewRegistry(testPrefix+"/", store, WithPlainHTTP(true), WithTag("stable"),
		WithCredentialStore(credentials.NewMemoryStore()))
	require.NoError(t, err)
	assert.True(t, reg.plainHTTP)
	assert.Equal(t, "stable", reg.tag)
	assert.Equal(t, testPrefix, reg.prefix)

	_, err = NewRegistry("Not A Registry", store, WithCredentialStore(credentials.NewMemoryStore()))
	require.Error(t, err)

	_, err = NewRegistry(testPrefix, nil)
	require.Error(t, err)
}

func TestRegistry_LookupAndGet(t *testing.T) {
	t.Parallel()

	remotes := fakeRemote{}
	layer := bundletest.MustArchive(t, bundletest.File("SKILL.md", "# pdf"))
	manifest, layerDesc := publish(t, remotes.repo("pdf"), skillAnnotations("pdf", "1.2.0", "ocr", "tables"), layer)
	reg := newTestRegistry(t, remotes)

	meta, found, err := reg.Lookup(t.Context(), "pdf")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, metadata.SkillMetadata{
		Name:         "pdf",
		Version:      "1.2.0",
		BundleID:     testPrefix + "/pdf@" + layerDesc.Digest.String(),
		Dependencies: []string{"ocr", "tables"},
	}, meta)

	// The manifest is cached locally under its full reference.
	cached, err := reg.store.Resolve(t.Context(), testPrefix+"/pdf:latest")
	require.NoError(t, err)
	assert.Equal(t, manifest.Digest, cached.Digest)

	data, contentType, err := reg.Get(t.Context(), meta.BundleID)
	require.NoError(t, err)
	assert.Equal(t, layer, data)
	assert.Equal(t, MediaTypeSkillLayer, contentType)
}

func TestRegistry_BundleFetcherVerifiesLayerDigest(t *testing.T) {
	t.Parallel()

	remotes := fakeRemote{}
	layer := bundletest.MustArchive(t, bundletest.File("SKILL.md", "# ocr"))
	publish(t, remotes.repo("ocr"), skillAnnotations("ocr", "0.1.0"), layer)
	reg := newTestRegistry(t, remotes)

	meta, found, err := reg.Lookup(t.Context(), "ocr")
	require.NoError(t, err)
	require.True(t, found)

	data, err := bundle.NewFetcher(reg).Fetch(t.Context(), meta.BundleID)
	require.NoError(t, err)
	assert.Equal(t, layer, data)
}

func TestRegistry_LookupNotFound(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t, fakeRemote{})

	meta, found, err := reg.Lookup(t.Context(), "missing")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, meta.Name)
}

func TestRegistry_LookupInvalidManifest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		annotations map[string]string
		want        string
	}{
		{name: "missing version", annotations: map[string]string{AnnotationSkillName: "bad"}, want: "no version"},
		{name: "name mismatch", annotations: skillAnnotations("other", "1.0.0"), want: `annotated as skill "other"`},
		{
			name:        "malformed requires",
			annotations: map[string]string{AnnotationSkillVersion: "1.0.0", AnnotationSkillRequires: "ocr"},
			want:        AnnotationSkillRequires,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			remotes := fakeRemote{}
			publish(t, remotes.repo("bad"), tt.annotations, bundletest.MustArchive(t, bundletest.File("SKILL.md", "x")))
			reg := newTestRegistry(t, remotes)

			_, found, err := reg.Lookup(t.Context(), "bad")
			require.Error(t, err)
			assert.False(t, found)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, http.StatusUnprocessableEntity, httperr.Code(err))
		})
	}
}

func TestRegistry_LookupFollowsIndex(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	remotes := fakeRemote{}
	target := remotes.repo("indexed")
	manifest, layerDesc := publish(t, target, skillAnnotations("indexed", "2.0.0"),
		bundletest.MustArchive(t, bundletest.File("SKILL.md", "x")))

	index := ocispec.Index{
		MediaType: ocispec.MediaTypeImageIndex,
		Manifests: []ocispec.Descriptor{manifest},
	}
	index.SchemaVersion = 2
	indexJSON, err := json.Marshal(index)
	require.NoError(t, err)
	indexDesc, err := oras.PushBytes(ctx, target, ocispec.MediaTypeImageIndex, indexJSON)
	require.NoError(t, err)
	require.NoError(t, target.Tag(ctx, indexDesc, DefaultTag))

	reg := newTestRegistry(t, remotes)
	meta, found, err := reg.Lookup(ctx, "indexed")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "2.0.0", meta.Version)
	assert.Equal(t, testPrefix+"/indexed@"+layerDesc.Digest.String(), meta.BundleID)
}

func TestRegistry_GetErrors(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t, fakeRemote{})

	t.Run("unknown layer", func(t *testing.T) {
		t.Parallel()
		_, _, err := reg.Get(t.Context(), testPrefix+"/pdf@"+digest.FromString("nothing").String())
		require.ErrorIs(t, err, bundle.ErrBundleNotFound)
	})

	t.Run("tag instead of digest", func(t *testing.T) {
		t.Parallel()
		_, _, err := reg.Get(t.Context(), testPrefix+"/pdf:latest")
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, httperr.Code(err))
	})

	t.Run("not a reference", func(t *testing.T) {
		t.Parallel()
		_, _, err := reg.Get(t.Context(), ":::")
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, httperr.Code(err))
	})
}

func TestClassifyRemote(t *testing.T) {
	t.Parallel()

	resp := &errcode.ErrorResponse{Method: http.MethodGet, StatusCode: http.StatusServiceUnavailable}
	err := classifyRemote(resp)
	assert.Equal(t, http.StatusServiceUnavailable, httperr.Code(err))
	assert.True(t, httperr.IsTransient(err))

	plain := errors.New("boom")
	assert.Equal(t, plain, classifyRemote(plain))
}

func TestParseReference(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		ref     string
		wantErr bool
	}{
		{"valid tag", "ghcr.io/myorg/skill:v1.0.0", false},
		{"valid digest", "ghcr.io/myorg/skill@sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", false},
		{"missing tag or digest", "ghcr.io/myorg/skill", true},
		{"invalid reference", ":::invalid", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := parseReference(tt.ref)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestIsManifestMediaType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mediaType string
		want      bool
	}{
		{"OCI manifest", ocispec.MediaTypeImageManifest, true},
		{"OCI index", ocispec.MediaTypeImageIndex, true},
		{"OCI config", ocispec.MediaTypeImageConfig, false},
		{"skill layer", MediaTypeSkillLayer, false},
		{"octet-stream", "application/octet-stream", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, isManifestMediaType(tt.mediaType))
		})
	}
}

func TestValidatingTarget_RejectOversizedContent(t *testing.T) {
	t.Parallel()

	vt := newValidatingTarget(memory.New())
	oversized := make([]byte, MaxManifestSize+1)
	desc := ocispec.Descriptor{
		MediaType: ocispec.MediaTypeImageManifest,
		Digest:    digest.FromBytes(oversized),
		Size:      int64(len(oversized)),
	}

	err := vt.Push(t.Context(), desc, bytes.NewReader(oversized))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds maximum allowed size")
}

func TestValidatingTarget_RejectLyingDescriptor(t *testing.T) {
	t.Parallel()

	vt := newValidatingTarget(memory.New())
	oversized := make([]byte, MaxManifestSize+1)
	desc := ocispec.Descriptor{
		MediaType: ocispec.MediaTypeImageManifest,
		Digest:    digest.FromBytes(oversized),
		Size:      10,
	}

	err := vt.Push(t.Context(), desc, bytes.NewReader(oversized))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds maximum allowed size")
}

func TestValidatingTarget_RejectDigestMismatch(t *testing.T) {
	t.Parallel()

	vt := newValidatingTarget(memory.New())
	data := []byte("layer")
	desc := ocispec.Descriptor{
		MediaType: MediaTypeSkillLayer,
		Digest:    digest.FromString("other"),
		Size:      int64(len(data)),
	}

	err := vt.Push(t.Context(), desc, bytes.NewReader(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "digest mismatch")
}

func TestValidatingTarget_RejectNegativeSize(t *testing.T) {
	t.Parallel()

	vt := newValidatingTarget(memory.New())
	desc := ocispec.Descriptor{
		MediaType: ocispec.MediaTypeImageManifest,
		Digest:    digest.FromString("test"),
		Size:      -1,
	}

	err := vt.Push(t.Context(), desc, bytes.NewReader([]byte("test")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid negative content size")
}

func TestValidatingTarget_AcceptValidContent(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	inner := memory.New()
	vt := newValidatingTarget(inner)

	data := []byte(`{"schemaVersion": 2}`)
	desc := ocispec.Descriptor{
		MediaType: ocispec.MediaTypeImageManifest,
		Digest:    digest.FromBytes(data),
		Size:      int64(len(data)),
	}

	require.NoError(t, vt.Push(ctx, desc, bytes.NewReader(data)))

	exists, err := inner.Exists(ctx, desc)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestValidateManifestCounts(t *testing.T) {
	t.Parallel()

	t.Run("too many manifests in index", func(t *testing.T) {
		t.Parallel()
		index := ocispec.Index{
			MediaType: ocispec.MediaTypeImageIndex,
			Manifests: make([]ocispec.Descriptor, maxIndexManifests+1),
		}
		data, err := json.Marshal(index)
		require.NoError(t, err)

		err = validateManifestCounts(ocispec.MediaTypeImageIndex, data)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds maximum")
	})

	t.Run("too many layers in manifest", func(t *testing.T) {
		t.Parallel()
		manifest := ocispec.Manifest{
			MediaType: ocispec.MediaTypeImageManifest,
			Layers:    make([]ocispec.Descriptor, maxManifestLayers+1),
		}
		data, err := json.Marshal(manifest)
		require.NoError(t, err)

		err = validateManifestCounts(ocispec.MediaTypeImageManifest, data)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds maximum")
	})

	t.Run("valid counts", func(t *testing.T) {
		t.Parallel()
		manifest := ocispec.Manifest{
			MediaType: ocispec.MediaTypeImageManifest,
			Layers:    make([]ocispec.Descriptor, 2),
		}
		data, err := json.Marshal(manifest)
		require.NoError(t, err)

		require.NoError(t, validateManifestCounts(ocispec.MediaTypeImageManifest, data))
	})
}
