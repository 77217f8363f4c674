// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package skills

import (
	"encoding/json"
	"fmt"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/stacklok/toolhive-skills/metadata"
)

// Artifact type for skill identification.
const (
	// ArtifactTypeSkill identifies skill artifacts in manifests.
	ArtifactTypeSkill = "dev.toolhive.skills.v1"

	// MediaTypeSkillLayer is the media type of the bundle layer of a skill artifact.
	MediaTypeSkillLayer = ocispec.MediaTypeImageLayerGzip
)

// Annotation keys for skill metadata in manifests.
const (
	// AnnotationSkillName is the annotation key for skill name.
	AnnotationSkillName = "dev.toolhive.skills.name"

	// AnnotationSkillDescription is the annotation key for skill description.
	AnnotationSkillDescription = "dev.toolhive.skills.description"

	// AnnotationSkillVersion is the annotation key for skill version.
	AnnotationSkillVersion = "dev.toolhive.skills.version"

	// AnnotationSkillRequires is the annotation key for skill dependencies (JSON array of skill names).
	AnnotationSkillRequires = "dev.toolhive.skills.requires"
)

// ParseRequiresAnnotation parses the dependency names from manifest annotations.
// A missing annotation means no dependencies.
func ParseRequiresAnnotation(annotations map[string]string) ([]string, error) {
	requiresJSON := annotations[AnnotationSkillRequires]
	if requiresJSON == "" {
		return nil, nil
	}

	var names []string
	if err := json.Unmarshal([]byte(requiresJSON), &names); err != nil {
		return nil, fmt.Errorf("parsing %s annotation: %w", AnnotationSkillRequires, err)
	}
	return names, nil
}

// MetadataFromManifest reads skill metadata from a manifest pulled from repo.
// The bundle id is the content address of the skill layer within repo.
func MetadataFromManifest(repo, name string, manifest *ocispec.Manifest) (metadata.SkillMetadata, error) {
	annotations := manifest.Annotations
	if annotated := annotations[AnnotationSkillName]; annotated != "" && annotated != name {
		return metadata.SkillMetadata{}, fmt.Errorf("manifest in %s is annotated as skill %q, want %q", repo, annotated, name)
	}

	version := annotations[AnnotationSkillVersion]
	if version == "" {
		version = annotations[ocispec.AnnotationVersion]
	}
	if version == "" {
		return metadata.SkillMetadata{}, fmt.Errorf("manifest in %s has no version annotation", repo)
	}

	deps, err := ParseRequiresAnnotation(annotations)
	if err != nil {
		return metadata.SkillMetadata{}, err
	}

	layer, ok := skillLayer(manifest)
	if !ok {
		return metadata.SkillMetadata{}, fmt.Errorf("manifest in %s has no %s layer", repo, MediaTypeSkillLayer)
	}

	return metadata.SkillMetadata{
		Name:         name,
		Version:      version,
		BundleID:     repo + "@" + layer.Digest.String(),
		Dependencies: deps,
	}, nil
}

// skillLayer returns the first gzip-compressed tar layer.
func skillLayer(manifest *ocispec.Manifest) (ocispec.Descriptor, bool) {
	for _, l := range manifest.Layers {
		if l.MediaType == MediaTypeSkillLayer {
			return l, true
		}
	}
	return ocispec.Descriptor{}, false
}
