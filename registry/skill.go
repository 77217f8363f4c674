// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"slices"

	"github.com/stacklok/toolhive-skills/metadata"
)

// Skill statuses.
const (
	StatusActive     = "active"
	StatusDeprecated = "deprecated"
	StatusArchived   = "archived"
)

// SkillPackage represents a distribution package (OCI, Git or plain bundle).
type SkillPackage struct {
	// RegistryType is "oci", "git" or "bundle".
	RegistryType string `json:"registryType"`
	// Identifier is the OCI reference of the package, without digest.
	Identifier string `json:"identifier,omitempty"`
	// Digest is the content digest of the package.
	Digest string `json:"digest,omitempty"`
	// MediaType is the media type of the package.
	MediaType string `json:"mediaType,omitempty"`
	// URL is the URL of the package.
	URL string `json:"url,omitempty"`
	// Ref is the reference of the package.
	Ref string `json:"ref,omitempty"`
	// Commit is the commit of the package.
	Commit string `json:"commit,omitempty"`
	// Subfolder is the subfolder of the package.
	Subfolder string `json:"subfolder,omitempty"`
}

// Skill is a single skill version as served by the registry.
type Skill struct {
	// Namespace is the reverse-DNS namespace of the skill, e.g. "io.github.user".
	Namespace string `json:"namespace"`
	// Name is the name of the skill, e.g. "my-skill".
	Name string `json:"name"`
	// Description is the description of the skill.
	Description string `json:"description"`
	// Version is the exact version of the skill.
	Version string `json:"version"`
	// Status is one of "active", "deprecated" or "archived".
	Status string `json:"status,omitempty"`
	// Title is for human consumption, not an identifier.
	Title string `json:"title,omitempty"`
	// License is the SPDX license identifier of the skill.
	License string `json:"license,omitempty"`
	// BundleID is the content address of the skill bundle.
	BundleID string `json:"bundleId,omitempty"`
	// Dependencies lists the names of required skills in declaration order.
	Dependencies []string `json:"dependencies,omitempty"`
	// Packages is the list of packages for the skill.
	Packages []SkillPackage `json:"packages,omitempty"`
	// Metadata is the metadata reported in the SKILL.md file.
	Metadata map[string]any `json:"metadata,omitempty"`
	// Meta is an opaque payload with extended details of the skill.
	Meta map[string]any `json:"_meta,omitempty"`
}

// ResolveBundleID returns BundleID, or the first package that carries a digest
// as "identifier@digest" (or the bare digest without an identifier).
func (s *Skill) ResolveBundleID() string {
	if s.BundleID != "" {
		return s.BundleID
	}
	for _, p := range s.Packages {
		if p.Digest == "" {
			continue
		}
		if p.Identifier == "" {
			return p.Digest
		}
		return p.Identifier + "@" + p.Digest
	}
	return ""
}

// ToMetadata converts the wire form to the resolver's metadata record.
func (s *Skill) ToMetadata() metadata.SkillMetadata {
	return metadata.SkillMetadata{
		Name:         s.Name,
		Version:      s.Version,
		BundleID:     s.ResolveBundleID(),
		Dependencies: slices.Clone(s.Dependencies),
	}
}
