// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package metadata

//go:generate mockgen -copyright_file=../.github/license-header.txt -source=client.go -destination=mocks/mock_client.go -package=mocks

import (
	"context"
	"slices"
)

// SkillMetadata is an immutable snapshot of one skill version as published.
type SkillMetadata struct {
	// Name is the unique skill name.
	Name string `json:"name"`
	// Version is the exact version string; ranges are not supported.
	Version string `json:"version"`
	// BundleID is the content address of the skill bundle.
	BundleID string `json:"bundleId"`
	// Dependencies lists required skill names in declaration order.
	Dependencies []string `json:"dependencies,omitempty"`
}

// Clone returns a copy that does not share the Dependencies slice.
func (m SkillMetadata) Clone() SkillMetadata {
	m.Dependencies = slices.Clone(m.Dependencies)
	return m
}

// Client resolves a skill name to its current metadata.
type Client interface {
	// Lookup returns the metadata for name. found is false, with a nil error,
	// when the service definitively has no such skill.
	Lookup(ctx context.Context, name string) (meta SkillMetadata, found bool, err error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, name string) (SkillMetadata, bool, error)

// Lookup calls f.
func (f ClientFunc) Lookup(ctx context.Context, name string) (SkillMetadata, bool, error) {
	return f(ctx, name)
}
