// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package resolve

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for dependency resolution.
var (
	// ErrDependencyNotFound is returned when a referenced skill has no metadata.
	ErrDependencyNotFound = errors.New("dependency not found")

	// ErrCircularDependency is returned when the dependency graph contains a cycle.
	ErrCircularDependency = errors.New("circular dependency")

	// ErrDepthExceeded is returned when a dependency chain is nested deeper than allowed.
	ErrDepthExceeded = errors.New("dependency depth exceeded")

	// ErrInvalidSkillName is returned when a requested or declared skill name is malformed.
	ErrInvalidSkillName = errors.New("invalid skill name")

	// ErrMetadataLookup is returned when the metadata service fails to answer.
	ErrMetadataLookup = errors.New("metadata lookup failed")

	// ErrInternal signals a violated planner invariant. It is never caused by user input.
	ErrInternal = errors.New("internal resolver error")
)

// FormatChain renders a dependency chain as "a -> b -> c".
func FormatChain(chain []string) string {
	return strings.Join(chain, " -> ")
}

// DependencyNotFoundError reports a skill name that the metadata service does not know.
type DependencyNotFoundError struct {
	// Name is the missing skill.
	Name string
	// Chain is the path from the root to Name, inclusive.
	Chain []string
}

// Error implements the error interface.
func (e *DependencyNotFoundError) Error() string {
	if len(e.Chain) > 1 {
		return fmt.Sprintf("%s: %q (required by %s)", ErrDependencyNotFound, e.Name, FormatChain(e.Chain))
	}
	return fmt.Sprintf("%s: %q", ErrDependencyNotFound, e.Name)
}

// Unwrap returns ErrDependencyNotFound.
func (*DependencyNotFoundError) Unwrap() error {
	return ErrDependencyNotFound
}

// CircularDependencyError reports a cycle together with the path that revealed it.
type CircularDependencyError struct {
	// Path runs from the root to the repeated node, so its last element
	// also appears earlier in the path.
	Path []string
}

// PathString renders the cycle path, e.g. "a -> b -> c -> a".
func (e *CircularDependencyError) PathString() string {
	return FormatChain(e.Path)
}

// Error implements the error interface.
func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCircularDependency, e.PathString())
}

// Unwrap returns ErrCircularDependency.
func (*CircularDependencyError) Unwrap() error {
	return ErrCircularDependency
}

// DepthExceededError reports a chain that is nested deeper than MaxDepth.
type DepthExceededError struct {
	// Chain is the offending chain starting at the root.
	Chain []string
	// MaxDepth is the limit that was exceeded.
	MaxDepth int
}

// Error implements the error interface.
func (e *DepthExceededError) Error() string {
	return fmt.Sprintf("%s: %d levels allowed, chain has %d: %s",
		ErrDepthExceeded, e.MaxDepth, len(e.Chain)-1, FormatChain(e.Chain))
}

// Unwrap returns ErrDepthExceeded.
func (*DepthExceededError) Unwrap() error {
	return ErrDepthExceeded
}

// InvalidNameError reports a malformed skill name and where it was declared.
type InvalidNameError struct {
	Name  string
	Chain []string
	Err   error
}

// Error implements the error interface.
func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("%s %q in %s: %v", ErrInvalidSkillName, e.Name, FormatChain(e.Chain), e.Err)
}

// Unwrap exposes ErrInvalidSkillName and the validation failure.
func (e *InvalidNameError) Unwrap() []error {
	return []error{ErrInvalidSkillName, e.Err}
}

// LookupError wraps a metadata service failure with the chain being resolved.
type LookupError struct {
	Name  string
	Chain []string
	Err   error
}

// Error implements the error interface.
func (e *LookupError) Error() string {
	return fmt.Sprintf("%s for %q (%s): %v", ErrMetadataLookup, e.Name, FormatChain(e.Chain), e.Err)
}

// Unwrap exposes ErrMetadataLookup and the underlying failure.
func (e *LookupError) Unwrap() []error {
	return []error{ErrMetadataLookup, e.Err}
}
