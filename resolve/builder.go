// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/stacklok/toolhive-skills/logging"
	"github.com/stacklok/toolhive-skills/metadata"
	"github.com/stacklok/toolhive-skills/validation/skillname"
)

// DefaultMaxDepth is the number of dependency levels allowed below the root.
const DefaultMaxDepth = 10

// Builder assembles dependency graphs from a metadata client.
type Builder struct {
	client metadata.Client
	logger *slog.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets the logger used for resolution diagnostics.
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = logger
	}
}

// NewBuilder creates a Builder. Panics if client is nil.
func NewBuilder(client metadata.Client, opts ...BuilderOption) *Builder {
	if client == nil {
		panic("resolve: NewBuilder called with nil metadata client")
	}
	b := &Builder{client: client}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = logging.Component(b.logger, "resolver")
	return b
}

// Build resolves root and all of its transitive dependencies.
// maxDepth <= 0 selects DefaultMaxDepth.
func (b *Builder) Build(ctx context.Context, root string, maxDepth int) (*Graph, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	r := &buildRun{
		ctx:      ctx,
		client:   b.client,
		logger:   b.logger,
		graph:    newGraph(root),
		maxDepth: maxDepth,
	}
	if _, err := r.visit(root, 0, nil); err != nil {
		return nil, err
	}

	b.logger.Debug("resolved dependency graph",
		logging.Skill(root), slog.Int("skills", r.graph.Len()), slog.Int("lookups", r.lookups))
	return r.graph, nil
}

// buildRun carries the state of a single Build call.
type buildRun struct {
	ctx      context.Context
	client   metadata.Client
	logger   *slog.Logger
	graph    *Graph
	maxDepth int
	lookups  int
}

// visit resolves name reached at depth via path (the requesters, root first)
// and returns its arena index.
func (r *buildRun) visit(name string, depth int, path []string) (int, error) {
	chain := append(slices.Clip(path), name)

	if err := skillname.Validate(name); err != nil {
		return -1, &InvalidNameError{Name: name, Chain: chain, Err: err}
	}

	if idx, ok := r.graph.index[name]; ok {
		node := &r.graph.nodes[idx]
		switch node.state {
		case InProgress:
			return -1, &CircularDependencyError{Path: chain}
		case Done:
			// Shared node: its subtree is already resolved, but this path may be deeper.
			if depth+node.height > r.maxDepth {
				return -1, &DepthExceededError{
					Chain:    append(chain, r.graph.longestChainBelow(idx)...),
					MaxDepth: r.maxDepth,
				}
			}
			return idx, nil
		case Unvisited:
			return -1, fmt.Errorf("%w: node %q indexed but unvisited", ErrInternal, name)
		}
	}

	if depth > r.maxDepth {
		return -1, &DepthExceededError{Chain: chain, MaxDepth: r.maxDepth}
	}

	if err := r.ctx.Err(); err != nil {
		return -1, err
	}

	meta, found, err := r.client.Lookup(r.ctx, name)
	r.lookups++
	if err != nil {
		return -1, &LookupError{Name: name, Chain: chain, Err: err}
	}
	if !found {
		return -1, &DependencyNotFoundError{Name: name, Chain: chain}
	}
	if meta.Name == "" {
		meta.Name = name
	}
	if meta.Name != name {
		return -1, &LookupError{
			Name:  name,
			Chain: chain,
			Err:   fmt.Errorf("metadata service returned record for %q", meta.Name),
		}
	}
	meta = meta.Clone()

	idx := r.graph.add(meta)
	r.logger.Debug("resolved skill", logging.Skill(name), logging.Version(meta.Version), slog.Int("depth", depth))

	seen := make(map[string]struct{}, len(meta.Dependencies))
	for _, dep := range meta.Dependencies {
		if _, dup := seen[dep]; dup {
			continue
		}
		seen[dep] = struct{}{}

		childIdx, err := r.visit(dep, depth+1, chain)
		if err != nil {
			return -1, err
		}

		// Index into the arena again: visit may have grown the slice.
		node := &r.graph.nodes[idx]
		node.children = append(node.children, childIdx)
		if h := r.graph.nodes[childIdx].height + 1; h > node.height {
			node.height = h
			node.deepest = childIdx
		}
	}

	r.graph.nodes[idx].state = Done
	return idx, nil
}
