// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package resolve

import (
	"iter"
	"slices"

	"github.com/stacklok/toolhive-skills/metadata"
)

// VisitState is the marking used while the graph is being built.
type VisitState int

const (
	// Unvisited nodes have not been reached yet.
	Unvisited VisitState = iota
	// InProgress nodes are on the current traversal path.
	InProgress
	// Done nodes have been fully resolved, including all descendants.
	Done
)

// String implements fmt.Stringer.
func (s VisitState) String() string {
	switch s {
	case Unvisited:
		return "unvisited"
	case InProgress:
		return "in-progress"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Node is one resolved skill in a Graph.
type Node struct {
	Name     string
	Metadata metadata.SkillMetadata
	// children holds arena indices in declaration order, without duplicates.
	children []int
	state    VisitState
	// height is the number of edges on the longest chain below this node.
	height int
	// deepest is the child on that longest chain, or -1 for leaves.
	deepest int
}

// Graph owns every node of one resolution. Nodes are stored in an arena and
// indexed by name; edges point from a skill to the skills it depends on.
type Graph struct {
	root  string
	nodes []Node
	index map[string]int
}

func newGraph(root string) *Graph {
	return &Graph{
		root:  root,
		index: make(map[string]int),
	}
}

// add appends a node in the InProgress state and returns its arena index.
func (g *Graph) add(meta metadata.SkillMetadata) int {
	idx := len(g.nodes)
	g.nodes = append(g.nodes, Node{
		Name:     meta.Name,
		Metadata: meta,
		state:    InProgress,
		deepest:  -1,
	})
	g.index[meta.Name] = idx
	return idx
}

// Root returns the name the graph was built for.
func (g *Graph) Root() string {
	return g.root
}

// Len returns the number of distinct skills in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Has reports whether name is part of the graph.
func (g *Graph) Has(name string) bool {
	_, ok := g.index[name]
	return ok
}

// Metadata returns the metadata resolved for name.
func (g *Graph) Metadata(name string) (metadata.SkillMetadata, bool) {
	idx, ok := g.index[name]
	if !ok {
		return metadata.SkillMetadata{}, false
	}
	return g.nodes[idx].Metadata, true
}

// Dependencies returns the direct dependency names of a skill in declaration order.
func (g *Graph) Dependencies(name string) []string {
	idx, ok := g.index[name]
	if !ok {
		return nil
	}
	deps := make([]string, 0, len(g.nodes[idx].children))
	for _, c := range g.nodes[idx].children {
		deps = append(deps, g.nodes[c].Name)
	}
	return deps
}

// Names returns every skill name in ascending order.
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.nodes))
	for _, n := range g.nodes {
		names = append(names, n.Name)
	}
	slices.Sort(names)
	return names
}

// Nodes iterates the nodes in the order they were first reached.
func (g *Graph) Nodes() iter.Seq[Node] {
	return func(yield func(Node) bool) {
		for _, n := range g.nodes {
			if !yield(n) {
				return
			}
		}
	}
}

// Chain returns a path from the root to name, following the first declared
// dependency that leads there. It returns nil when name is not in the graph.
func (g *Graph) Chain(name string) []string {
	target, ok := g.index[name]
	if !ok {
		return nil
	}
	rootIdx, ok := g.index[g.root]
	if !ok {
		return nil
	}

	// Breadth-first over declaration order gives the shortest, deterministic path.
	prev := map[int]int{rootIdx: -1}
	queue := []int{rootIdx}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == target {
			break
		}
		for _, c := range g.nodes[cur].children {
			if _, seen := prev[c]; !seen {
				prev[c] = cur
				queue = append(queue, c)
			}
		}
	}
	if _, reached := prev[target]; !reached {
		return nil
	}

	var chain []string
	for at := target; at != -1; at = prev[at] {
		chain = append(chain, g.nodes[at].Name)
	}
	slices.Reverse(chain)
	return chain
}

// longestChainBelow returns the names on the longest chain under idx, excluding idx itself.
func (g *Graph) longestChainBelow(idx int) []string {
	var chain []string
	for at := g.nodes[idx].deepest; at != -1; at = g.nodes[at].deepest {
		chain = append(chain, g.nodes[at].Name)
	}
	return chain
}
