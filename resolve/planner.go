// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package resolve

import (
	"fmt"
	"slices"
)

// Installed maps skill names to the exact version currently recorded as installed.
type Installed map[string]string

// Step is one entry of an install plan.
type Step struct {
	Name     string
	Version  string
	BundleID string
	// Skip is set when the exact version is already installed; the step is
	// kept so the lock file still records the dependency edge.
	Skip bool
	// PreviousVersion is the installed version being replaced, if it differs.
	PreviousVersion string
}

// VersionChange describes an installed skill that will be overwritten by a different version.
type VersionChange struct {
	Name string
	From string
	To   string
}

// Plan is a dependency-first install order: every step appears after all of its dependencies.
type Plan struct {
	Steps []Step
}

// Names returns the skill names in plan order.
func (p *Plan) Names() []string {
	names := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		names[i] = s.Name
	}
	return names
}

// Pending returns the steps that require a fetch and extract, in plan order.
func (p *Plan) Pending() []Step {
	var pending []Step
	for _, s := range p.Steps {
		if !s.Skip {
			pending = append(pending, s)
		}
	}
	return pending
}

// VersionChanges lists installed skills that the plan replaces with another version.
func (p *Plan) VersionChanges() []VersionChange {
	var changes []VersionChange
	for _, s := range p.Steps {
		if s.PreviousVersion != "" {
			changes = append(changes, VersionChange{Name: s.Name, From: s.PreviousVersion, To: s.Version})
		}
	}
	return changes
}

// PlanInstall orders g with Kahn's algorithm. Among simultaneously ready
// skills the lexically smallest name goes first, so plans are reproducible.
// Skills whose exact version appears in installed are marked Skip.
func PlanInstall(g *Graph, installed Installed) (*Plan, error) {
	n := len(g.nodes)
	// A skill becomes ready once every dependency has been emitted.
	remaining := make([]int, n)
	dependents := make([][]int, n)
	for i, node := range g.nodes {
		remaining[i] = len(node.children)
		for _, c := range node.children {
			dependents[c] = append(dependents[c], i)
		}
	}

	var ready []string
	for i, node := range g.nodes {
		if remaining[i] == 0 {
			ready = insertSorted(ready, node.Name)
		}
	}

	plan := &Plan{Steps: make([]Step, 0, n)}
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		idx := g.index[name]
		plan.Steps = append(plan.Steps, newStep(g.nodes[idx], installed))

		for _, d := range dependents[idx] {
			remaining[d]--
			if remaining[d] == 0 {
				ready = insertSorted(ready, g.nodes[d].Name)
			}
		}
	}

	if len(plan.Steps) != n {
		var stuck []string
		for i, node := range g.nodes {
			if remaining[i] > 0 {
				stuck = append(stuck, node.Name)
			}
		}
		slices.Sort(stuck)
		return nil, fmt.Errorf("%w: %d skills left unordered: %v", ErrInternal, len(stuck), stuck)
	}

	return plan, nil
}

func newStep(node Node, installed Installed) Step {
	step := Step{
		Name:     node.Name,
		Version:  node.Metadata.Version,
		BundleID: node.Metadata.BundleID,
	}
	if have, ok := installed[node.Name]; ok {
		if have == step.Version {
			step.Skip = true
		} else {
			step.PreviousVersion = have
		}
	}
	return step
}

func insertSorted(names []string, name string) []string {
	i, _ := slices.BinarySearch(names, name)
	return slices.Insert(names, i, name)
}
