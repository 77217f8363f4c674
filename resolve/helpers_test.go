// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package resolve

import (
	"context"
	"fmt"
	"sync"

	"github.com/stacklok/toolhive-skills/metadata"
)

// fakeClient serves metadata from a dependency table and counts lookups per name.
type fakeClient struct {
	mu      sync.Mutex
	deps    map[string][]string
	version map[string]string
	calls   map[string]int
}

func newFakeClient(deps map[string][]string) *fakeClient {
	return &fakeClient{
		deps:    deps,
		version: map[string]string{},
		calls:   map[string]int{},
	}
}

func (f *fakeClient) Lookup(_ context.Context, name string) (metadata.SkillMetadata, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	deps, ok := f.deps[name]
	if !ok {
		return metadata.SkillMetadata{}, false, nil
	}
	version := f.version[name]
	if version == "" {
		version = "1.0.0"
	}
	return metadata.SkillMetadata{
		Name:         name,
		Version:      version,
		BundleID:     "bundle-" + name,
		Dependencies: deps,
	}, true, nil
}

func (f *fakeClient) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, c := range f.calls {
		total += c
	}
	return total
}

// linearChain returns s0 -> s1 -> ... -> s(levels).
func linearChain(levels int) map[string][]string {
	deps := make(map[string][]string, levels+1)
	for i := 0; i < levels; i++ {
		deps[fmt.Sprintf("s%d", i)] = []string{fmt.Sprintf("s%d", i+1)}
	}
	deps[fmt.Sprintf("s%d", levels)] = nil
	return deps
}

func metaFor(name string) metadata.SkillMetadata {
	return metadata.SkillMetadata{Name: name, Version: "1.0.0", BundleID: "bundle-" + name}
}
