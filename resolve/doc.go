// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package resolve turns a requested skill name into a validated dependency
graph and a deterministic, dependency-first install plan.

# Graph construction

Builder.Build walks dependencies depth-first from the root, fetching each
distinct skill's metadata exactly once. Nodes live in an arena indexed by
name; children are referenced by arena index, so a cycle is only ever a
repeated key lookup. Three-state marking detects cycles and reports the full
path from the root:

	_, err := resolve.NewBuilder(client).Build(ctx, "a", 0)
	var cycle *resolve.CircularDependencyError
	if errors.As(err, &cycle) {
		fmt.Println(cycle.PathString()) // a -> b -> a
	}

The root is at depth 0 and dependencies may be nested up to maxDepth levels
(default 10). The limit also holds for nodes shared between several paths:
reaching an already-resolved node deeper than before re-checks the height
of its subtree.

# Planning

PlanInstall orders the graph with Kahn's algorithm, breaking ties by
ascending name, and marks entries whose exact version is already recorded
as installed so they are kept for bookkeeping but never fetched.
*/
package resolve
