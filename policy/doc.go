// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package policy restricts which skills an install may pull in, using a CEL
expression evaluated once for every skill of a resolved dependency graph.

# Variables

The expression sees two variables:

	skill  map(string, dyn)  name, version, bundleId and dependencies (list of names)
	depth  int               0 for the requested skill, 1 for its direct dependencies, ...

and must evaluate to a bool. For example:

	!skill.name.startsWith("experimental-")
	depth == 0 || skill.bundleId.startsWith("ghcr.io/stacklok/")
	size(skill.dependencies) <= 5

# Usage

	p, err := policy.Compile(cfg.Policy)
	if err != nil {
		return err // *policy.ExpressionError with line/column details
	}

	graph, err := builder.Build(ctx, "pdf-processor", 0)
	...
	if err := p.Enforce(ctx, graph); err != nil {
		var denied *policy.DeniedError
		if errors.As(err, &denied) {
			fmt.Println(denied.Skill, denied.Chain)
		}
		return err
	}

A nil *Policy allows everything, so callers without a configured expression
can call Enforce unconditionally.

# Limits

Expressions longer than DefaultMaxExpressionLength are rejected at compile
time and evaluation is bounded by DefaultCostLimit. Both can be changed with
WithMaxExpressionLength and WithCostLimit.

A compiled Policy is safe for concurrent use.
*/
package policy
