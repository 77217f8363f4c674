// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package policy_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolhive-skills/metadata"
	"github.com/stacklok/toolhive-skills/policy"
	"github.com/stacklok/toolhive-skills/resolve"
)

func buildGraph(t *testing.T, root string, skills ...metadata.SkillMetadata) *resolve.Graph {
	t.Helper()
	byName := make(map[string]metadata.SkillMetadata, len(skills))
	for _, s := range skills {
		byName[s.Name] = s
	}
	client := metadata.ClientFunc(func(_ context.Context, name string) (metadata.SkillMetadata, bool, error) {
		m, ok := byName[name]
		return m, ok, nil
	})
	g, err := resolve.NewBuilder(client).Build(t.Context(), root, 0)
	require.NoError(t, err)
	return g
}

func skill(name, bundleID string, deps ...string) metadata.SkillMetadata {
	return metadata.SkillMetadata{Name: name, Version: "1.0.0", BundleID: bundleID, Dependencies: deps}
}

func TestCompile_Valid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		expr string
	}{
		{name: "name prefix", expr: `!skill.name.startsWith("experimental-")`},
		{name: "depth", expr: `depth <= 3`},
		{name: "dependency count", expr: `size(skill.dependencies) < 5`},
		{name: "membership", expr: `!("left-pad" in skill.dependencies)`},
		{name: "combined", expr: `depth == 0 || skill.bundleId.startsWith("ghcr.io/stacklok/")`},
		{name: "literal", expr: `true`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := policy.Compile(tt.expr)
			require.NoError(t, err)
			require.NotNil(t, p)
			assert.Equal(t, tt.expr, p.Source())
			require.NoError(t, policy.Check(tt.expr))
		})
	}
}

func TestCompile_Empty(t *testing.T) {
	t.Parallel()

	p, err := policy.Compile("")
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Empty(t, p.Source())

	allowed, err := p.Allows(t.Context(), skill("a", "b"), 0)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestCompile_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		expr      string
		wantStage policy.Stage
		wantIs    error
	}{
		{name: "unclosed paren", expr: `skill.name.startsWith("x"`, wantStage: policy.StageParse, wantIs: policy.ErrExpressionCheck},
		{name: "triple equals", expr: `depth === 1`, wantStage: policy.StageParse, wantIs: policy.ErrExpressionCheck},
		{name: "unknown variable", expr: `claims["sub"] == "x"`, wantStage: policy.StageCheck, wantIs: policy.ErrExpressionCheck},
		{name: "type mismatch", expr: `depth == "one"`, wantStage: policy.StageCheck, wantIs: policy.ErrExpressionCheck},
		{name: "non bool result", expr: `depth + 1`, wantIs: policy.ErrInvalidResult},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := policy.Compile(tt.expr)
			require.Error(t, err)
			assert.Nil(t, p)
			require.ErrorIs(t, err, tt.wantIs)

			if tt.wantStage != "" {
				var exprErr *policy.ExpressionError
				require.ErrorAs(t, err, &exprErr)
				assert.Equal(t, tt.wantStage, exprErr.Stage)
				assert.Equal(t, tt.expr, exprErr.Source)
				assert.NotEmpty(t, exprErr.Issues)
				assert.Contains(t, exprErr.AsJSON(), `"stage":"`+string(tt.wantStage)+`"`)
			}
			assert.Error(t, policy.Check(tt.expr))
		})
	}
}

func TestCompile_MaxExpressionLength(t *testing.T) {
	t.Parallel()

	expr := `depth < 1` + strings.Repeat(" && true", 10)
	_, err := policy.Compile(expr, policy.WithMaxExpressionLength(20))
	require.ErrorIs(t, err, policy.ErrExpressionCheck)
	assert.Contains(t, err.Error(), "exceeds maximum of 20")

	_, err = policy.Compile(expr)
	require.NoError(t, err)
}

func TestPolicy_Allows(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		expr  string
		meta  metadata.SkillMetadata
		depth int
		want  bool
	}{
		{name: "name allowed", expr: `!skill.name.startsWith("experimental-")`, meta: skill("pdf", "x"), want: true},
		{name: "name denied", expr: `!skill.name.startsWith("experimental-")`, meta: skill("experimental-ocr", "x"), want: false},
		{name: "depth allowed", expr: `depth <= 1`, meta: skill("a", "x"), depth: 1, want: true},
		{name: "depth denied", expr: `depth <= 1`, meta: skill("a", "x"), depth: 2, want: false},
		{name: "no dependencies", expr: `size(skill.dependencies) == 0`, meta: skill("a", "x"), want: true},
		{name: "dependency listed", expr: `"ocr" in skill.dependencies`, meta: skill("a", "x", "ocr"), want: true},
		{name: "version", expr: `skill.version == "1.0.0"`, meta: skill("a", "x"), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := policy.Compile(tt.expr)
			require.NoError(t, err)

			got, err := p.Allows(t.Context(), tt.meta, tt.depth)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPolicy_AllowsEvaluationError(t *testing.T) {
	t.Parallel()

	p, err := policy.Compile(`skill.missing == "x"`)
	require.NoError(t, err)

	_, err = p.Allows(t.Context(), skill("a", "x"), 0)
	require.ErrorIs(t, err, policy.ErrEvaluation)
}

func TestPolicy_EnforceAllowsGraph(t *testing.T) {
	t.Parallel()

	g := buildGraph(t, "root",
		skill("root", "ghcr.io/stacklok/root", "a", "b"),
		skill("a", "ghcr.io/stacklok/a", "c"),
		skill("b", "ghcr.io/stacklok/b"),
		skill("c", "ghcr.io/stacklok/c"),
	)
	p, err := policy.Compile(`skill.bundleId.startsWith("ghcr.io/stacklok/")`)
	require.NoError(t, err)

	require.NoError(t, p.Enforce(t.Context(), g))
}

func TestPolicy_EnforceReportsChain(t *testing.T) {
	t.Parallel()

	g := buildGraph(t, "root",
		skill("root", "ghcr.io/stacklok/root", "a"),
		skill("a", "ghcr.io/stacklok/a", "c"),
		skill("c", "docker.io/random/c"),
	)
	p, err := policy.Compile(`skill.bundleId.startsWith("ghcr.io/stacklok/")`)
	require.NoError(t, err)

	err = p.Enforce(t.Context(), g)
	require.ErrorIs(t, err, policy.ErrDenied)

	var denied *policy.DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "c", denied.Skill)
	assert.Equal(t, []string{"root", "a", "c"}, denied.Chain)
	assert.Equal(t, p.Source(), denied.Expression)
	assert.Contains(t, err.Error(), "root -> a -> c")
}

func TestPolicy_EnforceUsesDepthFromRoot(t *testing.T) {
	t.Parallel()

	g := buildGraph(t, "root",
		skill("root", "x", "a"),
		skill("a", "x", "b"),
		skill("b", "x"),
	)
	p, err := policy.Compile(`depth < 2`)
	require.NoError(t, err)

	var denied *policy.DeniedError
	require.ErrorAs(t, p.Enforce(t.Context(), g), &denied)
	assert.Equal(t, "b", denied.Skill)
}

func TestPolicy_NilEnforce(t *testing.T) {
	t.Parallel()

	var p *policy.Policy
	g := buildGraph(t, "root", skill("root", "x"))
	assert.NoError(t, p.Enforce(t.Context(), g))
}
