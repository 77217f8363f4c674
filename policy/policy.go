// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/stacklok/toolhive-skills/logging"
	"github.com/stacklok/toolhive-skills/metadata"
	"github.com/stacklok/toolhive-skills/resolve"
)

const (
	// DefaultMaxExpressionLength is the maximum allowed length of a policy expression.
	DefaultMaxExpressionLength = 10000

	// DefaultCostLimit bounds the runtime cost of a single evaluation.
	DefaultCostLimit = 1000000

	// interruptCheckFrequency is how many comprehension iterations run between
	// context cancellation checks.
	interruptCheckFrequency = 100
)

// Variable names visible to expressions.
const (
	VarSkill = "skill"
	VarDepth = "depth"
)

// environment is shared by every Policy; the variable set never changes.
var environment = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable(VarSkill, cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable(VarDepth, cel.IntType),
	)
})

type settings struct {
	maxExpressionLength int
	costLimit           uint64
	logger              *slog.Logger
}

// Option configures Compile and Check.
type Option func(*settings)

// WithMaxExpressionLength sets the maximum accepted expression length.
func WithMaxExpressionLength(n int) Option {
	return func(s *settings) {
		s.maxExpressionLength = n
	}
}

// WithCostLimit sets the runtime cost limit of an evaluation.
func WithCostLimit(limit uint64) Option {
	return func(s *settings) {
		s.costLimit = limit
	}
}

// WithLogger sets the logger used to report decisions.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

func newSettings(opts []Option) settings {
	s := settings{
		maxExpressionLength: DefaultMaxExpressionLength,
		costLimit:           DefaultCostLimit,
	}
	for _, opt := range opts {
		opt(&s)
	}
	s.logger = logging.Component(s.logger, "policy")
	return s
}

// Policy is a compiled install policy.
type Policy struct {
	source  string
	program cel.Program
	logger  *slog.Logger
}

// Compile parses and type-checks expr. An empty expression yields a nil
// Policy, which allows every skill.
func Compile(expr string, opts ...Option) (*Policy, error) {
	if expr == "" {
		return nil, nil
	}
	s := newSettings(opts)
	ast, err := check(expr, s)
	if err != nil {
		return nil, err
	}
	env, err := environment()
	if err != nil {
		return nil, fmt.Errorf("failed to get CEL environment: %w", err)
	}
	program, err := env.Program(ast,
		cel.CostLimit(s.costLimit),
		cel.InterruptCheckFrequency(interruptCheckFrequency),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program for %q: %w", expr, err)
	}
	return &Policy{source: expr, program: program, logger: s.logger}, nil
}

// Check validates expr without building a program. It is meant for
// configuration validation.
func Check(expr string, opts ...Option) error {
	if expr == "" {
		return nil
	}
	_, err := check(expr, newSettings(opts))
	return err
}

func check(expr string, s settings) (*cel.Ast, error) {
	if len(expr) > s.maxExpressionLength {
		return nil, fmt.Errorf("%w: expression length %d exceeds maximum of %d",
			ErrExpressionCheck, len(expr), s.maxExpressionLength)
	}
	env, err := environment()
	if err != nil {
		return nil, fmt.Errorf("failed to get CEL environment: %w", err)
	}

	parsed, issues := env.Parse(expr)
	if issues.Err() != nil {
		return nil, newExpressionError(StageParse, expr, issues)
	}
	checked, issues := env.Check(parsed)
	if issues.Err() != nil {
		return nil, newExpressionError(StageCheck, expr, issues)
	}
	if !checked.OutputType().IsAssignableType(cel.BoolType) {
		return nil, fmt.Errorf("%w: expression %q yields %s, want bool",
			ErrInvalidResult, expr, checked.OutputType())
	}
	return checked, nil
}

// Source returns the expression the policy was compiled from.
func (p *Policy) Source() string {
	if p == nil {
		return ""
	}
	return p.source
}

// Allows evaluates the policy for a single skill found depth levels below the root.
func (p *Policy) Allows(ctx context.Context, meta metadata.SkillMetadata, depth int) (bool, error) {
	if p == nil {
		return true, nil
	}
	deps := meta.Dependencies
	if deps == nil {
		deps = []string{}
	}
	activation := map[string]any{
		VarSkill: map[string]any{
			"name":         meta.Name,
			"version":      meta.Version,
			"bundleId":     meta.BundleID,
			"dependencies": slices.Clone(deps),
		},
		VarDepth: int64(depth),
	}

	out, _, err := p.program.ContextEval(ctx, activation)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		return false, fmt.Errorf("%w for %s: %s", ErrEvaluation, meta.Name, err)
	}
	allowed, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: expected bool, got %T", ErrInvalidResult, out.Value())
	}
	return allowed, nil
}

// Enforce evaluates the policy for every skill in g, in the order the skills
// were resolved, and returns a *DeniedError for the first one it rejects.
func (p *Policy) Enforce(ctx context.Context, g *resolve.Graph) error {
	if p == nil {
		return nil
	}
	for node := range g.Nodes() {
		chain := g.Chain(node.Name)
		allowed, err := p.Allows(ctx, node.Metadata, len(chain)-1)
		if err != nil {
			return err
		}
		if !allowed {
			p.logger.Warn("skill rejected by install policy",
				logging.Skill(node.Name), logging.Chain(chain), slog.String("policy", p.source))
			return &DeniedError{Skill: node.Name, Chain: chain, Expression: p.source}
		}
	}
	p.logger.Debug("install policy satisfied", logging.Skill(g.Root()), slog.Int("skills", g.Len()))
	return nil
}
