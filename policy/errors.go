// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/stacklok/toolhive-skills/resolve"
)

// Sentinel errors for policy compilation and enforcement.
var (
	// ErrDenied is returned when a resolved skill does not satisfy the policy.
	ErrDenied = errors.New("denied by install policy")

	// ErrExpressionCheck is returned when an expression fails syntax or type checking.
	ErrExpressionCheck = errors.New("policy expression check failed")

	// ErrEvaluation is returned when evaluating the expression fails at runtime.
	ErrEvaluation = errors.New("policy evaluation failed")

	// ErrInvalidResult is returned when the expression does not produce a bool.
	ErrInvalidResult = errors.New("policy expression returned invalid result type")
)

// Stage identifies where compilation of an expression failed.
type Stage string

const (
	// StageParse indicates a syntax error.
	StageParse Stage = "parse"
	// StageCheck indicates a type checking error, such as an unknown variable.
	StageCheck Stage = "check"
)

// Issue is one problem reported for an expression.
type Issue struct {
	Line int    `json:"line,omitempty"`
	Col  int    `json:"col,omitempty"`
	Msg  string `json:"msg,omitempty"`
}

// ExpressionError reports an expression that could not be compiled.
type ExpressionError struct {
	Stage  Stage   `json:"stage"`
	Source string  `json:"source,omitempty"`
	Issues []Issue `json:"errors,omitempty"`
	err    error
}

// Error implements the error interface.
func (e *ExpressionError) Error() string {
	return fmt.Sprintf("policy %s error in expression %q: %s", e.Stage, e.Source, e.err)
}

// Unwrap returns the underlying error, which wraps ErrExpressionCheck.
func (e *ExpressionError) Unwrap() error {
	return e.err
}

// AsJSON returns the error details as a JSON document.
func (e *ExpressionError) AsJSON() string {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"error": "failed to marshal JSON: %s"}`, err)
	}
	return string(data)
}

func newExpressionError(stage Stage, source string, issues *cel.Issues) *ExpressionError {
	e := &ExpressionError{
		Stage:  stage,
		Source: source,
		Issues: make([]Issue, 0, len(issues.Errors())),
		err:    fmt.Errorf("%w: %w", ErrExpressionCheck, issues.Err()),
	}
	for _, ce := range issues.Errors() {
		e.Issues = append(e.Issues, Issue{
			Line: ce.Location.Line(),
			Col:  ce.Location.Column(),
			Msg:  ce.Message,
		})
	}
	return e
}

// DeniedError reports the first skill of a graph rejected by the policy.
type DeniedError struct {
	// Skill is the rejected skill.
	Skill string
	// Chain is the path from the requested skill to Skill, inclusive.
	Chain []string
	// Expression is the policy source.
	Expression string
}

// Error implements the error interface.
func (e *DeniedError) Error() string {
	if len(e.Chain) > 1 {
		return fmt.Sprintf("skill %q %s (required by %s)", e.Skill, ErrDenied, resolve.FormatChain(e.Chain))
	}
	return fmt.Sprintf("skill %q %s", e.Skill, ErrDenied)
}

// Unwrap returns ErrDenied.
func (*DeniedError) Unwrap() error {
	return ErrDenied
}
