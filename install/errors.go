// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package install

import (
	"errors"
	"fmt"

	"github.com/stacklok/toolhive-skills/lockfile"
	"github.com/stacklok/toolhive-skills/resolve"
)

// ErrInvalidTransition is returned when the install state machine is driven
// out of order. It always indicates a bug.
var ErrInvalidTransition = fmt.Errorf("%w: invalid install state transition", resolve.ErrInternal)

// ErrNoInstallRoot is returned when neither the options nor the orchestrator name a destination.
var ErrNoInstallRoot = errors.New("no install root configured")

// SkillError reports a fetch or extract failure for one planned skill.
type SkillError struct {
	Skill string
	// Chain is the dependency path from the requested skill to Skill.
	Chain []string
	Err   error
}

func (e *SkillError) Error() string {
	if len(e.Chain) > 1 {
		return fmt.Sprintf("installing %s (required by %s): %v", e.Skill, resolve.FormatChain(e.Chain), e.Err)
	}
	return fmt.Sprintf("installing %s: %v", e.Skill, e.Err)
}

func (e *SkillError) Unwrap() error {
	return e.Err
}

// PersistError is returned when every skill was installed on disk but the
// lock file could not be written. LockFile holds the merged state, so the
// caller can retry with lockfile.Write(e.LockFile, e.Path).
type PersistError struct {
	LockFile *lockfile.LockFile
	Path     string
	Err      error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("skills installed but lock file %s was not updated: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
