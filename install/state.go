// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package install

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/stacklok/toolhive-skills/logging"
)

// State is a step of the install state machine.
type State int

// Install states. Failed and Done are terminal.
const (
	StatePlanning State = iota
	StateFetching
	StateExtracting
	StatePersisting
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StatePlanning:   "planning",
	StateFetching:   "fetching",
	StateExtracting: "extracting",
	StatePersisting: "persisting",
	StateDone:       "done",
	StateFailed:     "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// transitions lists the states reachable from each state.
var transitions = map[State][]State{
	StatePlanning:   {StateFetching, StateFailed},
	StateFetching:   {StateExtracting, StateFailed},
	StateExtracting: {StatePersisting, StateFailed},
	StatePersisting: {StateDone, StateFailed},
}

func canTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}

// machine tracks the state of one Install call. Workers may race to advance
// it, so every method is safe for concurrent use.
type machine struct {
	mu       sync.Mutex
	state    State
	observer func(State)
	logger   *slog.Logger
}

func newMachine(observer func(State), logger *slog.Logger) *machine {
	m := &machine{state: StatePlanning, observer: observer, logger: logger}
	m.notify(StatePlanning)
	return m
}

func (m *machine) current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// transition moves to the next state or reports an internal error.
func (m *machine) transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.moveLocked(to)
}

// advance moves from -> to only if the machine is in from. It reports whether it moved.
func (m *machine) advance(from, to State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != from {
		return false
	}
	return m.moveLocked(to) == nil
}

// fail moves to StateFailed unless the machine already stopped.
func (m *machine) fail() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.Terminal() {
		_ = m.moveLocked(StateFailed)
	}
}

func (m *machine) moveLocked(to State) error {
	if !canTransition(m.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state, to)
	}
	m.logger.Debug("install state changed", slog.String("from", m.state.String()), logging.State(to))
	m.state = to
	m.notify(to)
	return nil
}

func (m *machine) notify(s State) {
	if m.observer != nil {
		m.observer(s)
	}
}
