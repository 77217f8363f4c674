// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package recovery

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// ErrPanic is wrapped by every error produced from a recovered panic.
var ErrPanic = errors.New("recovered panic")

// PanicError carries the recovered value and the goroutine stack at the point of the panic.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("%s: %v", ErrPanic, e.Value)
}

// Unwrap allows errors.Is(err, ErrPanic), and exposes the panic value when it is itself an error.
func (e *PanicError) Unwrap() []error {
	if inner, ok := e.Value.(error); ok {
		return []error{ErrPanic, inner}
	}
	return []error{ErrPanic}
}

// Do runs fn and returns its error. A panic inside fn is recovered and returned as a *PanicError.
func Do(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}
