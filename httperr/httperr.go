// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package httperr

import (
	"errors"
	"fmt"
	"net/http"
)

// CodedError wraps an error with the HTTP status code of the response that caused it.
type CodedError struct {
	err  error
	code int
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	return e.err.Error()
}

// Unwrap returns the underlying error for errors.Is() and errors.As() compatibility.
func (e *CodedError) Unwrap() error {
	return e.err
}

// HTTPCode returns the HTTP status code associated with this error.
func (e *CodedError) HTTPCode() int {
	return e.code
}

// WithCode wraps an error with an HTTP status code.
// If err is nil, WithCode returns nil.
func WithCode(err error, code int) error {
	if err == nil {
		return nil
	}
	return &CodedError{err: err, code: code}
}

// New creates a new error with the given message and HTTP status code.
func New(message string, code int) error {
	return &CodedError{err: errors.New(message), code: code}
}

// FromResponse builds a CodedError describing a non-success response.
// The message names the request URL so the error can be rendered verbatim.
func FromResponse(resp *http.Response) error {
	if resp == nil {
		return nil
	}
	target := ""
	if resp.Request != nil && resp.Request.URL != nil {
		target = resp.Request.URL.Redacted()
	}
	return &CodedError{
		err:  fmt.Errorf("unexpected HTTP status %d (%s) from %s", resp.StatusCode, http.StatusText(resp.StatusCode), target),
		code: resp.StatusCode,
	}
}

// Code extracts the HTTP status code from an error.
// It unwraps the error chain looking for a CodedError.
// If no CodedError is found, it returns http.StatusInternalServerError (500).
func Code(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.code
	}

	return http.StatusInternalServerError
}

// HasCode reports whether the error chain carries an explicit status code.
func HasCode(err error) bool {
	var coded *CodedError
	return errors.As(err, &coded)
}

// IsNotFound reports whether the error carries a 404 or 410 status.
func IsNotFound(err error) bool {
	if !HasCode(err) {
		return false
	}
	code := Code(err)
	return code == http.StatusNotFound || code == http.StatusGone
}

// IsTransient reports whether a request that failed with err may succeed when repeated.
// Errors without a status code (connection resets, timeouts) are treated as transient;
// coded errors are transient for 408, 425, 429 and any 5xx.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if !HasCode(err) {
		return true
	}
	switch code := Code(err); {
	case code >= 500:
		return true
	case code == http.StatusRequestTimeout, code == http.StatusTooEarly, code == http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}
