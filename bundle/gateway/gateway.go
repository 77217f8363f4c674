// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package gateway reads skill bundles from an HTTP gateway that serves each
// bundle at {base}/{bundleId}.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stacklok/toolhive-skills/bundle"
	"github.com/stacklok/toolhive-skills/httperr"
	httpval "github.com/stacklok/toolhive-skills/validation/http"
)

// DefaultTimeout bounds a request when the caller's context carries no deadline.
const DefaultTimeout = 60 * time.Second

// Store is a bundle.Store backed by an HTTP gateway.
type Store struct {
	base    *url.URL
	client  *http.Client
	headers http.Header
	maxSize int64
}

var _ bundle.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store) error

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) error {
		if c == nil {
			return errors.New("http client cannot be nil")
		}
		s.client = c
		return nil
	}
}

// WithHeader adds a header sent with every request, such as an API key.
func WithHeader(name, value string) Option {
	return func(s *Store) error {
		if err := httpval.ValidateHeader(name, value); err != nil {
			return err
		}
		s.headers.Add(name, value)
		return nil
	}
}

// WithMaxSize caps how many bytes are read from a response body.
func WithMaxSize(n int64) Option {
	return func(s *Store) error {
		if n <= 0 {
			return fmt.Errorf("max size must be positive, got %d", n)
		}
		s.maxSize = n
		return nil
	}
}

// New returns a Store for the gateway at baseURL.
func New(baseURL string, opts ...Option) (*Store, error) {
	if err := httpval.ValidateEndpointURL(baseURL); err != nil {
		return nil, fmt.Errorf("invalid gateway URL: %w", err)
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid gateway URL: %w", err)
	}

	s := &Store{
		base:    base,
		client:  &http.Client{Timeout: DefaultTimeout},
		headers: http.Header{},
		maxSize: bundle.DefaultMaxBundleSize,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Get downloads the bundle. A 404 or 410 yields an error matching
// bundle.ErrBundleNotFound; other non-2xx statuses carry their code through
// httperr so the fetcher can decide whether to retry. A body shorter than the
// declared Content-Length is reported as a transient error.
func (s *Store) Get(ctx context.Context, bundleID string) ([]byte, string, error) {
	if bundleID == "" || bundleID == "." || bundleID == ".." || strings.ContainsAny(bundleID, "/?#") {
		return nil, "", httperr.WithCode(fmt.Errorf("invalid bundle id %q", bundleID), http.StatusBadRequest)
	}

	target := s.base.JoinPath(url.PathEscape(bundleID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("building request: %w", err)
	}
	for name, values := range s.headers {
		req.Header[name] = values
	}
	req.Header.Set("Accept", "application/gzip, application/octet-stream;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("requesting bundle %s: %w", bundleID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		statusErr := httperr.FromResponse(resp)
		if httperr.IsNotFound(statusErr) {
			return nil, "", fmt.Errorf("%w: %w", bundle.ErrBundleNotFound, statusErr)
		}
		return nil, "", statusErr
	}

	if resp.ContentLength > s.maxSize {
		return nil, "", httperr.WithCode(
			fmt.Errorf("bundle %s declares %d bytes, limit is %d", bundleID, resp.ContentLength, s.maxSize),
			http.StatusRequestEntityTooLarge)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("reading bundle %s: %w", bundleID, err)
	}
	if resp.ContentLength >= 0 && int64(len(data)) != resp.ContentLength {
		return nil, "", fmt.Errorf("reading bundle %s: got %d of %d bytes: %w",
			bundleID, len(data), resp.ContentLength, io.ErrUnexpectedEOF)
	}
	return data, resp.Header.Get("Content-Type"), nil
}
