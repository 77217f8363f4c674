// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/stacklok/toolhive-skills/httperr"
	"github.com/stacklok/toolhive-skills/logging"
	"github.com/stacklok/toolhive-skills/metadata"
	httpval "github.com/stacklok/toolhive-skills/validation/http"
)

const (
	// DefaultTimeout bounds one request.
	DefaultTimeout = 30 * time.Second
	// DefaultAttempts is the number of requests per lookup before giving up.
	DefaultAttempts = 3
	// maxResponseSize caps the skill document read from the registry.
	maxResponseSize = 1 << 20
)

// Client looks up skills in a registry. It is safe for concurrent use.
type Client struct {
	base            *url.URL
	http            *http.Client
	headers         http.Header
	attempts        int
	initialInterval time.Duration
	logger          *slog.Logger
}

var _ metadata.Client = (*Client)(nil)

// Option configures a Client.
type Option func(*Client) error

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) error {
		if c == nil {
			return errors.New("http client cannot be nil")
		}
		cl.http = c
		return nil
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(name, value string) Option {
	return func(cl *Client) error {
		if err := httpval.ValidateHeader(name, value); err != nil {
			return err
		}
		cl.headers.Add(name, value)
		return nil
	}
}

// WithRetry sets the attempts per lookup and the first backoff interval.
func WithRetry(attempts int, initialInterval time.Duration) Option {
	return func(cl *Client) error {
		if attempts < 1 {
			return fmt.Errorf("attempts must be at least 1, got %d", attempts)
		}
		cl.attempts = attempts
		if initialInterval > 0 {
			cl.initialInterval = initialInterval
		}
		return nil
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) error {
		cl.logger = logger
		return nil
	}
}

// NewClient returns a Client for the registry at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if err := httpval.ValidateEndpointURL(baseURL); err != nil {
		return nil, fmt.Errorf("invalid registry URL: %w", err)
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid registry URL: %w", err)
	}

	c := &Client{
		base:            base,
		http:            &http.Client{Timeout: DefaultTimeout},
		headers:         http.Header{},
		attempts:        DefaultAttempts,
		initialInterval: time.Second,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.logger = logging.Component(c.logger, "registry")
	return c, nil
}

// Lookup fetches the current metadata of name. A 404 or 410 answer returns
// found == false with a nil error.
func (c *Client) Lookup(ctx context.Context, name string) (metadata.SkillMetadata, bool, error) {
	operation := func() (*Skill, error) {
		skill, err := c.get(ctx, name)
		switch {
		case err == nil:
			return skill, nil
		case httperr.IsNotFound(err):
			return nil, backoff.Permanent(err)
		case ctx.Err() != nil:
			return nil, backoff.Permanent(ctx.Err())
		case !httperr.IsTransient(err):
			return nil, backoff.Permanent(err)
		default:
			return nil, err
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialInterval
	bo.Multiplier = 2
	bo.Reset()

	skill, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(c.attempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.logger.Warn("retrying registry lookup", logging.Skill(name), slog.Duration("wait", wait), slog.Any("error", err))
		}),
	)
	if httperr.IsNotFound(err) {
		return metadata.SkillMetadata{}, false, nil
	}
	if err != nil {
		return metadata.SkillMetadata{}, false, err
	}

	if skill.Status == StatusDeprecated || skill.Status == StatusArchived {
		c.logger.Warn("skill is "+skill.Status, logging.Skill(skill.Name), logging.Version(skill.Version))
	}
	return skill.ToMetadata(), true, nil
}

// get performs a single request and decodes a validated skill document.
func (c *Client) get(ctx context.Context, name string) (*Skill, error) {
	target := c.base.JoinPath("v1", "skills", url.PathEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	for key, values := range c.headers {
		req.Header[key] = values
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("looking up skill %s: %w", name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, httperr.FromResponse(resp)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading skill %s: %w", name, err)
	}
	if len(data) > maxResponseSize {
		return nil, httperr.WithCode(fmt.Errorf("skill %s: response exceeds %d bytes", name, maxResponseSize), http.StatusUnprocessableEntity)
	}

	// A malformed document is not going to improve on retry.
	if err := ValidateSkillBytes(data); err != nil {
		return nil, httperr.WithCode(fmt.Errorf("skill %s: %w", name, err), http.StatusUnprocessableEntity)
	}
	var skill Skill
	if err := json.Unmarshal(data, &skill); err != nil {
		return nil, httperr.WithCode(fmt.Errorf("decoding skill %s: %w", name, err), http.StatusUnprocessableEntity)
	}
	return &skill, nil
}
