// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"bytes"
	"context"
	_ "crypto/sha256" // register the digest algorithm
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/stacklok/toolhive-skills/httperr"
	"github.com/stacklok/toolhive-skills/logging"
)

const (
	// DefaultAttempts is the number of requests made for one bundle before giving up.
	DefaultAttempts = 3
	// DefaultAttemptTimeout bounds a single request.
	DefaultAttemptTimeout = 30 * time.Second
	// DefaultInitialInterval is the wait before the first retry; it doubles per retry.
	DefaultInitialInterval = time.Second
	// DefaultMaxInterval caps the wait between retries.
	DefaultMaxInterval = 4 * time.Second
	// DefaultMaxBundleSize is the largest compressed payload accepted (256MB).
	DefaultMaxBundleSize = 256 * 1024 * 1024
)

// acceptedContentTypes lists the declared content types that may carry a bundle.
var acceptedContentTypes = map[string]bool{
	"application/gzip":              true,
	"application/x-gzip":            true,
	"application/x-gtar":            true,
	"application/x-tar+gzip":        true,
	"application/octet-stream":      true,
	ocispec.MediaTypeImageLayerGzip: true,
}

var gzipMagic = []byte{0x1f, 0x8b}

// Fetcher downloads bundles from a Store with retries and integrity checks.
// It is safe for concurrent use.
type Fetcher struct {
	store           Store
	attempts        int
	attemptTimeout  time.Duration
	initialInterval time.Duration
	maxInterval     time.Duration
	maxSize         int64
	logger          *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithAttempts sets the total number of requests per bundle. Values below 1 are ignored.
func WithAttempts(n int) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.attempts = n
		}
	}
}

// WithAttemptTimeout bounds each individual request.
func WithAttemptTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.attemptTimeout = d
		}
	}
}

// WithBackoff sets the first retry interval and the cap it doubles towards.
func WithBackoff(initial, maxInterval time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if initial > 0 {
			f.initialInterval = initial
		}
		if maxInterval > 0 {
			f.maxInterval = maxInterval
		}
	}
}

// WithMaxBundleSize rejects payloads larger than n bytes.
func WithMaxBundleSize(n int64) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxSize = n
		}
	}
}

// WithFetcherLogger sets the logger used for retry warnings.
func WithFetcherLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher returns a Fetcher reading from store.
func NewFetcher(store Store, opts ...FetcherOption) *Fetcher {
	if store == nil {
		panic("bundle: nil store")
	}
	f := &Fetcher{
		store:           store,
		attempts:        DefaultAttempts,
		attemptTimeout:  DefaultAttemptTimeout,
		initialInterval: DefaultInitialInterval,
		maxInterval:     DefaultMaxInterval,
		maxSize:         DefaultMaxBundleSize,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = logging.Component(f.logger, "fetcher")
	return f
}

// Fetch downloads and verifies the bundle identified by bundleID.
//
// Transient failures (timeouts, connection errors, 5xx, 429) are retried with
// exponential backoff. A not-found answer fails immediately with an error
// matching ErrBundleNotFound; a payload failing integrity checks fails
// immediately with a *CorruptError. Other failures are reported as a
// *NetworkError once retries are exhausted.
func (f *Fetcher) Fetch(ctx context.Context, bundleID string) ([]byte, error) {
	attempts := 0
	operation := func() ([]byte, error) {
		attempts++
		data, contentType, err := f.get(ctx, bundleID)
		if err != nil {
			return nil, classify(ctx, err)
		}
		if err := f.verify(bundleID, data, contentType); err != nil {
			return nil, backoff.Permanent(err)
		}
		return data, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = f.initialInterval
	bo.MaxInterval = f.maxInterval
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.Reset()

	data, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(f.attempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			f.logger.Warn("retrying bundle download",
				logging.Bundle(bundleID), slog.Int("attempt", attempts), slog.Duration("wait", wait), slog.Any("error", err))
		}),
	)
	if err == nil {
		f.logger.Debug("fetched bundle", logging.Bundle(bundleID), slog.Int("bytes", len(data)), slog.Int("attempts", attempts))
		return data, nil
	}

	var corrupt *CorruptError
	switch {
	case errors.As(err, &corrupt):
		return nil, err
	case errors.Is(err, ErrBundleNotFound):
		return nil, fmt.Errorf("fetching bundle %s: %w", bundleID, err)
	case ctx.Err() != nil:
		return nil, fmt.Errorf("fetching bundle %s: %w", bundleID, ctx.Err())
	default:
		return nil, &NetworkError{BundleID: bundleID, Attempts: attempts, Err: err}
	}
}

// get performs one request under the per-attempt timeout.
func (f *Fetcher) get(ctx context.Context, bundleID string) ([]byte, string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.attemptTimeout)
	defer cancel()
	return f.store.Get(attemptCtx, bundleID)
}

// classify marks failures that must not be retried as permanent.
func classify(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		return backoff.Permanent(ctx.Err())
	case errors.Is(err, ErrBundleNotFound):
		return backoff.Permanent(err)
	case httperr.IsNotFound(err):
		return backoff.Permanent(fmt.Errorf("%w: %w", ErrBundleNotFound, err))
	case !httperr.IsTransient(err):
		return backoff.Permanent(err)
	default:
		return err
	}
}

// verify checks the declared content type, the payload size and shape, and,
// for digest-shaped ids, the payload digest.
func (f *Fetcher) verify(bundleID string, data []byte, contentType string) error {
	fail := func(format string, args ...any) error {
		e := corruptf(format, args...)
		e.BundleID = bundleID
		return e
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return fail("invalid content type %q", contentType)
	}
	if !acceptedContentTypes[mediaType] {
		return fail("unexpected content type %q", mediaType)
	}
	if len(data) == 0 {
		return fail("empty payload")
	}
	if int64(len(data)) > f.maxSize {
		return fail("payload of %d bytes exceeds limit of %d bytes", len(data), f.maxSize)
	}
	if !bytes.HasPrefix(data, gzipMagic) {
		return fail("payload is not gzip compressed")
	}

	if d, ok := digestOf(bundleID); ok {
		verifier := d.Verifier()
		_, _ = verifier.Write(data)
		if !verifier.Verified() {
			return fail("digest mismatch: expected %s, got %s", d, d.Algorithm().FromBytes(data))
		}
	}
	return nil
}

// digestOf extracts an OCI digest from ids of the form "<digest>" or "<ref>@<digest>".
func digestOf(bundleID string) (digest.Digest, bool) {
	candidate := bundleID
	if i := strings.LastIndex(bundleID, "@"); i >= 0 {
		candidate = bundleID[i+1:]
	}
	d, err := digest.Parse(candidate)
	if err != nil || !d.Algorithm().Available() {
		return "", false
	}
	return d, true
}
