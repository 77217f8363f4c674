// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package metadata

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultCacheSize is the number of records kept by NewCachingClient when size <= 0.
	DefaultCacheSize = 512

	// DefaultCacheTTL bounds how stale a cached record may be when ttl <= 0.
	DefaultCacheTTL = 5 * time.Minute
)

// Compile-time interface check.
var _ Client = (*CachingClient)(nil)

// CachingClient memoizes successful lookups of an inner Client.
// Not-found results and errors are never cached.
type CachingClient struct {
	inner Client
	cache *expirable.LRU[string, SkillMetadata]
}

// NewCachingClient wraps inner with an expiring LRU cache.
func NewCachingClient(inner Client, size int, ttl time.Duration) *CachingClient {
	if inner == nil {
		panic("metadata: NewCachingClient called with nil client")
	}
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachingClient{
		inner: inner,
		cache: expirable.NewLRU[string, SkillMetadata](size, nil, ttl),
	}
}

// Lookup returns a cached record when present, otherwise delegates to the inner client.
func (c *CachingClient) Lookup(ctx context.Context, name string) (SkillMetadata, bool, error) {
	if meta, ok := c.cache.Get(name); ok {
		return meta.Clone(), true, nil
	}

	meta, found, err := c.inner.Lookup(ctx, name)
	if err != nil || !found {
		return meta, found, err
	}

	c.cache.Add(name, meta.Clone())
	return meta, true, nil
}

// Purge drops every cached record.
func (c *CachingClient) Purge() {
	c.cache.Purge()
}
