// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package install

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/stacklok/toolhive-skills/bundle"
	"github.com/stacklok/toolhive-skills/bundle/gateway"
	"github.com/stacklok/toolhive-skills/bundle/s3"
	"github.com/stacklok/toolhive-skills/config"
	"github.com/stacklok/toolhive-skills/logging"
	"github.com/stacklok/toolhive-skills/metadata"
	ociskills "github.com/stacklok/toolhive-skills/oci/skills"
	"github.com/stacklok/toolhive-skills/policy"
	"github.com/stacklok/toolhive-skills/registry"
)

// NewLogger builds the logger described by cfg, writing to stderr.
func NewLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.WithLevel(level), logging.WithFormat(format), logging.WithOutput(os.Stderr)), nil
}

// NewFromConfig wires an Orchestrator from cfg. opts are applied after the
// configured ones, so they may override them.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	var ociRegistry *ociskills.Registry
	if cfg.Metadata.Backend == config.BackendOCI || cfg.Bundles.Backend == config.BackendOCI {
		ociRegistry, err = newOCIRegistry(cfg, logger)
		if err != nil {
			return nil, err
		}
	}

	client, err := newMetadataClient(cfg, ociRegistry, logger)
	if err != nil {
		return nil, err
	}
	store, err := newBundleStore(cfg, ociRegistry)
	if err != nil {
		return nil, err
	}
	pol, err := policy.Compile(cfg.Policy, policy.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	fetcher := bundle.NewFetcher(store,
		bundle.WithAttempts(cfg.Fetch.Attempts),
		bundle.WithAttemptTimeout(cfg.Fetch.AttemptTimeout),
		bundle.WithBackoff(cfg.Fetch.InitialInterval, cfg.Fetch.MaxInterval),
		bundle.WithMaxBundleSize(cfg.Fetch.MaxBundleSize),
		bundle.WithFetcherLogger(logger),
	)

	base := []Option{
		WithLogger(logger),
		WithFetcher(fetcher),
		WithPolicy(pol),
		WithInstallRoot(cfg.InstallRoot),
		WithConcurrency(cfg.Concurrency),
	}
	return New(client, store, append(base, opts...)...), nil
}

func newOCIRegistry(cfg *config.Config, logger *slog.Logger) (*ociskills.Registry, error) {
	root := cfg.OCI.StoreRoot
	if root == "" {
		root = ociskills.DefaultStoreRoot()
	}
	store, err := ociskills.NewStore(root)
	if err != nil {
		return nil, err
	}
	opts := []ociskills.RegistryOption{
		ociskills.WithPlainHTTP(cfg.OCI.PlainHTTP),
		ociskills.WithLogger(logger),
	}
	if cfg.OCI.Tag != "" {
		opts = append(opts, ociskills.WithTag(cfg.OCI.Tag))
	}
	return ociskills.NewRegistry(cfg.OCI.Prefix, store, opts...)
}

func newMetadataClient(cfg *config.Config, ociRegistry *ociskills.Registry, logger *slog.Logger) (metadata.Client, error) {
	var client metadata.Client
	switch cfg.Metadata.Backend {
	case config.BackendOCI:
		client = ociRegistry
	case config.BackendRegistry:
		opts := []registry.Option{
			registry.WithRetry(cfg.Fetch.Attempts, cfg.Fetch.InitialInterval),
			registry.WithLogger(logger),
		}
		for name, value := range cfg.Registry.Headers {
			opts = append(opts, registry.WithHeader(name, value))
		}
		c, err := registry.NewClient(cfg.Registry.URL, opts...)
		if err != nil {
			return nil, err
		}
		client = c
	default:
		return nil, fmt.Errorf("%w: unknown metadata backend %q", config.ErrInvalidConfig, cfg.Metadata.Backend)
	}

	if cfg.Cache.Size > 0 {
		client = metadata.NewCachingClient(client, cfg.Cache.Size, cfg.Cache.TTL)
	}
	return client, nil
}

func newBundleStore(cfg *config.Config, ociRegistry *ociskills.Registry) (bundle.Store, error) {
	switch cfg.Bundles.Backend {
	case config.BackendOCI:
		return ociRegistry, nil
	case config.BackendS3:
		return s3.New(cfg.S3)
	case config.BackendGateway:
		opts := []gateway.Option{gateway.WithMaxSize(cfg.Fetch.MaxBundleSize)}
		for name, value := range cfg.Gateway.Headers {
			opts = append(opts, gateway.WithHeader(name, value))
		}
		return gateway.New(cfg.Gateway.URL, opts...)
	default:
		return nil, fmt.Errorf("%w: unknown bundle backend %q", config.ErrInvalidConfig, cfg.Bundles.Backend)
	}
}
