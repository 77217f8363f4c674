// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/toolhive-skills/bundle"
	"github.com/stacklok/toolhive-skills/bundle/s3"
	"github.com/stacklok/toolhive-skills/env"
	"github.com/stacklok/toolhive-skills/logging"
	"github.com/stacklok/toolhive-skills/policy"
	"github.com/stacklok/toolhive-skills/resolve"
	httpval "github.com/stacklok/toolhive-skills/validation/http"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Environment variables that override file values.
const (
	EnvInstallRoot = "TOOLHIVE_SKILLS_INSTALL_ROOT"
	EnvRegistryURL = "TOOLHIVE_SKILLS_REGISTRY_URL"
	EnvGatewayURL  = "TOOLHIVE_SKILLS_GATEWAY_URL"
	EnvMaxDepth    = "TOOLHIVE_SKILLS_MAX_DEPTH"
	EnvConcurrency = "TOOLHIVE_SKILLS_CONCURRENCY"
	EnvLogLevel    = "TOOLHIVE_SKILLS_LOG_LEVEL"
	EnvPolicy      = "TOOLHIVE_SKILLS_POLICY"
	EnvS3AccessKey = "TOOLHIVE_SKILLS_S3_ACCESS_KEY"
	EnvS3SecretKey = "TOOLHIVE_SKILLS_S3_SECRET_KEY"
)

// Metadata backends.
const (
	BackendRegistry = "registry"
	BackendOCI      = "oci"
)

// Bundle backends.
const (
	BackendGateway = "gateway"
	BackendS3      = "s3"
)

// DefaultConcurrency is the number of bundles fetched and extracted in parallel.
const DefaultConcurrency = 4

// Config is the complete installer configuration.
type Config struct {
	InstallRoot string `yaml:"install_root"`
	MaxDepth    int    `yaml:"max_depth"`
	Concurrency int    `yaml:"concurrency"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	// Policy is an optional CEL expression every resolved skill must satisfy.
	Policy string `yaml:"policy"`

	Metadata BackendConfig  `yaml:"metadata"`
	Bundles  BackendConfig  `yaml:"bundles"`
	Registry EndpointConfig `yaml:"registry"`
	Gateway  EndpointConfig `yaml:"gateway"`
	OCI      OCIConfig      `yaml:"oci"`
	S3       s3.Config      `yaml:"s3"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Cache    CacheConfig    `yaml:"cache"`
}

// BackendConfig selects an implementation.
type BackendConfig struct {
	Backend string `yaml:"backend"`
}

// EndpointConfig describes an HTTP service.
type EndpointConfig struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
}

// OCIConfig describes where skill artifacts are published.
type OCIConfig struct {
	// Prefix is the repository prefix, e.g. "ghcr.io/stacklok/skills".
	Prefix    string `yaml:"prefix"`
	Tag       string `yaml:"tag"`
	PlainHTTP bool   `yaml:"plain_http"`
	// StoreRoot is the local artifact cache; empty selects the XDG default.
	StoreRoot string `yaml:"store_root"`
}

// FetchConfig tunes bundle downloads.
type FetchConfig struct {
	AttemptTimeout  time.Duration `yaml:"attempt_timeout"`
	Attempts        int           `yaml:"attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	MaxBundleSize   int64         `yaml:"max_bundle_size"`
}

// CacheConfig tunes the metadata cache. Size 0 disables it.
type CacheConfig struct {
	Size int           `yaml:"size"`
	TTL  time.Duration `yaml:"ttl"`
}

// DefaultInstallRoot returns $XDG_DATA_HOME/toolhive/skills/installed.
func DefaultInstallRoot() string {
	return filepath.Join(xdg.DataHome, "toolhive", "skills", "installed")
}

// DefaultPath returns $XDG_CONFIG_HOME/toolhive/skills.yaml.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "toolhive", "skills.yaml")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		InstallRoot: DefaultInstallRoot(),
		MaxDepth:    resolve.DefaultMaxDepth,
		Concurrency: DefaultConcurrency,
		LogLevel:    "info",
		LogFormat:   "text",
		Metadata:    BackendConfig{Backend: BackendRegistry},
		Bundles:     BackendConfig{Backend: BackendGateway},
		Fetch: FetchConfig{
			AttemptTimeout:  bundle.DefaultAttemptTimeout,
			Attempts:        bundle.DefaultAttempts,
			InitialInterval: bundle.DefaultInitialInterval,
			MaxInterval:     bundle.DefaultMaxInterval,
			MaxBundleSize:   bundle.DefaultMaxBundleSize,
		},
		Cache: CacheConfig{Size: 512, TTL: 10 * time.Minute},
	}
}

// Load builds the configuration from defaults, the file at path (DefaultPath
// when empty) and the environment, then validates it.
func Load(path string, environ env.Reader) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	default:
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if environ != nil {
		if err := cfg.applyEnv(environ); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode overlays the YAML document onto cfg and rejects unknown keys.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(environ env.Reader) error {
	strs := map[string]*string{
		EnvInstallRoot: &c.InstallRoot,
		EnvRegistryURL: &c.Registry.URL,
		EnvGatewayURL:  &c.Gateway.URL,
		EnvLogLevel:    &c.LogLevel,
		EnvPolicy:      &c.Policy,
		EnvS3AccessKey: &c.S3.AccessKey,
		EnvS3SecretKey: &c.S3.SecretKey,
	}
	for key, dst := range strs {
		if v, ok := environ.LookupEnv(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		EnvMaxDepth:    &c.MaxDepth,
		EnvConcurrency: &c.Concurrency,
	}
	for key, dst := range ints {
		v, ok := environ.LookupEnv(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, key, v)
		}
		*dst = n
	}
	return nil
}

// Validate checks ranges, backend names, endpoints, headers and the policy expression.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.InstallRoot == "" {
		add("install_root is required")
	}
	if c.MaxDepth < 1 {
		add("max_depth must be at least 1, got %d", c.MaxDepth)
	}
	if c.Concurrency < 1 {
		add("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		add("log_level: %w", err)
	}
	if _, err := logging.ParseFormat(c.LogFormat); err != nil {
		add("log_format: %w", err)
	}
	if err := policy.Check(c.Policy); err != nil {
		add("policy: %w", err)
	}

	switch c.Metadata.Backend {
	case BackendRegistry:
		errs = append(errs, c.Registry.validate("registry")...)
	case BackendOCI:
		if c.OCI.Prefix == "" {
			add("oci.prefix is required for the oci metadata backend")
		}
	default:
		add("metadata.backend must be %q or %q, got %q", BackendRegistry, BackendOCI, c.Metadata.Backend)
	}

	switch c.Bundles.Backend {
	case BackendGateway:
		errs = append(errs, c.Gateway.validate("gateway")...)
	case BackendOCI:
		if c.OCI.Prefix == "" {
			add("oci.prefix is required for the oci bundle backend")
		}
	case BackendS3:
		if c.S3.Endpoint == "" || c.S3.Bucket == "" {
			add("s3.endpoint and s3.bucket are required for the s3 bundle backend")
		}
	default:
		add("bundles.backend must be %q, %q or %q, got %q", BackendGateway, BackendOCI, BackendS3, c.Bundles.Backend)
	}

	if c.Fetch.Attempts < 1 {
		add("fetch.attempts must be at least 1, got %d", c.Fetch.Attempts)
	}
	if c.Fetch.AttemptTimeout <= 0 {
		add("fetch.attempt_timeout must be positive")
	}
	if c.Fetch.InitialInterval <= 0 || c.Fetch.MaxInterval < c.Fetch.InitialInterval {
		add("fetch intervals must satisfy 0 < initial_interval <= max_interval")
	}
	if c.Fetch.MaxBundleSize <= 0 {
		add("fetch.max_bundle_size must be positive")
	}
	if c.Cache.Size < 0 || (c.Cache.Size > 0 && c.Cache.TTL <= 0) {
		add("cache.size must not be negative and an enabled cache needs a positive ttl")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func (e EndpointConfig) validate(section string) []error {
	var errs []error
	if err := httpval.ValidateEndpointURL(e.URL); err != nil {
		errs = append(errs, fmt.Errorf("%s.url: %w", section, err))
	}
	for name, value := range e.Headers {
		if err := httpval.ValidateHeader(name, value); err != nil {
			errs = append(errs, fmt.Errorf("%s.headers: %w", section, err))
		}
	}
	return errs
}
