// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package s3 reads skill bundles from an S3-compatible object store. Each
// bundle is stored as the object {prefix}/{bundleId}.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/stacklok/toolhive-skills/bundle"
	"github.com/stacklok/toolhive-skills/httperr"
)

// DefaultRegion is used when Config.Region is empty.
const DefaultRegion = "us-east-1"

// Config describes the bucket holding bundles.
type Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Store is a bundle.Store backed by minio-go.
type Store struct {
	client  *minio.Client
	bucket  string
	prefix  string
	maxSize int64
}

var _ bundle.Store = (*Store)(nil)

// New validates cfg and returns a Store. Credentials may be left empty for
// anonymous access to public buckets.
func New(cfg Config) (*Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("s3 endpoint is required")
	}
	if strings.Contains(endpoint, "://") {
		return nil, fmt.Errorf("s3 endpoint must be host[:port] without a scheme: %s", endpoint)
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if (access == "") != (secret == "") {
		return nil, errors.New("s3 access key and secret key must be set together")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = DefaultRegion
	}

	// Empty static credentials make minio sign requests anonymously.
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &Store{
		client:  client,
		bucket:  bucket,
		prefix:  strings.Trim(strings.TrimSpace(cfg.Prefix), "/"),
		maxSize: bundle.DefaultMaxBundleSize,
	}, nil
}

// Get reads the bundle object. Missing objects and buckets yield an error
// matching bundle.ErrBundleNotFound; other S3 errors carry their HTTP status.
func (s *Store) Get(ctx context.Context, bundleID string) ([]byte, string, error) {
	bundleID = strings.TrimSpace(bundleID)
	if bundleID == "" || strings.Contains(bundleID, "..") {
		return nil, "", httperr.WithCode(fmt.Errorf("invalid bundle id %q", bundleID), http.StatusBadRequest)
	}

	key := s.objectKey(bundleID)
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", s.mapError(key, err)
	}
	defer func() { _ = obj.Close() }()

	info, err := obj.Stat()
	if err != nil {
		return nil, "", s.mapError(key, err)
	}
	if info.Size > s.maxSize {
		return nil, "", httperr.WithCode(
			fmt.Errorf("object %s is %d bytes, limit is %d", key, info.Size, s.maxSize),
			http.StatusRequestEntityTooLarge)
	}

	data, err := io.ReadAll(io.LimitReader(obj, s.maxSize+1))
	if err != nil {
		return nil, "", s.mapError(key, err)
	}
	return data, info.ContentType, nil
}

func (s *Store) objectKey(bundleID string) string {
	if s.prefix == "" {
		return bundleID
	}
	return s.prefix + "/" + bundleID
}

func (s *Store) mapError(key string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket":
		return fmt.Errorf("%w: s3://%s/%s", bundle.ErrBundleNotFound, s.bucket, key)
	case resp.StatusCode != 0:
		return httperr.WithCode(fmt.Errorf("reading s3://%s/%s: %w", s.bucket, key, err), resp.StatusCode)
	default:
		return fmt.Errorf("reading s3://%s/%s: %w", s.bucket, key, err)
	}
}
