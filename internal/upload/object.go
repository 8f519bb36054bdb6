// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package upload

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/jeranaias/chatdeck/internal/logging"
	"github.com/jeranaias/chatdeck/internal/model"
)

// DefaultURLExpiry is how long presigned attachment URLs stay valid.
const DefaultURLExpiry = 24 * time.Hour

// ObjectConfig configures an S3-compatible bucket.
type ObjectConfig struct {
	Endpoint  string        `toml:"endpoint" json:"endpoint"`
	AccessKey string        `toml:"access_key" json:"access_key"`
	SecretKey string        `toml:"secret_key" json:"secret_key"`
	Bucket    string        `toml:"bucket" json:"bucket"`
	Region    string        `toml:"region" json:"region"`
	UseSSL    bool          `toml:"use_ssl" json:"use_ssl"`
	URLExpiry time.Duration `toml:"url_expiry" json:"url_expiry"`
}

// ObjectUploader stores files in an S3-compatible bucket.
type ObjectUploader struct {
	client *minio.Client
	bucket string
	expiry time.Duration
	log    *zap.Logger
}

// NewObjectUploader connects to the bucket described by cfg. It does not
// contact the server; call EnsureBucket for that.
func NewObjectUploader(cfg ObjectConfig, log *zap.Logger) (*ObjectUploader, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("object storage requires an endpoint and a bucket")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}
	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = DefaultURLExpiry
	}
	return &ObjectUploader{client: client, bucket: cfg.Bucket, expiry: expiry, log: logging.OrNop(log).Named("objects")}, nil
}

// EnsureBucket creates the bucket when it does not exist.
func (u *ObjectUploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", u.bucket, err)
	}
	if exists {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", u.bucket, err)
	}
	u.log.Info("created bucket", zap.String("bucket", u.bucket))
	return nil
}

// Upload implements Uploader. Objects are keyed by a random id so names
// never collide.
func (u *ObjectUploader) Upload(ctx context.Context, f File) (model.Attachment, error) {
	id := uuid.NewString()
	key := id + strings.ToLower(filepath.Ext(f.Name))

	_, err := u.client.PutObject(ctx, u.bucket, key, bytes.NewReader(f.Data), int64(len(f.Data)),
		minio.PutObjectOptions{ContentType: f.Type})
	if err != nil {
		return model.Attachment{}, fmt.Errorf("store %s: %w", f.Name, err)
	}

	link, err := u.client.PresignedGetObject(ctx, u.bucket, key, u.expiry, nil)
	if err != nil {
		return model.Attachment{}, fmt.Errorf("presign %s: %w", f.Name, err)
	}

	u.log.Debug("object stored", zap.String("key", key), zap.Int64("size", f.Size))
	return model.Attachment{ID: id, Name: f.Name, Type: f.Type, URL: link.String(), Size: int64(len(f.Data))}, nil
}
