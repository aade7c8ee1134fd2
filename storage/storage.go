// Package storage keeps uploaded photo bytes in an S3-compatible bucket.
package storage

import (
	"context"
	"io"
	"strings"

	"github.com/brewbuds/server/config"
)

// Store puts and removes objects and knows their public URL.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// New returns a MinIO-backed store when an endpoint is configured and an
// in-memory store otherwise.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	if cfg.Endpoint == "" {
		return NewMemory(cfg.PublicURL), nil
	}
	return NewMinio(ctx, cfg)
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
