// Package storage keeps uploaded images in object storage (S3-compatible)
// or in a local directory.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophsocial/internal/server/config"
	"github.com/google/uuid"
)

// ErrInvalidKey is returned for keys that could escape the storage root.
var ErrInvalidKey = errors.New("invalid storage key")

// Location tells the caller how to serve a stored object: either from a
// local file Path or by redirecting to URL.
type Location struct {
	Path string
	URL  string
}

type Storage interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Delete(ctx context.Context, key string) error
	Locate(ctx context.Context, key string) (Location, error)
}

// New builds the backend selected by cfg.StorageBackend.
func New(ctx context.Context, cfg *config.Config) (Storage, error) {
	switch cfg.StorageBackend {
	case config.StorageS3:
		return NewS3Storage(ctx, cfg)
	case config.StorageLocal, "":
		return NewLocalStorage(cfg.UploadDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

var timeNow = time.Now

// NewKey returns a fresh date-partitioned key under prefix, e.g.
// "posts/2024/5/1/<uuid>.jpg".
func NewKey(prefix, ext string) string {
	d := timeNow()
	return fmt.Sprintf("%s/%d/%d/%d/%v%s", prefix, d.Year(), d.Month(), d.Day(), uuid.New(), ext)
}

// CleanKey validates a key taken from a request path.
func CleanKey(key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" || strings.Contains(key, `\`) {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned != key || cleaned == "." || strings.HasPrefix(cleaned, "../") || cleaned == ".." {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

// PublicURL is the path under which the REST layer serves key.
func PublicURL(key string) string {
	if key == "" {
		return ""
	}
	return "/uploads/" + key
}
