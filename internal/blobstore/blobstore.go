// Package blobstore uploads generated audio to either the local filesystem
// or an S3-compatible object store.
package blobstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/econbrief/econbrief/internal/config"
)

// ContentTypeMP3 is the content type of synthesized speech.
const ContentTypeMP3 = "audio/mpeg"

// StoredFile identifies an uploaded object.
type StoredFile struct {
	StorageKey string `json:"storageKey"`
	PublicURL  string `json:"publicUrl"`
}

// Uploader stores bytes under a key and reports where they can be fetched.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (StoredFile, error)
}

// New returns the Uploader selected by cfg.Mode.
func New(cfg config.StorageConfig) (Uploader, error) {
	switch cfg.Mode {
	case config.ModeLocal:
		return NewLocalStore(cfg.LocalDir, cfg.LocalPublicPath, cfg.PublicBaseURL), nil
	case config.ModeS3:
		return NewS3Store(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported storage mode: %s", cfg.Mode)
	}
}

// normalizeKey strips leading slashes so keys never address the root.
func normalizeKey(key string) string {
	return strings.TrimLeft(key, "/")
}
