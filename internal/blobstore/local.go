package blobstore

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/econbrief/econbrief/internal/retry"
)

var _ Uploader = (*LocalStore)(nil)

// LocalStore writes objects beneath a directory that the HTTP server
// exposes at PublicPath.
type LocalStore struct {
	dir        string
	publicPath string
	baseURL    string
}

// NewLocalStore creates a LocalStore. publicPath is normalized to a single
// leading slash and no trailing slash; baseURL loses its trailing slash.
func NewLocalStore(dir, publicPath, baseURL string) *LocalStore {
	return &LocalStore{
		dir:        dir,
		publicPath: "/" + strings.Trim(publicPath, "/"),
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// PublicPath is the URL path prefix under which uploads are served.
func (s *LocalStore) PublicPath() string {
	return s.publicPath
}

// Handler serves stored objects. Mount it at PublicPath.
func (s *LocalStore) Handler() http.Handler {
	return http.StripPrefix(s.publicPath, http.FileServer(http.Dir(s.dir)))
}

// Upload writes data to dir/key, creating parent directories as needed.
func (s *LocalStore) Upload(_ context.Context, key string, data []byte, _ string) (StoredFile, error) {
	safeKey := normalizeKey(key)
	cleaned := path.Clean(safeKey)
	if safeKey == "" || cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return StoredFile{}, retry.Permanent(fmt.Errorf("invalid storage key %q", key))
	}

	target := filepath.Join(s.dir, filepath.FromSlash(cleaned))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return StoredFile{}, fmt.Errorf("creating upload directory: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return StoredFile{}, fmt.Errorf("writing %q: %w", target, err)
	}

	return StoredFile{
		StorageKey: safeKey,
		PublicURL:  s.baseURL + s.publicPath + "/" + safeKey,
	}, nil
}
