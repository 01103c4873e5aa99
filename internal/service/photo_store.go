package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// PhotoStore releases completion photos. Uploading and serving them happens elsewhere.
type PhotoStore interface {
	Release(ctx context.Context, path string) error
}

// NopPhotoStore is used when photos are not kept by this process.
type NopPhotoStore struct{}

func (NopPhotoStore) Release(context.Context, string) error { return nil }

// DirPhotoStore removes photos stored below a root directory.
type DirPhotoStore struct {
	Root string
}

func (s DirPhotoStore) Release(_ context.Context, path string) error {
	full := filepath.Join(s.Root, filepath.Clean("/"+path))
	if rel, err := filepath.Rel(s.Root, full); err != nil || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("photo %q escapes %q", path, s.Root)
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove photo: %w", err)
	}
	return nil
}
