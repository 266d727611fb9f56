package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// FilesystemBackend stores objects as files under a root directory.
type FilesystemBackend struct {
	root   string
	logger zerolog.Logger
}

// NewFilesystemBackend creates the root directory if needed.
func NewFilesystemBackend(root string, logger zerolog.Logger) (*FilesystemBackend, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root cannot be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &FilesystemBackend{
		root:   root,
		logger: logger.With().Str("component", "storage").Str("backend", "filesystem").Logger(),
	}, nil
}

// Put writes to a temporary file in the target directory and renames it
// into place, so readers never see a partial object.
func (b *FilesystemBackend) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	p, err := ComputePath(b.root, key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write object: %w", err)
	}
	if size >= 0 && written != size {
		tmp.Close()
		return fmt.Errorf("size mismatch: expected %d bytes, wrote %d", size, written)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("failed to move object into place: %w", err)
	}

	b.logger.Debug().Str("key", key).Int64("size", written).Msg("stored object")
	return nil
}

// Get opens the file stored under key.
func (b *FilesystemBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := ComputePath(b.root, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	return f, nil
}

// Delete removes the file stored under key.
func (b *FilesystemBackend) Delete(ctx context.Context, key string) error {
	p, err := ComputePath(b.root, key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// Exists reports whether a file is stored under key.
func (b *FilesystemBackend) Exists(ctx context.Context, key string) (bool, error) {
	p, err := ComputePath(b.root, key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("failed to stat object: %w", err)
	}
}

// List walks the directory of prefix. Temporary upload files are skipped.
func (b *FilesystemBackend) List(ctx context.Context, prefix string, fn func(ObjectInfo) error) error {
	dir, err := ComputePath(b.root, prefix)
	if err != nil {
		return err
	}

	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		rel, err := filepath.Rel(b.root, p)
		if err != nil {
			return err
		}
		return fn(ObjectInfo{
			Key:          filepath.ToSlash(rel),
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
	})
	if err != nil {
		return fmt.Errorf("failed to list objects under %s: %w", prefix, err)
	}
	return nil
}

// Ensure FilesystemBackend implements Backend.
var _ Backend = (*FilesystemBackend)(nil)
