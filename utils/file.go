// utils/file.go
package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalAssets serves product archives from a directory on disk.
type LocalAssets struct {
	Dir string
}

// NewLocalAssets returns a source rooted at dir (default "downloads" under the
// working directory). The directory does not have to exist yet.
func NewLocalAssets(dir string) *LocalAssets {
	if dir == "" {
		dir = "downloads"
	}
	return &LocalAssets{Dir: dir}
}

// Path returns where the archive for productID is expected.
func (l *LocalAssets) Path(productID string) (string, error) {
	name, err := ArchiveName(productID)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.Dir, name), nil
}

// Open returns the archive and its size. A missing file is ErrAssetNotFound.
func (l *LocalAssets) Open(ctx context.Context, productID string) (io.ReadCloser, int64, error) {
	_ = ctx
	path, err := l.Path(productID)
	if err != nil {
		return nil, 0, err
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, 0, fmt.Errorf("%w: %s", ErrAssetNotFound, path)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, 0, fmt.Errorf("%w: %s is a directory", ErrAssetNotFound, path)
	}
	return f, info.Size(), nil
}
