package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DirStore serves keys from a local directory laid out like the bucket
// (_next/static, public, env).
type DirStore struct {
	root string
}

func NewDirStore(root string) *DirStore {
	return &DirStore{root: root}
}

func (s *DirStore) Get(_ context.Context, key string) (*Object, error) {
	const op = "assets.DirStore.Get"

	key, err := KeyFromPath(key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	f, err := os.Open(filepath.Join(s.root, filepath.FromSlash(key)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %s: %w", op, key, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: open: %w", op, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: stat: %w", op, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %s: %w", op, key, ErrNotFound)
	}

	return &Object{
		Body:          f,
		ContentType:   contentTypeFor(key),
		ContentLength: info.Size(),
		LastModified:  info.ModTime(),
	}, nil
}
