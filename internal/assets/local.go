package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalBackend keeps assets in two directories under a root.
type LocalBackend struct {
	root string
}

// NewLocalBackend creates the originals and thumbnails directories under root.
func NewLocalBackend(root string) (*LocalBackend, error) {
	for _, kind := range []Kind{KindOriginal, KindThumbnail} {
		if err := os.MkdirAll(filepath.Join(root, dirFor(kind)), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create asset directory: %w", err)
		}
	}
	return &LocalBackend{root: root}, nil
}

func (b *LocalBackend) path(kind Kind, name string) string {
	return filepath.Join(b.root, dirFor(kind), filepath.Base(name))
}

// Put writes to a temp file in the target directory and renames it into
// place, so a reader never sees a partial file.
func (b *LocalBackend) Put(ctx context.Context, kind Kind, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst := b.path(kind, name)
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}

func (b *LocalBackend) Get(ctx context.Context, kind Kind, name string) ([]byte, error) {
	data, err := os.ReadFile(b.path(kind, name))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

func (b *LocalBackend) Remove(ctx context.Context, kind Kind, name string) error {
	if err := os.Remove(b.path(kind, name)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
