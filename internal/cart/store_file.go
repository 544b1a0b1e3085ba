package cart

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var _ Store = (*FileStore)(nil)

// FileStore keeps the cart as <dir>/shoppingCart.json.
type FileStore struct {
	path string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{path: filepath.Join(dir, StorageKey+".json")}
}

// NewFileFactory stores each session's cart under root/<sessionID>/.
func NewFileFactory(root string) StoreFactory {
	return func(sessionID string) Store {
		return NewFileStore(filepath.Join(root, filepath.Base(sessionID)))
	}
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(_ context.Context) ([]Item, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cart file: %w", err)
	}
	return Decode(data)
}

func (s *FileStore) Save(_ context.Context, items []Item) error {
	data, err := Encode(items)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create cart dir: %w", err)
	}
	return writeFileAtomic(s.path, data, 0o644)
}

// writeFileAtomic writes through a temp file in the target directory and
// renames it into place, so readers see either the old or the new cart.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".cart-*")
	if err != nil {
		return err
	}
	tmpPath := f.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Chmod(perm); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
