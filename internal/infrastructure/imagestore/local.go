// Package imagestore хранит загруженные фото и размеченные результаты.
package imagestore

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"food-scale/internal/domain/port"
)

// LocalStore пишет файлы в каталог, который отдаётся как статика.
type LocalStore struct {
	dir       string
	urlPrefix string
}

// NewLocalStore создаёт каталог при необходимости.
func NewLocalStore(dir, urlPrefix string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir, urlPrefix: urlPrefix}, nil
}

// Dir возвращает каталог хранилища.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Save записывает файл и возвращает его URL-путь.
func (s *LocalStore) Save(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid file name %q", name)
	}

	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return path.Join(s.urlPrefix, name), nil
}

var _ port.ImageStore = (*LocalStore)(nil)
