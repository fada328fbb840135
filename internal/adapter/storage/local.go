package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/semmidev/mudvault/internal/domain"
)

// LocalStorage keeps backups in folders under a base directory, typically a
// mounted network share. File IDs are paths relative to the base.
type LocalStorage struct {
	basePath string
}

func NewLocal(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

func (l *LocalStorage) Upload(ctx context.Context, localPath, folder, name string) (string, error) {
	id := filepath.Join(folder, name)
	destPath := l.GetPath(id)

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return "", classifyLocal(fmt.Errorf("failed to create folder: %w", err))
	}

	source, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open source: %w", err)
	}
	defer source.Close()

	// Write aside and rename so a listing never sees a half-written backup.
	tmp, err := os.CreateTemp(filepath.Dir(destPath), "."+name+".*")
	if err != nil {
		return "", classifyLocal(fmt.Errorf("failed to create dest: %w", err))
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.ReadFrom(source); err != nil {
		tmp.Close()
		return "", classifyLocal(fmt.Errorf("failed to copy: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return "", classifyLocal(fmt.Errorf("failed to copy: %w", err))
	}
	if err := os.Rename(tmp.Name(), destPath); err != nil {
		return "", classifyLocal(fmt.Errorf("failed to move into place: %w", err))
	}

	return id, nil
}

func (l *LocalStorage) List(ctx context.Context, folder, prefix string) ([]domain.RemoteFile, error) {
	entries, err := os.ReadDir(l.GetPath(folder))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, classifyLocal(fmt.Errorf("failed to read directory: %w", err))
	}

	var files []domain.RemoteFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to get file info for %s: %w", entry.Name(), err)
		}
		files = append(files, domain.RemoteFile{
			ID:        filepath.Join(folder, entry.Name()),
			Name:      entry.Name(),
			CreatedAt: info.ModTime(),
		})
	}

	return files, nil
}

func (l *LocalStorage) Delete(ctx context.Context, id string) error {
	if err := os.Remove(l.GetPath(id)); err != nil {
		return classifyLocal(fmt.Errorf("failed to delete file: %w", err))
	}
	return nil
}

func (l *LocalStorage) GetPath(id string) string {
	return filepath.Join(l.basePath, id)
}

func classifyLocal(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %w", domain.ErrAuth, err)
	default:
		return err
	}
}
