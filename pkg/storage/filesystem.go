package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrInvalidPath is returned for names that would resolve outside the storage root.
var ErrInvalidPath = errors.New("storage: path escapes root")

// LocalStorage keeps rendered exports on the local disk.
type LocalStorage struct {
	root string
}

// NewLocalStorage creates root when missing.
func NewLocalStorage(root string) (*LocalStorage, error) {
	if root == "" {
		root = "./exports"
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve export root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create export root: %w", err)
	}
	return &LocalStorage{root: abs}, nil
}

// Save writes data under name through a temporary file so readers never see a
// partial export. It returns the stored relative name.
func (s *LocalStorage) Save(name string, data []byte) (string, error) {
	path, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare export directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return "", fmt.Errorf("create temp export: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close export: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("publish export: %w", err)
	}
	return filepath.ToSlash(name), nil
}

// Open returns a read handle; the caller closes it.
func (s *LocalStorage) Open(name string) (*os.File, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	return file, nil
}

// Delete removes name. Missing files are not an error.
func (s *LocalStorage) Delete(name string) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete export: %w", err)
	}
	return nil
}

// CleanupOlderThan removes files last modified before now-ttl and returns their relative names.
func (s *LocalStorage) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-ttl)
	removed := []string{}
	err := filepath.WalkDir(s.root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		if rel, err := filepath.Rel(s.root, path); err == nil {
			removed = append(removed, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("cleanup exports: %w", err)
	}
	return removed, nil
}

func (s *LocalStorage) resolve(name string) (string, error) {
	if name == "" || filepath.IsAbs(name) {
		return "", ErrInvalidPath
	}
	path := filepath.Join(s.root, filepath.FromSlash(name))
	if path != s.root && !strings.HasPrefix(path, s.root+string(filepath.Separator)) {
		return "", ErrInvalidPath
	}
	return path, nil
}
