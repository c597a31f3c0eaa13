package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage keeps export artifacts on the local filesystem under a
// single base directory. Callers pass paths relative to that base; anything
// escaping it is rejected.
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage creates the base directory if needed.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./exports"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir %s: %w", baseDir, err)
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

// Save writes data at the relative path and returns that path.
func (s *LocalStorage) Save(name string, data []byte) (string, error) {
	abs, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("prepare dir for %s: %w", name, err)
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return name, nil
}

// Open returns a read handle for a stored file.
func (s *LocalStorage) Open(name string) (*os.File, error) {
	abs, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return f, nil
}

// Delete removes a stored file. Missing files are not an error.
func (s *LocalStorage) Delete(name string) error {
	abs, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// CleanupOlderThan deletes every stored file whose mtime predates now-ttl
// and reports the relative paths it removed.
func (s *LocalStorage) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-ttl)
	var removed []string

	walk := func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
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
		if rel, relErr := filepath.Rel(s.baseDir, path); relErr == nil {
			removed = append(removed, rel)
		} else {
			removed = append(removed, path)
		}
		return nil
	}

	if err := filepath.WalkDir(s.baseDir, walk); err != nil {
		return nil, fmt.Errorf("sweep %s: %w", s.baseDir, err)
	}
	return removed, nil
}

func (s *LocalStorage) resolve(name string) (string, error) {
	cleaned := filepath.Clean("/" + name)
	if strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid storage path %q", name)
	}
	return filepath.Join(s.baseDir, cleaned), nil
}
