package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStorage stores blobs on the local filesystem under a base directory.
// Storage paths use forward slashes and are mapped onto the OS separator.
type LocalStorage struct {
	base string
}

func NewLocalStorage(base string) (*LocalStorage, error) {
	err := os.MkdirAll(base, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{base: base}, nil
}

func (l *LocalStorage) fullPath(path string) string {
	return filepath.Join(l.base, filepath.FromSlash(path))
}

func (l *LocalStorage) Save(path string, r io.Reader, size int64) error {
	full := l.fullPath(path)

	err := os.MkdirAll(filepath.Dir(full), 0755)
	if err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	_, err = io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(full)
		return fmt.Errorf("failed to write file: %w", err)
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	return nil
}

func (l *LocalStorage) ReadAll(path string) ([]byte, error) {
	data, err := os.ReadFile(l.fullPath(path))
	if os.IsNotExist(err) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

func (l *LocalStorage) Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(l.fullPath(path))
	if os.IsNotExist(err) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

func (l *LocalStorage) OpenRange(path string, start, end int64) (io.ReadCloser, error) {
	f, err := os.Open(l.fullPath(path))
	if os.IsNotExist(err) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	_, err = f.Seek(start, io.SeekStart)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to seek: %w", err)
	}

	return &limitedReadCloser{
		Reader: io.LimitReader(f, end-start+1),
		closer: f,
	}, nil
}

// Delete is idempotent: removing a non-existent path is not an error.
func (l *LocalStorage) Delete(path string) error {
	err := os.Remove(l.fullPath(path))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (l *LocalStorage) Rename(oldPath, newPath string) error {
	dst := l.fullPath(newPath)

	err := os.MkdirAll(filepath.Dir(dst), 0755)
	if err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	err = os.Rename(l.fullPath(oldPath), dst)
	if os.IsNotExist(err) {
		return ErrNotExist
	}
	if err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

type limitedReadCloser struct {
	io.Reader
	closer io.Closer
}

func (l *limitedReadCloser) Close() error {
	return l.closer.Close()
}
