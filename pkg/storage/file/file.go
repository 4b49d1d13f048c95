// Package file provides a directory-backed implementation of the storage
// interface. Each record is one file; writes go to a temporary file that is
// renamed over the target, so readers only ever see complete records.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/goclaw/holomem/pkg/storage"
)

const (
	recordExt  = ".rec"
	tempPrefix = ".tmp-"
)

// Config holds configuration for FileStorage.
type Config struct {
	Dir string
	// Sync fsyncs each record and its directory before Put returns.
	Sync bool
}

// FileStorage implements the Store interface over a directory of files.
type FileStorage struct {
	mu     sync.RWMutex
	config *Config
}

// NewFileStorage creates the directory if needed and returns a store over it.
func NewFileStorage(config *Config) (*FileStorage, error) {
	if config.Dir == "" {
		return nil, &storage.StorageUnavailableError{Cause: errors.New("empty directory")}
	}
	if err := os.MkdirAll(config.Dir, 0o755); err != nil {
		return nil, &storage.StorageUnavailableError{Cause: err}
	}
	info, err := os.Stat(config.Dir)
	if err != nil {
		return nil, &storage.StorageUnavailableError{Cause: err}
	}
	if !info.IsDir() {
		return nil, &storage.StorageUnavailableError{Cause: fmt.Errorf("%s is not a directory", config.Dir)}
	}
	return &FileStorage{config: config}, nil
}

func (f *FileStorage) path(key string) (string, error) {
	if key == "" {
		return "", &storage.InvalidKeyError{Key: key}
	}
	return filepath.Join(f.config.Dir, url.PathEscape(key)+recordExt), nil
}

// Put atomically replaces the record under key.
func (f *FileStorage) Put(ctx context.Context, key string, value []byte) error {
	target, err := f.path(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.writeAtomic(target, value); err != nil {
		return &storage.WriteError{Key: key, Cause: err}
	}
	return nil
}

func (f *FileStorage) writeAtomic(target string, value []byte) error {
	tmp, err := os.CreateTemp(f.config.Dir, tempPrefix+"*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return err
	}
	if f.config.Sync {
		if err := tmp.Sync(); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, target); err != nil {
		return err
	}
	committed = true

	if f.config.Sync {
		return syncDir(f.config.Dir)
	}
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

// Get reads the record under key.
func (f *FileStorage) Get(ctx context.Context, key string) ([]byte, error) {
	target, err := f.path(key)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := os.ReadFile(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &storage.NotFoundError{Key: key}
		}
		return nil, &storage.StorageUnavailableError{Cause: err}
	}
	return data, nil
}

// Delete removes the record under key.
func (f *FileStorage) Delete(ctx context.Context, key string) error {
	target, err := f.path(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &storage.WriteError{Key: key, Cause: err}
	}
	return nil
}

// Keys lists every key with the given prefix in lexical order. Leftover
// temporary files from interrupted writes are ignored.
func (f *FileStorage) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	entries, err := os.ReadDir(f.config.Dir)
	if err != nil {
		return nil, &storage.StorageUnavailableError{Cause: err}
	}

	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, tempPrefix) || !strings.HasSuffix(name, recordExt) {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, recordExt))
		if err != nil {
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close is a no-op; every Put is already on disk.
func (f *FileStorage) Close() error {
	return nil
}
