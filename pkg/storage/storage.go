// Package storage provides the durable record store abstraction used by the
// persistent memory tier. A store maps string keys to opaque byte records;
// every Put is atomic per key, so a reader never observes a half-written
// record.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// Store defines the interface for persistent record storage.
type Store interface {
	// Put writes value under key, replacing any previous record atomically.
	Put(ctx context.Context, key string, value []byte) error

	// Get returns the record stored under key or a *NotFoundError.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the record under key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys returns every key beginning with prefix, in lexical order.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases backend resources.
	Close() error
}

// NotFoundError indicates that the requested record was not found.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("record not found: %s", e.Key)
}

// StorageUnavailableError indicates that the storage backend is unavailable.
type StorageUnavailableError struct {
	Cause error
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable: %v", e.Cause)
}

func (e *StorageUnavailableError) Unwrap() error { return e.Cause }

// WriteError indicates that a record could not be durably written.
type WriteError struct {
	Key   string
	Cause error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Key, e.Cause)
}

func (e *WriteError) Unwrap() error { return e.Cause }

// InvalidKeyError indicates a key the backend cannot represent.
type InvalidKeyError struct {
	Key string
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid key: %q", e.Key)
}

// IsNotFound reports whether err is a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
