// Package cache provides the local key-value store the loader falls back
// to when the remote CRM API is unreachable. Values are JSON strings,
// mirroring the localStorage layout used by the browser UI.
package cache

import "errors"

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("cache: key not found")

// Store is a string key-value store. Implementations must be safe for
// concurrent use; there is no cross-process locking, last writer wins.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(key string) (string, error)
	// Set stores value under key, replacing any previous value.
	Set(key, value string) error
	// Keys returns every stored key.
	Keys() ([]string, error)
	// Close releases any resources held by the store.
	Close() error
}
