// Package storage is the on-device secure-store equivalent: a small
// key/value blob store holding tokens, the cached profile, order drafts and
// option caches. Callers treat it as best effort.
package storage

import "errors"

// ErrNotFound is returned by Get when no value exists for the key.
var ErrNotFound = errors.New("storage: key not found")

// Store is a flat key/value blob store.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Keys() ([]string, error)
}
