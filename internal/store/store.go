// Package store provides the small key-value stores the sync core persists
// state into: a session-scoped store that dies with the session, and a
// sqlite-backed store for the few flags that must survive restarts.
package store

import "errors"

var ErrNotFound = errors.New("key not found")

// KV is the injected key-value seam. Values are opaque JSON blobs; callers
// own (de)serialization.
type KV interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Clear() error
}
