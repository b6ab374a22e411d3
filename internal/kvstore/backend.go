// Package kvstore provides the replicated key-value storage used to persist
// filing intents and the filed-email cache. Values are written redundantly
// to two backends with independent availability; reads fall back from the
// primary to the secondary so that either backend being down degrades
// replication without surfacing errors to callers.
package kvstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Backend.Get when no value is stored under the
// requested key. An empty stored value is not treated as absent.
var ErrNotFound = errors.New("kvstore: key not found")

// Backend is a single physical key-value store. The two concrete backends
// (the local SQLite database and the settings file) have very different
// native APIs; this interface hides that asymmetry from the Fallback store.
type Backend interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes the value stored under key. Removing a missing key
	// is not an error.
	Remove(ctx context.Context, key string) error
}
