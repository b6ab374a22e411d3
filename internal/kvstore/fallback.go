package kvstore

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

// Fallback replicates reads and writes across a primary and a secondary
// backend. Reads are deterministic: the primary is consulted first and the
// first successful hit wins. Writes are best-effort on both backends; a
// partial write (one backend succeeded, one failed) is an accepted, silent
// outcome. No backend error ever reaches the caller.
type Fallback struct {
	primary   Backend
	secondary Backend
	log       *logrus.Entry
}

// NewFallback creates a Fallback store over the given backends. Either
// backend may be nil, in which case only the other is used.
func NewFallback(primary, secondary Backend) *Fallback {
	return &Fallback{
		primary:   primary,
		secondary: secondary,
		log:       logrus.WithField("pkg", "kvstore"),
	}
}

// Get returns the value stored under key and true, or "" and false when the
// key is absent from both backends. Backend failures are logged and treated
// as absent.
func (f *Fallback) Get(ctx context.Context, key string) (string, bool) {
	for _, b := range []Backend{f.primary, f.secondary} {
		if b == nil {
			continue
		}

		value, err := b.Get(ctx, key)
		if err == nil {
			return value, true
		}
		if !errors.Is(err, ErrNotFound) {
			f.log.WithField("key", key).WithError(err).
				Warn("backend read failed, falling back")
		}
	}

	return "", false
}

// Set writes value under key to both backends. Individual failures are
// logged and otherwise ignored; Set returns once both attempts have been
// made.
func (f *Fallback) Set(ctx context.Context, key, value string) {
	for _, b := range []Backend{f.primary, f.secondary} {
		if b == nil {
			continue
		}

		if err := b.Set(ctx, key, value); err != nil {
			f.log.WithField("key", key).WithError(err).
				Warn("backend write failed")
		}
	}
}

// Remove deletes key from whichever backends are available, with the same
// best-effort semantics as Set.
func (f *Fallback) Remove(ctx context.Context, key string) {
	for _, b := range []Backend{f.primary, f.secondary} {
		if b == nil {
			continue
		}

		if err := b.Remove(ctx, key); err != nil {
			f.log.WithField("key", key).WithError(err).
				Warn("backend remove failed")
		}
	}
}
