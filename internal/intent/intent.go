// Package intent stores and resolves filing intents: instructions recorded
// at compose time that a message should be filed into a specific case when
// it is sent. Intents are keyed by whatever identifier the message had when
// the intent was recorded, which may be a provisional fallback key; the
// repository can migrate such an intent to a durable key once one is known.
package intent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nhle/mail-filing/internal/identity"
	"github.com/nhle/mail-filing/internal/kvstore"
)

// keyPrefix namespaces intent records in the key-value store.
const keyPrefix = "intent:"

// FilingIntent records that a message should be filed to a case on send.
type FilingIntent struct {
	// CaseID is the remote case to file into. An intent without one is
	// malformed and ignored during resolution.
	CaseID string `json:"case_id"`

	// AutoFileOnSend controls whether the send-time pipeline acts on this
	// intent. When false the intent exists only for manual filing.
	AutoFileOnSend bool `json:"auto_file_on_send"`

	// BaseCaseID optionally records the case the original message of the
	// conversation was filed under.
	BaseCaseID string `json:"base_case_id,omitempty"`

	// BaseEmailDocID optionally records the document holding the original
	// message of the conversation.
	BaseEmailDocID string `json:"base_email_doc_id,omitempty"`

	// ResolvedUnderKey is the candidate key the intent was found under.
	// It is set during resolution, not persisted.
	ResolvedUnderKey string `json:"-"`
}

// Repository reads and writes filing intents in the fallback store.
type Repository struct {
	store *kvstore.Fallback
	log   *logrus.Entry
}

// NewRepository creates a Repository over the given fallback store.
func NewRepository(store *kvstore.Fallback) *Repository {
	return &Repository{
		store: store,
		log:   logrus.WithField("pkg", "intent"),
	}
}

// Resolve scans the candidate keys in order and returns the first
// well-formed intent with a non-empty case id, or nil when none of the keys
// yields one. Records are never merged across keys.
func (r *Repository) Resolve(
	ctx context.Context, keys []string,
) *FilingIntent {
	for _, key := range keys {
		raw, ok := r.store.Get(ctx, keyPrefix+key)
		if !ok {
			continue
		}

		var in FilingIntent
		if err := json.Unmarshal([]byte(raw), &in); err != nil {
			r.log.WithField("key", key).WithError(err).
				Warn("discarding malformed intent record")
			continue
		}
		if strings.TrimSpace(in.CaseID) == "" {
			continue
		}

		in.ResolvedUnderKey = key
		return &in
	}

	return nil
}

// Save records an intent under the given candidate key.
func (r *Repository) Save(ctx context.Context, key string, in FilingIntent) {
	raw, err := json.Marshal(in)
	if err != nil {
		r.log.WithField("key", key).WithError(err).
			Warn("failed to encode intent record")
		return
	}

	r.store.Set(ctx, keyPrefix+key, string(raw))
}

// Migrate upgrades an intent recorded under a static fallback key to a
// durable key. It is a no-op unless fromKey is a fallback key and toKey is
// not. The intent body is written unchanged under toKey, then removed from
// fromKey. Migration is best-effort: resolution re-scans every candidate
// key on the next send, so a failed or partial migration costs nothing but
// a slower lookup.
func (r *Repository) Migrate(
	ctx context.Context, in FilingIntent, fromKey, toKey string,
) {
	if !identity.IsFallbackKey(fromKey) || identity.IsFallbackKey(toKey) {
		return
	}
	if toKey == "" || fromKey == toKey {
		return
	}

	raw, err := json.Marshal(in)
	if err != nil {
		r.log.WithField("from", fromKey).WithError(err).
			Warn("failed to encode intent for migration")
		return
	}

	r.store.Set(ctx, keyPrefix+toKey, string(raw))
	r.store.Remove(ctx, keyPrefix+fromKey)

	r.log.WithFields(logrus.Fields{
		"from": fromKey,
		"to":   toKey,
	}).Debug("migrated filing intent to durable key")
}
