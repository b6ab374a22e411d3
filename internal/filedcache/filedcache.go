// Package filedcache records which conversations and subjects have already
// been filed, so that a resend or retry does not create a duplicate remote
// document. Entries are keyed by conversation id when one exists; a
// brand-new outgoing message has no conversation identity until after it
// is sent, so those fall back to a normalized-subject key.
package filedcache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/mail-filing/internal/kvstore"
)

const (
	convKeyPrefix = "filed:conv:"
	subjKeyPrefix = "filed:subj:"
)

// Entry records one filed email. Entries have no expiry.
type Entry struct {
	CaseID     string    `json:"case_id"`
	DocumentID string    `json:"document_id"`
	Subject    string    `json:"subject"`
	Timestamp  time.Time `json:"timestamp"`
}

// Cache reads and writes filed-email entries in the fallback store.
type Cache struct {
	store *kvstore.Fallback
	log   *logrus.Entry
}

// New creates a Cache over the given fallback store.
func New(store *kvstore.Fallback) *Cache {
	return &Cache{
		store: store,
		log:   logrus.WithField("pkg", "filedcache"),
	}
}

// Record stores a filed-email entry under the conversation key when a
// conversation id is available, otherwise under the normalized-subject key.
func (c *Cache) Record(
	ctx context.Context,
	conversationID, subject, caseID, documentID string,
) {
	entry := Entry{
		CaseID:     caseID,
		DocumentID: documentID,
		Subject:    subject,
		Timestamp:  time.Now(),
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		c.log.WithError(err).Warn("failed to encode filed-email entry")
		return
	}

	c.store.Set(ctx, cacheKey(conversationID, subject), string(raw))
}

// Lookup returns the filed-email entry for the conversation or subject, or
// nil when nothing has been recorded. The conversation key is preferred;
// the subject key covers messages filed before they had a conversation
// identity.
func (c *Cache) Lookup(
	ctx context.Context, conversationID, subject string,
) *Entry {
	keys := []string{subjKeyPrefix + Normalize(subject)}
	if conversationID != "" {
		keys = []string{
			convKeyPrefix + conversationID,
			subjKeyPrefix + Normalize(subject),
		}
	}

	for _, key := range keys {
		raw, ok := c.store.Get(ctx, key)
		if !ok {
			continue
		}

		var entry Entry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			c.log.WithField("key", key).WithError(err).
				Warn("discarding malformed filed-email entry")
			continue
		}

		return &entry
	}

	return nil
}

// cacheKey selects the storage key for a filed email.
func cacheKey(conversationID, subject string) string {
	if conversationID != "" {
		return convKeyPrefix + conversationID
	}
	return subjKeyPrefix + Normalize(subject)
}

// Normalize lower-cases a subject and collapses runs of whitespace.
func Normalize(subject string) string {
	return strings.ToLower(strings.Join(strings.Fields(subject), " "))
}
