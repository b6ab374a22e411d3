// Package unfiled computes read-only counters of recently sent mail that
// has not been filed to any case. It is a plain paginated scan over sent
// envelopes matched against the filed-email cache; there is no state
// machine and nothing here mutates.
package unfiled

import (
	"context"
	"fmt"
	"time"

	"github.com/nhle/mail-filing/internal/filedcache"
	"github.com/nhle/mail-filing/internal/mailhost"
)

// EnvelopeSource supplies pages of recent sent envelopes.
type EnvelopeSource interface {
	FetchRecentEnvelopes(
		ctx context.Context,
		since time.Time,
		offset, limit int,
	) ([]mailhost.Envelope, bool, error)
}

// CacheReader is the read side of the filed-email cache.
type CacheReader interface {
	Lookup(ctx context.Context, conversationID, subject string) *filedcache.Entry
}

// Counts summarizes filing coverage of recently sent mail.
type Counts struct {
	Total   int
	Filed   int
	Unfiled int
}

// Counter computes unfiled-mail counts.
type Counter struct {
	source EnvelopeSource
	cache  CacheReader
}

// NewCounter creates a Counter over the given envelope source and cache.
func NewCounter(source EnvelopeSource, cache CacheReader) *Counter {
	return &Counter{source: source, cache: cache}
}

// Count scans sent mail newer than window and reports how much of it has a
// filed-email cache entry. pageSize bounds each scan request.
func (c *Counter) Count(
	ctx context.Context, window time.Duration, pageSize int,
) (Counts, error) {
	if pageSize <= 0 {
		pageSize = 50
	}
	since := time.Now().Add(-window)

	var counts Counts
	offset := 0
	for {
		envelopes, hasMore, err := c.source.FetchRecentEnvelopes(
			ctx, since, offset, pageSize,
		)
		if err != nil {
			return Counts{}, fmt.Errorf("scanning sent mail: %w", err)
		}

		for _, env := range envelopes {
			counts.Total++
			if c.cache.Lookup(ctx, env.ConversationID, env.Subject) != nil {
				counts.Filed++
			} else {
				counts.Unfiled++
			}
		}

		if !hasMore {
			break
		}
		offset += pageSize
	}

	return counts, nil
}
