// Package identity resolves the set of candidate keys that may identify
// the message currently being sent. A message has no single stable identity
// on the client: the host-assigned identifier may not exist yet, the
// conversation id only exists for replies, and a brand-new composition has
// nothing message-specific at all. The resolver produces every plausible
// identifier, ordered from most to least reliable, so that the intent
// lookup can scan them in preference order.
package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/mail-filing/internal/mailhost"
)

// Static fallback keys, used only when no message-specific identifier is
// known (e.g., an intent recorded against a brand-new composition). Their
// values are shared with the compose-time intent writer and must not change.
const (
	FallbackKeyCurrent = "draft-current"
	FallbackKeyPending = "draft-pending"
)

// fetchIDTimeout bounds the asynchronous identifier fetch. The host call is
// optional; waiting longer than this would delay the whole pipeline for an
// identifier the provisional keys already cover.
const fetchIDTimeout = 5 * time.Second

// FallbackKeys returns the static fallback keys in preference order.
func FallbackKeys() []string {
	return []string{FallbackKeyCurrent, FallbackKeyPending}
}

// IsFallbackKey reports whether key is one of the static fallback keys.
func IsFallbackKey(key string) bool {
	return key == FallbackKeyCurrent || key == FallbackKeyPending
}

// Resolver produces candidate key sets for in-flight messages.
type Resolver struct {
	fetchTimeout time.Duration
	log          *logrus.Entry
}

// NewResolver creates a Resolver with the default fetch timeout.
func NewResolver() *Resolver {
	return &Resolver{
		fetchTimeout: fetchIDTimeout,
		log:          logrus.WithField("pkg", "identity"),
	}
}

// ResolveCandidateKeys returns the ordered, deduplicated candidate keys for
// msg: the direct identifier, the identifier obtained from the host, the
// conversation- and creation-time-derived provisional keys, and finally the
// two static fallbacks. It never fails; in the worst case only the
// fallbacks are returned.
func (r *Resolver) ResolveCandidateKeys(
	ctx context.Context, msg mailhost.Message,
) []string {
	var keys []string

	keys = append(keys, msg.ItemID())
	keys = append(keys, r.fetchItemID(ctx, msg))

	if conv := msg.ConversationID(); conv != "" {
		keys = append(keys, "conv:"+conv)
	}
	if composed := msg.ComposedAt(); !composed.IsZero() {
		keys = append(keys, fmt.Sprintf("composed:%d", composed.Unix()))
	}

	keys = append(keys, FallbackKeyCurrent, FallbackKeyPending)

	return dedup(keys)
}

// fetchItemID invokes the host's asynchronous identifier fetch under a
// bounded timeout. Failure or expiry is logged and yields "". An expired
// fetch is not aborted; the resolver just stops waiting on it.
func (r *Resolver) fetchItemID(
	ctx context.Context, msg mailhost.Message,
) string {
	fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	type result struct {
		id  string
		err error
	}
	ch := make(chan result, 1)

	go func() {
		id, err := msg.FetchItemID(fetchCtx)
		ch <- result{id: id, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			r.log.WithError(res.err).Debug("item id fetch failed, continuing without")
			return ""
		}
		return res.id
	case <-fetchCtx.Done():
		r.log.Debug("item id fetch timed out, continuing without")
		return ""
	}
}

// dedup removes empty strings and duplicates while preserving insertion
// order.
func dedup(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))

	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}

	return out
}
