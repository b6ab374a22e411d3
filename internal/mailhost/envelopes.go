package mailhost

import (
	"context"
	"fmt"
	"time"

	"github.com/emersion/go-imap/v2"
)

// Envelope holds the envelope data of a sent message, enough for the
// unfiled-mail counters to match it against the filed-email cache.
type Envelope struct {
	UID            uint32
	MessageID      string
	ConversationID string
	Subject        string
	Date           time.Time
}

// FetchRecentEnvelopes selects the sent folder and returns one page of
// envelopes for messages sent since the given time, newest last. hasMore
// reports whether further pages exist beyond offset+limit.
func (m *IMAPMailbox) FetchRecentEnvelopes(
	ctx context.Context,
	since time.Time,
	offset, limit int,
) ([]Envelope, bool, error) {
	client, err := m.Connect(ctx)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(m.folder, nil).Wait(); err != nil {
		return nil, false, fmt.Errorf("selecting %s: %w", m.folder, err)
	}

	searchData, err := client.UIDSearch(&imap.SearchCriteria{
		Since: since,
	}, nil).Wait()
	if err != nil {
		return nil, false, fmt.Errorf("searching %s: %w", m.folder, err)
	}

	uids := searchData.AllUIDs()
	if offset >= len(uids) {
		return nil, false, nil
	}

	end := len(uids)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	page := uids[offset:end]
	hasMore := end < len(uids)

	// The filed-email cache keys replies under their thread root, which the
	// IMAP envelope does not carry; the header section supplies the
	// References/In-Reply-To chain.
	headerSection := &imap.FetchItemBodySection{
		Specifier: imap.PartSpecifierHeader,
		Peek:      true,
	}
	fetchCmd := client.Fetch(imap.UIDSetNum(page...), &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{headerSection},
	})

	var envelopes []Envelope
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		env := Envelope{UID: uint32(buf.UID)}
		if buf.Envelope != nil {
			env.MessageID = buf.Envelope.MessageID
			env.Subject = buf.Envelope.Subject
			env.Date = buf.Envelope.Date
		}
		if raw := buf.FindBodySection(headerSection); raw != nil {
			env.ConversationID = conversationFromRawHeader(raw)
		}
		envelopes = append(envelopes, env)
	}

	if err := fetchCmd.Close(); err != nil {
		return envelopes, hasMore, fmt.Errorf("fetching envelopes: %w", err)
	}

	return envelopes, hasMore, nil
}
