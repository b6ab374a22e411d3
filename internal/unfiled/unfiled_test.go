package unfiled

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-filing/internal/filedcache"
	"github.com/nhle/mail-filing/internal/mailhost"
)

type fakeSource struct {
	envelopes []mailhost.Envelope
	err       error
	pages     int
}

func (f *fakeSource) FetchRecentEnvelopes(
	_ context.Context, _ time.Time, offset, limit int,
) ([]mailhost.Envelope, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	f.pages++

	if offset >= len(f.envelopes) {
		return nil, false, nil
	}
	end := offset + limit
	if end > len(f.envelopes) {
		end = len(f.envelopes)
	}
	return f.envelopes[offset:end], end < len(f.envelopes), nil
}

type fakeCacheReader struct {
	filed map[string]bool
}

func (f *fakeCacheReader) Lookup(
	_ context.Context, conversationID, subject string,
) *filedcache.Entry {
	if f.filed[conversationID] || f.filed[subject] {
		return &filedcache.Entry{}
	}
	return nil
}

func TestCount(t *testing.T) {
	source := &fakeSource{envelopes: []mailhost.Envelope{
		{MessageID: "m1", ConversationID: "c1", Subject: "filed one"},
		{MessageID: "m2", Subject: "not filed"},
		{MessageID: "m3", Subject: "filed two"},
	}}
	cache := &fakeCacheReader{filed: map[string]bool{"c1": true, "filed two": true}}

	counts, err := NewCounter(source, cache).Count(context.Background(), 24*time.Hour, 50)
	require.NoError(t, err)

	assert.Equal(t, Counts{Total: 3, Filed: 2, Unfiled: 1}, counts)
}

// A filed reply is cached under its thread root, not its own Message-ID;
// the counter must match on the conversation id.
func TestCountMatchesFiledReplyByConversation(t *testing.T) {
	source := &fakeSource{envelopes: []mailhost.Envelope{{
		MessageID:      "<reply@example.com>",
		ConversationID: "<root@example.com>",
		Subject:        "Re: Q3 Report",
	}}}
	cache := &fakeCacheReader{filed: map[string]bool{"<root@example.com>": true}}

	counts, err := NewCounter(source, cache).Count(context.Background(), time.Hour, 10)
	require.NoError(t, err)

	assert.Equal(t, Counts{Total: 1, Filed: 1, Unfiled: 0}, counts)
}

func TestCountPaginates(t *testing.T) {
	var envelopes []mailhost.Envelope
	for i := 0; i < 25; i++ {
		envelopes = append(envelopes, mailhost.Envelope{Subject: "s"})
	}
	source := &fakeSource{envelopes: envelopes}
	cache := &fakeCacheReader{filed: map[string]bool{}}

	counts, err := NewCounter(source, cache).Count(context.Background(), time.Hour, 10)
	require.NoError(t, err)

	assert.Equal(t, 25, counts.Total)
	assert.Equal(t, 25, counts.Unfiled)
	assert.Equal(t, 3, source.pages)
}

func TestCountSourceError(t *testing.T) {
	source := &fakeSource{err: errors.New("mailbox offline")}
	cache := &fakeCacheReader{}

	_, err := NewCounter(source, cache).Count(context.Background(), time.Hour, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scanning sent mail")
}
