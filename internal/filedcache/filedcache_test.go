package filedcache_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-filing/internal/filedcache"
	"github.com/nhle/mail-filing/internal/kvstore"
	"github.com/nhle/mail-filing/tests/testutil"
)

func newTestCache(t *testing.T) *filedcache.Cache {
	t.Helper()
	return filedcache.New(kvstore.NewFallback(testutil.NewTestStore(t), nil))
}

func TestRecordAndLookupByConversation(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	cache.Record(ctx, "thread-1", "Quarterly report", "case-1", "doc-1")

	entry := cache.Lookup(ctx, "thread-1", "unrelated subject")
	require.NotNil(t, entry)
	assert.Equal(t, "case-1", entry.CaseID)
	assert.Equal(t, "doc-1", entry.DocumentID)
	assert.Equal(t, "Quarterly report", entry.Subject)
	assert.False(t, entry.Timestamp.IsZero())
}

func TestRecordWithoutConversationUsesSubjectKey(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	cache.Record(ctx, "", "Quarterly report", "case-1", "doc-1")

	// A later lookup with a conversation id still finds the subject entry.
	entry := cache.Lookup(ctx, "thread-1", "Quarterly report")
	require.NotNil(t, entry)
	assert.Equal(t, "doc-1", entry.DocumentID)
}

func TestLookupNormalizesSubject(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	cache.Record(ctx, "", "  Quarterly   Report ", "case-1", "doc-1")

	entry := cache.Lookup(ctx, "", "quarterly report")
	require.NotNil(t, entry)
	assert.Equal(t, "case-1", entry.CaseID)
}

func TestLookupPrefersConversationKey(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	cache.Record(ctx, "", "Shared subject", "case-subj", "doc-subj")
	cache.Record(ctx, "thread-1", "Shared subject", "case-conv", "doc-conv")

	entry := cache.Lookup(ctx, "thread-1", "Shared subject")
	require.NotNil(t, entry)
	assert.Equal(t, "doc-conv", entry.DocumentID)
}

func TestLookupMiss(t *testing.T) {
	cache := newTestCache(t)

	entry := cache.Lookup(context.Background(), "thread-1", "never filed")
	assert.Nil(t, entry)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "re: hello world", filedcache.Normalize("Re:  Hello\tWorld"))
	assert.Equal(t, "", filedcache.Normalize("   "))
}
