package intent_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-filing/internal/identity"
	"github.com/nhle/mail-filing/internal/intent"
	"github.com/nhle/mail-filing/internal/kvstore"
	"github.com/nhle/mail-filing/tests/testutil"
)

func newTestRepository(t *testing.T) (*intent.Repository, *kvstore.Fallback) {
	t.Helper()

	store := kvstore.NewFallback(testutil.NewTestStore(t), nil)
	return intent.NewRepository(store), store
}

func TestResolveReturnsEarliestKey(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	repo.Save(ctx, "conv:thread-1", intent.FilingIntent{
		CaseID: "case-conv", AutoFileOnSend: true,
	})
	repo.Save(ctx, identity.FallbackKeyCurrent, intent.FilingIntent{
		CaseID: "case-fallback", AutoFileOnSend: true,
	})

	in := repo.Resolve(ctx, []string{
		"item-1", "conv:thread-1", identity.FallbackKeyCurrent,
	})

	require.NotNil(t, in)
	assert.Equal(t, "case-conv", in.CaseID)
	assert.Equal(t, "conv:thread-1", in.ResolvedUnderKey)
}

func TestResolveSkipsIntentWithoutCase(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	repo.Save(ctx, "item-1", intent.FilingIntent{AutoFileOnSend: true})
	repo.Save(ctx, "conv:thread-1", intent.FilingIntent{
		CaseID: "case-1", AutoFileOnSend: true,
	})

	in := repo.Resolve(ctx, []string{"item-1", "conv:thread-1"})

	require.NotNil(t, in)
	assert.Equal(t, "case-1", in.CaseID)
	assert.Equal(t, "conv:thread-1", in.ResolvedUnderKey)
}

func TestResolveSkipsMalformedRecord(t *testing.T) {
	repo, store := newTestRepository(t)
	ctx := context.Background()

	store.Set(ctx, "intent:item-1", "{not json")
	repo.Save(ctx, "conv:thread-1", intent.FilingIntent{
		CaseID: "case-1", AutoFileOnSend: true,
	})

	in := repo.Resolve(ctx, []string{"item-1", "conv:thread-1"})

	require.NotNil(t, in)
	assert.Equal(t, "case-1", in.CaseID)
}

func TestResolveNothingFound(t *testing.T) {
	repo, _ := newTestRepository(t)

	in := repo.Resolve(context.Background(), []string{"item-1", "conv:x"})
	assert.Nil(t, in)
}

func TestMigrateMovesFallbackToDurableKey(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	original := intent.FilingIntent{CaseID: "case-1", AutoFileOnSend: true}
	repo.Save(ctx, identity.FallbackKeyCurrent, original)

	repo.Migrate(ctx, original, identity.FallbackKeyCurrent, "item-1")

	// Only the durable key resolves now.
	in := repo.Resolve(ctx, []string{identity.FallbackKeyCurrent})
	assert.Nil(t, in)

	in = repo.Resolve(ctx, []string{"item-1"})
	require.NotNil(t, in)
	assert.Equal(t, "case-1", in.CaseID)
	assert.Equal(t, "item-1", in.ResolvedUnderKey)
}

func TestMigrateRefusesNonFallbackSource(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	original := intent.FilingIntent{CaseID: "case-1", AutoFileOnSend: true}
	repo.Save(ctx, "conv:thread-1", original)

	repo.Migrate(ctx, original, "conv:thread-1", "item-1")

	in := repo.Resolve(ctx, []string{"conv:thread-1"})
	require.NotNil(t, in)

	in = repo.Resolve(ctx, []string{"item-1"})
	assert.Nil(t, in)
}

func TestMigrateRefusesFallbackTarget(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	original := intent.FilingIntent{CaseID: "case-1", AutoFileOnSend: true}
	repo.Save(ctx, identity.FallbackKeyCurrent, original)

	repo.Migrate(
		ctx, original, identity.FallbackKeyCurrent, identity.FallbackKeyPending,
	)

	in := repo.Resolve(ctx, []string{identity.FallbackKeyCurrent})
	require.NotNil(t, in, "intent must stay under its original key")
}

func TestSavePreservesBaseFields(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	repo.Save(ctx, "item-1", intent.FilingIntent{
		CaseID:         "case-1",
		AutoFileOnSend: true,
		BaseCaseID:     "case-0",
		BaseEmailDocID: "doc-0",
	})

	in := repo.Resolve(ctx, []string{"item-1"})
	require.NotNil(t, in)
	assert.Equal(t, "case-0", in.BaseCaseID)
	assert.Equal(t, "doc-0", in.BaseEmailDocID)
}
