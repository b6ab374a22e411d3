package watch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/mail-filing/internal/kvstore"
	"github.com/nhle/mail-filing/tests/testutil"
)

func newTestWatcher(t *testing.T) *Watcher {
	t.Helper()

	state := kvstore.NewFallback(testutil.NewTestStore(t), nil)
	return New(nil, nil, state, time.Minute)
}

func TestUIDCursorRoundTrip(t *testing.T) {
	w := newTestWatcher(t)
	ctx := context.Background()

	assert.Zero(t, w.loadLastUID(ctx))

	w.storeLastUID(ctx, 4711)
	assert.Equal(t, uint32(4711), w.loadLastUID(ctx))
}

func TestUIDCursorDiscardsMalformedValue(t *testing.T) {
	w := newTestWatcher(t)
	ctx := context.Background()

	w.state.Set(ctx, lastUIDKey, "not-a-number")
	assert.Zero(t, w.loadLastUID(ctx))
}

func TestStatusTransitions(t *testing.T) {
	w := newTestWatcher(t)

	assert.Equal(t, StateIdle, w.GetStatus().State)

	w.setStatus(StateScanning, nil)
	assert.Equal(t, StateScanning, w.GetStatus().State)
	assert.True(t, w.GetStatus().LastScan.IsZero())

	w.setStatus(StateIdle, nil)
	status := w.GetStatus()
	assert.Equal(t, StateIdle, status.State)
	assert.False(t, status.LastScan.IsZero())
}

func TestSendResultNeverBlocks(t *testing.T) {
	w := newTestWatcher(t)

	// Overfill the channel; the extra results are dropped, not blocked on.
	for i := 0; i < cap(w.resultCh)+5; i++ {
		w.sendResult(FilingResultMsg{Subject: "s"})
	}

	assert.Len(t, w.resultCh, cap(w.resultCh))
}
