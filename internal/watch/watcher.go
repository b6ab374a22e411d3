// Package watch turns the sent mailbox into a stream of send events. The
// mail client offers no send hook, so the watcher polls the sent folder
// and runs the filing pipeline once for every newly observed message.
package watch

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/nhle/mail-filing/internal/filing"
	"github.com/nhle/mail-filing/internal/kvstore"
	"github.com/nhle/mail-filing/internal/mailhost"
)

// lastUIDKey persists the highest sent-folder UID already handled, so a
// restart does not refile messages.
const lastUIDKey = "watch:last-uid"

// scanTimeout bounds a single sent-folder scan.
const scanTimeout = 60 * time.Second

// State represents the current state of the watcher.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateError
)

// Status holds the watcher's current state for the status view.
type Status struct {
	State    State
	LastScan time.Time
	Error    error
}

// FilingResultMsg is a tea.Msg sent when a send event has been processed.
type FilingResultMsg struct {
	Subject string
	Result  filing.Result
}

// StatusMsg is a tea.Msg carrying the watcher's current status.
type StatusMsg struct {
	Status Status
}

// Watcher polls the sent folder and dispatches send events to the
// filing orchestrator.
type Watcher struct {
	mailbox      *mailhost.IMAPMailbox
	orchestrator *filing.Orchestrator
	state        *kvstore.Fallback
	interval     time.Duration

	resultCh  chan FilingResultMsg
	triggerCh chan struct{}
	stopCh    chan struct{}

	mu      sync.Mutex
	status  Status
	running bool

	log *logrus.Entry
}

// New creates a Watcher over the given mailbox and orchestrator. interval
// is the sent-folder poll interval.
func New(
	mailbox *mailhost.IMAPMailbox,
	orchestrator *filing.Orchestrator,
	state *kvstore.Fallback,
	interval time.Duration,
) *Watcher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Watcher{
		mailbox:      mailbox,
		orchestrator: orchestrator,
		state:        state,
		interval:     interval,
		resultCh:     make(chan FilingResultMsg, 16),
		triggerCh:    make(chan struct{}, 1),
		stopCh:       make(chan struct{}),
		log:          logrus.WithField("pkg", "watch"),
	}
}

// Start returns a tea.Cmd that starts the polling goroutine and subscribes
// to results. The returned command waits on the result channel and returns
// FilingResultMsg messages to the Bubble Tea runtime.
func (w *Watcher) Start() tea.Cmd {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	go w.loop()

	return w.waitForResult()
}

// Stop halts the polling goroutine.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	close(w.stopCh)
	w.running = false
}

// Refresh triggers an immediate scan of the sent folder.
func (w *Watcher) Refresh() tea.Cmd {
	select {
	case w.triggerCh <- struct{}{}:
	default:
		// A scan is already pending; skip to avoid blocking.
	}
	return nil
}

// GetStatus returns the watcher's current status.
func (w *Watcher) GetStatus() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// loop runs the polling loop until stopped.
func (w *Watcher) loop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Do an initial scan immediately so a freshly started agent anchors
	// its UID cursor.
	w.scan()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.scan()
		case <-w.triggerCh:
			w.scan()
		}
	}
}

// scan performs a single sent-folder scan and runs the filing pipeline for
// every new message.
func (w *Watcher) scan() {
	w.setStatus(StateScanning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()

	lastUID := w.loadLastUID(ctx)

	messages, maxUID, err := w.mailbox.FetchSentSince(ctx, lastUID)
	if err != nil {
		w.log.WithError(err).Warn("sent folder scan failed")
		w.setStatus(StateError, err)
		return
	}

	for _, msg := range messages {
		w.handle(msg)
	}

	if maxUID != lastUID {
		w.storeLastUID(ctx, maxUID)
	}

	w.setStatus(StateIdle, nil)
}

// handle runs the filing pipeline for one sent message and forwards the
// outcome to the result channel.
func (w *Watcher) handle(msg *mailhost.SentMessage) {
	ctx := context.Background()

	subject, _ := msg.Subject(ctx)

	result := w.orchestrator.HandleSend(ctx, msg, func(allow bool, userMessage string) {
		// The send already happened; the completion callback exists for
		// contract parity with hosts that gate the send on it.
		if !allow {
			w.log.Error("orchestrator attempted to block a send")
		}
	})

	w.sendResult(FilingResultMsg{Subject: subject, Result: result})
}

// loadLastUID reads the persisted UID cursor, or 0.
func (w *Watcher) loadLastUID(ctx context.Context) uint32 {
	raw, ok := w.state.Get(ctx, lastUIDKey)
	if !ok {
		return 0
	}

	uid, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		w.log.WithField("value", raw).Warn("discarding malformed UID cursor")
		return 0
	}

	return uint32(uid)
}

// storeLastUID persists the UID cursor.
func (w *Watcher) storeLastUID(ctx context.Context, uid uint32) {
	w.state.Set(ctx, lastUIDKey, fmt.Sprintf("%d", uid))
}

// setStatus updates the watcher status.
func (w *Watcher) setStatus(state State, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.status.State = state
	w.status.Error = err
	if state == StateIdle && err == nil {
		w.status.LastScan = time.Now()
	}
}

// sendResult forwards a result without blocking the watcher.
func (w *Watcher) sendResult(msg FilingResultMsg) {
	select {
	case w.resultCh <- msg:
	default:
		// Drop if the channel is full to avoid blocking the watcher.
	}
}

// waitForResult returns a tea.Cmd that waits for the next filing result.
func (w *Watcher) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-w.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next filing
// result. This should be called after processing a FilingResultMsg to
// continue listening for future results.
func (w *Watcher) WaitForNextResult() tea.Cmd {
	return w.waitForResult()
}
