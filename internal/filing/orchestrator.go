// Package filing drives the send-time filing pipeline: when the user sends
// a message, resolve what the message is, look up a recorded filing intent,
// upload the email to the case-management service as a new document or a
// new version of an existing one, and record the outcome. Filing is
// best-effort by contract: whatever happens, the send itself is allowed.
package filing

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nhle/mail-filing/internal/artifact"
	"github.com/nhle/mail-filing/internal/auth"
	"github.com/nhle/mail-filing/internal/casedoc"
	"github.com/nhle/mail-filing/internal/identity"
	"github.com/nhle/mail-filing/internal/intent"
	"github.com/nhle/mail-filing/internal/mailhost"
	"github.com/nhle/mail-filing/internal/model"
)

// Completion is the host's send-event callback. allow reports whether the
// send may proceed; it is always true in this design. userMessage carries
// the failure hint shown to the user, or "" on success or skip.
type Completion func(allow bool, userMessage string)

// Notifier surfaces a transient message to the user. Show is fire-and-
// forget; implementations swallow their own failures.
type Notifier interface {
	Show(eventID, message string)
}

// KeyResolver produces the ordered candidate keys for an in-flight message.
type KeyResolver interface {
	ResolveCandidateKeys(ctx context.Context, msg mailhost.Message) []string
}

// IntentRepository resolves, saves, and migrates filing intents.
type IntentRepository interface {
	Resolve(ctx context.Context, keys []string) *intent.FilingIntent
	Save(ctx context.Context, key string, in intent.FilingIntent)
	Migrate(ctx context.Context, in intent.FilingIntent, fromKey, toKey string)
}

// DocumentRepository performs the remote document operations.
type DocumentRepository interface {
	FindBySubject(ctx context.Context, caseID, subject string) (*casedoc.DocumentRef, error)
	CreateDocument(
		ctx context.Context,
		caseID, fileName, mimeType, dataBase64 string,
		metadata map[string]string,
	) (string, error)
	UploadVersion(
		ctx context.Context,
		documentID, fileName, mimeType, dataBase64 string,
	) error
}

// FiledCache records filed conversations/subjects for dedup on resend.
type FiledCache interface {
	Record(ctx context.Context, conversationID, subject, caseID, documentID string)
}

// FilingHistory durably logs successful filings. Failures are swallowed;
// history is informational.
type FilingHistory interface {
	RecordFiling(ctx context.Context, f model.Filing) error
}

// Result describes the outcome of one send event, for the watcher/UI.
type Result struct {
	EventID    string
	Skipped    bool
	CaseID     string
	DocumentID string
	Action     model.FilingAction
	Err        error
}

// Orchestrator sequences the filing pipeline for send events.
type Orchestrator struct {
	keys      KeyResolver
	intents   IntentRepository
	docs      DocumentRepository
	cache     FiledCache
	history   FilingHistory
	tokens    auth.Provider
	workspace casedoc.BaseURLResolver
	notifier  Notifier

	stageTimeout  time.Duration
	uploadTimeout time.Duration

	log *logrus.Entry
}

// Config carries the orchestrator's collaborators and timeouts. History
// and Notifier may be nil.
type Config struct {
	Keys      KeyResolver
	Intents   IntentRepository
	Docs      DocumentRepository
	Cache     FiledCache
	History   FilingHistory
	Tokens    auth.Provider
	Workspace casedoc.BaseURLResolver
	Notifier  Notifier

	StageTimeout  time.Duration
	UploadTimeout time.Duration
}

// New creates an Orchestrator from the given configuration.
func New(cfg Config) *Orchestrator {
	stageTimeout := cfg.StageTimeout
	if stageTimeout <= 0 {
		stageTimeout = 10 * time.Second
	}
	uploadTimeout := cfg.UploadTimeout
	if uploadTimeout <= 0 {
		uploadTimeout = 60 * time.Second
	}

	return &Orchestrator{
		keys:          cfg.Keys,
		intents:       cfg.Intents,
		docs:          cfg.Docs,
		cache:         cfg.Cache,
		history:       cfg.History,
		tokens:        cfg.Tokens,
		workspace:     cfg.Workspace,
		notifier:      cfg.Notifier,
		stageTimeout:  stageTimeout,
		uploadTimeout: uploadTimeout,
		log:           logrus.WithField("pkg", "filing"),
	}
}

// HandleSend runs the filing pipeline for one send event and invokes
// complete exactly once. The send is always allowed; failures surface only
// as a user notification. HandleSend returns a Result describing what
// happened, for callers that track filing activity.
func (o *Orchestrator) HandleSend(
	ctx context.Context, msg mailhost.Message, complete Completion,
) Result {
	eventID := uuid.New().String()
	log := o.log.WithField("event", eventID)

	// One-shot completion guard. The host supplies a single callback per
	// send event, but late error handlers and re-entrant completions must
	// not complete the event twice: the first check-and-set wins.
	var completed atomic.Bool
	finish := func(userMessage string) {
		if complete == nil {
			return
		}
		if !completed.CompareAndSwap(false, true) {
			log.Debug("ignoring duplicate completion attempt")
			return
		}
		complete(true, userMessage)
	}

	result := o.run(ctx, log, eventID, msg)
	result.EventID = eventID

	if result.Err != nil {
		hint := Classify(result.Err)
		log.WithError(result.Err).Warn("filing failed, send allowed")
		o.notify(eventID, hint)
		finish(hint)
		return result
	}

	if result.Skipped {
		finish("")
		return result
	}

	o.notify(eventID, fmt.Sprintf("Email filed to case %s", result.CaseID))
	finish("")
	return result
}

// run executes the pipeline stages and returns the outcome. It returns a
// skipped result for the "nothing to do" paths and an error result for
// hard failures; both leave the send allowed.
func (o *Orchestrator) run(
	ctx context.Context,
	log *logrus.Entry,
	eventID string,
	msg mailhost.Message,
) Result {
	// Identity: never fails, worst case only fallback keys.
	keys := o.keys.ResolveCandidateKeys(ctx, msg)
	if len(keys) == 0 {
		log.Debug("no candidate keys, nothing to do")
		return Result{Skipped: true}
	}

	// Intent: first well-formed record in key order wins.
	in, err := stageResult(ctx, "intent lookup", o.stageTimeout,
		func(sc context.Context) (*intent.FilingIntent, error) {
			return o.intents.Resolve(sc, keys), nil
		})
	if err != nil {
		return Result{Err: err}
	}

	if in == nil || !in.AutoFileOnSend {
		log.Debug("no auto-file intent, nothing to do")
		return Result{Skipped: true}
	}

	// Key migration: opportunistic upgrade of a fallback-keyed intent to
	// the first durable key. Failures stay inside the repository.
	durableKey := firstDurableKey(keys)
	if identity.IsFallbackKey(in.ResolvedUnderKey) && durableKey != "" {
		o.intents.Migrate(ctx, *in, in.ResolvedUnderKey, durableKey)
	}

	// Auth and workspace are checked before any upload work so their
	// specific hints reach the user without a wasted network call. Both run
	// under a stage timeout: the keyring can block on an unlock prompt, and
	// a stuck check must not stall completion.
	if _, err := stageResult(ctx, "session check", o.stageTimeout,
		func(context.Context) (string, error) {
			return o.tokens.Token()
		}); err != nil {
		return Result{Err: err}
	}
	if _, err := stageResult(ctx, "workspace check", o.stageTimeout,
		func(context.Context) (string, error) {
			return o.workspace.BaseURL()
		}); err != nil {
		return Result{Err: err}
	}

	// Build the email artifact from the host's view of the message.
	bm, err := stageResult(ctx, "artifact build", o.stageTimeout,
		func(sc context.Context) (builtMessage, error) {
			subject, err := msg.Subject(sc)
			if err != nil {
				return builtMessage{}, fmt.Errorf("reading subject: %w", err)
			}

			body, err := msg.BodyText(sc)
			if err != nil {
				return builtMessage{}, fmt.Errorf("reading body: %w", err)
			}

			sender, err := msg.Sender(sc)
			if err != nil {
				return builtMessage{}, fmt.Errorf("reading sender: %w", err)
			}

			built, err := artifact.Build(
				subject, body, sender, msg.Recipients(),
				msg.ItemID(), msg.ComposedAt(),
			)
			if err != nil {
				return builtMessage{}, err
			}
			return builtMessage{subject: subject, artifact: built}, nil
		})
	if err != nil {
		return Result{Err: err}
	}

	// Dedup: best-effort lookup by (case, subject). A failed or expired
	// lookup is recovered locally as "no existing document"; whatever an
	// abandoned lookup later returns is discarded with its stage.
	existing, err := stageResult(ctx, "dedup lookup", o.stageTimeout,
		func(sc context.Context) (*casedoc.DocumentRef, error) {
			return o.docs.FindBySubject(sc, in.CaseID, bm.subject)
		})
	if err != nil {
		log.WithError(err).Debug("dedup lookup failed, assuming no existing document")
		existing = nil
	}

	// Create or version.
	var documentID string
	var action model.FilingAction
	if existing != nil {
		documentID = existing.ID
		action = model.FilingActionVersion
		if err := o.stage(ctx, "version upload", o.uploadTimeout, func(sc context.Context) error {
			return o.docs.UploadVersion(
				sc, existing.ID, bm.artifact.FileName, bm.artifact.MimeType, bm.artifact.DataBase64,
			)
		}); err != nil {
			return Result{Err: err}
		}
	} else {
		action = model.FilingActionCreate
		id, err := stageResult(ctx, "document create", o.uploadTimeout,
			func(sc context.Context) (string, error) {
				return o.docs.CreateDocument(
					sc, in.CaseID, bm.artifact.FileName, bm.artifact.MimeType, bm.artifact.DataBase64,
					map[string]string{"source": "send-time-filing"},
				)
			})
		if err != nil {
			return Result{Err: err}
		}
		documentID = id
	}

	// Persist the enriched intent under the most durable key we have, then
	// the filed-email cache entry. Both are best-effort.
	in.BaseCaseID = in.CaseID
	in.BaseEmailDocID = documentID
	persistKey := durableKey
	if persistKey == "" {
		persistKey = in.ResolvedUnderKey
	}
	o.intents.Save(ctx, persistKey, *in)
	o.cache.Record(ctx, msg.ConversationID(), bm.subject, in.CaseID, documentID)

	if o.history != nil {
		err := o.history.RecordFiling(ctx, model.Filing{
			ID:         eventID,
			CaseID:     in.CaseID,
			DocumentID: documentID,
			Subject:    bm.subject,
			Action:     action,
			FiledAt:    time.Now(),
		})
		if err != nil {
			log.WithError(err).Warn("failed to record filing history")
		}
	}

	log.WithFields(logrus.Fields{
		"case":     in.CaseID,
		"document": documentID,
		"action":   action,
	}).Info("email filed")

	return Result{
		CaseID:     in.CaseID,
		DocumentID: documentID,
		Action:     action,
	}
}

// builtMessage pairs the uploadable artifact with the subject it was built
// from; the subject is reused for dedup, the cache entry, and history.
type builtMessage struct {
	subject  string
	artifact *artifact.Artifact
}

// stage runs fn under its own timeout. Expiry does not abort an issued
// operation; the pipeline just stops waiting on it and treats the stage as
// failed.
func (o *Orchestrator) stage(
	ctx context.Context,
	name string,
	timeout time.Duration,
	fn func(context.Context) error,
) error {
	_, err := stageResult(ctx, name, timeout, func(sc context.Context) (struct{}, error) {
		return struct{}{}, fn(sc)
	})
	return err
}

// stageResult runs fn under its own timeout and returns its value. Expiry
// does not abort an issued operation; the pipeline stops waiting on it, and
// whatever the abandoned call later produces is discarded. Results cross
// goroutines only through the done channel.
func stageResult[T any](
	ctx context.Context,
	name string,
	timeout time.Duration,
	fn func(context.Context) (T, error),
) (T, error) {
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		value, err := fn(stageCtx)
		done <- outcome{value: value, err: err}
	}()

	var zero T
	select {
	case out := <-done:
		if out.err != nil {
			return zero, fmt.Errorf("%s: %w", name, out.err)
		}
		return out.value, nil
	case <-stageCtx.Done():
		return zero, fmt.Errorf("%s stage timeout: %w", name, stageCtx.Err())
	}
}

// notify shows a transient user message, if a notifier is configured.
func (o *Orchestrator) notify(eventID, message string) {
	if o.notifier == nil || message == "" {
		return
	}
	o.notifier.Show(eventID, message)
}

// firstDurableKey returns the first candidate key that is not a static
// fallback, or "".
func firstDurableKey(keys []string) string {
	for _, k := range keys {
		if !identity.IsFallbackKey(k) {
			return k
		}
	}
	return ""
}
