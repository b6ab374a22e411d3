// Package mailhost abstracts access to the message currently being sent.
// The filing pipeline never talks to the mail client directly; it consumes
// the Message interface, which absorbs the asymmetry between fields the
// host exposes synchronously and those that require a round trip.
package mailhost

import (
	"context"
	"time"
)

// Address is a parsed sender identity.
type Address struct {
	Name  string
	Email string
}

// Message exposes the in-flight outgoing message to the filing pipeline.
// Accessors return zero values rather than failing when the host has no
// data; only transport-level problems surface as errors, and the pipeline
// treats those as missing data except where noted.
type Message interface {
	// Subject returns the message subject, or "" when unset.
	Subject(ctx context.Context) (string, error)

	// BodyText returns the message body as plain text, or "" when empty.
	BodyText(ctx context.Context) (string, error)

	// Sender returns the sending identity.
	Sender(ctx context.Context) (Address, error)

	// ItemID returns the host-assigned message identifier when it is
	// synchronously available, or "".
	ItemID() string

	// FetchItemID asks the host for the message identifier. For a freshly
	// composed message the identifier may only exist after this round
	// trip. Returns "" when the host has not assigned one yet.
	FetchItemID(ctx context.Context) (string, error)

	// ConversationID returns the conversation/thread identifier, or "".
	// A brand-new composition has none until after it is sent.
	ConversationID() string

	// ComposedAt returns when the message was composed, or the zero time.
	ComposedAt() time.Time

	// Recipients returns the To addresses, or nil.
	Recipients() []string
}
