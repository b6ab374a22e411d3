package model

import "time"

// FilingAction distinguishes how an email landed in the remote case:
// as a newly created document or as a version appended to an existing one.
type FilingAction string

const (
	FilingActionCreate  FilingAction = "create"
	FilingActionVersion FilingAction = "version"
)

// Filing is the durable history record of one successfully filed email.
type Filing struct {
	// ID is the unique identifier for this filing record.
	ID string `json:"id"`

	// CaseID is the remote case the email was filed under.
	CaseID string `json:"case_id"`

	// DocumentID is the remote document that was created or versioned.
	DocumentID string `json:"document_id"`

	// Subject is the subject of the filed email.
	Subject string `json:"subject"`

	// Action records whether the upload created a document or appended
	// a version.
	Action FilingAction `json:"action"`

	// FiledAt is when the upload completed.
	FiledAt time.Time `json:"filed_at"`
}
