// Package artifact builds the uploadable representation of an outgoing
// email: a minimal RFC 2822 document rendered from the fields the mail
// host exposes, base64-encoded for the document upload payload.
package artifact

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	"github.com/nhle/mail-filing/internal/mailhost"
)

// mimeType is the upload mime type for filed emails.
const mimeType = "message/rfc822"

// Artifact is a built email document ready for upload. It is constructed
// fresh per send event and never persisted locally.
type Artifact struct {
	FileName   string
	MimeType   string
	DataBase64 string
}

// Build renders an email document from the message fields. messageID may be
// empty, in which case one is generated so the filed copy still carries a
// Message-ID header.
func Build(
	subject, body string,
	from mailhost.Address,
	recipients []string,
	messageID string,
	composedAt time.Time,
) (*Artifact, error) {
	if composedAt.IsZero() {
		composedAt = time.Now()
	}
	if messageID == "" {
		messageID = fmt.Sprintf("%s@mailfiling.local", uuid.New().String())
	}

	var h mail.Header
	h.SetDate(composedAt)
	h.SetSubject(subject)
	h.SetMessageID(strings.Trim(messageID, "<>"))
	h.SetAddressList("From", []*mail.Address{
		{Name: from.Name, Address: from.Email},
	})

	var toList []*mail.Address
	for _, rcpt := range recipients {
		toList = append(toList, &mail.Address{Address: rcpt})
	}
	if len(toList) > 0 {
		h.SetAddressList("To", toList)
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		w.Close()
		return nil, fmt.Errorf("writing message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing message: %w", err)
	}

	return &Artifact{
		FileName:   fileName(subject),
		MimeType:   mimeType,
		DataBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// fileName derives an upload file name from the subject, replacing
// path-hostile characters and falling back to a fixed name for empty
// subjects.
func fileName(subject string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		default:
			return r
		}
	}, strings.TrimSpace(subject))

	if cleaned == "" {
		cleaned = "email"
	}
	if len(cleaned) > 120 {
		cleaned = cleaned[:120]
	}

	return cleaned + ".eml"
}
