package mailhost

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/mail-filing/internal/model"
)

// IMAPMailbox wraps go-imap v2 for reading sent messages out of the
// configured sent folder. Each operation dials a fresh connection; the
// watcher's poll interval makes connection reuse not worth the bookkeeping.
type IMAPMailbox struct {
	host     string
	port     string
	username string
	password string
	tls      bool
	folder   string
}

// NewIMAPMailbox creates an IMAP mailbox accessor from the mailbox
// configuration and the account password.
func NewIMAPMailbox(cfg model.MailboxConfig, password string) *IMAPMailbox {
	folder := cfg.SentFolder
	if folder == "" {
		folder = "Sent"
	}
	return &IMAPMailbox{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: password,
		tls:      cfg.TLS,
		folder:   folder,
	}
}

// Connect establishes a connection to the IMAP server, authenticates,
// and returns the connected client. The caller is responsible for
// calling Logout on the returned client.
func (m *IMAPMailbox) Connect(_ context.Context) (*imapclient.Client, error) {
	addr := m.host + ":" + m.port

	var client *imapclient.Client
	var err error

	if m.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(m.username, m.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf(
			"authenticating %s against %s: %w", m.username, addr, err,
		)
	}

	return client, nil
}

// FetchSentSince selects the sent folder and returns all messages with a
// UID strictly greater than afterUID, along with the highest UID seen.
// A zero afterUID returns only the current highest UID without fetching,
// so a fresh watcher does not replay the whole folder.
func (m *IMAPMailbox) FetchSentSince(
	ctx context.Context, afterUID uint32,
) ([]*SentMessage, uint32, error) {
	client, err := m.Connect(ctx)
	if err != nil {
		return nil, afterUID, err
	}
	defer func() { _ = client.Logout().Wait() }()

	selected, err := client.Select(m.folder, nil).Wait()
	if err != nil {
		return nil, afterUID, fmt.Errorf("selecting %s: %w", m.folder, err)
	}

	if afterUID == 0 {
		if selected.UIDNext > 0 {
			return nil, uint32(selected.UIDNext) - 1, nil
		}
		return nil, 0, nil
	}

	var uidSet imap.UIDSet
	uidSet.AddRange(imap.UID(afterUID+1), 0)

	searchData, err := client.UIDSearch(&imap.SearchCriteria{
		UID: []imap.UIDSet{uidSet},
	}, nil).Wait()
	if err != nil {
		return nil, afterUID, fmt.Errorf("searching %s: %w", m.folder, err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, afterUID, nil
	}

	fetchSet := imap.UIDSetNum(uids...)
	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(fetchSet, fetchOpts)
	defer fetchCmd.Close()

	maxUID := afterUID
	var messages []*SentMessage
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		sent := sentMessageFromBuffer(m, buf, buf.FindBodySection(bodySection))
		if uint32(buf.UID) > maxUID {
			maxUID = uint32(buf.UID)
		}
		messages = append(messages, sent)
	}

	if err := fetchCmd.Close(); err != nil {
		return messages, maxUID, fmt.Errorf("fetching sent messages: %w", err)
	}

	return messages, maxUID, nil
}

// fetchMessageID re-reads the envelope of a single message. Used when the
// identifier was not available at the time the message was first observed.
func (m *IMAPMailbox) fetchMessageID(
	ctx context.Context, uid uint32,
) (string, error) {
	client, err := m.Connect(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(m.folder, nil).Wait(); err != nil {
		return "", fmt.Errorf("selecting %s: %w", m.folder, err)
	}

	uidSet := imap.UIDSetNum(imap.UID(uid))
	fetchCmd := client.Fetch(uidSet, &imap.FetchOptions{
		Envelope: true,
		UID:      true,
	})
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return "", fmt.Errorf("message UID %d not found", uid)
	}

	buf, err := msg.Collect()
	if err != nil {
		return "", fmt.Errorf("collecting message data: %w", err)
	}

	if buf.Envelope == nil {
		return "", nil
	}

	return buf.Envelope.MessageID, nil
}

// SentMessage is a Message backed by a sent-folder IMAP message.
type SentMessage struct {
	mailbox *IMAPMailbox

	uid            uint32
	subject        string
	textBody       string
	from           Address
	to             []string
	messageID      string
	conversationID string
	composedAt     time.Time
}

// sentMessageFromBuffer extracts a SentMessage from a fetch buffer and its
// raw body section.
func sentMessageFromBuffer(
	mailbox *IMAPMailbox,
	buf *imapclient.FetchMessageBuffer,
	rawBody []byte,
) *SentMessage {
	sent := &SentMessage{
		mailbox: mailbox,
		uid:     uint32(buf.UID),
	}

	if buf.Envelope != nil {
		sent.messageID = buf.Envelope.MessageID
		sent.subject = buf.Envelope.Subject
		sent.composedAt = buf.Envelope.Date

		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			sent.from = Address{Name: from.Name, Email: from.Addr()}
		}

		for _, to := range buf.Envelope.To {
			sent.to = append(sent.to, to.Addr())
		}
	}

	if rawBody != nil {
		text, conversation := parseRawMessage(rawBody)
		sent.textBody = text
		sent.conversationID = conversation
	}

	return sent
}

// Subject returns the message subject.
func (s *SentMessage) Subject(_ context.Context) (string, error) {
	return s.subject, nil
}

// BodyText returns the plain-text body.
func (s *SentMessage) BodyText(_ context.Context) (string, error) {
	return s.textBody, nil
}

// Sender returns the From identity.
func (s *SentMessage) Sender(_ context.Context) (Address, error) {
	return s.from, nil
}

// ItemID returns the Message-ID captured at fetch time, or "".
func (s *SentMessage) ItemID() string {
	return s.messageID
}

// FetchItemID re-reads the message envelope from the server when no
// identifier was captured at fetch time.
func (s *SentMessage) FetchItemID(ctx context.Context) (string, error) {
	if s.messageID != "" {
		return s.messageID, nil
	}

	id, err := s.mailbox.fetchMessageID(ctx, s.uid)
	if err != nil {
		return "", err
	}

	s.messageID = id
	return id, nil
}

// ConversationID returns the thread identifier derived from the
// In-Reply-To/References headers, or "" for a fresh composition.
func (s *SentMessage) ConversationID() string {
	return s.conversationID
}

// ComposedAt returns the message date.
func (s *SentMessage) ComposedAt() time.Time {
	return s.composedAt
}

// Recipients returns the To addresses.
func (s *SentMessage) Recipients() []string {
	return s.to
}

// parseRawMessage parses a raw RFC 2822 message using go-message and
// extracts the text/plain body and the conversation identifier. The
// conversation id is the root of the reference chain: the first entry of
// References, falling back to In-Reply-To.
func parseRawMessage(raw []byte) (textBody, conversationID string) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		// If parsing fails, treat the whole thing as plain text.
		return string(raw), ""
	}
	defer mr.Close()

	conversationID = conversationFromHeader(mr.Header)

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := h.ContentType()
		if !strings.HasPrefix(contentType, "text/plain") {
			continue
		}

		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}
		textBody = string(body)
	}

	return textBody, conversationID
}

// conversationFromHeader derives the thread identifier: the first entry of
// References (the chain root), falling back to In-Reply-To.
func conversationFromHeader(h mail.Header) string {
	if refs := h.Get("References"); refs != "" {
		if fields := strings.Fields(refs); len(fields) > 0 {
			return fields[0]
		}
	}
	return strings.TrimSpace(h.Get("In-Reply-To"))
}

// conversationFromRawHeader derives the thread identifier from a raw
// message header section.
func conversationFromRawHeader(raw []byte) string {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return ""
	}
	defer mr.Close()

	return conversationFromHeader(mr.Header)
}
