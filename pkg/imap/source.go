package imap

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"mailpilot-backend/internal/response/domain"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
)

// Mailbox holds the IMAP connection settings for one user's inbox.
type Mailbox struct {
	Server   string
	Port     int
	Username string
	Password string
}

// MailboxResolver maps a user to their mailbox credentials. Credential
// storage belongs to the surrounding account system.
type MailboxResolver func(userID string) (*Mailbox, error)

// StaticMailboxResolver serves one fixed mailbox for every user.
func StaticMailboxResolver(box Mailbox) MailboxResolver {
	return func(userID string) (*Mailbox, error) {
		if box.Server == "" {
			return nil, fmt.Errorf("no mailbox configured")
		}
		return &box, nil
	}
}

// Source polls IMAP inboxes for messages behind the ingest watermark.
type Source struct {
	resolve MailboxResolver
}

func NewSource(resolve MailboxResolver) *Source {
	return &Source{resolve: resolve}
}

// FetchSince returns messages received strictly after the watermark,
// oldest first.
func (s *Source) FetchSince(ctx context.Context, userID string, since time.Time) ([]*domain.IncomingMessage, error) {
	box, err := s.resolve(userID)
	if err != nil {
		return nil, err
	}

	c, err := client.DialTLS(fmt.Sprintf("%s:%d", box.Server, box.Port), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	defer c.Logout()

	if err := c.Login(box.Username, box.Password); err != nil {
		return nil, fmt.Errorf("IMAP login failed: %w", err)
	}

	if _, err := c.Select("INBOX", true); err != nil {
		return nil, fmt.Errorf("failed to select INBOX: %w", err)
	}

	// SINCE is date-granular; the internal date is re-checked below.
	criteria := imap.NewSearchCriteria()
	criteria.Since = since
	ids, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("IMAP search failed: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchInternalDate, section.FetchItem()}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, items, messages)
	}()

	var result []*domain.IncomingMessage
	for msg := range messages {
		if msg.Envelope == nil {
			continue
		}
		receivedAt := msg.InternalDate
		if receivedAt.IsZero() {
			receivedAt = msg.Envelope.Date
		}
		if !receivedAt.After(since) {
			continue
		}

		body := ""
		if r := msg.GetBody(section); r != nil {
			body = extractTextBody(r)
		}

		result = append(result, &domain.IncomingMessage{
			ID:         strings.Trim(msg.Envelope.MessageId, "<>"),
			ThreadID:   strings.Trim(msg.Envelope.InReplyTo, "<>"),
			UserID:     userID,
			Sender:     formatSender(msg.Envelope),
			Subject:    msg.Envelope.Subject,
			Body:       body,
			ReceivedAt: receivedAt,
		})
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("IMAP fetch failed: %w", err)
	}

	// Oldest first so per-user ingestion preserves arrival order.
	sortByReceivedAt(result)

	return result, nil
}

func sortByReceivedAt(msgs []*domain.IncomingMessage) {
	// Insertion sort; fetch batches are small.
	for i := 1; i < len(msgs); i++ {
		for j := i; j > 0 && msgs[j].ReceivedAt.Before(msgs[j-1].ReceivedAt); j-- {
			msgs[j], msgs[j-1] = msgs[j-1], msgs[j]
		}
	}
}

func formatSender(env *imap.Envelope) string {
	if len(env.From) == 0 {
		return ""
	}
	addr := env.From[0]
	if addr.PersonalName != "" {
		return fmt.Sprintf("%s <%s>", addr.PersonalName, addr.Address())
	}
	return addr.Address()
}

// extractTextBody pulls the first text/plain part out of a MIME message.
func extractTextBody(r io.Reader) string {
	mr, err := mail.CreateReader(r)
	if err != nil {
		log.Printf("[IMAP] Failed to parse message body: %v", err)
		return ""
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("[IMAP] Failed to read message part: %v", err)
			break
		}

		if h, ok := p.Header.(*mail.InlineHeader); ok {
			contentType, _, _ := h.ContentType()
			if strings.HasPrefix(contentType, "text/plain") {
				content, err := io.ReadAll(p.Body)
				if err != nil {
					continue
				}
				return string(content)
			}
		}
	}
	return ""
}
