// Package mailbox reads the verification inbox over IMAP. The scanner opens a
// fresh connection per scan, fetches unseen messages, and marks processed
// messages seen so they are not refetched on the next run.
package mailbox

import (
	"context"
	"fmt"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/sindikatncr/membership-backend/internal/config"
)

// Message is an inbound mail summary built from the IMAP envelope. The body is
// never fetched; sender identity and the message id are all the scanner needs.
type Message struct {
	UID        uint32
	MessageID  string
	Sender     string // address, mailbox@host
	SenderName string // display name from the envelope, may be empty
	Subject    string
	Date       time.Time
}

// Inbox is a connected mailbox session.
type Inbox interface {
	// FetchUnseen returns envelope summaries for all unseen messages.
	FetchUnseen(ctx context.Context) ([]*Message, error)
	// MarkSeen flags the given messages seen so later scans skip them.
	MarkSeen(ctx context.Context, uids ...uint32) error
	// Close logs out and drops the connection.
	Close() error
}

// Dialer opens an Inbox session. The scanner holds a Dialer rather than a
// connection so each scan gets a fresh session and tests can substitute fakes.
type Dialer func(ctx context.Context) (Inbox, error)

// imapInbox wraps a live IMAP connection with the verification folder selected.
type imapInbox struct {
	c *client.Client
}

// Dial connects to the configured IMAP server over TLS, authenticates, and
// selects the verification folder.
func Dial(ctx context.Context, cfg *config.MailboxConfig) (Inbox, error) {
	c, err := client.DialTLS(cfg.GetIMAPAddress(), nil)
	if err != nil {
		return nil, fmt.Errorf("imap dial %s: %w", cfg.GetIMAPAddress(), err)
	}

	if err := c.Login(cfg.Username, cfg.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("imap login: %w", err)
	}

	folder := cfg.Folder
	if folder == "" {
		folder = "INBOX"
	}
	if _, err := c.Select(folder, false); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("imap select %s: %w", folder, err)
	}

	return &imapInbox{c: c}, nil
}

// NewDialer binds Dial to a config, yielding a Dialer for the scanner.
func NewDialer(cfg *config.MailboxConfig) Dialer {
	return func(ctx context.Context) (Inbox, error) {
		return Dial(ctx, cfg)
	}
}

func (i *imapInbox) FetchUnseen(ctx context.Context) ([]*Message, error) {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	uids, err := i.c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("imap search unseen: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	ch := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- i.c.UidFetch(seqset, []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid}, ch)
	}()

	var messages []*Message
	for msg := range ch {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if msg.Envelope == nil {
			continue
		}
		m := &Message{
			UID:       msg.Uid,
			MessageID: msg.Envelope.MessageId,
			Subject:   msg.Envelope.Subject,
			Date:      msg.Envelope.Date,
		}
		if len(msg.Envelope.From) > 0 {
			from := msg.Envelope.From[0]
			m.Sender = from.Address()
			m.SenderName = from.PersonalName
		}
		messages = append(messages, m)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("imap fetch: %w", err)
	}
	return messages, nil
}

func (i *imapInbox) MarkSeen(ctx context.Context, uids ...uint32) error {
	if len(uids) == 0 {
		return nil
	}
	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.SeenFlag}
	if err := i.c.UidStore(seqset, item, flags, nil); err != nil {
		return fmt.Errorf("imap store seen: %w", err)
	}
	return nil
}

func (i *imapInbox) Close() error {
	return i.c.Logout()
}
