package mailer

import (
	"context"
	"strings"
	"testing"

	"github.com/sindikatncr/membership-backend/internal/config"
)

func newTestMailer() *SMTPMailer {
	return NewSMTPMailer(&config.SMTPConfig{
		Host: "smtp.example.com",
		Port: 587,
		From: "noreply@example.com",
	})
}

func TestCompose_PlainText(t *testing.T) {
	m := newTestMailer()
	raw, err := m.compose(&Message{
		To:      []string{"marko@example.com"},
		Subject: "Welcome",
		Body:    "Hello there",
	})
	if err != nil {
		t.Fatalf("compose() error: %v", err)
	}

	s := string(raw)
	for _, want := range []string{
		"From: noreply@example.com\r\n",
		"To: marko@example.com\r\n",
		"Subject: Welcome\r\n",
		"Content-Type: text/plain; charset=utf-8\r\n",
		"Hello there",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("composed message missing %q:\n%s", want, s)
		}
	}
}

func TestCompose_MultipleRecipients(t *testing.T) {
	m := newTestMailer()
	raw, err := m.compose(&Message{
		To:      []string{"a@example.com", "b@example.com"},
		Subject: "x",
		Body:    "y",
	})
	if err != nil {
		t.Fatalf("compose() error: %v", err)
	}
	if !strings.Contains(string(raw), "To: a@example.com, b@example.com\r\n") {
		t.Errorf("To header not joined: %s", raw)
	}
}

func TestCompose_BccNotInHeaders(t *testing.T) {
	m := newTestMailer()
	raw, err := m.compose(&Message{
		To:      []string{"marko@example.com"},
		Bcc:     []string{"office@example.com"},
		Subject: "Approval",
		Body:    "body",
	})
	if err != nil {
		t.Fatalf("compose() error: %v", err)
	}
	if strings.Contains(string(raw), "office@example.com") {
		t.Error("BCC address leaked into message headers")
	}
}

func TestCompose_WithAttachment(t *testing.T) {
	m := newTestMailer()
	raw, err := m.compose(&Message{
		To:      []string{"marko@example.com"},
		Subject: "Your membership card",
		Body:    "See attached.",
		Attachments: []Attachment{
			{Filename: "card.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4 fake")},
		},
	})
	if err != nil {
		t.Fatalf("compose() error: %v", err)
	}

	s := string(raw)
	for _, want := range []string{
		"Content-Type: multipart/mixed; boundary=",
		"Content-Type: application/pdf",
		"Content-Transfer-Encoding: base64",
		`attachment; filename="card.pdf"`,
		"See attached.",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("composed message missing %q", want)
		}
	}
}

func TestCompose_AttachmentBase64LineLength(t *testing.T) {
	m := newTestMailer()
	big := make([]byte, 4096)
	raw, err := m.compose(&Message{
		To:          []string{"x@example.com"},
		Subject:     "s",
		Body:        "b",
		Attachments: []Attachment{{Filename: "a.bin", Data: big}},
	})
	if err != nil {
		t.Fatalf("compose() error: %v", err)
	}

	inBody := false
	for _, line := range strings.Split(string(raw), "\r\n") {
		if strings.Contains(line, "Content-Transfer-Encoding: base64") {
			inBody = true
			continue
		}
		if inBody && len(line) > 76 && !strings.HasPrefix(line, "--") {
			t.Fatalf("base64 line exceeds 76 chars: %d", len(line))
		}
	}
}

func TestCompose_DefaultAttachmentContentType(t *testing.T) {
	m := newTestMailer()
	raw, err := m.compose(&Message{
		To:          []string{"x@example.com"},
		Subject:     "s",
		Body:        "b",
		Attachments: []Attachment{{Filename: "a.bin", Data: []byte{1, 2, 3}}},
	})
	if err != nil {
		t.Fatalf("compose() error: %v", err)
	}
	if !strings.Contains(string(raw), "Content-Type: application/octet-stream") {
		t.Error("attachment without content type should default to application/octet-stream")
	}
}

func TestSend_NoRecipients(t *testing.T) {
	m := newTestMailer()
	err := m.Send(context.Background(), &Message{Subject: "s", Body: "b"})
	if err == nil {
		t.Error("Send() with no recipients should fail")
	}
}
