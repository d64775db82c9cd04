package mailer

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/diagnosis/hotel-bookings/pkg/config"
)

func TestNewPicksTransport(t *testing.T) {
	if _, ok := New(config.EmailConfig{DevMode: true, MailerSendKey: "k"}).(*DevMailer); !ok {
		t.Error("dev mode should win")
	}
	if _, ok := New(config.EmailConfig{MailerSendKey: "k", SMTPFrom: "a@b.c"}).(*MailerSendClient); !ok {
		t.Error("api key should select MailerSend")
	}
	if _, ok := New(config.EmailConfig{SMTPHost: "localhost", SMTPPort: 1025}).(*SMTPMailer); !ok {
		t.Error("fallback should be SMTP")
	}
}

func TestDevMailerPrints(t *testing.T) {
	var buf bytes.Buffer
	err := NewDevMailer(&buf).Send(context.Background(), Message{To: "a@b.c", Subject: "Hello", Text: "body"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !strings.Contains(buf.String(), "Subject: Hello") || !strings.Contains(buf.String(), "body") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestMailerSendRequiresConfig(t *testing.T) {
	if err := NewMailerSend("", "Hotel", "").Send(context.Background(), Message{To: "a@b.c"}); err == nil {
		t.Error("expected error for unconfigured client")
	}
}

func TestSMTPMIME(t *testing.T) {
	s := NewSMTPMailer(" localhost ", 1025, "noreply@hotel.test", "", "", false)
	body := string(s.buildMIME(Message{To: "a@b.c", Subject: "Booking", Text: "plain", HTML: "<b>rich</b>"}))

	for _, want := range []string{"From: noreply@hotel.test", "Subject: Booking", "text/plain", "plain", "text/html", "<b>rich</b>", "--mixed-boundary--"} {
		if !strings.Contains(body, want) {
			t.Errorf("MIME body missing %q", want)
		}
	}
	if err := s.Send(context.Background(), Message{To: "  "}); err == nil {
		t.Error("empty recipient should fail")
	}
}
