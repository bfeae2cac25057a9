package mailer

import (
	"testing"

	"github.com/minicd/minicd/internal/config"
)

func TestNewUnconfiguredReturnsNilMailer(t *testing.T) {
	t.Parallel()
	m, err := New(config.MailConfig{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m != nil {
		t.Error("expected nil Mailer for unconfigured config")
	}
}

func TestSendOnNilMailerIsNoop(t *testing.T) {
	t.Parallel()
	var m *Mailer
	if err := m.Send("a@b.com", "subject", "body"); err != nil {
		t.Errorf("Send on nil Mailer: %v", err)
	}
}

func TestNewConfigured(t *testing.T) {
	t.Parallel()
	m, err := New(config.MailConfig{
		SMTPServer: "smtp.example.com",
		SMTPPort:   587,
		From:       "ci@example.com",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m == nil {
		t.Fatal("expected non-nil Mailer for configured config")
	}
	if m.from != "ci@example.com" {
		t.Errorf("from = %q, want ci@example.com", m.from)
	}
}
