package notification

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestTemplateEngine_RenderBuiltIn(t *testing.T) {
	e := NewTemplateEngine()
	subject, body, err := e.Render(TemplateAccountApproved, map[string]string{
		"name":      "Aline",
		"email":     "aline@example.com",
		"login_url": "https://app.example.com/login",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if subject != "Your UmutiSafe Account Has Been Approved!" {
		t.Errorf("unexpected subject %q", subject)
	}
	if !strings.Contains(body, "Hello Aline,") || !strings.Contains(body, "https://app.example.com/login") {
		t.Errorf("placeholders not replaced: %s", body)
	}
}

func TestTemplateEngine_UnknownTemplate(t *testing.T) {
	if _, _, err := NewTemplateEngine().Render("missing", nil); err == nil {
		t.Error("expected error for unknown template")
	}
}

func TestTemplateEngine_KeepsUnknownPlaceholders(t *testing.T) {
	e := NewTemplateEngine()
	e.RegisterTemplate(Template{ID: "x", Subject: "Hi {{name}}", Body: "{{other}}"})
	_, body, _ := e.Render("x", map[string]string{"name": "A"})
	if body != "{{other}}" {
		t.Errorf("expected placeholder to survive, got %q", body)
	}
}

func TestNotifier_RegistrationPending(t *testing.T) {
	sender := &MockEmailSender{}
	n := NewNotifier(sender, nil, "http://localhost:3000/", zerolog.Nop())

	n.RegistrationPending(Recipient{Name: "Jean", Email: "jean@example.com"})
	n.Wait()

	calls := sender.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 email, got %d", len(calls))
	}
	if calls[0].To != "jean@example.com" {
		t.Errorf("unexpected recipient %q", calls[0].To)
	}
	if calls[0].Subject != "Welcome to UmutiSafe - Account Pending Approval" {
		t.Errorf("unexpected subject %q", calls[0].Subject)
	}
}

func TestNotifier_ApprovedUsesFrontendURL(t *testing.T) {
	sender := &MockEmailSender{}
	n := NewNotifier(sender, nil, "https://umutisafe.example/", zerolog.Nop())

	n.AccountApproved(Recipient{Name: "Jean", Email: "jean@example.com"})
	n.Wait()

	calls := sender.Calls()
	if len(calls) != 1 || !strings.Contains(calls[0].Body, "https://umutisafe.example/login") {
		t.Fatalf("expected login link in body, got %+v", calls)
	}
}

func TestNotifier_FailureIsSwallowed(t *testing.T) {
	sender := &MockEmailSender{ShouldFail: true}
	n := NewNotifier(sender, nil, "", zerolog.Nop())

	n.AccountApproved(Recipient{Name: "Jean", Email: "jean@example.com"})
	n.Wait()

	if len(sender.Calls()) != 1 {
		t.Error("expected the failing send to be attempted once")
	}
}

func TestNotifier_SendRequiresRecipient(t *testing.T) {
	n := NewNotifier(&MockEmailSender{}, nil, "", zerolog.Nop())
	if err := n.Send(context.Background(), TemplateAccountApproved, "", nil); err == nil {
		t.Error("expected error for empty recipient")
	}
}

func TestBuildMessage(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	msg := string(buildMessage("UmutiSafe <noreply@umutisafe.gov.rw>", "a@b.rw", "Hi", "line1\nline2", at))

	if !strings.Contains(msg, "Subject: Hi\r\n") {
		t.Errorf("missing subject header: %q", msg)
	}
	if !strings.HasSuffix(msg, "line1\r\nline2") {
		t.Errorf("expected CRLF body, got %q", msg)
	}
	if envelopeAddress("UmutiSafe <noreply@umutisafe.gov.rw>") != "noreply@umutisafe.gov.rw" {
		t.Error("expected envelope address to be extracted")
	}
	if envelopeAddress("plain@umutisafe.gov.rw") != "plain@umutisafe.gov.rw" {
		t.Error("expected bare address to pass through")
	}
}
