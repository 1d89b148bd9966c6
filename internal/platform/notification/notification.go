// Package notification renders account emails from templates and delivers
// them through a pluggable EmailSender. Delivery is fire-and-forget: a failed
// email is logged and never fails the request that triggered it.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	TemplateRegistrationPending = "registration-pending"
	TemplateAccountApproved     = "account-approved"
)

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type Template struct {
	ID      string
	Subject string
	Body    string
}

// TemplateEngine renders {{key}} placeholders.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]Template
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]Template)}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	e.templates[TemplateRegistrationPending] = Template{
		ID:      TemplateRegistrationPending,
		Subject: "Welcome to UmutiSafe - Account Pending Approval",
		Body: `Hello {{name}},

Thank you for registering with UmutiSafe, Rwanda's Safe Medicine Disposal Platform.

Your account has been created successfully and is currently pending approval by our administrator.
You will receive another email once your account has been approved and you can start using the platform.

What happens next?
- Our admin team will review your registration
- You'll receive an approval email (usually within 24 hours)
- Once approved, you can log in and start using UmutiSafe

Best regards,
The UmutiSafe Team`,
	}
	e.templates[TemplateAccountApproved] = Template{
		ID:      TemplateAccountApproved,
		Subject: "Your UmutiSafe Account Has Been Approved!",
		Body: `Hello {{name}},

Great news! Your UmutiSafe account has been approved by our administrator.
You can now log in and start using the platform to safely dispose of your unused medicines.

Email: {{email}}
Login at: {{login_url}}

What you can do now:
- Scan or enter medicine information
- Get disposal guidance based on risk level
- Request pickup from Community Health Workers
- Access educational resources
- Track your disposal history

Best regards,
The UmutiSafe Team

---
UmutiSafe - Safe Medicine Disposal Platform
This is an automated message. Please do not reply to this email.`,
	}
}

func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = t
}

// Render replaces {{key}} with data[key]. Unknown placeholders are left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject, body = t.Subject, t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// Recipient is the part of a user account an email needs.
type Recipient struct {
	Name  string
	Email string
}

// Notifier sends the account lifecycle emails in the background.
type Notifier struct {
	sender      EmailSender
	tpl         *TemplateEngine
	frontendURL string
	timeout     time.Duration
	logger      zerolog.Logger
	wg          sync.WaitGroup
}

func NewNotifier(sender EmailSender, tpl *TemplateEngine, frontendURL string, logger zerolog.Logger) *Notifier {
	if tpl == nil {
		tpl = NewTemplateEngine()
	}
	return &Notifier{
		sender:      sender,
		tpl:         tpl,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		timeout:     30 * time.Second,
		logger:      logger,
	}
}

func (n *Notifier) RegistrationPending(r Recipient) {
	n.dispatch(TemplateRegistrationPending, r, map[string]string{"name": r.Name, "email": r.Email})
}

func (n *Notifier) AccountApproved(r Recipient) {
	n.dispatch(TemplateAccountApproved, r, map[string]string{
		"name":      r.Name,
		"email":     r.Email,
		"login_url": n.frontendURL + "/login",
	})
}

// Send renders and delivers synchronously.
func (n *Notifier) Send(ctx context.Context, templateID string, to string, data map[string]string) error {
	if to == "" {
		return errors.New("recipient is required")
	}
	subject, body, err := n.tpl.Render(templateID, data)
	if err != nil {
		return err
	}
	return n.sender.SendEmail(ctx, to, subject, body)
}

func (n *Notifier) dispatch(templateID string, r Recipient, data map[string]string) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		if err := n.Send(ctx, templateID, r.Email, data); err != nil {
			n.logger.Error().Err(err).
				Str("template", templateID).
				Str("to", r.Email).
				Msg("send email failed")
			return
		}
		n.logger.Info().Str("template", templateID).Str("to", r.Email).Msg("email sent")
	}()
}

// Wait blocks until in-flight emails finish. Called on shutdown.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// LogSender writes emails to the log instead of delivering them. Used in
// development when no SMTP host is configured.
type LogSender struct {
	Logger zerolog.Logger
}

func (s LogSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.Logger.Info().Str("to", to).Str("subject", subject).Int("body_len", len(body)).Msg("email (development mode)")
	return nil
}

type EmailCall struct {
	To      string
	Subject string
	Body    string
}

// MockEmailSender records calls and optionally fails them.
type MockEmailSender struct {
	mu         sync.Mutex
	calls      []EmailCall
	ShouldFail bool
}

func (m *MockEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, EmailCall{To: to, Subject: subject, Body: body})
	if m.ShouldFail {
		return errors.New("smtp unavailable")
	}
	return nil
}

func (m *MockEmailSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailCall, len(m.calls))
	copy(out, m.calls)
	return out
}
