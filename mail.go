package credentials

import (
	"context"
	"net/url"
	"strings"

	"github.com/flosch/pongo2/v6"
	goerrors "github.com/goliatone/go-errors"
)

// Message is an outbound email
type Message struct {
	To      string
	Subject string
	Body    string
}

// MailerFunc adapts a function to the Mailer interface
type MailerFunc func(ctx context.Context, msg Message) error

// Send implements Mailer
func (f MailerFunc) Send(ctx context.Context, msg Message) error {
	if f == nil {
		return nil
	}
	return f(ctx, msg)
}

// LogMailer writes messages to the logger instead of delivering them,
// useful for local development
type LogMailer struct {
	Logger Logger
}

// Send implements Mailer
func (m LogMailer) Send(_ context.Context, msg Message) error {
	logger := m.Logger
	if logger == nil {
		logger = defLogger{}
	}
	logger.Info("====== SENDING EMAIL NOTIFICATION =======\nto: %s\nsubject: %s\n%s", msg.To, msg.Subject, msg.Body)
	return nil
}

const verificationTemplate = `<h1>Email Verification</h1>
<p>Hi {{ name }}, please click the link below to verify your email:</p>
<a href="{{ link }}">{{ link }}</a>`

const resetTemplate = `<h1>Password Reset</h1>
<p>Please click the link below to reset your password:</p>
<a href="{{ link }}">{{ link }}</a>
<p>This link will expire in {{ window }}.</p>`

// MailTemplates renders the verification and reset emails
type MailTemplates struct {
	appURL       string
	verification *pongo2.Template
	reset        *pongo2.Template
}

// NewMailTemplates compiles the built in templates. Links are built
// relative to appURL.
func NewMailTemplates(appURL string) (*MailTemplates, error) {
	verification, err := pongo2.FromString(verificationTemplate)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to compile verification template")
	}

	reset, err := pongo2.FromString(resetTemplate)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to compile reset template")
	}

	return &MailTemplates{
		appURL:       strings.TrimRight(appURL, "/"),
		verification: verification,
		reset:        reset,
	}, nil
}

// VerificationMessage renders the email carrying the verification link
func (t *MailTemplates) VerificationMessage(account *Account, token string) (Message, error) {
	link := t.link("/auth/verify-email", token)
	body, err := t.verification.Execute(pongo2.Context{
		"name": account.Name,
		"link": link,
	})
	if err != nil {
		return Message{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render verification email")
	}
	return Message{To: account.Email, Subject: "Verify your email", Body: body}, nil
}

// ResetMessage renders the email carrying the reset link
func (t *MailTemplates) ResetMessage(account *Account, token string, window string) (Message, error) {
	link := t.link("/auth/reset-password", token)
	body, err := t.reset.Execute(pongo2.Context{
		"name":   account.Name,
		"link":   link,
		"window": window,
	})
	if err != nil {
		return Message{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render reset email")
	}
	return Message{To: account.Email, Subject: "Reset your password", Body: body}, nil
}

func (t *MailTemplates) link(path, token string) string {
	return t.appURL + path + "?token=" + url.QueryEscape(token)
}
