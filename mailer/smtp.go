package mailer

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	credentials "github.com/goliatone/go-credentials"
	goerrors "github.com/goliatone/go-errors"
)

// SendFunc matches smtp.SendMail
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTP delivers credentials.Message values through an SMTP relay
type SMTP struct {
	host   string
	addr   string
	from   string
	auth   smtp.Auth
	send   SendFunc
	logger credentials.Logger
	now    func() time.Time
}

var _ credentials.Mailer = (*SMTP)(nil)

// Option configures the SMTP mailer
type Option func(*SMTP)

// WithSendFunc replaces smtp.SendMail, tests use it to capture messages
func WithSendFunc(send SendFunc) Option {
	return func(s *SMTP) {
		if send != nil {
			s.send = send
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger credentials.Logger) Option {
	return func(s *SMTP) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSMTP builds a mailer from the SMTP section of the options.
// Authentication is only configured when a username is present.
func NewSMTP(cfg credentials.SMTPOptions, opts ...Option) (*SMTP, error) {
	if cfg.Host == "" {
		return nil, goerrors.New("smtp host is required", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"field": "SMTP_HOST"})
	}
	if cfg.From == "" {
		return nil, goerrors.New("smtp sender is required", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"field": "SMTP_FROM"})
	}

	port := cfg.Port
	if port == 0 {
		port = 587
	}

	s := &SMTP{
		host:   cfg.Host,
		addr:   net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		from:   cfg.From,
		send:   smtp.SendMail,
		logger: credentials.DefaultLogger(),
		now:    time.Now,
	}

	if cfg.Username != "" {
		s.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s, nil
}

// Addr returns the relay address
func (s *SMTP) Addr() string {
	return s.addr
}

// Send implements credentials.Mailer
func (s *SMTP) Send(ctx context.Context, msg credentials.Message) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled before sending email")
	default:
	}

	if strings.TrimSpace(msg.To) == "" {
		return goerrors.New("email recipient is required", goerrors.CategoryValidation)
	}

	body := s.compose(msg)

	if err := s.send(s.addr, s.auth, s.from, []string{msg.To}, body); err != nil {
		s.logger.Error("smtp delivery to %s via %s failed: %v", msg.To, s.addr, err)
		return goerrors.Wrap(err, goerrors.CategoryExternal, "failed to deliver email").
			WithMetadata(map[string]any{"to": msg.To, "relay": s.addr})
	}

	s.logger.Debug("smtp delivered %q to %s", msg.Subject, msg.To)
	return nil
}

func (s *SMTP) compose(msg credentials.Message) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", sanitizeHeader(msg.To))
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", s.now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return b.Bytes()
}

func sanitizeHeader(value string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(value)
}
