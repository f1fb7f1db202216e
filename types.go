package credentials

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds the process wide settings loaded once at start up
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() time.Duration
	GetIssuer() string
	GetAudience() []string
	GetHashAlgorithm() string
	GetBcryptCost() int
	GetResetTokenTTL() time.Duration
	GetAppURL() string
	GetUseHashid() bool
	GetFederatedConflictPolicy() string
}

// PasswordHasher hashes and verifies passwords
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// TokenGenerator issues opaque single use tokens
type TokenGenerator interface {
	Generate() (string, error)
}

// ClaimsSigner issues bearer tokens for an account
type ClaimsSigner interface {
	Sign(accountID, email string, role Role) (string, error)
}

// Mailer is the outbound mail port
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// AccountStore is the persistence boundary for accounts. Implementations
// must enforce email uniqueness and consume tokens atomically.
type AccountStore interface {
	Create(ctx context.Context, account *Account) (*Account, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	ConsumeVerificationToken(ctx context.Context, token string, now time.Time) (*Account, error)
	IssueResetToken(ctx context.Context, id uuid.UUID, token string, expiresAt, now time.Time) (*Account, error)
	ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) (*Account, error)
	AttachFederatedID(ctx context.Context, id uuid.UUID, federatedID string, now time.Time) (*Account, error)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] CREDENTIALS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] CREDENTIALS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] CREDENTIALS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] CREDENTIALS "+newline(format), args...)
}

// DefaultLogger returns the printf logger used when none is configured
func DefaultLogger() Logger {
	return defLogger{}
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
