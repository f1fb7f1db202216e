package credentials

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultResetTokenTTL is how long a password reset link stays valid
const DefaultResetTokenTTL = time.Hour

// Manager runs the account credential lifecycle: registration, email
// verification, login, password reset and federated identity linking.
//
// Operations are independent units of work. The only shared state is
// the configuration captured by NewManager, which is never mutated.
type Manager struct {
	store          AccountStore
	hasher         PasswordHasher
	tokens         TokenGenerator
	signer         ClaimsSigner
	mailer         Mailer
	templates      *MailTemplates
	activity       ActivitySink
	logger         Logger
	resetTTL       time.Duration
	useHashid      bool
	conflictPolicy string
	dummyHash      string
	now            func() time.Time
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// NewManager wires a Manager from its collaborators and Config
func NewManager(cfg Config, store AccountStore, signer ClaimsSigner, mailer Mailer, opts ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, goerrors.New("account store is required", goerrors.CategoryInternal)
	}
	if signer == nil {
		return nil, goerrors.New("claims signer is required", goerrors.CategoryInternal)
	}
	if mailer == nil {
		return nil, goerrors.New("mailer is required", goerrors.CategoryInternal)
	}

	templates, err := NewMailTemplates(cfg.GetAppURL())
	if err != nil {
		return nil, err
	}

	m := &Manager{
		store:          store,
		hasher:         NewPasswordHasher(cfg.GetHashAlgorithm(), cfg.GetBcryptCost()),
		tokens:         NewRandomTokenGenerator(),
		signer:         signer,
		mailer:         mailer,
		templates:      templates,
		activity:       noopActivitySink{},
		logger:         defLogger{},
		resetTTL:       cfg.GetResetTokenTTL(),
		useHashid:      cfg.GetUseHashid(),
		conflictPolicy: cfg.GetFederatedConflictPolicy(),
		now:            time.Now,
	}

	if m.resetTTL <= 0 {
		m.resetTTL = DefaultResetTokenTTL
	}
	if m.conflictPolicy == "" {
		m.conflictPolicy = ConflictPolicyKeep
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	if hash, err := m.hasher.HashPassword(uuid.NewString()); err == nil {
		m.dummyHash = hash
	}

	return m, nil
}

// WithPasswordHasher overrides the hasher picked from Config
func WithPasswordHasher(hasher PasswordHasher) ManagerOption {
	return func(m *Manager) {
		if hasher != nil {
			m.hasher = hasher
		}
	}
}

// WithTokenGenerator overrides the random token generator
func WithTokenGenerator(tokens TokenGenerator) ManagerOption {
	return func(m *Manager) {
		if tokens != nil {
			m.tokens = tokens
		}
	}
}

// WithActivitySink sets the sink used to emit lifecycle events.
func WithActivitySink(sink ActivitySink) ManagerOption {
	return func(m *Manager) {
		m.activity = normalizeActivitySink(sink)
	}
}

// WithLogger overrides the logger used by the manager.
func WithLogger(logger Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the time source, tests use it to move past expiry
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// ResetTokenTTL returns the reset window
func (m *Manager) ResetTokenTTL() time.Duration {
	return m.resetTTL
}

func (m *Manager) begin(ctx context.Context, operation string) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled before "+operation,
		)
	default:
		return nil
	}
}

func (m *Manager) record(ctx context.Context, eventType ActivityEventType, accountID string, meta map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		AccountID:  accountID,
		Metadata:   meta,
		OccurredAt: m.now(),
	}

	if err := normalizeActivitySink(m.activity).Record(ctx, event); err != nil {
		m.logger.Warn("activity sink error for %s: %v", eventType, err)
	}
}

func (m *Manager) sendMail(ctx context.Context, account *Account, msg Message, kind string) error {
	if err := m.mailer.Send(ctx, msg); err != nil {
		m.logger.Error("failed to send %s email to %s: %v", kind, account.Email, err)
		m.record(ctx, ActivityEventMailFailure, account.ID.String(), map[string]any{"kind": kind})
		return internalError(err, "failed to send "+kind+" email")
	}
	return nil
}

// internalError reports an unexpected store or transport failure. go-errors
// Wrap keeps the category of rich errors, so a fresh error is built here.
func internalError(err error, message string) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Category == goerrors.CategoryInternal {
		return richErr
	}
	internal := goerrors.New(message, goerrors.CategoryInternal).WithCode(goerrors.CodeInternal)
	internal.Source = err
	return internal
}
