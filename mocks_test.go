package credentials_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	credentials "github.com/goliatone/go-credentials"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// memoryStore is an AccountStore backed by a map. A single mutex makes
// every method atomic, mirroring the conditional updates of the SQL store.
type memoryStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*credentials.Account
	failWith error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{accounts: map[uuid.UUID]*credentials.Account{}}
}

func (s *memoryStore) Create(_ context.Context, account *credentials.Account) (*credentials.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != nil {
		return nil, s.failWith
	}

	for _, existing := range s.accounts {
		if existing.Email == account.Email {
			return nil, credentials.NewConstraintViolation(errors.New("duplicate email"), "accounts.email")
		}
		if account.FederatedID != "" && existing.FederatedID == account.FederatedID {
			return nil, credentials.NewConstraintViolation(errors.New("duplicate federated id"), "accounts.federated_id")
		}
	}

	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	now := time.Now()
	account.CreatedAt = &now

	stored := *account
	s.accounts[account.ID] = &stored
	return s.copyOf(&stored), nil
}

func (s *memoryStore) FindByID(_ context.Context, id uuid.UUID) (*credentials.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != nil {
		return nil, s.failWith
	}
	account, ok := s.accounts[id]
	if !ok {
		return nil, credentials.NewRecordNotFound(map[string]any{"id": id.String()})
	}
	return s.copyOf(account), nil
}

func (s *memoryStore) FindByEmail(_ context.Context, email string) (*credentials.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != nil {
		return nil, s.failWith
	}
	if account := s.byEmail(email); account != nil {
		return s.copyOf(account), nil
	}
	return nil, credentials.NewRecordNotFound(map[string]any{"email": email})
}

func (s *memoryStore) ConsumeVerificationToken(_ context.Context, token string, _ time.Time) (*credentials.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, account := range s.accounts {
		if account.VerificationToken == token {
			account.VerificationToken = ""
			account.EmailVerified = true
			return s.copyOf(account), nil
		}
	}
	return nil, credentials.NewRecordNotFound(map[string]any{"token": "verification"})
}

func (s *memoryStore) IssueResetToken(_ context.Context, id uuid.UUID, token string, expiresAt, now time.Time) (*credentials.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, credentials.NewRecordNotFound(map[string]any{"id": id.String()})
	}
	account.ResetToken = token
	account.ResetTokenExpiresAt = &expiresAt
	account.UpdatedAt = &now
	return s.copyOf(account), nil
}

func (s *memoryStore) ConsumeResetToken(_ context.Context, token, passwordHash string, now time.Time) (*credentials.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, account := range s.accounts {
		if account.ResetToken == token && account.ResetTokenLive(now) {
			account.PasswordHash = passwordHash
			account.ResetToken = ""
			account.ResetTokenExpiresAt = nil
			return s.copyOf(account), nil
		}
	}
	return nil, credentials.NewRecordNotFound(map[string]any{"token": "reset"})
}

func (s *memoryStore) AttachFederatedID(_ context.Context, id uuid.UUID, federatedID string, now time.Time) (*credentials.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok || account.FederatedID != "" {
		return nil, credentials.NewRecordNotFound(map[string]any{"id": id.String()})
	}
	for _, other := range s.accounts {
		if other.FederatedID == federatedID {
			return nil, credentials.NewConstraintViolation(errors.New("duplicate federated id"), "accounts.federated_id")
		}
	}
	account.FederatedID = federatedID
	account.UpdatedAt = &now
	return s.copyOf(account), nil
}

func (s *memoryStore) get(email string) *credentials.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyOf(s.byEmail(email))
}

func (s *memoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

func (s *memoryStore) byEmail(email string) *credentials.Account {
	for _, account := range s.accounts {
		if account.Email == email {
			return account
		}
	}
	return nil
}

func (s *memoryStore) copyOf(account *credentials.Account) *credentials.Account {
	if account == nil {
		return nil
	}
	c := *account
	return &c
}

// outbox records every message handed to the mailer
type outbox struct {
	mu       sync.Mutex
	messages []credentials.Message
}

func (o *outbox) Send(_ context.Context, msg credentials.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, msg)
	return nil
}

func (o *outbox) last() credentials.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.messages) == 0 {
		return credentials.Message{}
	}
	return o.messages[len(o.messages)-1]
}

func (o *outbox) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.messages)
}

// MockMailer implements credentials.Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, msg credentials.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// sequenceTokens hands out token-1, token-2, ...
type sequenceTokens struct {
	mu   sync.Mutex
	next int
}

func (g *sequenceTokens) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("token-%d", g.next), nil
}

// activityRecorder collects emitted activity events
type activityRecorder struct {
	mu     sync.Mutex
	events []credentials.ActivityEvent
}

func (r *activityRecorder) Record(_ context.Context, event credentials.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *activityRecorder) types() []credentials.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]credentials.ActivityEventType, 0, len(r.events))
	for _, event := range r.events {
		out = append(out, event.EventType)
	}
	return out
}

// fakeClock is a settable time source
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// countingHasher counts comparisons made by the wrapped bcrypt hasher
type countingHasher struct {
	*credentials.BcryptHasher
	mu       sync.Mutex
	compares int
}

func (h *countingHasher) ComparePasswordAndHash(password, hash string) error {
	h.mu.Lock()
	h.compares++
	h.mu.Unlock()
	return h.BcryptHasher.ComparePasswordAndHash(password, hash)
}

func (h *countingHasher) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.compares
}
