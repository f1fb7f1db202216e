package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	credentials "github.com/goliatone/go-credentials"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupAccounts(t *testing.T) *Accounts {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		_ = db.Close()
	})

	require.NoError(t, CreateSchema(context.Background(), db))

	return NewAccounts(db)
}

func newAccount(email string) *credentials.Account {
	return &credentials.Account{
		Name:              "Jane Doe",
		Email:             email,
		PasswordHash:      "hash",
		VerificationToken: uuid.NewString(),
	}
}

func TestAccountsCreateAndFind(t *testing.T) {
	store := setupAccounts(t)
	ctx := context.Background()

	created, err := store.Create(ctx, newAccount("  Jane@Example.COM "))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, "jane@example.com", created.Email)
	assert.Equal(t, credentials.RoleStandard, created.Role)

	byEmail, err := store.FindByEmail(ctx, "JANE@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
	assert.False(t, byEmail.EmailVerified)

	byID, err := store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", byID.Email)
	assert.Equal(t, "hash", byID.PasswordHash)
}

func TestAccountsFindMissing(t *testing.T) {
	store := setupAccounts(t)
	ctx := context.Background()

	_, err := store.FindByEmail(ctx, "nobody@example.com")
	assert.True(t, credentials.IsRecordNotFound(err))

	_, err = store.FindByID(ctx, uuid.New())
	assert.True(t, credentials.IsRecordNotFound(err))

	_, err = store.FindByEmail(ctx, "")
	assert.True(t, credentials.IsRecordNotFound(err))
}

func TestAccountsCreateDuplicateEmail(t *testing.T) {
	store := setupAccounts(t)
	ctx := context.Background()

	_, err := store.Create(ctx, newAccount("dup@example.com"))
	require.NoError(t, err)

	_, err = store.Create(ctx, newAccount("DUP@example.com"))
	require.Error(t, err)
	assert.True(t, credentials.IsConstraintViolation(err))
}

func TestAccountsConcurrentCreateSameEmail(t *testing.T) {
	store := setupAccounts(t)
	ctx := context.Background()

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Create(ctx, newAccount("race@example.com"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case credentials.IsConstraintViolation(err):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, conflicts)
}

func TestAccountsConsumeVerificationToken(t *testing.T) {
	store := setupAccounts(t)
	ctx := context.Background()

	account := newAccount("verify@example.com")
	token := account.VerificationToken
	_, err := store.Create(ctx, account)
	require.NoError(t, err)

	verified, err := store.ConsumeVerificationToken(ctx, token, time.Now())
	require.NoError(t, err)
	assert.True(t, verified.EmailVerified)
	assert.Empty(t, verified.VerificationToken)

	reloaded, err := store.FindByEmail(ctx, "verify@example.com")
	require.NoError(t, err)
	assert.True(t, reloaded.EmailVerified)
	assert.Empty(t, reloaded.VerificationToken)

	_, err = store.ConsumeVerificationToken(ctx, token, time.Now())
	assert.True(t, credentials.IsRecordNotFound(err))
}

func TestAccountsConcurrentVerificationSingleUse(t *testing.T) {
	store := setupAccounts(t)
	ctx := context.Background()

	account := newAccount("once@example.com")
	token := account.VerificationToken
	_, err := store.Create(ctx, account)
	require.NoError(t, err)

	const workers = 6
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.ConsumeVerificationToken(ctx, token, time.Now()); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
}

func TestAccountsResetTokenLifecycle(t *testing.T) {
	store := setupAccounts(t)
	ctx := context.Background()

	created, err := store.Create(ctx, newAccount("reset@example.com"))
	require.NoError(t, err)

	now := time.Now()
	issued, err := store.IssueResetToken(ctx, created.ID, "first", now.Add(time.Hour), now)
	require.NoError(t, err)
	assert.Equal(t, "first", issued.ResetToken)
	require.NotNil(t, issued.ResetTokenExpiresAt)

	// a new request replaces the previous token
	_, err = store.IssueResetToken(ctx, created.ID, "second", now.Add(time.Hour), now)
	require.NoError(t, err)

	_, err = store.ConsumeResetToken(ctx, "first", "new-hash", now)
	assert.True(t, credentials.IsRecordNotFound(err))

	updated, err := store.ConsumeResetToken(ctx, "second", "new-hash", now)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", updated.PasswordHash)
	assert.Empty(t, updated.ResetToken)
	assert.Nil(t, updated.ResetTokenExpiresAt)

	reloaded, err := store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", reloaded.PasswordHash)
	assert.Empty(t, reloaded.ResetToken)
	assert.Nil(t, reloaded.ResetTokenExpiresAt)

	_, err = store.ConsumeResetToken(ctx, "second", "other-hash", now)
	assert.True(t, credentials.IsRecordNotFound(err))
}

func TestAccountsExpiredResetToken(t *testing.T) {
	store := setupAccounts(t)
	ctx := context.Background()

	created, err := store.Create(ctx, newAccount("expired@example.com"))
	require.NoError(t, err)

	now := time.Now()
	_, err = store.IssueResetToken(ctx, created.ID, "stale", now.Add(time.Hour), now)
	require.NoError(t, err)

	_, err = store.ConsumeResetToken(ctx, "stale", "new-hash", now.Add(2*time.Hour))
	assert.True(t, credentials.IsRecordNotFound(err))

	reloaded, err := store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "hash", reloaded.PasswordHash)
}

func TestAccountsConcurrentResetSingleUse(t *testing.T) {
	store := setupAccounts(t)
	ctx := context.Background()

	created, err := store.Create(ctx, newAccount("reset-once@example.com"))
	require.NoError(t, err)

	now := time.Now()
	_, err = store.IssueResetToken(ctx, created.ID, "shared", now.Add(time.Hour), now)
	require.NoError(t, err)

	const workers = 6
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		missing   int
		winner    string
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			hash := fmt.Sprintf("hash-%d", i)
			_, err := store.ConsumeResetToken(ctx, "shared", hash, now)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
				winner = hash
			case credentials.IsRecordNotFound(err):
				missing++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, missing)

	reloaded, err := store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, winner, reloaded.PasswordHash)
	assert.Empty(t, reloaded.ResetToken)
}

func TestAccountsUpdatesUseCallerClock(t *testing.T) {
	store := setupAccounts(t)
	ctx := context.Background()

	created, err := store.Create(ctx, newAccount("clock@example.com"))
	require.NoError(t, err)

	issuedAt := time.Date(2031, 5, 4, 10, 0, 0, 0, time.UTC)
	_, err = store.IssueResetToken(ctx, created.ID, "clocked", issuedAt.Add(time.Hour), issuedAt)
	require.NoError(t, err)

	reloaded, err := store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.UpdatedAt)
	assert.WithinDuration(t, issuedAt, *reloaded.UpdatedAt, time.Second)

	linkedAt := issuedAt.Add(24 * time.Hour)
	_, err = store.AttachFederatedID(ctx, created.ID, "google-clock", linkedAt)
	require.NoError(t, err)

	reloaded, err = store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.UpdatedAt)
	assert.WithinDuration(t, linkedAt, *reloaded.UpdatedAt, time.Second)
}

func TestAccountsIssueResetTokenUnknownAccount(t *testing.T) {
	store := setupAccounts(t)

	now := time.Now()
	_, err := store.IssueResetToken(context.Background(), uuid.New(), "token", now.Add(time.Hour), now)
	assert.True(t, credentials.IsRecordNotFound(err))
}

func TestAccountsAttachFederatedID(t *testing.T) {
	store := setupAccounts(t)
	ctx := context.Background()

	first, err := store.Create(ctx, newAccount("first@example.com"))
	require.NoError(t, err)
	second, err := store.Create(ctx, newAccount("second@example.com"))
	require.NoError(t, err)

	now := time.Now()
	linked, err := store.AttachFederatedID(ctx, first.ID, "google-1", now)
	require.NoError(t, err)
	assert.Equal(t, "google-1", linked.FederatedID)

	// an account that is already linked is left alone
	_, err = store.AttachFederatedID(ctx, first.ID, "google-2", now)
	assert.True(t, credentials.IsRecordNotFound(err))

	// a provider id belongs to one account only
	_, err = store.AttachFederatedID(ctx, second.ID, "google-1", now)
	assert.True(t, credentials.IsConstraintViolation(err))

	reloaded, err := store.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "google-1", reloaded.FederatedID)
}

func TestAccountsCreateWithoutPassword(t *testing.T) {
	store := setupAccounts(t)
	ctx := context.Background()

	account := &credentials.Account{
		Name:          "Fed User",
		Email:         "fed@example.com",
		EmailVerified: true,
		FederatedID:   "google-9",
	}
	created, err := store.Create(ctx, account)
	require.NoError(t, err)

	reloaded, err := store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.HasPassword())
	assert.True(t, reloaded.HasFederatedIdentity())
	assert.True(t, reloaded.EmailVerified)
}
