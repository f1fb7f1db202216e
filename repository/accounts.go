package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	credentials "github.com/goliatone/go-credentials"
	repo "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Accounts implements credentials.AccountStore on top of bun.
//
// Token consumption never reads then writes: every state change that
// depends on a token is a single UPDATE whose WHERE clause re-checks the
// token, and the affected row count decides who won.
type Accounts struct {
	repo.Repository[*credentials.Account]
	db *bun.DB
}

var _ credentials.AccountStore = (*Accounts)(nil)

// NewAccounts returns the bun backed account store
func NewAccounts(db *bun.DB) *Accounts {
	base := repo.NewRepository[*credentials.Account](db, repo.ModelHandlers[*credentials.Account]{
		NewRecord: func() *credentials.Account { return &credentials.Account{} },
		GetID: func(a *credentials.Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *credentials.Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &Accounts{
		Repository: base,
		db:         db,
	}
}

// Create inserts a new account. A duplicate email or federated id is
// reported as a constraint violation.
func (a *Accounts) Create(ctx context.Context, account *credentials.Account) (*credentials.Account, error) {
	if account == nil {
		return nil, errors.New("account must not be nil")
	}

	prepareAccountDefaults(account)

	created, err := a.Repository.CreateTx(ctx, a.db, account)
	if err != nil {
		return nil, translate(err, map[string]any{"email": account.Email})
	}
	return created, nil
}

// FindByID loads an account by primary key
func (a *Accounts) FindByID(ctx context.Context, id uuid.UUID) (*credentials.Account, error) {
	account, err := a.Repository.GetByID(ctx, id.String())
	if err != nil {
		return nil, translate(err, map[string]any{"id": id.String()})
	}
	return account, nil
}

// FindByEmail loads an account by its normalized email
func (a *Accounts) FindByEmail(ctx context.Context, email string) (*credentials.Account, error) {
	return a.findOne(ctx, "email", credentials.NormalizeEmail(email))
}

// ConsumeVerificationToken marks the account holding token as verified and
// clears the token
func (a *Accounts) ConsumeVerificationToken(ctx context.Context, token string, now time.Time) (*credentials.Account, error) {
	account, err := a.findOne(ctx, "verification_token", token)
	if err != nil {
		return nil, err
	}

	res, err := a.db.NewUpdate().
		Model((*credentials.Account)(nil)).
		Set("email_verified = ?", true).
		Set("verification_token = NULL").
		Set("updated_at = ?", now.UTC()).
		Where("id = ?", account.ID.String()).
		Where("verification_token = ?", token).
		Exec(ctx)
	if err := affectedOne(res, err, "verification_token"); err != nil {
		return nil, err
	}

	account.EmailVerified = true
	account.VerificationToken = ""
	return account, nil
}

// IssueResetToken stores a reset token and its expiry, replacing any
// previous pair
func (a *Accounts) IssueResetToken(ctx context.Context, id uuid.UUID, token string, expiresAt, now time.Time) (*credentials.Account, error) {
	expiresAt = expiresAt.UTC()

	res, err := a.db.NewUpdate().
		Model((*credentials.Account)(nil)).
		Set("reset_token = ?", token).
		Set("reset_token_expires_at = ?", expiresAt).
		Set("updated_at = ?", now.UTC()).
		Where("id = ?", id.String()).
		Exec(ctx)
	if err := affectedOne(res, err, "id"); err != nil {
		return nil, err
	}

	return a.FindByID(ctx, id)
}

// ConsumeResetToken replaces the password hash of the account holding a
// reset token that is still live at now, clearing the token and expiry
func (a *Accounts) ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) (*credentials.Account, error) {
	now = now.UTC()

	account := &credentials.Account{}
	err := a.db.NewSelect().
		Model(account).
		Where("?TableAlias.reset_token = ?", token).
		Where("?TableAlias.reset_token_expires_at > ?", now).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, translate(err, map[string]any{"column": "reset_token"})
	}

	// an expired token is absent even if the row still holds it
	if !account.ResetTokenLive(now) {
		return nil, credentials.NewRecordNotFound(map[string]any{"column": "reset_token"})
	}

	res, err := a.db.NewUpdate().
		Model((*credentials.Account)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("reset_token = NULL").
		Set("reset_token_expires_at = NULL").
		Set("updated_at = ?", now).
		Where("id = ?", account.ID.String()).
		Where("reset_token = ?", token).
		Where("reset_token_expires_at > ?", now).
		Exec(ctx)
	if err := affectedOne(res, err, "reset_token"); err != nil {
		return nil, err
	}

	account.PasswordHash = passwordHash
	account.ResetToken = ""
	account.ResetTokenExpiresAt = nil
	return account, nil
}

// AttachFederatedID links a federated identity to an account that has none
func (a *Accounts) AttachFederatedID(ctx context.Context, id uuid.UUID, federatedID string, now time.Time) (*credentials.Account, error) {
	res, err := a.db.NewUpdate().
		Model((*credentials.Account)(nil)).
		Set("federated_id = ?", federatedID).
		Set("updated_at = ?", now.UTC()).
		Where("id = ?", id.String()).
		Where("federated_id IS NULL").
		Exec(ctx)
	if err := affectedOne(res, err, "federated_id"); err != nil {
		return nil, err
	}

	return a.FindByID(ctx, id)
}

func (a *Accounts) findOne(ctx context.Context, column, value string) (*credentials.Account, error) {
	if value == "" {
		return nil, credentials.NewRecordNotFound(map[string]any{"column": column})
	}

	account := &credentials.Account{}
	err := a.db.NewSelect().
		Model(account).
		Where("?TableAlias.? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, translate(err, map[string]any{"column": column})
	}
	return account, nil
}

func affectedOne(res sql.Result, err error, column string) error {
	if err != nil {
		return translate(err, map[string]any{"column": column})
	}
	n, err := res.RowsAffected()
	if err != nil {
		return translate(err, map[string]any{"column": column})
	}
	if n != 1 {
		return credentials.NewRecordNotFound(map[string]any{"column": column})
	}
	return nil
}

// translate maps driver and repository errors onto the store taxonomy
func translate(err error, meta map[string]any) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) || repo.IsRecordNotFound(err) {
		return credentials.NewRecordNotFound(meta)
	}

	if isUniqueViolation(err) {
		return credentials.NewConstraintViolation(err, "unique").WithMetadata(meta)
	}

	return err
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		// 23505 unique_violation
		return pgErr.Field('C') == "23505"
	}

	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

func prepareAccountDefaults(record *credentials.Account) {
	if record.Role == "" {
		record.Role = credentials.RoleStandard
	}

	record.Email = credentials.NormalizeEmail(record.Email)

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
