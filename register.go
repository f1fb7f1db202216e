package credentials

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// MinPasswordLength is the shortest password accepted on registration and
// reset
const MinPasswordLength = 6

// RegisterInput carries a registration request
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Password, passwordRules...),
	)
}

var passwordRules = []validation.Rule{
	validation.Required,
	validation.Length(MinPasswordLength, 0),
}

func validatePassword(password string) error {
	if err := validation.Validate(password, passwordRules...); err != nil {
		return goerrors.FromOzzoValidation(validation.Errors{"password": err}, "invalid password provided")
	}
	return nil
}

// Register creates an unverified account and mails its verification link.
// The account is committed before the mail attempt, so a delivery failure
// is reported but leaves the account in place.
func (m *Manager) Register(ctx context.Context, input RegisterInput) (*Confirmation, error) {
	if err := m.begin(ctx, "registration"); err != nil {
		return nil, err
	}

	if err := input.Validate(); err != nil {
		return nil, goerrors.FromOzzoValidation(err, "invalid registration")
	}

	email := NormalizeEmail(input.Email)

	// pre-check only, the unique index decides under concurrency
	if _, err := m.store.FindByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !IsRecordNotFound(err) {
		return nil, internalError(err, "failed to look up account by email")
	}

	account := &Account{
		Name:          input.Name,
		Email:         email,
		Role:          RoleStandard,
		EmailVerified: false,
	}

	hash, err := m.hasher.HashPassword(input.Password)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
	}
	account.PasswordHash = hash

	token, err := m.tokens.Generate()
	if err != nil {
		return nil, internalError(err, "failed to issue verification token")
	}
	account.VerificationToken = token
	account.ID = m.newAccountID(email)

	created, err := m.store.Create(ctx, account)
	if err != nil {
		if IsConstraintViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, internalError(err, "could not create account")
	}

	m.record(ctx, ActivityEventRegistered, created.ID.String(), nil)

	msg, err := m.templates.VerificationMessage(created, token)
	if err != nil {
		return nil, err
	}
	if err := m.sendMail(ctx, created, msg, "verification"); err != nil {
		return nil, err
	}

	return &Confirmation{Message: "Registration successful. Please check your email for verification."}, nil
}

func (m *Manager) newAccountID(email string) uuid.UUID {
	if m.useHashid {
		if id, err := hashid.NewUUID(email); err == nil {
			return id
		}
	}
	return uuid.New()
}
