package credentials

import (
	"context"

	"github.com/google/uuid"
)

// Login checks the password and issues a bearer token. Unknown email and
// wrong password fail with the same ErrInvalidCredentials.
func (m *Manager) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if err := m.begin(ctx, "login"); err != nil {
		return nil, err
	}

	account, err := m.store.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if !IsRecordNotFound(err) {
			return nil, internalError(err, "failed to look up account by email")
		}
		m.dummyCompare(password)
		m.record(ctx, ActivityEventLoginFailure, "", map[string]any{"reason": "unknown_email"})
		return nil, ErrInvalidCredentials
	}

	if !account.HasPassword() || password == "" {
		m.dummyCompare(password)
		m.record(ctx, ActivityEventLoginFailure, account.ID.String(), map[string]any{"reason": "no_password"})
		return nil, ErrInvalidCredentials
	}

	if err := m.hasher.ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		m.record(ctx, ActivityEventLoginFailure, account.ID.String(), map[string]any{"reason": "mismatch"})
		return nil, ErrInvalidCredentials
	}

	if !account.EmailVerified {
		m.record(ctx, ActivityEventLoginFailure, account.ID.String(), map[string]any{"reason": "not_verified"})
		return nil, ErrAccountNotVerified
	}

	return m.issue(ctx, account)
}

// Profile returns the public projection of an account
func (m *Manager) Profile(ctx context.Context, accountID string) (*PublicProfile, error) {
	if err := m.begin(ctx, "profile lookup"); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(accountID)
	if err != nil {
		return nil, ErrAccountNotFound
	}

	account, err := m.store.FindByID(ctx, id)
	if err != nil {
		if IsRecordNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, internalError(err, "failed to look up account")
	}
	return account.Profile(), nil
}

// dummyCompare spends one hash comparison so every rejected login costs
// the same as a wrong password
func (m *Manager) dummyCompare(password string) {
	if m.dummyHash != "" {
		_ = m.hasher.ComparePasswordAndHash(password, m.dummyHash)
	}
}

func (m *Manager) issue(ctx context.Context, account *Account) (*LoginResult, error) {
	token, err := m.signer.Sign(account.ID.String(), account.Email, account.Role)
	if err != nil {
		return nil, internalError(err, "failed to sign bearer token")
	}

	m.record(ctx, ActivityEventLoginSuccess, account.ID.String(), nil)

	return &LoginResult{
		AccessToken: token,
		Profile:     account.Profile(),
	}, nil
}
