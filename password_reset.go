package credentials

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// RequestPasswordReset issues a reset token valid for the reset window,
// replacing any token issued before, and mails the reset link.
func (m *Manager) RequestPasswordReset(ctx context.Context, email string) (*Confirmation, error) {
	if err := m.begin(ctx, "password reset request"); err != nil {
		return nil, err
	}

	account, err := m.store.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if IsRecordNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, internalError(err, "failed to retrieve account for password reset")
	}

	token, err := m.tokens.Generate()
	if err != nil {
		return nil, internalError(err, "failed to issue reset token")
	}

	now := m.now()
	expiresAt := now.Add(m.resetTTL)
	account, err = m.store.IssueResetToken(ctx, account.ID, token, expiresAt, now)
	if err != nil {
		if IsRecordNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, internalError(err, "failed to store reset token")
	}

	m.record(ctx, ActivityEventPasswordResetRequested, account.ID.String(), map[string]any{
		"expires_at": expiresAt,
	})

	msg, err := m.templates.ResetMessage(account, token, humanizeWindow(m.resetTTL))
	if err != nil {
		return nil, err
	}
	if err := m.sendMail(ctx, account, msg, "password reset"); err != nil {
		return nil, err
	}

	return &Confirmation{Message: "Password reset instructions sent to your email"}, nil
}

// CompletePasswordReset replaces the password of the account holding a live
// reset token. Matching the token, checking expiry and clearing it happen in
// a single conditional update, so a token succeeds only once. Unknown and
// expired tokens are reported the same way.
func (m *Manager) CompletePasswordReset(ctx context.Context, token, newPassword string) (*Confirmation, error) {
	if err := m.begin(ctx, "password reset"); err != nil {
		return nil, err
	}

	if token == "" {
		return nil, ErrInvalidOrExpiredToken
	}

	if err := validatePassword(newPassword); err != nil {
		return nil, err
	}

	hash, err := m.hasher.HashPassword(newPassword)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
	}

	account, err := m.store.ConsumeResetToken(ctx, token, hash, m.now())
	if err != nil {
		if IsRecordNotFound(err) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, internalError(err, "failed to update account password")
	}

	m.record(ctx, ActivityEventPasswordResetSuccess, account.ID.String(), nil)

	return &Confirmation{Message: "Password reset successful"}, nil
}
