package credentials

import "context"

// VerifyEmail consumes a verification token. The store matches and clears
// the token in one conditional update, so a token can succeed only once.
func (m *Manager) VerifyEmail(ctx context.Context, token string) (*Confirmation, error) {
	if err := m.begin(ctx, "email verification"); err != nil {
		return nil, err
	}

	if token == "" {
		return nil, ErrInvalidToken
	}

	account, err := m.store.ConsumeVerificationToken(ctx, token, m.now())
	if err != nil {
		if IsRecordNotFound(err) {
			return nil, ErrInvalidToken
		}
		return nil, internalError(err, "failed to verify email")
	}

	m.record(ctx, ActivityEventEmailVerified, account.ID.String(), nil)

	return &Confirmation{Message: "Email verified successfully"}, nil
}
