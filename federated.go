package credentials

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
)

// Validate checks the fields every provider must supply
func (p FederatedProfile) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.EmailFormat),
		validation.Field(&p.DisplayName, validation.Required),
		validation.Field(&p.ProviderID, validation.Required),
	)
}

// LinkOrCreateFederatedIdentity resolves a federated profile to a local
// account by email:
//   - no account: a verified account without password is created
//   - account without federated id: the provider id is attached
//   - account linked to the same provider id: nothing changes
//   - account linked to another provider id: the existing link is kept, or
//     ErrIdentityConflict is returned under the reject policy
//   - provider id already linked to an account with another email:
//     ErrIdentityConflict under either policy
func (m *Manager) LinkOrCreateFederatedIdentity(ctx context.Context, profile FederatedProfile) (*FederatedResult, error) {
	if err := m.begin(ctx, "federated identity linking"); err != nil {
		return nil, err
	}

	if err := profile.Validate(); err != nil {
		return nil, goerrors.FromOzzoValidation(err, "invalid federated profile")
	}

	email := NormalizeEmail(profile.Email)

	account, err := m.store.FindByEmail(ctx, email)
	if err != nil {
		if !IsRecordNotFound(err) {
			return nil, internalError(err, "failed to find account by email")
		}
		return m.createFederated(ctx, email, profile)
	}

	return m.linkFederated(ctx, account, profile)
}

func (m *Manager) createFederated(ctx context.Context, email string, profile FederatedProfile) (*FederatedResult, error) {
	account := &Account{
		ID:            m.newAccountID(email),
		Name:          profile.DisplayName,
		Email:         email,
		Role:          RoleStandard,
		EmailVerified: true,
		FederatedID:   profile.ProviderID,
	}

	created, err := m.store.Create(ctx, account)
	if err == nil {
		m.record(ctx, ActivityEventFederatedCreated, created.ID.String(), nil)
		return &FederatedResult{Account: created, Created: true}, nil
	}

	if !IsConstraintViolation(err) {
		return nil, internalError(err, "failed to create federated account")
	}

	// lost a race against another registration for the same email, or the
	// provider id already belongs to an account under another email
	existing, findErr := m.store.FindByEmail(ctx, email)
	if findErr == nil {
		return m.linkFederated(ctx, existing, profile)
	}
	if !IsRecordNotFound(findErr) {
		return nil, internalError(findErr, "failed to reload account after create conflict")
	}

	m.record(ctx, ActivityEventFederatedConflict, "", map[string]any{
		"policy": m.conflictPolicy,
		"reason": "provider_id_taken",
	})
	m.logger.Warn("federated identity already linked to another account, policy %s", m.conflictPolicy)
	return nil, ErrIdentityConflict
}

func (m *Manager) linkFederated(ctx context.Context, account *Account, profile FederatedProfile) (*FederatedResult, error) {
	switch account.FederatedID {
	case profile.ProviderID:
		return &FederatedResult{Account: account}, nil
	case "":
		linked, err := m.store.AttachFederatedID(ctx, account.ID, profile.ProviderID, m.now())
		if err == nil {
			m.record(ctx, ActivityEventFederatedLinked, linked.ID.String(), nil)
			return &FederatedResult{Account: linked, Linked: true}, nil
		}
		if !IsRecordNotFound(err) && !IsConstraintViolation(err) {
			return nil, internalError(err, "failed to link federated identity")
		}
		// another request linked first, or the provider id belongs to
		// another account; reload and fall through to the conflict rules
		current, findErr := m.store.FindByID(ctx, account.ID)
		if findErr != nil {
			return nil, internalError(findErr, "failed to reload account")
		}
		if current.FederatedID == profile.ProviderID {
			return &FederatedResult{Account: current}, nil
		}
		return m.conflict(ctx, current, profile)
	default:
		return m.conflict(ctx, account, profile)
	}
}

func (m *Manager) conflict(ctx context.Context, account *Account, profile FederatedProfile) (*FederatedResult, error) {
	m.record(ctx, ActivityEventFederatedConflict, account.ID.String(), map[string]any{
		"policy": m.conflictPolicy,
	})
	m.logger.Warn("federated identity conflict for account %s, policy %s", account.ID, m.conflictPolicy)

	if m.conflictPolicy == ConflictPolicyReject {
		return nil, ErrIdentityConflict
	}
	return &FederatedResult{Account: account}, nil
}

// FederatedLogin links or creates the account for profile and issues a
// bearer token. A token is only issued when the account is linked to this
// exact provider id and its email is verified.
func (m *Manager) FederatedLogin(ctx context.Context, profile FederatedProfile) (*LoginResult, error) {
	result, err := m.LinkOrCreateFederatedIdentity(ctx, profile)
	if err != nil {
		return nil, err
	}

	account := result.Account
	if account.FederatedID != profile.ProviderID {
		m.record(ctx, ActivityEventLoginFailure, account.ID.String(), map[string]any{"reason": "federated_conflict"})
		return nil, ErrInvalidCredentials
	}

	if !account.EmailVerified {
		m.record(ctx, ActivityEventLoginFailure, account.ID.String(), map[string]any{"reason": "not_verified"})
		return nil, ErrAccountNotVerified
	}

	return m.issue(ctx, account)
}
