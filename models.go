package credentials

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Account is the account model
type Account struct {
	bun.BaseModel       `bun:"table:accounts,alias:acc"`
	ID                  uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name                string     `bun:"name,notnull" json:"name,omitempty"`
	Email               string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash        string     `bun:"password_hash,nullzero" json:"-"`
	Role                Role       `bun:"role,notnull" json:"role,omitempty"`
	EmailVerified       bool       `bun:"email_verified,notnull,default:false" json:"email_verified"`
	VerificationToken   string     `bun:"verification_token,nullzero" json:"-"`
	ResetToken          string     `bun:"reset_token,nullzero" json:"-"`
	ResetTokenExpiresAt *time.Time `bun:"reset_token_expires_at,nullzero" json:"-"`
	FederatedID         string     `bun:"federated_id,nullzero,unique" json:"federated_id,omitempty"`
	CreatedAt           *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt           *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// HasPassword reports whether the account supports password login
func (a *Account) HasPassword() bool {
	return a != nil && a.PasswordHash != ""
}

// HasFederatedIdentity reports whether an external identity is linked
func (a *Account) HasFederatedIdentity() bool {
	return a != nil && a.FederatedID != ""
}

// ResetTokenLive reports whether the account holds a reset token that
// has not expired at now. An expired token counts as absent.
func (a *Account) ResetTokenLive(now time.Time) bool {
	if a == nil || a.ResetToken == "" || a.ResetTokenExpiresAt == nil {
		return false
	}
	return now.Before(*a.ResetTokenExpiresAt)
}

// Profile returns the public projection of the account
func (a *Account) Profile() *PublicProfile {
	if a == nil {
		return nil
	}
	return &PublicProfile{
		ID:    a.ID.String(),
		Name:  a.Name,
		Email: a.Email,
		Role:  a.Role,
	}
}

// PublicProfile is what callers get to see of an account
type PublicProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// LoginResult is returned on successful authentication
type LoginResult struct {
	AccessToken string         `json:"access_token"`
	Profile     *PublicProfile `json:"user"`
}

// Confirmation is the acknowledgement returned by operations that
// must not leak credentials back to the caller
type Confirmation struct {
	Message string `json:"message"`
}

// FederatedProfile is the validated identity asserted by an external provider
type FederatedProfile struct {
	Email       string `json:"email"`
	DisplayName string `json:"name"`
	ProviderID  string `json:"provider_id"`
}

// FederatedResult describes what LinkOrCreateFederatedIdentity did
type FederatedResult struct {
	Account *Account
	Created bool
	Linked  bool
}

// NormalizeEmail trims and lower cases an email so that lookups and
// the uniqueness constraint are case insensitive
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
