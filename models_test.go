package credentials_test

import (
	"testing"
	"time"

	credentials "github.com/goliatone/go-credentials"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "user@example.com", credentials.NormalizeEmail("  User@Example.COM "))
	assert.Equal(t, "", credentials.NormalizeEmail("   "))
}

func TestAccountHelpers(t *testing.T) {
	var nilAccount *credentials.Account
	assert.False(t, nilAccount.HasPassword())
	assert.False(t, nilAccount.HasFederatedIdentity())
	assert.Nil(t, nilAccount.Profile())

	account := &credentials.Account{
		ID:           uuid.New(),
		Name:         "Ada",
		Email:        "ada@example.com",
		Role:         credentials.RoleStandard,
		PasswordHash: "hash",
	}
	assert.True(t, account.HasPassword())
	assert.False(t, account.HasFederatedIdentity())

	account.FederatedID = "google-1"
	assert.True(t, account.HasFederatedIdentity())

	profile := account.Profile()
	assert.Equal(t, account.ID.String(), profile.ID)
	assert.Equal(t, "Ada", profile.Name)
	assert.Equal(t, "ada@example.com", profile.Email)
	assert.Equal(t, credentials.RoleStandard, profile.Role)
}

func TestAccountResetTokenLive(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	account := &credentials.Account{}
	assert.False(t, account.ResetTokenLive(now))

	account.ResetToken = "token"
	assert.False(t, account.ResetTokenLive(now))

	account.ResetTokenExpiresAt = &future
	assert.True(t, account.ResetTokenLive(now))

	account.ResetTokenExpiresAt = &past
	assert.False(t, account.ResetTokenLive(now))

	// expiry is exclusive
	account.ResetTokenExpiresAt = &now
	assert.False(t, account.ResetTokenLive(now))
}

func TestRoles(t *testing.T) {
	assert.True(t, credentials.RoleStandard.IsValid())
	assert.True(t, credentials.RoleAdministrator.IsValid())
	assert.False(t, credentials.Role("guest").IsValid())
	assert.Equal(t, "standard", credentials.RoleStandard.String())

	tests := []struct {
		input string
		role  credentials.Role
		ok    bool
	}{
		{"standard", credentials.RoleStandard, true},
		{"User", credentials.RoleStandard, true},
		{" admin ", credentials.RoleAdministrator, true},
		{"administrator", credentials.RoleAdministrator, true},
		{"root", "", false},
	}
	for _, tt := range tests {
		role, ok := credentials.ParseRole(tt.input)
		assert.Equal(t, tt.ok, ok, tt.input)
		assert.Equal(t, tt.role, role, tt.input)
	}
}
