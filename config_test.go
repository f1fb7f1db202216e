package credentials_test

import (
	"testing"
	"time"

	credentials "github.com/goliatone/go-credentials"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOptionsFromDefaults(t *testing.T) {
	opts, err := credentials.LoadOptionsFrom(map[string]string{
		"CREDENTIALS_SIGNING_KEY": testSigningKey,
	})
	require.NoError(t, err)

	assert.Equal(t, testSigningKey, opts.GetSigningKey())
	assert.Equal(t, time.Hour, opts.GetTokenExpiration())
	assert.Equal(t, "go-credentials", opts.GetIssuer())
	assert.Empty(t, opts.GetAudience())
	assert.Equal(t, "bcrypt", opts.GetHashAlgorithm())
	assert.Equal(t, 12, opts.GetBcryptCost())
	assert.Equal(t, time.Hour, opts.GetResetTokenTTL())
	assert.Equal(t, "http://localhost:3000", opts.GetAppURL())
	assert.False(t, opts.GetUseHashid())
	assert.Equal(t, credentials.ConflictPolicyKeep, opts.GetFederatedConflictPolicy())

	assert.Equal(t, ":3000", opts.ListenAddr)
	assert.Equal(t, "sqlite", opts.DatabaseDriver)
	assert.Equal(t, 10, opts.RateLimitMax)
	assert.Equal(t, time.Minute, opts.RateLimitWindow)
	assert.Equal(t, 587, opts.SMTP.Port)
	assert.False(t, opts.Google.Enabled())
	assert.Equal(t, "header:Authorization", opts.TokenLookup)
	assert.True(t, opts.Audit.Enabled)
	assert.Equal(t, "credentials", opts.Audit.Channel)
	assert.Equal(t, "account", opts.Audit.ObjectType)
	assert.Equal(t, "anonymous", opts.Audit.ActorFallback)
}

func TestLoadOptionsFromOverrides(t *testing.T) {
	opts, err := credentials.LoadOptionsFrom(map[string]string{
		"CREDENTIALS_SIGNING_KEY":               testSigningKey,
		"CREDENTIALS_TOKEN_EXPIRATION":          "15m",
		"CREDENTIALS_AUDIENCE":                  "web,mobile",
		"CREDENTIALS_HASH_ALGORITHM":            "argon2id",
		"CREDENTIALS_RESET_TOKEN_TTL":           "30m",
		"CREDENTIALS_USE_HASHID":                "true",
		"CREDENTIALS_FEDERATED_CONFLICT_POLICY": "reject",
		"CREDENTIALS_SMTP_HOST":                 "smtp.example.com",
		"CREDENTIALS_SMTP_PORT":                 "2525",
		"CREDENTIALS_GOOGLE_CLIENT_ID":          "client",
		"CREDENTIALS_GOOGLE_CLIENT_SECRET":      "secret",
		"CREDENTIALS_TOKEN_LOOKUP":              "header:Authorization,cookie:access_token",
		"CREDENTIALS_AUDIT_CHANNEL":             "security",
		"CREDENTIALS_AUDIT_ENABLED":             "false",
	})
	require.NoError(t, err)

	assert.Equal(t, "header:Authorization,cookie:access_token", opts.TokenLookup)
	assert.False(t, opts.Audit.Enabled)
	assert.Equal(t, "security", opts.Audit.Channel)

	assert.Equal(t, 15*time.Minute, opts.GetTokenExpiration())
	assert.Equal(t, []string{"web", "mobile"}, opts.GetAudience())
	assert.Equal(t, "argon2id", opts.GetHashAlgorithm())
	assert.Equal(t, 30*time.Minute, opts.GetResetTokenTTL())
	assert.True(t, opts.GetUseHashid())
	assert.Equal(t, credentials.ConflictPolicyReject, opts.GetFederatedConflictPolicy())
	assert.Equal(t, "smtp.example.com", opts.SMTP.Host)
	assert.Equal(t, 2525, opts.SMTP.Port)
	assert.True(t, opts.Google.Enabled())
}

func TestLoadOptionsFromInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "missing signing key",
			env:  map[string]string{},
		},
		{
			name: "short signing key",
			env:  map[string]string{"CREDENTIALS_SIGNING_KEY": "short"},
		},
		{
			name: "bad duration",
			env: map[string]string{
				"CREDENTIALS_SIGNING_KEY":      testSigningKey,
				"CREDENTIALS_TOKEN_EXPIRATION": "forever",
			},
		},
		{
			name: "non positive reset ttl",
			env: map[string]string{
				"CREDENTIALS_SIGNING_KEY":     testSigningKey,
				"CREDENTIALS_RESET_TOKEN_TTL": "0s",
			},
		},
		{
			name: "unknown conflict policy",
			env: map[string]string{
				"CREDENTIALS_SIGNING_KEY":               testSigningKey,
				"CREDENTIALS_FEDERATED_CONFLICT_POLICY": "merge",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := credentials.LoadOptionsFrom(tt.env)
			require.Error(t, err)
			assert.True(t, goerrors.IsValidation(err))
		})
	}
}
