package credentials_test

import (
	"strings"
	"testing"

	credentials "github.com/goliatone/go-credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastArgon2() *credentials.Argon2Hasher {
	return credentials.NewArgon2Hasher(credentials.Argon2Params{Memory: 1024, Time: 1, Parallelism: 1})
}

func TestArgon2HashAndCompare(t *testing.T) {
	hasher := fastArgon2()

	hash, err := hasher.HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$"))

	assert.NoError(t, hasher.ComparePasswordAndHash("correct horse", hash))
	assert.Equal(t, credentials.ErrMismatchedHashAndPassword, hasher.ComparePasswordAndHash("battery staple", hash))
}

func TestArgon2EmptyPassword(t *testing.T) {
	_, err := fastArgon2().HashPassword("")
	assert.Equal(t, credentials.ErrNoEmptyString, err)
}

func TestArgon2UsesParamsFromHash(t *testing.T) {
	hash, err := fastArgon2().HashPassword("secret-pass")
	require.NoError(t, err)

	// a hasher with other params still verifies older hashes
	other := credentials.NewArgon2Hasher(credentials.Argon2Params{Memory: 2048, Time: 2, Parallelism: 1})
	assert.NoError(t, other.ComparePasswordAndHash("secret-pass", hash))
}

func TestArgon2MalformedHash(t *testing.T) {
	hasher := fastArgon2()

	for _, hash := range []string{
		"",
		"not-a-hash",
		"$argon2i$v=19$m=1024,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=1$m=1024,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$garbage$c2FsdA$a2V5",
		"$argon2id$v=19$m=1024,t=1,p=1$!!!$a2V5",
		"$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$",
	} {
		err := hasher.ComparePasswordAndHash("pw", hash)
		assert.Error(t, err, hash)
		assert.NotEqual(t, credentials.ErrMismatchedHashAndPassword, err, hash)
	}
}

func TestNewPasswordHasher(t *testing.T) {
	_, ok := credentials.NewPasswordHasher("argon2id", 0).(*credentials.Argon2Hasher)
	assert.True(t, ok)

	_, ok = credentials.NewPasswordHasher("ARGON2", 0).(*credentials.Argon2Hasher)
	assert.True(t, ok)

	bcryptHasher, ok := credentials.NewPasswordHasher("bcrypt", 5).(*credentials.BcryptHasher)
	require.True(t, ok)
	assert.Equal(t, 5, bcryptHasher.Cost())

	_, ok = credentials.NewPasswordHasher("", 5).(*credentials.BcryptHasher)
	assert.True(t, ok)
}
