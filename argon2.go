package credentials

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/argon2"
)

const argon2Algorithm = "argon2id"

// Argon2Params controls the argon2id work factor
type Argon2Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params follows the RFC 9106 second recommended option
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Argon2Hasher hashes passwords with argon2id and stores them in PHC format
type Argon2Hasher struct {
	params Argon2Params
}

// NewArgon2Hasher returns an argon2id hasher, zero params use defaults
func NewArgon2Hasher(params Argon2Params) *Argon2Hasher {
	def := DefaultArgon2Params()
	if params.Memory == 0 {
		params.Memory = def.Memory
	}
	if params.Time == 0 {
		params.Time = def.Time
	}
	if params.Parallelism == 0 {
		params.Parallelism = def.Parallelism
	}
	if params.SaltLength == 0 {
		params.SaltLength = def.SaltLength
	}
	if params.KeyLength == 0 {
		params.KeyLength = def.KeyLength
	}
	return &Argon2Hasher{params: params}
}

// HashPassword will generate a password hash
func (h *Argon2Hasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read salt")
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Algorithm,
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// ComparePasswordAndHash recomputes the key with the parameters stored in
// hash and compares in constant time
func (h *Argon2Hasher) ComparePasswordAndHash(password, hash string) error {
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[1] != argon2Algorithm {
		return goerrors.New("invalid argon2 hash format", goerrors.CategoryInternal)
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return goerrors.New("unsupported argon2 version", goerrors.CategoryInternal)
	}

	var memory, time uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &parallelism); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "invalid argon2 parameters")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "invalid argon2 salt")
	}

	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 {
		return goerrors.New("invalid argon2 key", goerrors.CategoryInternal)
	}

	computed := argon2.IDKey([]byte(password), salt, time, memory, parallelism, uint32(len(expected)))
	if subtle.ConstantTimeCompare(computed, expected) != 1 {
		return ErrMismatchedHashAndPassword
	}
	return nil
}

// NewPasswordHasher picks the hasher named by algorithm
func NewPasswordHasher(algorithm string, bcryptCost int) PasswordHasher {
	switch strings.ToLower(algorithm) {
	case argon2Algorithm, "argon2":
		return NewArgon2Hasher(Argon2Params{})
	default:
		return NewBcryptHasher(bcryptCost)
	}
}
