package federated

import (
	"crypto/subtle"
	"time"

	"github.com/golang-jwt/jwt/v5"
	credentials "github.com/goliatone/go-credentials"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	stateAudience   = "federated-state"
	DefaultStateTTL = 10 * time.Minute
)

// ErrInvalidState is returned when the OAuth state parameter was not
// issued by this service or is past its lifetime
var ErrInvalidState = goerrors.New("invalid oauth state", goerrors.CategoryBadInput).
	WithTextCode("INVALID_OAUTH_STATE").
	WithCode(goerrors.CodeBadRequest)

// StateSigner issues and checks the OAuth state parameter. State is a
// short lived signed token so callbacks need no server side storage. Each
// state carries a nonce the caller keeps in the browser, typically in a
// short lived cookie, so a state captured from one browser is useless in
// another.
type StateSigner struct {
	key      []byte
	ttl      time.Duration
	provider string
	now      func() time.Time
}

// NewStateSigner returns a signer for provider using key
func NewStateSigner(key, provider string, ttl time.Duration) *StateSigner {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateSigner{
		key:      []byte(key),
		ttl:      ttl,
		provider: provider,
		now:      time.Now,
	}
}

type stateClaims struct {
	Nonce string `json:"nonce"`
	jwt.RegisteredClaims
}

// TTL is how long an issued state stays valid
func (s *StateSigner) TTL() time.Duration {
	return s.ttl
}

// Issue returns a fresh state value and the nonce bound to it
func (s *StateSigner) Issue() (state, nonce string, err error) {
	now := s.now()
	nonce = uuid.NewString()
	claims := stateClaims{
		Nonce: nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   s.provider,
			Audience:  jwt.ClaimStrings{stateAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign oauth state")
	}
	return signed, nonce, nil
}

// Verify checks that state was issued by Issue for the same provider, has
// not expired and carries nonce
func (s *StateSigner) Verify(state, nonce string) error {
	if state == "" || nonce == "" {
		return ErrInvalidState
	}

	claims := &stateClaims{}
	_, err := jwt.ParseWithClaims(state, claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(stateAudience),
		jwt.WithSubject(s.provider),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return ErrInvalidState.Clone().WithMetadata(map[string]any{"reason": err.Error()})
	}

	if subtle.ConstantTimeCompare([]byte(claims.Nonce), []byte(nonce)) != 1 {
		return ErrInvalidState.Clone().WithMetadata(map[string]any{"reason": "nonce mismatch"})
	}
	return nil
}

// stateKey derives the state signing key from the service configuration
func stateKey(cfg credentials.Config) string {
	return cfg.GetSigningKey() + ":" + stateAudience
}
