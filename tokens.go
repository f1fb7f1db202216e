package credentials

import (
	"crypto/rand"
	"encoding/base64"
	"io"

	goerrors "github.com/goliatone/go-errors"
)

const defaultTokenBytes = 32

// RandomTokenGenerator issues URL safe tokens read from crypto/rand
type RandomTokenGenerator struct {
	size   int
	source io.Reader
}

// NewRandomTokenGenerator returns a generator producing 32 byte tokens
func NewRandomTokenGenerator() *RandomTokenGenerator {
	return &RandomTokenGenerator{size: defaultTokenBytes, source: rand.Reader}
}

// Generate returns a new opaque token
func (g *RandomTokenGenerator) Generate() (string, error) {
	size := g.size
	if size <= 0 {
		size = defaultTokenBytes
	}
	source := g.source
	if source == nil {
		source = rand.Reader
	}

	raw := make([]byte, size)
	if _, err := io.ReadFull(source, raw); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate token")
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
