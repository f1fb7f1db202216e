package credentials

import (
	"time"

	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
)

const (
	// ConflictPolicyKeep leaves an existing federated link untouched
	ConflictPolicyKeep = "keep"
	// ConflictPolicyReject fails with ErrIdentityConflict
	ConflictPolicyReject = "reject"
)

// Options is the process configuration, read from CREDENTIALS_* environment
// variables once at start up and never re-read
type Options struct {
	SigningKey      string        `env:"SIGNING_KEY,required"`
	TokenExpiration time.Duration `env:"TOKEN_EXPIRATION" envDefault:"1h"`
	Issuer          string        `env:"ISSUER" envDefault:"go-credentials"`
	Audience        []string      `env:"AUDIENCE" envSeparator:","`

	// PreviousSigningKey keeps tokens signed before a key rotation valid
	PreviousSigningKey string `env:"PREVIOUS_SIGNING_KEY"`

	HashAlgorithm string `env:"HASH_ALGORITHM" envDefault:"bcrypt"`
	BcryptCost    int    `env:"BCRYPT_COST" envDefault:"12"`

	ResetTokenTTL           time.Duration `env:"RESET_TOKEN_TTL" envDefault:"1h"`
	AppURL                  string        `env:"APP_URL" envDefault:"http://localhost:3000"`
	UseHashid               bool          `env:"USE_HASHID" envDefault:"false"`
	FederatedConflictPolicy string        `env:"FEDERATED_CONFLICT_POLICY" envDefault:"keep"`

	ListenAddr      string        `env:"LISTEN_ADDR" envDefault:":3000"`
	DatabaseDriver  string        `env:"DB_DRIVER" envDefault:"sqlite"`
	DatabaseDSN     string        `env:"DB_DSN" envDefault:"file:credentials.db?cache=shared"`
	RateLimitMax    int           `env:"RATE_LIMIT_MAX" envDefault:"10"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	CORSOrigins     string        `env:"CORS_ORIGINS" envDefault:"*"`

	// TokenLookup lists where bearer tokens are read from, in order,
	// e.g. "header:Authorization,cookie:access_token"
	TokenLookup string `env:"TOKEN_LOOKUP" envDefault:"header:Authorization"`

	SMTP   SMTPOptions   `envPrefix:"SMTP_"`
	Google GoogleOptions `envPrefix:"GOOGLE_"`
	Audit  AuditOptions  `envPrefix:"AUDIT_"`
}

// AuditOptions configures the audit log written from activity events
type AuditOptions struct {
	Enabled       bool   `env:"ENABLED" envDefault:"true"`
	Channel       string `env:"CHANNEL" envDefault:"credentials"`
	ObjectType    string `env:"OBJECT_TYPE" envDefault:"account"`
	ActorFallback string `env:"ACTOR_FALLBACK" envDefault:"anonymous"`
}

// SMTPOptions configures the outbound mail transport
type SMTPOptions struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM" envDefault:"no-reply@localhost"`
}

// GoogleOptions configures the Google OAuth client
type GoogleOptions struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	CallbackURL  string `env:"CALLBACK_URL"`
}

// Enabled reports whether Google sign in is configured
func (g GoogleOptions) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

var _ Config = (*Options)(nil)

// LoadOptions parses the environment into Options
func LoadOptions() (*Options, error) {
	return LoadOptionsFrom(nil)
}

// LoadOptionsFrom parses the given environment map, or the process
// environment when environment is nil
func LoadOptionsFrom(environment map[string]string) (*Options, error) {
	opts := &Options{}
	parseOpts := env.Options{Prefix: "CREDENTIALS_"}
	if environment != nil {
		parseOpts.Environment = environment
	}

	if err := env.ParseWithOptions(opts, parseOpts); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid configuration")
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// Validate checks cross field constraints env tags cannot express
func (o *Options) Validate() error {
	if len(o.SigningKey) < 32 {
		return goerrors.New("signing key must be at least 32 bytes", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"field": "SIGNING_KEY"})
	}
	if o.PreviousSigningKey != "" && len(o.PreviousSigningKey) < 32 {
		return goerrors.New("previous signing key must be at least 32 bytes", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"field": "PREVIOUS_SIGNING_KEY"})
	}
	if o.ResetTokenTTL <= 0 {
		return goerrors.New("reset token ttl must be positive", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"field": "RESET_TOKEN_TTL"})
	}
	switch o.FederatedConflictPolicy {
	case ConflictPolicyKeep, ConflictPolicyReject:
	default:
		return goerrors.New("unknown federated conflict policy", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"field": "FEDERATED_CONFLICT_POLICY", "value": o.FederatedConflictPolicy})
	}
	return nil
}

func (o *Options) GetSigningKey() string {
	return o.SigningKey
}

func (o *Options) GetTokenExpiration() time.Duration {
	return o.TokenExpiration
}

func (o *Options) GetIssuer() string {
	return o.Issuer
}

func (o *Options) GetAudience() []string {
	return o.Audience
}

func (o *Options) GetHashAlgorithm() string {
	return o.HashAlgorithm
}

func (o *Options) GetBcryptCost() int {
	return o.BcryptCost
}

func (o *Options) GetResetTokenTTL() time.Duration {
	return o.ResetTokenTTL
}

func (o *Options) GetAppURL() string {
	return o.AppURL
}

func (o *Options) GetUseHashid() bool {
	return o.UseHashid
}

func (o *Options) GetFederatedConflictPolicy() string {
	return o.FederatedConflictPolicy
}
