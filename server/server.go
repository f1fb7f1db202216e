package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	credentials "github.com/goliatone/go-credentials"
	"github.com/goliatone/go-credentials/middleware/jwtware"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	requestIDKey     = "requestid"
	claimsKey        = "claims"
	oauthNonceCookie = "oauth_nonce"
)

// FederatedProvider runs an external authorization code flow. AuthCodeURL
// returns a nonce that must come back with the callback for Exchange to
// accept the state.
type FederatedProvider interface {
	Name() string
	AuthCodeURL() (url, nonce string, err error)
	Exchange(ctx context.Context, code, state, nonce string) (credentials.FederatedProfile, error)
	StateTTL() time.Duration
}

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

// Config holds the HTTP surface settings
type Config struct {
	RateLimitMax    int
	RateLimitWindow time.Duration
	CORSOrigins     string
	AccessLog       bool
	// TokenLookup is handed to jwtware, e.g. "header:Authorization,cookie:access_token"
	TokenLookup string
}

// Server exposes the credential lifecycle over HTTP
type Server struct {
	app      *fiber.App
	cfg      Config
	manager  *credentials.Manager
	tokens   jwtware.TokenValidator
	google   FederatedProvider
	gatherer prometheus.Gatherer
	health   HealthCheck
	logger   credentials.Logger
}

// Option configures the Server
type Option func(*Server)

// WithGoogle enables the /auth/google routes
func WithGoogle(provider FederatedProvider) Option {
	return func(s *Server) {
		s.google = provider
	}
}

// WithGatherer exposes the given registry on /metrics
func WithGatherer(gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = gatherer
	}
}

// WithHealthCheck sets the dependency probe used by /health
func WithHealthCheck(check HealthCheck) Option {
	return func(s *Server) {
		s.health = check
	}
}

// WithLogger sets the logger
func WithLogger(logger credentials.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// FromOptions picks the HTTP settings out of the process options
func FromOptions(opts *credentials.Options) Config {
	return Config{
		RateLimitMax:    opts.RateLimitMax,
		RateLimitWindow: opts.RateLimitWindow,
		CORSOrigins:     opts.CORSOrigins,
		AccessLog:       true,
		TokenLookup:     opts.TokenLookup,
	}
}

// New builds the fiber application and registers every route
func New(cfg Config, manager *credentials.Manager, tokens jwtware.TokenValidator, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		manager: manager,
		tokens:  tokens,
		logger:  credentials.DefaultLogger(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "go-credentials",
		ErrorHandler:          s.errorHandler,
		DisableStartupMessage: true,
	})

	s.app.Use(recover.New())
	s.app.Use(requestid.New(requestid.Config{ContextKey: requestIDKey}))
	if cfg.AccessLog {
		s.app.Use(logger.New(logger.Config{
			Format: "${time} ${locals:" + requestIDKey + "} ${status} ${method} ${path} ${latency}\n",
		}))
	}
	s.app.Use(helmet.New())
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: orDefault(cfg.CORSOrigins, "*"),
	}))

	s.routes()

	return s
}

// App returns the underlying fiber application
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen blocks serving on addr until Shutdown is called
func (s *Server) Listen(addr string) error {
	s.logger.Info("listening on %s", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) rateLimiter() fiber.Handler {
	limit := s.cfg.RateLimitMax
	if limit <= 0 {
		limit = 10
	}
	window := s.cfg.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}

	return limiter.New(limiter.Config{
		Max:        limit,
		Expiration: window,
		LimitReached: func(c *fiber.Ctx) error {
			return errTooManyRequests
		},
	})
}

// guard rejects requests without a valid bearer token. A non empty role
// also requires the token to carry that role.
func (s *Server) guard(role credentials.Role) fiber.Handler {
	return jwtware.New(jwtware.Config{
		TokenValidator:      s.tokens,
		ContextKey:          claimsKey,
		TokenLookup:         s.cfg.TokenLookup,
		RequiredRole:        role,
		ValidationListeners: []jwtware.ValidationListener{jwtware.ValidRole},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if credentials.HasTextCode(err, credentials.TextCodeTokenExpired) ||
				credentials.HasTextCode(err, credentials.TextCodeTokenMalformed) ||
				credentials.HasTextCode(err, credentials.TextCodeForbidden) {
				return err
			}
			return credentials.ErrTokenMalformed.Clone().
				WithMetadata(map[string]any{"reason": err.Error()})
		},
	})
}

func orDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
