package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	credentials "github.com/goliatone/go-credentials"
	"github.com/goliatone/go-credentials/middleware/jwtware"
	goerrors "github.com/goliatone/go-errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) routes() {
	s.app.Get("/health", s.healthHandler)

	if s.gatherer != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	auth := s.app.Group("/auth")
	limit := s.rateLimiter()

	auth.Post("/register", limit, s.registerHandler)
	auth.Get("/verify-email", s.verifyEmailHandler)
	auth.Post("/login", limit, s.loginHandler)
	auth.Post("/forgot-password", limit, s.forgotPasswordHandler)
	auth.Post("/reset-password", limit, s.resetPasswordHandler)
	auth.Get("/google", s.googleHandler)
	auth.Get("/google/callback", s.googleCallbackHandler)
	auth.Get("/profile", s.guard(""), s.profileHandler)

	admin := auth.Group("/admin", s.guard(credentials.RoleAdministrator))
	admin.Get("/accounts/:id", s.adminAccountHandler)
}

type validatable interface {
	Validate() error
}

func bindBody[T validatable](c *fiber.Ctx) (T, error) {
	var req T
	if err := c.BodyParser(&req); err != nil {
		return req, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid request body").
			WithCode(goerrors.CodeBadRequest)
	}
	if err := req.Validate(); err != nil {
		return req, goerrors.FromOzzoValidation(err, "invalid request").
			WithCode(goerrors.CodeBadRequest)
	}
	return req, nil
}

func (s *Server) registerHandler(c *fiber.Ctx) error {
	req, err := bindBody[RegisterRequest](c)
	if err != nil {
		return err
	}

	res, err := s.manager.Register(c.UserContext(), req.input())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

func (s *Server) verifyEmailHandler(c *fiber.Ctx) error {
	req := VerifyEmailRequest{}
	if err := c.QueryParser(&req); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid query").
			WithCode(goerrors.CodeBadRequest)
	}
	if err := req.Validate(); err != nil {
		return goerrors.FromOzzoValidation(err, "invalid request").
			WithCode(goerrors.CodeBadRequest)
	}

	res, err := s.manager.VerifyEmail(c.UserContext(), req.Token)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (s *Server) loginHandler(c *fiber.Ctx) error {
	req, err := bindBody[LoginRequest](c)
	if err != nil {
		return err
	}

	res, err := s.manager.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (s *Server) forgotPasswordHandler(c *fiber.Ctx) error {
	req, err := bindBody[ForgotPasswordRequest](c)
	if err != nil {
		return err
	}

	res, err := s.manager.RequestPasswordReset(c.UserContext(), req.Email)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (s *Server) resetPasswordHandler(c *fiber.Ctx) error {
	req, err := bindBody[ResetPasswordRequest](c)
	if err != nil {
		return err
	}

	res, err := s.manager.CompletePasswordReset(c.UserContext(), req.Token, req.NewPassword)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (s *Server) googleHandler(c *fiber.Ctx) error {
	if s.google == nil {
		return errProviderDisabled
	}

	url, nonce, err := s.google.AuthCodeURL()
	if err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     oauthNonceCookie,
		Value:    nonce,
		Path:     "/auth/" + s.google.Name(),
		MaxAge:   int(s.google.StateTTL().Seconds()),
		Secure:   c.Protocol() == "https",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Redirect(url, fiber.StatusFound)
}

func (s *Server) googleCallbackHandler(c *fiber.Ctx) error {
	if s.google == nil {
		return errProviderDisabled
	}

	nonce := c.Cookies(oauthNonceCookie)
	// single use, cleared whatever the outcome
	c.Cookie(&fiber.Cookie{
		Name:     oauthNonceCookie,
		Path:     "/auth/" + s.google.Name(),
		Expires:  time.Unix(0, 0),
		Secure:   c.Protocol() == "https",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	if reason := c.Query("error"); reason != "" {
		return credentials.ErrInvalidCredentials.Clone().
			WithMetadata(map[string]any{"provider": s.google.Name(), "reason": reason})
	}

	profile, err := s.google.Exchange(c.UserContext(), c.Query("code"), c.Query("state"), nonce)
	if err != nil {
		return err
	}

	res, err := s.manager.FederatedLogin(c.UserContext(), profile)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (s *Server) profileHandler(c *fiber.Ctx) error {
	claims, ok := credentials.GetClaims(c.UserContext())
	if !ok {
		return credentials.ErrTokenMalformed
	}

	profile, err := s.manager.Profile(c.UserContext(), claims.AccountID())
	if err != nil {
		return err
	}
	return c.JSON(profile)
}

func (s *Server) adminAccountHandler(c *fiber.Ctx) error {
	claims, ok := jwtware.ClaimsFromContext(c, claimsKey)
	if !ok {
		return credentials.ErrTokenMalformed
	}

	profile, err := s.manager.Profile(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}

	s.logger.Info("administrator %s looked up account %s", claims.AccountID(), profile.ID)
	return c.JSON(profile)
}

func (s *Server) healthHandler(c *fiber.Ctx) error {
	if s.health != nil {
		if err := s.health(c.UserContext()); err != nil {
			s.logger.Warn("health check failed: %v", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
	}
	return c.JSON(fiber.Map{"status": "ok"})
}
