package server

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

var errTooManyRequests = goerrors.New("too many requests, try again later", goerrors.CategoryRateLimit).
	WithTextCode(goerrors.TextCodeTooManyAttempts).
	WithCode(goerrors.CodeTooManyRequests)

var errProviderDisabled = goerrors.New("federated sign in is not configured", goerrors.CategoryNotFound).
	WithTextCode("PROVIDER_DISABLED").
	WithCode(goerrors.CodeNotFound)

// toRichError maps any handler error onto a go-errors value that is safe
// to mutate. Shared sentinels are cloned.
func toRichError(err error) *goerrors.Error {
	var fiberErr *fiber.Error
	if goerrors.As(err, &fiberErr) {
		return goerrors.New(fiberErr.Message, goerrors.HTTPStatusToCategory(fiberErr.Code)).
			WithCode(fiberErr.Code).
			WithTextCode(goerrors.HTTPStatusToTextCode(fiberErr.Code))
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Clone()
	}

	return goerrors.MapToError(err, goerrors.DefaultErrorMappers())
}

func statusFor(err *goerrors.Error) int {
	if err.Code >= 400 && err.Code < 600 {
		return err.Code
	}

	switch err.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryOperation:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	richErr := toRichError(err)

	if id, ok := c.Locals(requestIDKey).(string); ok && id != "" {
		richErr = richErr.WithRequestID(id)
	}

	status := statusFor(richErr)
	richErr.Code = status
	if richErr.TextCode == "" {
		richErr.TextCode = goerrors.HTTPStatusToTextCode(status)
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request %s %s failed: %s", c.Method(), c.Path(), print.MaybePrettyJSON(richErr))
		// internal details stay in the log
		richErr.Message = "An unexpected error occurred"
		richErr.Source = nil
		richErr.Metadata = nil
	} else {
		s.logger.Debug("request %s %s rejected: %s", c.Method(), c.Path(), richErr.Message)
	}

	richErr.Location = nil
	return c.Status(status).JSON(richErr.ToErrorResponse(false, nil))
}
