package credentials

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeDuplicateEmail        = "DUPLICATE_EMAIL"
	TextCodeInvalidCredentials    = goerrors.TextCodeInvalidCredentials
	TextCodeAccountNotVerified    = goerrors.TextCodeVerificationRequired
	TextCodeAccountNotFound       = "ACCOUNT_NOT_FOUND"
	TextCodeInvalidToken          = "INVALID_TOKEN"
	TextCodeInvalidOrExpiredToken = "INVALID_OR_EXPIRED_TOKEN"
	TextCodeIdentityConflict      = "IDENTITY_CONFLICT"
	TextCodeEmptyPassword         = goerrors.TextCodeEmptyPassword
	TextCodeTokenExpired          = goerrors.TextCodeTokenExpired
	TextCodeTokenMalformed        = goerrors.TextCodeTokenMalformed
	TextCodeRecordNotFound        = "RECORD_NOT_FOUND"
	TextCodeConstraintViolation   = "CONSTRAINT_VIOLATION"
	TextCodeForbidden             = "FORBIDDEN"
)

// ErrDuplicateEmail is returned when registering an email that already has an account
var ErrDuplicateEmail = goerrors.New("email already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateEmail).
	WithCode(goerrors.CodeConflict)

// ErrInvalidCredentials is returned for any failed password check, including unknown emails
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountNotVerified is returned when logging in before the email was verified
var ErrAccountNotVerified = goerrors.New("please verify your email first", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountNotVerified).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountNotFound is returned when a password reset targets an unknown email
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidToken is returned when a verification token does not match any account
var ErrInvalidToken = goerrors.New("invalid verification token", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidToken).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidOrExpiredToken is returned when a reset token is unknown, used or expired
var ErrInvalidOrExpiredToken = goerrors.New("invalid or expired reset token", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidOrExpiredToken).
	WithCode(goerrors.CodeBadRequest)

// ErrIdentityConflict is returned when an email is already linked to a
// different federated identity and the reject policy is active
var ErrIdentityConflict = goerrors.New("email is linked to a different external identity", goerrors.CategoryConflict).
	WithTextCode(TextCodeIdentityConflict).
	WithCode(goerrors.CodeConflict)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword is returned when a password does not match its hash
var ErrMismatchedHashAndPassword = goerrors.New("password does not match", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned when a bearer token is past its expiry
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned when a bearer token cannot be parsed or verified
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrRecordNotFound is the store's not found failure
// ErrForbidden is returned when a valid bearer token lacks the role a
// route requires
var ErrForbidden = goerrors.New("insufficient role", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

var ErrRecordNotFound = goerrors.New("record not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeRecordNotFound).
	WithCode(goerrors.CodeNotFound)

// NewRecordNotFound returns a store not found failure carrying lookup metadata
func NewRecordNotFound(meta map[string]any) *goerrors.Error {
	return ErrRecordNotFound.Clone().WithMetadata(meta)
}

// NewConstraintViolation wraps a driver error raised by a unique or
// conditional constraint
func NewConstraintViolation(source error, constraint string) *goerrors.Error {
	return goerrors.Wrap(source, goerrors.CategoryConflict, "constraint violation").
		WithTextCode(TextCodeConstraintViolation).
		WithCode(goerrors.CodeConflict).
		WithMetadata(map[string]any{"constraint": constraint})
}

// IsRecordNotFound reports whether err is a store not found failure
func IsRecordNotFound(err error) bool {
	return hasTextCode(err, TextCodeRecordNotFound)
}

// IsConstraintViolation reports whether err is a store constraint failure
func IsConstraintViolation(err error) bool {
	return hasTextCode(err, TextCodeConstraintViolation)
}

// HasTextCode reports whether err carries the given text code, which is
// how sentinel errors survive go-errors cloning
func HasTextCode(err error, code string) bool {
	return hasTextCode(err, code)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == code
	}
	return false
}
