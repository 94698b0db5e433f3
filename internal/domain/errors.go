package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies failures for boundary mapping and logging.
type Kind string

const (
	KindAuthentication Kind = "AUTHENTICATION"
	KindAuthorization  Kind = "AUTHORIZATION"
	KindConflict       Kind = "CONFLICT"
	KindValidation     Kind = "VALIDATION"
	KindNotFound       Kind = "NOT_FOUND"
	KindInfrastructure Kind = "INFRASTRUCTURE"
	KindInternal       Kind = "INTERNAL"
)

// AppError is the stable error shape crossing the service boundary.
// It carries a machine code and human message, never a stack trace.
type AppError struct {
	Kind    Kind
	Code    string
	Message string
	Status  int
	Details []string
	cause   error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.cause }

// Is matches any AppError with the same code, so copies produced by
// WithCause and WithDetails still compare equal to their catalogue entry.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetails returns a copy carrying extra human-readable detail strings.
func (e *AppError) WithDetails(details ...string) *AppError {
	clone := *e
	clone.Details = append(append([]string(nil), e.Details...), details...)
	return &clone
}

// WithCause returns a copy wrapping the underlying error.
func (e *AppError) WithCause(err error) *AppError {
	clone := *e
	clone.cause = err
	return &clone
}

func newErr(kind Kind, code, message string, status int) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message, Status: status}
}

// Stable failure catalogue. Messages mirror what clients display verbatim.
var (
	ErrLoginFailed = newErr(KindAuthentication, "LOGIN_FAILED",
		"The account or password is incorrect.", http.StatusUnauthorized)
	ErrAccountDisabled = newErr(KindAuthentication, "ACCOUNT_DISABLED",
		"The account is not verified.", http.StatusForbidden)
	// Expired, malformed, wrong-type, and revoked refresh tokens all collapse
	// to this one failure so callers cannot probe token state.
	ErrRefreshTokenInvalid = newErr(KindAuthorization, "REFRESH_TOKEN_INVALID",
		"Refresh token invalid.", http.StatusUnauthorized)
	ErrAccessTokenInvalid = newErr(KindAuthorization, "ACCESS_TOKEN_INVALID",
		"Invalid access token.", http.StatusUnauthorized)
	ErrEmailRegistered = newErr(KindConflict, "EMAIL_REGISTERED",
		"The email has been registered.", http.StatusConflict)
	ErrUsernameRegistered = newErr(KindConflict, "USERNAME_REGISTERED",
		"The username has been registered.", http.StatusConflict)
	ErrAlreadyRevoked = newErr(KindConflict, "ALREADY_REVOKED",
		"The token has already been revoked.", http.StatusConflict)
	ErrAccountEnabled = newErr(KindConflict, "ACCOUNT_ENABLED",
		"The account has already been verified.", http.StatusConflict)
	ErrCodeExpired = newErr(KindValidation, "CODE_EXPIRED",
		"Verification code expired.", http.StatusBadRequest)
	ErrCodeInvalid = newErr(KindValidation, "CODE_INVALID",
		"Verification code does not match.", http.StatusBadRequest)
	ErrInvalidResetToken = newErr(KindValidation, "INVALID_RESET_TOKEN",
		"Reset token is invalid or expired.", http.StatusBadRequest)
	ErrOldPasswordIncorrect = newErr(KindValidation, "OLD_PASSWORD_INCORRECT",
		"The old password is incorrect.", http.StatusBadRequest)
	ErrValidationFailed = newErr(KindValidation, "VALIDATION_FAILED",
		"Validation failed.", http.StatusUnprocessableEntity)
	// Discloses account existence; resend/forgot flows accept that tradeoff
	// while login deliberately does not.
	ErrEmailNotRegistered = newErr(KindNotFound, "EMAIL_NOT_REGISTERED",
		"The email is not registered.", http.StatusNotFound)
	ErrAccountNotFound = newErr(KindNotFound, "ACCOUNT_NOT_FOUND",
		"Account does not exist.", http.StatusNotFound)
	ErrSendFailed = newErr(KindInfrastructure, "SEND_FAILED",
		"Failed to send verification email.", http.StatusBadGateway)
	ErrStoreUnavailable = newErr(KindInfrastructure, "STORE_UNAVAILABLE",
		"A backing store is unavailable.", http.StatusServiceUnavailable)
	ErrInternal = newErr(KindInternal, "INTERNAL",
		"Internal server error.", http.StatusInternalServerError)
)

// AsAppError extracts an *AppError from an error chain, falling back to
// ErrInternal so the boundary never leaks raw error text.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternal.WithCause(err)
}
