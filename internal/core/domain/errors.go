package domain

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRoleNotAllowed     = errors.New("role not allowed")
	ErrValidation         = errors.New("validation failed")
	ErrForbidden          = errors.New("access forbidden")

	ErrInvalidToken = errors.New("invalid token")

	// ErrPublishUnavailable is transient: the caller may retry later.
	ErrPublishUnavailable = errors.New("event channel unavailable")
	// ErrPublishRejected is terminal: retrying the same event cannot succeed.
	ErrPublishRejected = errors.New("event rejected")
)

// Token verification failure reasons. They are recorded in logs and metrics
// only and never returned to clients.
const (
	TokenReasonMalformed = "malformed"
	TokenReasonSignature = "signature"
	TokenReasonExpired   = "expired"
	TokenReasonClaims    = "claims"
)

// TokenError carries the internal reason a token was refused. It always
// matches ErrInvalidToken under errors.Is.
type TokenError struct {
	Reason string
	Err    error
}

func (e *TokenError) Error() string {
	if e.Err != nil {
		return "invalid token: " + e.Reason + ": " + e.Err.Error()
	}
	return "invalid token: " + e.Reason
}

func (e *TokenError) Is(target error) bool { return target == ErrInvalidToken }

func (e *TokenError) Unwrap() error { return e.Err }
