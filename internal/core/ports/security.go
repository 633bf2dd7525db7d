package ports

import (
	"time"

	"github.com/campusflow/gateway/internal/core/domain"
)

type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	// Verify never fails loudly: a malformed hash simply does not match.
	Verify(plaintext, hash string) bool
}

// IssuedToken is a signed session token and the instant it stops being valid.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

type TokenService interface {
	Issue(subject string, role domain.Role, ttl time.Duration) (IssuedToken, error)
	Verify(token string) (domain.Principal, error)
}
