package security

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/campusflow/gateway/internal/core/domain"
)

const (
	DefaultBcryptCost = 12
	// maxPasswordBytes is bcrypt's input limit; longer input would be
	// silently truncated by older implementations and is refused by newer ones.
	maxPasswordBytes = 72
)

// BcryptHasher hashes passwords with a fresh salt per call.
type BcryptHasher struct {
	cost int
	// dummy is compared against when the stored hash cannot be parsed, so
	// that path costs the same as a real comparison.
	dummy []byte
}

// NewBcryptHasher returns a hasher using cost, or DefaultBcryptCost when cost
// is outside bcrypt's accepted range.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("unusable-hash-placeholder"), cost)
	return &BcryptHasher{cost: cost, dummy: dummy}
}

func (h *BcryptHasher) Cost() int { return h.cost }

func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("%w: password is required", domain.ErrValidation)
	}
	if len(plaintext) > maxPasswordBytes {
		return "", fmt.Errorf("%w: password exceeds %d bytes", domain.ErrValidation, maxPasswordBytes)
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// Verify compares in constant time and returns false for any malformed hash.
// A malformed hash still pays for one comparison at the configured cost.
func (h *BcryptHasher) Verify(plaintext, hash string) bool {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		if h.dummy != nil {
			_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(plaintext))
		}
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
