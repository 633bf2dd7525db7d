package ports

import (
	"context"

	"github.com/campusflow/gateway/internal/core/domain"
)

// CredentialStore persists accounts. Implementations enforce username
// uniqueness themselves and report violations as domain.ErrUserExists.
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	// UpdatePassword returns domain.ErrUserNotFound when no row matched.
	UpdatePassword(ctx context.Context, username, passwordHash string) error
	List(ctx context.Context) ([]*domain.User, error)
}
