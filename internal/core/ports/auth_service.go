package ports

import (
	"context"
	"time"

	"github.com/campusflow/gateway/internal/core/domain"
)

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

type AuthService interface {
	Register(ctx context.Context, username, password string, role domain.Role) (*domain.User, error)
	Login(ctx context.Context, username, password string) (*LoginResult, error)
}

type AdminService interface {
	ListUsers(ctx context.Context) ([]*domain.User, error)
	RotatePassword(ctx context.Context, actor domain.Principal, username, newPassword string) error
}
