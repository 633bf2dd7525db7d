package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/campusflow/gateway/internal/core/domain"
	"github.com/campusflow/gateway/internal/core/ports"
)

// AdminService backs the ADMIN-only user operations. Role enforcement happens
// at the route; the actor is passed in for the audit log.
type AdminService struct {
	store  ports.CredentialStore
	hasher ports.PasswordHasher
	log    zerolog.Logger
}

func NewAdminService(store ports.CredentialStore, hasher ports.PasswordHasher, log zerolog.Logger) *AdminService {
	return &AdminService{store: store, hasher: hasher, log: log}
}

func (s *AdminService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// RotatePassword overwrites the target's hash. Tokens already issued to the
// target stay valid until they expire.
func (s *AdminService) RotatePassword(ctx context.Context, actor domain.Principal, username, newPassword string) error {
	if username == "" || newPassword == "" {
		return fmt.Errorf("%w: username and new password are required", domain.ErrValidation)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePassword(ctx, username, hash); err != nil {
		return fmt.Errorf("rotate password: %w", err)
	}

	s.log.Info().
		Str("actor", actor.Subject).
		Str("target", username).
		Msg("password rotated")
	return nil
}
