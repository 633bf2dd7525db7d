package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/campusflow/gateway/internal/core/domain"
	"github.com/campusflow/gateway/internal/core/ports"
)

type registrationService struct {
	store ports.CredentialStore
	log   zerolog.Logger
}

// NewRegistrationService returns the handler for user-registered events.
func NewRegistrationService(store ports.CredentialStore, log zerolog.Logger) ports.RegistrationService {
	return &registrationService{store: store, log: log}
}

// Process makes sure the announced account exists. Redelivered events are
// no-ops, so at-least-once delivery is safe.
func (s *registrationService) Process(ctx context.Context, evt domain.UserRegistered) error {
	if evt.Username == "" {
		return fmt.Errorf("%w: event without username", domain.ErrValidation)
	}

	// 1. Only self-service roles travel on this topic.
	if !evt.Role.SelfService() {
		s.log.Warn().Str("username", evt.Username).Str("role", string(evt.Role)).Msg("ignoring registration event with non self-service role")
		return nil
	}

	// 2. Already present: nothing to do.
	_, err := s.store.FindByUsername(ctx, evt.Username)
	if err == nil {
		s.log.Debug().Str("username", evt.Username).Msg("registered user already present")
		return nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return fmt.Errorf("process registration: %w", err)
	}

	// 3. Project the account without a usable password.
	at := time.UnixMilli(evt.OccurredAtEpochMillis).UTC()
	if evt.OccurredAtEpochMillis == 0 {
		at = time.Now().UTC()
	}
	_, err = s.store.Create(ctx, &domain.User{
		Username:     evt.Username,
		PasswordHash: domain.ExternalPasswordHash,
		Role:         evt.Role,
		CreatedAt:    at,
		UpdatedAt:    at,
	})
	if err != nil && !errors.Is(err, domain.ErrUserExists) {
		return fmt.Errorf("process registration: create: %w", err)
	}

	s.log.Info().Str("username", evt.Username).Str("role", string(evt.Role)).Msg("registered user projected")
	return nil
}
