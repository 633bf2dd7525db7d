package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/campusflow/gateway/internal/core/domain"
	"github.com/campusflow/gateway/internal/core/ports"
	"github.com/campusflow/gateway/internal/pkg/metrics"
)

const (
	defaultTokenTTL        = 120 * time.Minute
	defaultRegisteredTopic = "users.registered"

	// dummyPassword is hashed once at construction and verified against
	// whenever a login names an unknown user.
	dummyPassword = "campus-gateway-timing-equaliser"
)

// AuthDeps groups the collaborators of AuthService. Events may be nil, in
// which case no registration events are published.
type AuthDeps struct {
	Store  ports.CredentialStore
	Hasher ports.PasswordHasher
	Tokens ports.TokenService
	Events ports.EventPublisher
	Log    zerolog.Logger
}

type AuthConfig struct {
	TokenTTL        time.Duration
	RegisteredTopic string
}

// AuthService implements registration and login.
type AuthService struct {
	store     ports.CredentialStore
	hasher    ports.PasswordHasher
	tokens    ports.TokenService
	events    ports.EventPublisher
	log       zerolog.Logger
	tokenTTL  time.Duration
	topic     string
	dummyHash string
	now       func() time.Time
}

func NewAuthService(deps AuthDeps, cfg AuthConfig) (*AuthService, error) {
	if deps.Store == nil || deps.Hasher == nil || deps.Tokens == nil {
		return nil, errors.New("auth service: store, hasher and tokens are required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	if cfg.RegisteredTopic == "" {
		cfg.RegisteredTopic = defaultRegisteredTopic
	}

	dummy, err := deps.Hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("auth service: dummy hash: %w", err)
	}

	return &AuthService{
		store:     deps.Store,
		hasher:    deps.Hasher,
		tokens:    deps.Tokens,
		events:    deps.Events,
		log:       deps.Log,
		tokenTTL:  cfg.TokenTTL,
		topic:     cfg.RegisteredTopic,
		dummyHash: dummy,
		now:       time.Now,
	}, nil
}

// TokenTTL is the lifetime given to every issued token.
func (s *AuthService) TokenTTL() time.Duration { return s.tokenTTL }

func (s *AuthService) Register(ctx context.Context, username, password string, role domain.Role) (*domain.User, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", domain.ErrValidation)
	}
	if !role.SelfService() {
		return nil, domain.ErrRoleNotAllowed
	}

	if _, err := s.store.FindByUsername(ctx, username); err == nil {
		return nil, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("register: lookup: %w", err)
	}

	user, err := s.createUser(ctx, username, password, role)
	if err != nil {
		return nil, err
	}

	metrics.RegistrationsTotal.WithLabelValues(string(role)).Inc()
	s.log.Info().Str("username", user.Username).Str("role", string(role)).Msg("user registered")

	s.announce(ctx, user)
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*ports.LoginResult, error) {
	if username == "" || password == "" {
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			return nil, fmt.Errorf("login: lookup: %w", err)
		}
		s.hasher.Verify(password, s.dummyHash)
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		return nil, domain.ErrInvalidCredentials
	}

	// Accounts without a usable hash never log in and cost the same as
	// unknown ones.
	hash := user.PasswordHash
	if hash == "" || hash == domain.ExternalPasswordHash {
		hash = s.dummyHash
		user = nil
	}
	if !s.hasher.Verify(password, hash) || user == nil {
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		return nil, domain.ErrInvalidCredentials
	}

	issued, err := s.tokens.Issue(user.Username, user.Role, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("login: issue token: %w", err)
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	return &ports.LoginResult{Token: issued.Token, ExpiresAt: issued.ExpiresAt, User: user}, nil
}

// SeedAdmin creates an ADMIN account when none with that username exists.
// An existing account is left untouched whatever its role.
func (s *AuthService) SeedAdmin(ctx context.Context, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, nil
	}
	if _, err := s.store.FindByUsername(ctx, username); err == nil {
		return false, nil
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return false, fmt.Errorf("seed admin: lookup: %w", err)
	}

	if _, err := s.createUser(ctx, username, password, domain.RoleAdmin); err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return false, nil
		}
		return false, fmt.Errorf("seed admin: %w", err)
	}
	s.log.Info().Str("username", username).Msg("bootstrap admin created")
	return true, nil
}

func (s *AuthService) createUser(ctx context.Context, username, password string, role domain.Role) (*domain.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	created, err := s.store.Create(ctx, &domain.User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		// A concurrent registration may win between the lookup and the insert.
		if errors.Is(err, domain.ErrUserExists) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

// announce publishes a registration event. Failures are logged only.
func (s *AuthService) announce(ctx context.Context, user *domain.User) {
	if s.events == nil {
		return
	}
	_, err := s.events.Publish(ctx, ports.Envelope{
		Topic: s.topic,
		Key:   user.Username,
		Payload: domain.UserRegistered{
			Username:              user.Username,
			Role:                  user.Role,
			OccurredAtEpochMillis: s.now().UnixMilli(),
		},
	})
	if err != nil {
		s.log.Warn().Err(err).Str("username", user.Username).Msg("registration event not published")
	}
}
