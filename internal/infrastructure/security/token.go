package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/campusflow/gateway/internal/core/domain"
	"github.com/campusflow/gateway/internal/core/ports"
)

// MinSecretBytes is the shortest HS256 key accepted at startup.
const MinSecretBytes = 32

var ErrWeakSecret = fmt.Errorf("jwt secret must be at least %d bytes", MinSecretBytes)

// Claims is the token body: the registered claims plus the account role.
type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// JWTService issues and verifies HS256 session tokens with a key that is
// fixed for the lifetime of the process.
type JWTService struct {
	key    []byte
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

type JWTOption func(*JWTService)

// WithClock replaces time.Now for both issuing and verifying.
func WithClock(now func() time.Time) JWTOption {
	return func(s *JWTService) { s.now = now }
}

// WithIssuer sets the iss claim on issued tokens and requires it on verify.
func WithIssuer(iss string) JWTOption {
	return func(s *JWTService) { s.issuer = iss }
}

func NewJWTService(secret []byte, opts ...JWTOption) (*JWTService, error) {
	if len(secret) < MinSecretBytes {
		return nil, ErrWeakSecret
	}
	s := &JWTService{
		key: append([]byte(nil), secret...),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(s.issuer))
	}
	s.parser = jwt.NewParser(parserOpts...)
	return s, nil
}

var _ ports.TokenService = (*JWTService)(nil)

func (s *JWTService) Issue(subject string, role domain.Role, ttl time.Duration) (ports.IssuedToken, error) {
	if subject == "" {
		return ports.IssuedToken{}, fmt.Errorf("%w: empty subject", domain.ErrValidation)
	}
	if !role.Valid() {
		return ports.IssuedToken{}, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, role)
	}
	if ttl <= 0 {
		return ports.IssuedToken{}, fmt.Errorf("%w: ttl must be positive", domain.ErrValidation)
	}

	now := s.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return ports.IssuedToken{}, fmt.Errorf("sign token: %w", err)
	}
	return ports.IssuedToken{Token: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Verify checks the signature, then expiry, then claim shape. Every failure
// is a *domain.TokenError; callers must not echo its reason to clients.
func (s *JWTService) Verify(token string) (domain.Principal, error) {
	claims := &Claims{}
	if _, err := s.parser.ParseWithClaims(token, claims, s.keyFunc); err != nil {
		return domain.Principal{}, &domain.TokenError{Reason: classify(err), Err: err}
	}

	if claims.Subject == "" {
		return domain.Principal{}, &domain.TokenError{Reason: domain.TokenReasonClaims, Err: errors.New("missing subject")}
	}
	if !claims.Role.Valid() {
		return domain.Principal{}, &domain.TokenError{Reason: domain.TokenReasonClaims, Err: fmt.Errorf("unknown role %q", claims.Role)}
	}
	return domain.Principal{Subject: claims.Subject, Role: claims.Role}, nil
}

func (s *JWTService) keyFunc(t *jwt.Token) (any, error) {
	if t.Method != jwt.SigningMethodHS256 {
		return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
	}
	return s.key, nil
}

func classify(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return domain.TokenReasonMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return domain.TokenReasonSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return domain.TokenReasonExpired
	default:
		return domain.TokenReasonClaims
	}
}
