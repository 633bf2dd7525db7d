package security

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusflow/gateway/internal/core/domain"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestService(t *testing.T, clock *fakeClock, opts ...JWTOption) *JWTService {
	t.Helper()
	svc, err := NewJWTService(testSecret, append([]JWTOption{WithClock(clock.Now)}, opts...)...)
	require.NoError(t, err)
	return svc
}

func reason(t *testing.T, err error) string {
	t.Helper()
	require.ErrorIs(t, err, domain.ErrInvalidToken)
	var te *domain.TokenError
	require.True(t, errors.As(err, &te), "expected *domain.TokenError, got %T", err)
	return te.Reason
}

func TestJWTService_RoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	svc := newTestService(t, clock)

	issued, err := svc.Issue("alice", domain.RoleStudent, 2*time.Hour)
	require.NoError(t, err)
	assert.True(t, clock.t.Add(2*time.Hour).Equal(issued.ExpiresAt))

	p, err := svc.Verify(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.Principal{Subject: "alice", Role: domain.RoleStudent}, p)
}

func TestJWTService_ExpiryIsExclusive(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	svc := newTestService(t, clock)

	issued, err := svc.Issue("alice", domain.RoleInstructor, time.Minute)
	require.NoError(t, err)

	clock.t = issued.ExpiresAt.Add(-time.Second)
	_, err = svc.Verify(issued.Token)
	require.NoError(t, err)

	clock.t = issued.ExpiresAt
	_, err = svc.Verify(issued.Token)
	assert.Equal(t, domain.TokenReasonExpired, reason(t, err))

	clock.t = issued.ExpiresAt.Add(time.Hour)
	_, err = svc.Verify(issued.Token)
	assert.Equal(t, domain.TokenReasonExpired, reason(t, err))
}

func TestJWTService_Rejects(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	svc := newTestService(t, clock)

	good, err := svc.Issue("alice", domain.RoleStudent, time.Hour)
	require.NoError(t, err)

	sign := func(method jwt.SigningMethod, key any, claims jwt.Claims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	valid := func(role domain.Role, sub string) Claims {
		return Claims{
			Role: role,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   sub,
				IssuedAt:  jwt.NewNumericDate(clock.t),
				ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
			},
		}
	}

	parts := strings.Split(good.Token, ".")
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	tests := []struct {
		name   string
		token  string
		reason string
	}{
		{name: "empty", token: "", reason: domain.TokenReasonMalformed},
		{name: "garbage", token: "not-a-jwt", reason: domain.TokenReasonMalformed},
		{name: "three bogus segments", token: "header.payload.signature", reason: domain.TokenReasonMalformed},
		{name: "tampered signature", token: tampered, reason: domain.TokenReasonSignature},
		{
			name:   "wrong key",
			token:  sign(jwt.SigningMethodHS256, []byte("ffffffffffffffffffffffffffffffff"), valid(domain.RoleAdmin, "mallory")),
			reason: domain.TokenReasonSignature,
		},
		{
			name:   "algorithm substitution HS512",
			token:  sign(jwt.SigningMethodHS512, testSecret, valid(domain.RoleAdmin, "mallory")),
			reason: domain.TokenReasonSignature,
		},
		{
			name:   "alg none",
			token:  sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid(domain.RoleAdmin, "mallory")),
			reason: domain.TokenReasonSignature,
		},
		{
			name:   "missing role",
			token:  sign(jwt.SigningMethodHS256, testSecret, valid("", "alice")),
			reason: domain.TokenReasonClaims,
		},
		{
			name:   "unknown role",
			token:  sign(jwt.SigningMethodHS256, testSecret, valid("ROOT", "alice")),
			reason: domain.TokenReasonClaims,
		},
		{
			name:   "missing subject",
			token:  sign(jwt.SigningMethodHS256, testSecret, valid(domain.RoleStudent, "")),
			reason: domain.TokenReasonClaims,
		},
		{
			name: "missing exp",
			token: sign(jwt.SigningMethodHS256, testSecret, Claims{
				Role:             domain.RoleStudent,
				RegisteredClaims: jwt.RegisteredClaims{Subject: "alice"},
			}),
			reason: domain.TokenReasonClaims,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Verify(tt.token)
			require.Error(t, err)
			assert.Equal(t, tt.reason, reason(t, err))
		})
	}
}

func TestJWTService_Issuer(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	a := newTestService(t, clock, WithIssuer("campus-gateway"))
	b := newTestService(t, clock, WithIssuer("someone-else"))

	issued, err := a.Issue("alice", domain.RoleStudent, time.Hour)
	require.NoError(t, err)

	_, err = a.Verify(issued.Token)
	require.NoError(t, err)

	_, err = b.Verify(issued.Token)
	assert.Equal(t, domain.TokenReasonClaims, reason(t, err))
}

func TestJWTService_IssueValidation(t *testing.T) {
	svc := newTestService(t, &fakeClock{t: time.Now()})

	_, err := svc.Issue("", domain.RoleStudent, time.Hour)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Issue("alice", "ROOT", time.Hour)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Issue("alice", domain.RoleStudent, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestNewJWTService_WeakSecret(t *testing.T) {
	_, err := NewJWTService([]byte("short"))
	assert.ErrorIs(t, err, ErrWeakSecret)
}
