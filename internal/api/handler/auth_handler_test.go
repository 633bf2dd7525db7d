package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/campusflow/gateway/internal/core/domain"
	"github.com/campusflow/gateway/internal/core/ports"
)

type stubAuthService struct {
	registerFn func(ctx context.Context, username, password string, role domain.Role) (*domain.User, error)
	loginFn    func(ctx context.Context, username, password string) (*ports.LoginResult, error)
}

func (s *stubAuthService) Register(ctx context.Context, username, password string, role domain.Role) (*domain.User, error) {
	return s.registerFn(ctx, username, password, role)
}

func (s *stubAuthService) Login(ctx context.Context, username, password string) (*ports.LoginResult, error) {
	return s.loginFn(ctx, username, password)
}

// newContext builds an echo.Context with the validator installed and an
// optional principal, as the router and middleware would.
func newContext(method, target, body string, p *domain.Principal) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if p != nil {
		c.Set("principal", *p)
	}
	return c, rec
}

func TestAuthHandler_Register_Success(t *testing.T) {
	stub := &stubAuthService{
		registerFn: func(ctx context.Context, username, password string, role domain.Role) (*domain.User, error) {
			if username != "alice" || password != "pw123!" || role != domain.RoleStudent {
				t.Fatalf("unexpected args: %s %s %s", username, password, role)
			}
			return &domain.User{Username: username, Role: role, PasswordHash: "secret-hash"}, nil
		},
	}
	h := NewAuthHandler(stub, time.Hour)

	c, rec := newContext(http.MethodPost, "/auth/register", `{"username":"alice","password":"pw123!","role":"student"}`, nil)
	if err := h.Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["username"] != "alice" || resp["role"] != "STUDENT" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	if strings.Contains(rec.Body.String(), "secret-hash") {
		t.Fatalf("hash leaked in response")
	}
}

func TestAuthHandler_Register_Errors(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		svcErr  error
		wantErr error
	}{
		{name: "missing fields", body: `{"username":"bob"}`, wantErr: domain.ErrValidation},
		{name: "broken json", body: `{"username":`, wantErr: domain.ErrValidation},
		{name: "unknown role", body: `{"username":"bob","password":"pw","role":"JANITOR"}`, wantErr: domain.ErrRoleNotAllowed},
		{name: "admin role", body: `{"username":"bob","password":"pw","role":"ADMIN"}`, svcErr: domain.ErrRoleNotAllowed, wantErr: domain.ErrRoleNotAllowed},
		{name: "duplicate", body: `{"username":"bob","password":"pw","role":"STUDENT"}`, svcErr: domain.ErrUserExists, wantErr: domain.ErrUserExists},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stub := &stubAuthService{
				registerFn: func(ctx context.Context, username, password string, role domain.Role) (*domain.User, error) {
					if tc.svcErr == nil {
						t.Fatalf("service must not be called")
					}
					return nil, tc.svcErr
				},
			}
			c, _ := newContext(http.MethodPost, "/auth/register", tc.body, nil)
			if err := NewAuthHandler(stub, time.Hour).Register(c); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestAuthHandler_Login_Success(t *testing.T) {
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, username, password string) (*ports.LoginResult, error) {
			return &ports.LoginResult{
				Token: "signed.jwt.token",
				User:  &domain.User{Username: username, Role: domain.RoleInstructor},
			}, nil
		},
	}
	h := NewAuthHandler(stub, 120*time.Minute)

	c, rec := newContext(http.MethodPost, "/auth/login", `{"username":"carol","password":"s3cret"}`, nil)
	if err := h.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Token != "signed.jwt.token" || resp.Username != "carol" || resp.Role != domain.RoleInstructor {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	if resp.ExpiresInSec != 7200 {
		t.Fatalf("expected expiresInSec 7200, got %d", resp.ExpiresInSec)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, username, password string) (*ports.LoginResult, error) {
			return nil, domain.ErrInvalidCredentials
		},
	}

	c, _ := newContext(http.MethodPost, "/auth/login", `{"username":"dave","password":"bad"}`, nil)
	if err := NewAuthHandler(stub, time.Hour).Login(c); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthHandler_Login_RejectsOverlongPassword(t *testing.T) {
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, username, password string) (*ports.LoginResult, error) {
			t.Fatalf("service must not be called")
			return nil, nil
		},
	}
	body := `{"username":"carol","password":"` + strings.Repeat("p", 73) + `"}`
	c, _ := newContext(http.MethodPost, "/auth/login", body, nil)
	if err := NewAuthHandler(stub, time.Hour).Login(c); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestAuthHandler_Me(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{}, time.Hour)

	c, rec := newContext(http.MethodGet, "/auth/me", "", &domain.Principal{Subject: "alice", Role: domain.RoleStudent})
	if err := h.Me(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"username":"alice"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	c, _ = newContext(http.MethodGet, "/auth/me", "", nil)
	var he *echo.HTTPError
	if err := h.Me(c); !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without principal, got %v", err)
	}
}
