package api

import (
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/campusflow/gateway/internal/api/handler"
	"github.com/campusflow/gateway/internal/api/middleware"
	"github.com/campusflow/gateway/internal/core/domain"
	"github.com/campusflow/gateway/internal/core/ports"
)

// Deps carries everything the router mounts. Registerer and Gatherer default
// to the global Prometheus registry.
type Deps struct {
	Auth        ports.AuthService
	Admin       ports.AdminService
	Submissions ports.SubmissionService
	Tokens      middleware.TokenVerifier
	Health      map[string]handler.Pinger
	Log         zerolog.Logger

	TokenTTL    time.Duration
	CORSOrigins []string
	BodyLimit   string

	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	if d.Registerer == nil {
		d.Registerer = prometheus.DefaultRegisterer
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	if d.BodyLimit == "" {
		d.BodyLimit = "1M"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(echomiddleware.BodyLimit(d.BodyLimit))
	if len(d.CORSOrigins) > 0 {
		e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
			AllowOrigins: d.CORSOrigins,
			AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType},
		}))
	}
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "campus_gateway",
		Registerer: d.Registerer,
	}))

	authn := middleware.Authenticate(d.Tokens, d.Log)

	// --- Auth routes (anonymous entry points) ---
	authHandler := handler.NewAuthHandler(d.Auth, d.TokenTTL)
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)
	e.GET("/auth/me", authHandler.Me, authn, middleware.RequireRoles(domain.AnyRole))

	// --- Admin routes ---
	adminHandler := handler.NewAdminHandler(d.Admin)
	admin := e.Group("/admin", authn, middleware.RequireRoles(domain.AdminOnly))
	admin.GET("/users", adminHandler.ListUsers)
	admin.PUT("/users/:username/password", adminHandler.RotatePassword)

	// --- Submissions ---
	submissionHandler := handler.NewSubmissionHandler(d.Submissions)
	e.POST("/sf/submit", submissionHandler.Submit, authn, middleware.RequireRoles(domain.AnyRole))

	// --- Health probes and metrics (no auth required) ---
	healthHandler := handler.NewHealthHandler(d.Health)
	e.GET("/health", healthHandler.Liveness)        // liveness  – is the process alive?
	e.GET("/health/ready", healthHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: d.Gatherer}))

	return e
}
