package api

import (
	"crypto/rsa"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/userhub/user-service/internal/api/handler"
	"github.com/userhub/user-service/internal/api/middleware"
	"github.com/userhub/user-service/internal/core/domain"
	"github.com/userhub/user-service/internal/core/ports"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Users     ports.UserService
	Auth      ports.AuthService // nil when tokens come from an external provider
	JWTSecret string
	// JWTIssuer, when set, must match the iss claim of every token.
	JWTIssuer string
	// JWTPublicKey, when set, also admits RS256 tokens from an external provider.
	JWTPublicKey *rsa.PublicKey
	Health       map[string]handler.Pinger
	Log          zerolog.Logger
	// Registry receives the HTTP metrics; nil means the default registry.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if d.Registry != nil {
		registerer, gatherer = d.Registry, d.Registry
	}
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "user_service",
		Registerer: registerer,
	}))

	// --- Health probes and metrics (no auth required) ---
	health := handler.NewHealthHandler(d.Health)
	e.GET("/health", health.Liveness)
	e.GET("/health/ready", health.Readiness)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))

	// --- Local identity provider ---
	if d.Auth != nil {
		authHandler := handler.NewAuthHandler(d.Auth)
		e.POST("/auth/register", authHandler.Register)
		e.POST("/auth/login", authHandler.Login)
	}

	// --- Users ---
	var authOpts []middleware.AuthOption
	if d.JWTPublicKey != nil {
		authOpts = append(authOpts, middleware.WithRSAPublicKey(d.JWTPublicKey))
	}
	if d.JWTIssuer != "" {
		authOpts = append(authOpts, middleware.WithIssuer(d.JWTIssuer))
	}

	users := handler.NewUserHandler(d.Users)
	v1 := e.Group("/v1", middleware.Auth(d.JWTSecret, authOpts...))
	v1.POST("/users", users.Create)
	v1.GET("/users", users.List, middleware.RBAC(domain.RoleAdmin))
	v1.GET("/users/me", users.Me)
	v1.GET("/users/by-email/:email", users.GetByEmail)
	v1.GET("/users/:id", users.Get)
	v1.PATCH("/users/:id", users.Rename)
	v1.DELETE("/users/:id", users.Delete)

	return e
}

// requestLogger emits one structured line per request through zerolog.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= 500 {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
