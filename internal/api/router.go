package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	_ "github.com/99minutos/account-service/internal/api/docs"
	"github.com/99minutos/account-service/internal/api/handler"
	"github.com/99minutos/account-service/internal/api/middleware"
	"github.com/99minutos/account-service/internal/core/domain"
	"github.com/99minutos/account-service/internal/core/ports"
)

const rateLimitMessage = "Too many requests, please try again later."

// Deps collects everything the HTTP layer needs from the composition root.
type Deps struct {
	Service  ports.AccountService
	Sessions ports.SessionIssuer
	Log      zerolog.Logger

	// DiagnosticSecrets gate /users/secret-stats in addition to the admin role.
	DiagnosticSecrets []string
	// RateLimit is the sustained per-client request rate. Zero disables it.
	RateLimit float64
	// Pingers back the readiness probe.
	Pingers []handler.Pinger
	// Started anchors the uptime reported by the diagnostic endpoint.
	Started time.Time
	// Registerer receives the HTTP metrics. Nil means the default registry.
	Registerer prometheus.Registerer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	if d.Started.IsZero() {
		d.Started = time.Now()
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Secure())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "accounts",
		Registerer: d.Registerer,
	}))
	if d.RateLimit > 0 {
		e.Use(rateLimiter(d.RateLimit))
	}

	// --- Dependencies ---
	authHandler := handler.NewAuthHandler(d.Service)
	userHandler := handler.NewUserHandler(d.Service)
	statsHandler := handler.NewStatsHandler(d.Service, d.Started)
	healthHandler := handler.NewHealthHandler(d.Pingers...)

	authMiddleware := middleware.Auth(d.Sessions)
	adminOnly := middleware.RBAC(domain.RoleAdmin)

	// --- Auth routes ---
	auth := e.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.GET("/activate/:token", authHandler.Activate)
	auth.POST("/resend-activation", authHandler.ResendActivation)
	auth.POST("/forgot-password", authHandler.ForgotPassword)
	auth.POST("/reset-password", authHandler.ResetPassword)
	auth.POST("/change-password", authHandler.ChangePassword, authMiddleware)
	auth.GET("/profile", authHandler.Profile, authMiddleware)

	// --- User routes (auth required) ---
	// Ownership and self-deletion checks live in the service, so only listing
	// carries the admin guard.
	users := e.Group("/users", authMiddleware)
	users.GET("/secret-stats", statsHandler.Stats, adminOnly, middleware.Challenge(d.DiagnosticSecrets))
	users.GET("", userHandler.List, adminOnly)
	users.GET("/:id", userHandler.Get)
	users.PUT("/:id", userHandler.Update)
	users.DELETE("/:id", userHandler.Delete)

	// --- Health probes (no auth required) ---
	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthHandler.Readiness)

	// --- Operational endpoints ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

// rateLimiter throttles each client IP to rps requests per second.
func rateLimiter(rps float64) echo.MiddlewareFunc {
	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: echomiddleware.NewRateLimiterMemoryStore(rate.Limit(rps)),
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return c.JSON(http.StatusTooManyRequests, errorResponse{Error: rateLimitMessage})
		},
	})
}
