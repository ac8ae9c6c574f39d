package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	mw "github.com/lorrc/trusted-invoker/internal/adapters/primary/http/middleware"
	"github.com/lorrc/trusted-invoker/internal/core/ports"
)

// RouterConfig collects the handlers and middleware dependencies of the router.
type RouterConfig struct {
	Logger           *slog.Logger
	IdentityResolver ports.IdentityResolver
	ErrorHandler     *ErrorHandler
	UserInfo         *UserInfoHandler
	Invoker          *InvokerHandler
	Health           *HealthHandler

	// RateLimiter is optional; nil disables rate limiting.
	RateLimiter *mw.RateLimiter

	AllowedOrigins []string
	CORSMaxAge     int
}

// NewRouter builds the service's HTTP routes.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.RecoveryLogger(cfg.Logger))
	r.Use(mw.ResolveIdentity(cfg.IdentityResolver))
	r.Use(mw.RequestLogger(cfg.Logger))

	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", mw.RequestIDHeader},
			ExposedHeaders:   []string{mw.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           cfg.CORSMaxAge,
		}))
	}

	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Middleware)
	}

	r.NotFound(cfg.ErrorHandler.NotFound)
	r.MethodNotAllowed(cfg.ErrorHandler.MethodNotAllowed)

	// Health check endpoints
	cfg.Health.RegisterRoutes(r)

	r.Route("/bin", func(r chi.Router) {
		cfg.UserInfo.RegisterRoutes(r)
		cfg.Invoker.RegisterRoutes(r)
	})

	return r
}
