package campuspass

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/campus-pass/internal/config"
	"github.com/magabrotheeeer/campus-pass/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/campus-pass/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/campus-pass/internal/http/handlers/health"
	"github.com/magabrotheeeer/campus-pass/internal/http/handlers/pass/approve"
	"github.com/magabrotheeeer/campus-pass/internal/http/handlers/pass/create"
	"github.com/magabrotheeeer/campus-pass/internal/http/handlers/pass/drop"
	"github.com/magabrotheeeer/campus-pass/internal/http/handlers/pass/list"
	"github.com/magabrotheeeer/campus-pass/internal/http/handlers/pass/mine"
	"github.com/magabrotheeeer/campus-pass/internal/http/handlers/pass/verify"
	"github.com/magabrotheeeer/campus-pass/internal/http/middlewarectx"
	"github.com/magabrotheeeer/campus-pass/internal/models"
	"github.com/magabrotheeeer/campus-pass/internal/realtime"
	authservice "github.com/magabrotheeeer/campus-pass/internal/services/auth"
	passservice "github.com/magabrotheeeer/campus-pass/internal/services/pass"
)

// Deps зависимости маршрутов приложения.
type Deps struct {
	Logger    *slog.Logger
	Passes    *passservice.Service
	Auth      *authservice.AuthService
	Hub       *realtime.Hub
	Limiter   *middlewarectx.RateLimiter
	Pingers   map[string]health.Pinger
	// AccessLog получает access-лог; nil означает stdout.
	AccessLog io.Writer
}

func newLimiter(cfg *config.Config) *middlewarectx.RateLimiter {
	return middlewarectx.NewRateLimiter(cfg.RatePerSecond, cfg.RateBurst)
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, d Deps) {
	logger := d.Logger

	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middlewarectx.AccessLogger(d.AccessLog),
		middleware.Recoverer,
		middleware.URLFormat,
		cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}),
	)

	r.Route("/api", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/auth/register", register.New(logger, d.Auth).ServeHTTP)
		r.Post("/auth/login", login.New(logger, d.Auth).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(d.Auth, logger))

			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.RequireRole(models.RoleUser, logger))
				r.Post("/passes", create.New(logger, d.Passes).ServeHTTP)
				r.Get("/passes/mine", mine.New(logger, d.Passes).ServeHTTP)
				r.Delete("/passes/{id}", drop.New(logger, d.Passes).ServeHTTP)
			})

			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.RequireRole(models.RoleAdmin, logger))
				r.Use(middlewarectx.RateLimitMiddleware(d.Limiter, logger))
				r.Get("/passes", list.New(logger, d.Passes).ServeHTTP)
				r.Post("/passes/verify", verify.New(logger, d.Passes).ServeHTTP)
				r.Post("/passes/approve", approve.New(logger, d.Passes).ServeHTTP)
			})
		})
	})

	r.Handle("/ws", realtime.NewHandler(d.Hub, d.Auth, logger))
	r.Get("/healthz", health.New(logger, d.Pingers).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
