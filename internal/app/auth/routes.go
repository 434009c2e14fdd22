package auth

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magabrotheeeer/auth-service/internal/config"
	"github.com/magabrotheeeer/auth-service/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/auth-service/internal/http/handlers/auth/logout"
	"github.com/magabrotheeeer/auth-service/internal/http/handlers/auth/refresh"
	"github.com/magabrotheeeer/auth-service/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/auth-service/internal/http/handlers/health"
	"github.com/magabrotheeeer/auth-service/internal/http/handlers/verification/confirm"
	"github.com/magabrotheeeer/auth-service/internal/http/handlers/verification/request"
	"github.com/magabrotheeeer/auth-service/internal/http/middlewarectx"
	authservice "github.com/magabrotheeeer/auth-service/internal/services/auth"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, srvCfg config.HTTPServer, auth *authservice.Service) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
		middlewarectx.MetricsMiddleware,
	)

	r.Get("/health", health.New())
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewarectx.RateLimitMiddleware(logger, srvCfg.RateLimitRPS, srvCfg.RateLimitBurst))

		r.Post("/register", register.New(logger, auth).ServeHTTP)
		r.Post("/login", login.New(logger, auth).ServeHTTP)
		r.Post("/refresh", refresh.New(logger, auth).ServeHTTP)
		r.Post("/logout", logout.New(logger, auth).ServeHTTP)
		r.Post("/verification/request", request.New(logger, auth).ServeHTTP)
		r.Post("/verification/confirm", confirm.New(logger, auth).ServeHTTP)
	})
}
