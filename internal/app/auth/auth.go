// Package auth собирает сервис аутентификации: хранилище, кэш, брокер,
// бизнес-сервисы и HTTP-сервер.
package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/auth-service/internal/cache"
	"github.com/magabrotheeeer/auth-service/internal/config"
	"github.com/magabrotheeeer/auth-service/internal/lib/jwt"
	"github.com/magabrotheeeer/auth-service/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/auth-service/internal/migrations"
	authservice "github.com/magabrotheeeer/auth-service/internal/services/auth"
	"github.com/magabrotheeeer/auth-service/internal/services/ratelimit"
	tokenservice "github.com/magabrotheeeer/auth-service/internal/services/token"
	"github.com/magabrotheeeer/auth-service/internal/services/verification"
	"github.com/magabrotheeeer/auth-service/internal/storage/repository"
)

type App struct {
	server *http.Server
	conn   *amqp.Connection
	ch     *amqp.Channel
	logger *slog.Logger
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}
	if err := db.ApplySeed(ctx, repository.BaseStatements); err != nil {
		return nil, err
	}

	redisCache, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetVerificationQueues())
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	tokenAuthority := tokenservice.New(db, logger, cfg.RefreshTokenTTL, cfg.EnforceIPMatch)
	limiter := ratelimit.New(redisCache, logger, cfg.RateLimitMaxAttempts, cfg.RateLimitWindow)
	codes := verification.New(redisCache, logger, cfg.VerificationTTL, cfg.VerificationCooldown)
	publisher := rabbitmq.NewCodePublisher(ch)
	auth := authservice.New(db, tokenAuthority, limiter, codes, publisher, jwtMaker, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg.HTTPServer, auth)

	server := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: server,
		conn:   conn,
		ch:     ch,
		logger: logger,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("auth HTTP server listening on", slog.String("address", a.server.Addr))
		errCh <- a.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.server.ReadTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("failed to shutdown server", slog.Any("err", err))
		}
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", slog.Any("err", err))
		}
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", slog.Any("err", err))
		}
		return nil
	case err := <-errCh:
		return err
	}
}
