// Package login реализует HTTP-обработчик для запросов аутентификации
// пользователей.
//
// При успешной аутентификации возвращается JSON с access-токеном и
// идентификатором refresh-токена; внутренне различимые причины отказа
// схлопываются в общий ответ "invalid credentials".
package login

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/auth-service/internal/http/response"
	"github.com/magabrotheeeer/auth-service/internal/lib/sl"
	"github.com/magabrotheeeer/auth-service/internal/models"
	authservice "github.com/magabrotheeeer/auth-service/internal/services/auth"
	"github.com/magabrotheeeer/auth-service/internal/services/ratelimit"
)

// Request — структура входных данных для авторизации.
type Request struct {
	Login       string `json:"login" validate:"required,min=3,max=50"`
	Password    string `json:"password" validate:"required,min=6"`
	Fingerprint string `json:"fingerprint" validate:"required"`
}

// Service описывает интерфейс бизнес-логики аутентификации.
type Service interface {
	Login(ctx context.Context, login, password, fingerprint string, ip *string) (*models.TokenPair, error)
}

// Handler обрабатывает HTTP-запросы для авторизации.
type Handler struct {
	log      *slog.Logger
	auth     Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, auth Service) *Handler {
	return &Handler{
		log:      log,
		auth:     auth,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	pair, err := h.auth.Login(r.Context(), req.Login, req.Password, req.Fingerprint, ClientIP(r))
	if err != nil {
		var limitErr *ratelimit.LimitExceededError
		switch {
		case errors.As(err, &limitErr):
			log.Warn("login rate limited", slog.String("scope", string(limitErr.Scope)))
			w.WriteHeader(http.StatusTooManyRequests)
			render.JSON(w, r, response.Error("too many attempts"))
		case errors.Is(err, authservice.ErrInvalidCredentials):
			log.Warn("login failed", sl.Secret("login", req.Login))
			w.WriteHeader(http.StatusUnauthorized)
			render.JSON(w, r, response.Error("invalid credentials"))
		default:
			log.Error("login failed", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
		}
		return
	}

	log.Info("login success", sl.Secret("login", req.Login))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"token":         pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_at":    pair.ExpiresAt,
	}))
}

// ClientIP извлекает IP клиента из адреса соединения.
func ClientIP(r *http.Request) *string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return nil
	}
	return &host
}
