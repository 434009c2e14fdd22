// Package refresh реализует HTTP-обработчик обновления сессии по
// refresh-токену.
//
// Любая причина отказа токена (отсутствие, истечение, отзыв, чужой
// отпечаток) схлопывается в общий ответ "invalid session": точная причина
// остается в журнале аудита и не утекает клиенту.
package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/auth-service/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/auth-service/internal/http/response"
	"github.com/magabrotheeeer/auth-service/internal/lib/sl"
	"github.com/magabrotheeeer/auth-service/internal/models"
	tokenservice "github.com/magabrotheeeer/auth-service/internal/services/token"
)

// Request — структура входных данных для обновления сессии.
type Request struct {
	RefreshToken string `json:"refresh_token" validate:"required,uuid"`
	Fingerprint  string `json:"fingerprint" validate:"required"`
}

// Service описывает интерфейс бизнес-логики обновления сессии.
type Service interface {
	Refresh(ctx context.Context, refreshTokenID, fingerprint string, ip *string) (*models.TokenPair, error)
}

// Handler обрабатывает HTTP-запросы обновления сессии.
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
	const op = "handlers.auth.refresh"

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

	pair, err := h.auth.Refresh(r.Context(), req.RefreshToken, req.Fingerprint, login.ClientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, tokenservice.ErrTokenAbsent),
			errors.Is(err, tokenservice.ErrTokenExpired),
			errors.Is(err, tokenservice.ErrTokenBlacklisted),
			errors.Is(err, tokenservice.ErrInvalidTokenData):
			log.Warn("refresh rejected", sl.Err(err))
			w.WriteHeader(http.StatusUnauthorized)
			render.JSON(w, r, response.Error("invalid session"))
		default:
			log.Error("refresh failed", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
		}
		return
	}

	log.Info("session refreshed")
	render.JSON(w, r, response.OKWithData(map[string]any{
		"token":         pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_at":    pair.ExpiresAt,
	}))
}
