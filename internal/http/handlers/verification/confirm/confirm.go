// Package confirm реализует HTTP-обработчик проверки кода подтверждения email.
package confirm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/auth-service/internal/http/response"
	"github.com/magabrotheeeer/auth-service/internal/lib/sl"
	authservice "github.com/magabrotheeeer/auth-service/internal/services/auth"
	"github.com/magabrotheeeer/auth-service/internal/services/ratelimit"
)

// Request — структура входных данных для проверки кода.
type Request struct {
	Login string `json:"login" validate:"required,min=3,max=50"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// Service описывает интерфейс бизнес-логики подтверждения email.
type Service interface {
	ConfirmEmail(ctx context.Context, login, code string) (bool, error)
}

// Handler обрабатывает HTTP-запросы проверки кода подтверждения.
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
	const op = "handlers.verification.confirm"

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

	ok, err := h.auth.ConfirmEmail(r.Context(), req.Login, req.Code)
	if err != nil {
		var limitErr *ratelimit.LimitExceededError
		switch {
		case errors.As(err, &limitErr):
			log.Warn("confirmation rate limited", slog.String("scope", string(limitErr.Scope)))
			w.WriteHeader(http.StatusTooManyRequests)
			render.JSON(w, r, response.Error("too many attempts"))
		case errors.Is(err, authservice.ErrInvalidCredentials),
			errors.Is(err, authservice.ErrEmailAbsent):
			log.Warn("confirmation rejected", sl.Secret("login", req.Login))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("cannot confirm this account"))
		default:
			log.Error("confirmation failed", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
		}
		return
	}
	if !ok {
		log.Warn("wrong verification code", sl.Secret("login", req.Login))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid code"))
		return
	}

	log.Info("email confirmed", sl.Secret("login", req.Login))
	render.JSON(w, r, response.OK())
}
