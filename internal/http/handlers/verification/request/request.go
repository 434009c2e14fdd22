// Package request реализует HTTP-обработчик запроса кода подтверждения email.
package request

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
	"github.com/magabrotheeeer/auth-service/internal/services/verification"
)

// Request — структура входных данных для запроса кода.
type Request struct {
	Login string `json:"login" validate:"required,min=3,max=50"`
}

// Service описывает интерфейс бизнес-логики запроса кода.
type Service interface {
	RequestEmailCode(ctx context.Context, login string) error
}

// Handler обрабатывает HTTP-запросы выпуска кода подтверждения.
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
	const op = "handlers.verification.request"

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

	if err := h.auth.RequestEmailCode(r.Context(), req.Login); err != nil {
		var limitErr *ratelimit.LimitExceededError
		switch {
		case errors.As(err, &limitErr):
			log.Warn("code request rate limited", slog.String("scope", string(limitErr.Scope)))
			w.WriteHeader(http.StatusTooManyRequests)
			render.JSON(w, r, response.Error("too many attempts"))
		case errors.Is(err, verification.ErrNextCodeAttempt):
			log.Warn("code requested before cooldown passed")
			w.WriteHeader(http.StatusTooManyRequests)
			render.JSON(w, r, response.Error("code was requested recently, wait a bit"))
		case errors.Is(err, authservice.ErrInvalidCredentials),
			errors.Is(err, authservice.ErrEmailAbsent):
			log.Warn("code request rejected", sl.Secret("login", req.Login))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("cannot send code for this account"))
		default:
			log.Error("code request failed", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
		}
		return
	}

	log.Info("verification code sent", sl.Secret("login", req.Login))
	render.JSON(w, r, response.OK())
}
