// Package middlewarectx содержит HTTP middleware сервиса: транспортный
// лимитер запросов и сбор метрик.
package middlewarectx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/auth-service/internal/http/response"
)

// RateLimitMiddleware — грубый транспортный предохранитель для всего API,
// token bucket на rps запросов в секунду с запасом burst. Доменный лимитер
// попыток входа (по пользователю и email) живет в сервисном слое и работает
// независимо от этого.
func RateLimitMiddleware(log *slog.Logger, rps float64, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				log.Error("too many requests")
				w.WriteHeader(http.StatusTooManyRequests)
				render.JSON(w, r, response.Error("too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
