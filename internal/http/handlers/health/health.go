// Package health реализует HTTP-обработчик проверки готовности сервиса.
package health

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/auth-service/internal/http/response"
)

// New возвращает обработчик проверки готовности.
func New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, response.OKWithData(map[string]string{
			"status": "healthy",
		}))
	}
}
