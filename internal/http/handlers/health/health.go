// Package health реализует проверку живости сервиса и доступности хранилища.
package health

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/Xmananti/llb-case-tracker/internal/http/response"
	"github.com/Xmananti/llb-case-tracker/internal/lib/apperr"
	"github.com/Xmananti/llb-case-tracker/internal/lib/sl"
)

// Pinger проверяет соединение с зависимостью.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler отвечает на запросы проверки живости.
type Handler struct {
	log   *slog.Logger
	store Pinger
}

// New создает новый Handler.
func New(log *slog.Logger, store Pinger) *Handler {
	return &Handler{
		log:   log,
		store: store,
	}
}

// ServeHTTP godoc
// @Summary Проверка живости
// @Tags Health
// @Produce  json
// @Success 200 {object} response.Response "Сервис и хранилище доступны"
// @Failure 503 {object} response.ErrorResponse "Хранилище недоступно"
// @Router /health [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"
	if err := h.store.Ping(r.Context()); err != nil {
		h.log.Error("store ping failed", slog.String("op", op), sl.Err(err))
		response.RenderError(w, r, apperr.Unavailable("document store unavailable", err))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"status": "ok",
	}))
}
