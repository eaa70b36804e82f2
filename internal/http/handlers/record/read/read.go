// Package read реализует HTTP-обработчик получения записи по ID.
package read

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/Xmananti/llb-case-tracker/internal/http/middlewarectx"
	"github.com/Xmananti/llb-case-tracker/internal/http/response"
	"github.com/Xmananti/llb-case-tracker/internal/lib/sl"
)

// Service описывает интерфейс бизнес-логики чтения записи.
type Service[T any] interface {
	Get(ctx context.Context, userID, id string) (*T, error)
}

// Handler обрабатывает запросы на получение записи по идентификатору.
type Handler[T any] struct {
	log     *slog.Logger
	service Service[T]
	kind    string
}

// New создает новый Handler.
func New[T any](log *slog.Logger, service Service[T], kind string) *Handler[T] {
	return &Handler[T]{
		log:     log,
		service: service,
		kind:    kind,
	}
}

// ServeHTTP godoc
// @Summary Получить запись
// @Tags Records
// @Produce  json
// @Param collection path string true "cases, clients или payments"
// @Param id path string true "Идентификатор записи"
// @Param userId query string true "Идентификатор пользователя"
// @Success 200 {object} response.Response "Запись"
// @Failure 403 {object} response.ErrorResponse "Запись принадлежит другому пользователю"
// @Failure 404 {object} response.ErrorResponse "Запись не найдена"
// @Router /{collection}/{id} [get]
func (h *Handler[T]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.record.read"
	id := chi.URLParam(r, "id")
	log := h.log.With(
		slog.String("op", op),
		slog.String("kind", h.kind),
		slog.String("id", id),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, err := middlewarectx.UserID(r, r.URL.Query().Get("userId"))
	if err != nil {
		log.Warn("failed to resolve principal", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	res, err := h.service.Get(r.Context(), userID, id)
	if err != nil {
		log.Error("failed to read record", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Info("success to read record")
	render.JSON(w, r, response.StatusOKWithData(res))
}
