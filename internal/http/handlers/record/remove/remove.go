// Package remove реализует HTTP-обработчик удаления записи.
package remove

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

// Service описывает интерфейс бизнес-логики удаления записи.
type Service[T any] interface {
	Delete(ctx context.Context, userID, id string) (*T, error)
}

// Handler обрабатывает запросы на удаление записи.
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
// @Summary Удалить запись
// @Description Удаляет запись владельца. Удаление клиента удаляет и его платежи.
// @Tags Records
// @Produce  json
// @Param collection path string true "cases, clients или payments"
// @Param id path string true "Идентификатор записи"
// @Param userId query string true "Идентификатор пользователя"
// @Success 200 {object} response.Response "Удаление подтверждено"
// @Failure 403 {object} response.ErrorResponse "Запись принадлежит другому пользователю"
// @Failure 404 {object} response.ErrorResponse "Запись не найдена"
// @Failure 503 {object} response.ErrorResponse "Не удалось удалить связанные платежи"
// @Router /{collection}/{id} [delete]
func (h *Handler[T]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.record.remove"
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

	if _, err := h.service.Delete(r.Context(), userID, id); err != nil {
		log.Error("failed to delete record", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Info("success to delete record")
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"id":      id,
		"deleted": true,
	}))
}
