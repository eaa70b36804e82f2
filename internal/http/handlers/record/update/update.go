// Package update реализует HTTP-обработчик частичного обновления записи.
//
// Тело запроса сливается с сохранённой записью: отсутствующие поля сохраняют
// прежние значения. Пользователь берётся из параметра userId, а если его нет,
// из поля userId тела.
package update

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/Xmananti/llb-case-tracker/internal/http/middlewarectx"
	"github.com/Xmananti/llb-case-tracker/internal/http/request"
	"github.com/Xmananti/llb-case-tracker/internal/http/response"
	"github.com/Xmananti/llb-case-tracker/internal/lib/sl"
)

// Service описывает интерфейс бизнес-логики обновления записи.
type Service[T any] interface {
	Update(ctx context.Context, userID, id string, patch json.RawMessage) (*T, error)
}

// Handler обрабатывает запросы на обновление записи.
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
// @Summary Обновить запись
// @Description Сливает переданные поля с записью. id, userId, organizationId и createdAt не меняются.
// @Tags Records
// @Accept  json
// @Produce  json
// @Param collection path string true "cases, clients или payments"
// @Param id path string true "Идентификатор записи"
// @Param userId query string false "Идентификатор пользователя"
// @Param request body object true "Изменяемые поля"
// @Success 200 {object} response.Response "Обновлённая запись"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 403 {object} response.ErrorResponse "Запись принадлежит другому пользователю"
// @Failure 404 {object} response.ErrorResponse "Запись не найдена"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /{collection}/{id} [put]
func (h *Handler[T]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.record.update"
	id := chi.URLParam(r, "id")
	log := h.log.With(
		slog.String("op", op),
		slog.String("kind", h.kind),
		slog.String("id", id),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	patch, err := request.Raw(r)
	if err != nil {
		log.Error("failed to decode request", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	claimed := r.URL.Query().Get("userId")
	if claimed == "" {
		var body struct {
			UserID string `json:"userId"`
		}
		_ = json.Unmarshal(patch, &body)
		claimed = body.UserID
	}
	userID, err := middlewarectx.UserID(r, claimed)
	if err != nil {
		log.Warn("failed to resolve principal", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	res, err := h.service.Update(r.Context(), userID, id, patch)
	if err != nil {
		log.Error("failed to update record", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Info("success to update record")
	render.JSON(w, r, response.StatusOKWithData(res))
}
