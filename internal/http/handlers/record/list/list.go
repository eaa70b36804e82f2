// Package list реализует HTTP-обработчик получения списка видимых пользователю записей.
package list

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/Xmananti/llb-case-tracker/internal/http/middlewarectx"
	"github.com/Xmananti/llb-case-tracker/internal/http/request"
	"github.com/Xmananti/llb-case-tracker/internal/http/response"
	"github.com/Xmananti/llb-case-tracker/internal/lib/sl"
	"github.com/Xmananti/llb-case-tracker/internal/services/records"
)

// Service описывает интерфейс бизнес-логики списка записей.
type Service[T any] interface {
	List(ctx context.Context, q records.Query) ([]*T, error)
}

// Handler обрабатывает запросы списка записей одного типа.
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
// @Summary Список записей
// @Description Возвращает записи пользователя и его организации. Пользователь без профиля получает пустой список.
// @Tags Records
// @Produce  json
// @Param collection path string true "cases, clients или payments"
// @Param userId query string true "Идентификатор пользователя"
// @Param organizationId query string false "Идентификатор организации"
// @Param clientId query string false "Фильтр по клиенту"
// @Success 200 {object} response.Response "Список записей"
// @Failure 403 {object} response.ErrorResponse "userId не совпадает с токеном"
// @Failure 422 {object} response.ErrorResponse "Не указан userId"
// @Failure 503 {object} response.ErrorResponse "Хранилище недоступно"
// @Router /{collection} [get]
func (h *Handler[T]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.record.list"
	log := h.log.With(
		slog.String("op", op),
		slog.String("kind", h.kind),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, err := middlewarectx.UserID(r, r.URL.Query().Get("userId"))
	if err != nil {
		log.Warn("failed to resolve principal", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	res, err := h.service.List(r.Context(), records.Query{
		UserID:         userID,
		OrganizationID: request.OptionalString(r, "organizationId"),
		ClientID:       r.URL.Query().Get("clientId"),
	})
	if err != nil {
		log.Error("failed to list records", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Info("success to list records", slog.Int("count", len(res)))
	render.JSON(w, r, response.StatusOKWithData(res))
}
