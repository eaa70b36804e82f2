// Package create реализует HTTP-обработчик создания записи (дела, клиента или платежа).
//
// Handler разбирает JSON с полями записи, определяет принципала запроса и
// передаёт запись сервису. В ответ возвращается созданная запись со
// сгенерированными id, createdAt и updatedAt.
package create

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/Xmananti/llb-case-tracker/internal/http/middlewarectx"
	"github.com/Xmananti/llb-case-tracker/internal/http/request"
	"github.com/Xmananti/llb-case-tracker/internal/http/response"
	"github.com/Xmananti/llb-case-tracker/internal/lib/apperr"
	"github.com/Xmananti/llb-case-tracker/internal/lib/sl"
	"github.com/Xmananti/llb-case-tracker/internal/models"
)

// Service описывает интерфейс бизнес-логики создания записи.
type Service[T any] interface {
	Create(ctx context.Context, rec *T) (*T, error)
}

// Handler управляет HTTP-запросами на создание записей одного типа.
type Handler[T any, PT interface {
	*T
	models.Record
}] struct {
	log     *slog.Logger
	service Service[T]
	kind    string // Тип записи для логов: case, client, payment
}

// New создает новый Handler.
func New[T any, PT interface {
	*T
	models.Record
}](log *slog.Logger, service Service[T], kind string) *Handler[T, PT] {
	return &Handler[T, PT]{
		log:     log,
		service: service,
		kind:    kind,
	}
}

// ServeHTTP godoc
// @Summary Создать запись
// @Description Создает дело, клиента или платеж. Запись получает организацию пользователя.
// @Tags Records
// @Accept  json
// @Produce  json
// @Param collection path string true "cases, clients или payments"
// @Param request body models.Case true "Поля записи"
// @Success 201 {object} response.Response "Созданная запись"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 403 {object} response.ErrorResponse "Организация не совпадает или подписка неактивна"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 503 {object} response.ErrorResponse "Хранилище недоступно"
// @Router /{collection} [post]
func (h *Handler[T, PT]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.record.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("kind", h.kind),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var rec T
	if err := request.Decode(r, &rec); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	env := PT(&rec).Meta()
	userID, err := middlewarectx.UserID(r, env.UserID)
	switch {
	case apperr.Is(err, apperr.KindValidation):
		// отсутствие userId сообщит схема вместе с остальными полями
	case err != nil:
		log.Warn("principal mismatch", sl.Err(err))
		response.RenderError(w, r, err)
		return
	default:
		env.UserID = userID
	}

	created, err := h.service.Create(r.Context(), &rec)
	if err != nil {
		log.Error("failed to create record", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Info("record created", slog.String("id", PT(created).Meta().ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(created))
}
