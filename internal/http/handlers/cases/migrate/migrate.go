// Package migrate реализует HTTP-обработчик переноса наследованных дел пользователя в организацию.
//
// Перенос выполняется одной атомарной записью. Если после неё не удалось обновить
// счётчик дел организации, ответ всё равно успешный и содержит partial=true.
package migrate

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

// Service описывает интерфейс бизнес-логики переноса дел.
type Service interface {
	Migrate(ctx context.Context, req models.MigrateRequest) (models.MigrationResult, error)
}

// Handler обрабатывает запросы переноса дел.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Перенести дела в организацию
// @Description Привязывает к организации все дела пользователя, у которых ещё нет организации.
// @Tags Cases
// @Accept  json
// @Produce  json
// @Param request body models.MigrateRequest true "Пользователь и организация"
// @Success 200 {object} response.Response "Результат переноса"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 403 {object} response.ErrorResponse "Пользователь не состоит в организации"
// @Failure 404 {object} response.ErrorResponse "Организация не найдена"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 503 {object} response.ErrorResponse "Хранилище недоступно"
// @Router /cases/migrate [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.cases.migrate"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.MigrateRequest
	if err := request.Decode(r, &req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	userID, err := middlewarectx.UserID(r, req.UserID)
	switch {
	case apperr.Is(err, apperr.KindValidation):
	case err != nil:
		log.Warn("principal mismatch", sl.Err(err))
		response.RenderError(w, r, err)
		return
	default:
		req.UserID = userID
	}

	res, err := h.service.Migrate(r.Context(), req)
	if err != nil {
		log.Error("failed to migrate cases", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}
	if res.Partial {
		log.Warn("cases migrated without counter update", slog.Int("migrated", res.Migrated))
	}

	log.Info("cases migrated", slog.Int("migrated", res.Migrated))
	render.JSON(w, r, response.StatusOKWithData(res))
}
