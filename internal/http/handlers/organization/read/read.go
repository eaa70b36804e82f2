// Package read реализует HTTP-обработчик получения организации её участником.
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
	"github.com/Xmananti/llb-case-tracker/internal/models"
)

// Service описывает интерфейс бизнес-логики чтения организации.
type Service interface {
	Get(ctx context.Context, userID, id string) (*models.Organization, error)
}

// Handler обрабатывает запросы на получение организации.
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
// @Summary Получить организацию
// @Tags Organizations
// @Produce  json
// @Param id path string true "Идентификатор организации"
// @Param userId query string true "Идентификатор пользователя"
// @Success 200 {object} response.Response "Организация"
// @Failure 403 {object} response.ErrorResponse "Пользователь не состоит в организации"
// @Failure 404 {object} response.ErrorResponse "Организация не найдена"
// @Router /organizations/{id} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.organization.read"
	id := chi.URLParam(r, "id")
	log := h.log.With(
		slog.String("op", op),
		slog.String("organization_id", id),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, err := middlewarectx.UserID(r, r.URL.Query().Get("userId"))
	if err != nil {
		log.Warn("failed to resolve principal", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	org, err := h.service.Get(r.Context(), userID, id)
	if err != nil {
		log.Error("failed to read organization", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Info("success to read organization")
	render.JSON(w, r, response.StatusOKWithData(org))
}
