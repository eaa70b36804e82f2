// Package create реализует HTTP-обработчик создания организации.
//
// Создатель становится администратором организации; начальная подписка
// определяется тарифом (по умолчанию free).
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

// Service описывает интерфейс бизнес-логики создания организации.
type Service interface {
	Create(ctx context.Context, req models.CreateOrganizationRequest) (*models.Organization, error)
}

// Handler обрабатывает запросы на создание организации.
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
// @Summary Создать организацию
// @Tags Organizations
// @Accept  json
// @Produce  json
// @Param request body models.CreateOrganizationRequest true "Данные организации"
// @Success 201 {object} response.Response "Созданная организация"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 403 {object} response.ErrorResponse "Пользователь уже состоит в организации"
// @Failure 404 {object} response.ErrorResponse "Профиль пользователя не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /organizations [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.organization.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.CreateOrganizationRequest
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

	org, err := h.service.Create(r.Context(), req)
	if err != nil {
		log.Error("failed to create organization", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Info("organization created", slog.String("organization_id", org.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(org))
}
