// Package subscription реализует HTTP-обработчик смены тарифа организации.
//
// Организация в статусе trial сохраняет пробный период при переходе на тариф
// с пробным периодом; остальные получают active без нового пробного периода.
package subscription

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/Xmananti/llb-case-tracker/internal/http/middlewarectx"
	"github.com/Xmananti/llb-case-tracker/internal/http/request"
	"github.com/Xmananti/llb-case-tracker/internal/http/response"
	"github.com/Xmananti/llb-case-tracker/internal/lib/sl"
	"github.com/Xmananti/llb-case-tracker/internal/models"
)

// Service описывает интерфейс бизнес-логики смены тарифа.
type Service interface {
	UpdateSubscription(ctx context.Context, userID, id string, change models.SubscriptionChange) (*models.Organization, error)
}

// Handler обрабатывает запросы на смену тарифа.
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
// @Summary Сменить тариф организации
// @Description Доступно только создателю организации. Возвращает организацию целиком.
// @Tags Organizations
// @Accept  json
// @Produce  json
// @Param id path string true "Идентификатор организации"
// @Param userId query string true "Идентификатор пользователя"
// @Param request body models.SubscriptionChange true "Новый тариф и, при необходимости, статус"
// @Success 200 {object} response.Response "Обновлённая организация"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 403 {object} response.ErrorResponse "Пользователь не администратор организации"
// @Failure 404 {object} response.ErrorResponse "Организация не найдена"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /organizations/{id}/subscription [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.organization.subscription"
	id := chi.URLParam(r, "id")
	log := h.log.With(
		slog.String("op", op),
		slog.String("organization_id", id),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var change models.SubscriptionChange
	if err := request.Decode(r, &change); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	userID, err := middlewarectx.UserID(r, r.URL.Query().Get("userId"))
	if err != nil {
		log.Warn("failed to resolve principal", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	org, err := h.service.UpdateSubscription(r.Context(), userID, id, change)
	if err != nil {
		log.Error("failed to update subscription", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Info("subscription updated", slog.String("plan", org.SubscriptionPlan), slog.String("status", org.SubscriptionStatus))
	render.JSON(w, r, response.StatusOKWithData(org))
}
