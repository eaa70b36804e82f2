// Package members реализует HTTP-обработчик добавления участника в организацию.
package members

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
	"github.com/Xmananti/llb-case-tracker/internal/lib/apperr"
	"github.com/Xmananti/llb-case-tracker/internal/lib/sl"
	"github.com/Xmananti/llb-case-tracker/internal/models"
)

// Service описывает интерфейс бизнес-логики добавления участника.
type Service interface {
	AddMember(ctx context.Context, id string, req models.AddMemberRequest) (*models.Organization, error)
}

// Handler обрабатывает запросы на добавление участника.
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
// @Summary Добавить участника организации
// @Description Доступно только создателю организации. Учитывает квоту maxUsers тарифа.
// @Tags Organizations
// @Accept  json
// @Produce  json
// @Param id path string true "Идентификатор организации"
// @Param request body models.AddMemberRequest true "Администратор и добавляемый пользователь"
// @Success 200 {object} response.Response "Обновлённая организация"
// @Failure 403 {object} response.ErrorResponse "Нет прав или исчерпана квота"
// @Failure 404 {object} response.ErrorResponse "Организация или пользователь не найдены"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /organizations/{id}/members [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.organization.members"
	id := chi.URLParam(r, "id")
	log := h.log.With(
		slog.String("op", op),
		slog.String("organization_id", id),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.AddMemberRequest
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

	org, err := h.service.AddMember(r.Context(), id, req)
	if err != nil {
		log.Error("failed to add member", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Info("member added", slog.String("member_id", req.MemberID))
	render.JSON(w, r, response.StatusOKWithData(org))
}
