// Package upsert реализует HTTP-обработчик создания или обновления профиля пользователя.
//
// Организация профиля через этот обработчик не меняется: членство задаётся
// только операциями организации.
package upsert

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

// Service описывает интерфейс бизнес-логики сохранения профиля.
type Service interface {
	Upsert(ctx context.Context, u models.User) (*models.User, error)
}

// Handler обрабатывает запросы на сохранение профиля.
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
// @Summary Сохранить профиль пользователя
// @Tags Users
// @Accept  json
// @Produce  json
// @Param request body models.User true "Профиль: id, email, name (роль назначает организация)"
// @Success 200 {object} response.Response "Сохранённый профиль"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 403 {object} response.ErrorResponse "id не совпадает с токеном"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /users [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.upsert"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var u models.User
	if err := request.Decode(r, &u); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	userID, err := middlewarectx.UserID(r, u.ID)
	switch {
	case apperr.Is(err, apperr.KindValidation):
	case err != nil:
		log.Warn("principal mismatch", sl.Err(err))
		response.RenderError(w, r, err)
		return
	default:
		u.ID = userID
	}

	saved, err := h.service.Upsert(r.Context(), u)
	if err != nil {
		log.Error("failed to save user", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Info("user saved", slog.String("user_id", saved.ID))
	render.JSON(w, r, response.StatusOKWithData(saved))
}
