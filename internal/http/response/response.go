// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON‑ответов HTTP‑обработчиков. Пакет упрощает возврат
// успешных ответов и структурированных ошибок в едином формате.
package response

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/Xmananti/llb-case-tracker/internal/lib/apperr"
)

// Response описывает стандартную структуру JSON‑ответа сервера.
// Поле Status — статус запроса ("OK" или "Error").
// Поля Kind, Error и Fields заполняются при неуспехе.
// Поле Data — данные ответа (опционально, при успехе).
type Response struct {
	Status string              `json:"status"`
	Kind   apperr.Kind         `json:"kind,omitempty"`
	Error  string              `json:"error,omitempty"`
	Fields []apperr.FieldError `json:"fields,omitempty"`
	Data   any                 `json:"data,omitempty"`
}

// ErrorResponse — структура ошибки для Swagger-документации.
// Используется в аннотациях @Failure как возвращаемый тип ошибки.
type ErrorResponse struct {
	Status string              `json:"status" example:"Error"`
	Kind   string              `json:"kind" example:"forbidden"`
	Error  string              `json:"error" example:"record belongs to another user"`
	Fields []apperr.FieldError `json:"fields,omitempty"`
}

const (
	// StatusOK — значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError — значение статуса для ответа с ошибкой.
	StatusError = "Error"
)

// KindMalformed — вид ошибки для тела запроса, которое не является JSON.
const KindMalformed apperr.Kind = "malformed_request"

// ErrMalformed означает, что тело запроса не удалось разобрать как JSON.
var ErrMalformed = errors.New("malformed request body")

// StatusOKWithData возвращает успешный Response с переданными данными.
func StatusOKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает Response с ошибкой и переданным сообщением.
func Error(kind apperr.Kind, msg string) Response {
	return Response{
		Status: StatusError,
		Kind:   kind,
		Error:  msg,
	}
}

// FromError переводит ошибку приложения в HTTP-статус и тело ответа.
// Ошибки неизвестного вида считаются внутренними, их текст наружу не выдаётся.
func FromError(err error) (int, Response) {
	if errors.Is(err, ErrMalformed) {
		return http.StatusBadRequest, Error(KindMalformed, "invalid request body")
	}

	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, Error(apperr.KindInternal, "internal error")
	}

	resp := Response{
		Status: StatusError,
		Kind:   appErr.Kind,
		Error:  appErr.Message,
		Fields: appErr.Fields,
	}
	switch appErr.Kind {
	case apperr.KindValidation:
		return http.StatusUnprocessableEntity, resp
	case apperr.KindNotFound:
		return http.StatusNotFound, resp
	case apperr.KindForbidden:
		return http.StatusForbidden, resp
	case apperr.KindDependencyUnavailable:
		return http.StatusServiceUnavailable, resp
	default:
		return http.StatusInternalServerError, resp
	}
}

// RenderError пишет структурированную ошибку со статусом, соответствующим её виду.
func RenderError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := FromError(err)
	render.Status(r, status)
	render.JSON(w, r, resp)
}
