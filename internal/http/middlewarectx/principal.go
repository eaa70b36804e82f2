package middlewarectx

import (
	"net/http"

	"github.com/Xmananti/llb-case-tracker/internal/lib/apperr"
)

// UserID определяет принципала запроса.
//
// Если запрос аутентифицирован, принципалом является subject токена, а
// переданный клиентом claimed должен с ним совпадать. Без аутентификации
// принципалом считается claimed, и он обязателен.
func UserID(r *http.Request, claimed string) (string, error) {
	subject, _ := r.Context().Value(Subject).(string)
	if subject != "" {
		if claimed != "" && claimed != subject {
			return "", apperr.Forbidden("userId does not match the authenticated user")
		}
		return subject, nil
	}
	if claimed == "" {
		return "", apperr.Validation("userId is required", []apperr.FieldError{
			{Field: "userId", Message: "field userId is a required field"},
		})
	}
	return claimed, nil
}
