// Package request разбирает тела и параметры HTTP-запросов API.
package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/render"

	"github.com/Xmananti/llb-case-tracker/internal/http/response"
	"github.com/Xmananti/llb-case-tracker/internal/services/records"
)

// maxBodyBytes ограничивает размер тела запроса.
const maxBodyBytes = 1 << 20

// Decode разбирает JSON-тело запроса в v.
// Нечитаемое тело даёт response.ErrMalformed, значение неверного типа даёт ошибку валидации поля.
func Decode(r *http.Request, v any) error {
	if err := render.DecodeJSON(io.LimitReader(r.Body, maxBodyBytes), v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return records.DecodeError(err)
		}
		return fmt.Errorf("%w: %v", response.ErrMalformed, err)
	}
	return nil
}

// Raw читает тело запроса как JSON-объект для частичного обновления.
func Raw(r *http.Request) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := render.DecodeJSON(io.LimitReader(r.Body, maxBodyBytes), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", response.ErrMalformed, err)
	}
	return raw, nil
}

// OptionalString возвращает указатель на параметр запроса или nil, если он пуст.
func OptionalString(r *http.Request, name string) *string {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	return &v
}
