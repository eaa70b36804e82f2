// Package apperr описывает типизированные ошибки приложения. Вид ошибки (Kind)
// определяет HTTP-статус ответа, а поля Fields перечисляют все нарушения схемы.
package apperr

import (
	"errors"
	"fmt"
)

// Kind — вид ошибки.
type Kind string

const (
	KindValidation            Kind = "validation"
	KindNotFound              Kind = "not_found"
	KindForbidden             Kind = "forbidden"
	KindDependencyUnavailable Kind = "dependency_unavailable"
	KindInternal              Kind = "internal"
)

// FieldError описывает нарушение одного поля.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error — структурированная ошибка приложения.
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation возвращает ошибку валидации со списком всех нарушенных полей.
func Validation(msg string, fields []FieldError) error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

// NotFound возвращает ошибку отсутствующей записи.
func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// Forbidden возвращает ошибку нарушения владения.
func Forbidden(msg string) error {
	return &Error{Kind: KindForbidden, Message: msg}
}

// Unavailable оборачивает сбой хранилища или другой внешней зависимости.
func Unavailable(msg string, err error) error {
	return &Error{Kind: KindDependencyUnavailable, Message: msg, Err: err}
}

// Internal оборачивает непредвиденную ошибку.
func Internal(msg string, err error) error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf возвращает вид ошибки; неизвестные ошибки считаются внутренними.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is сообщает, что ошибка имеет указанный вид.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
