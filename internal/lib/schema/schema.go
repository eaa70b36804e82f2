// Package schema проверяет записи по тегам validate и собирает все нарушения
// в одну ошибку apperr.Validation. Имена полей в ошибках совпадают с JSON-ключами.
package schema

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator"

	"github.com/Xmananti/llb-case-tracker/internal/lib/apperr"
)

// Validator оборачивает validator.Validate с JSON-именами полей.
type Validator struct {
	v *validator.Validate
}

// New создаёт Validator.
func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

// Check проверяет структуру целиком и возвращает все нарушения сразу.
func (s *Validator) Check(obj any) error {
	return s.check(obj, nil)
}

// CheckPatch проверяет только поля, присутствующие в частичном обновлении.
// keys — JSON-ключи тела запроса.
func (s *Validator) CheckPatch(obj any, keys []string) error {
	present := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		present[k] = struct{}{}
	}
	return s.check(obj, present)
}

func (s *Validator) check(obj any, only map[string]struct{}) error {
	err := s.v.Struct(obj)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return apperr.Internal("schema check failed", err)
	}

	var fields []apperr.FieldError
	for _, fe := range errs {
		if only != nil {
			if _, ok := only[fe.Field()]; !ok {
				continue
			}
		}
		fields = append(fields, apperr.FieldError{Field: fe.Field(), Message: message(fe)})
	}
	if len(fields) == 0 {
		return nil
	}

	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Field)
	}
	return apperr.Validation("invalid fields: "+strings.Join(names, ", "), fields)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("field %s is a required field", fe.Field())
	case "oneof":
		return fmt.Sprintf("field %s must be one of [%s]", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("field %s must be a valid email", fe.Field())
	case "datetime":
		return fmt.Sprintf("field %s must be a date in format %s", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("field %s must be greater than %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("field %s is not valid", fe.Field())
	}
}
