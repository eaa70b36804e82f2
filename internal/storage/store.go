// Package storage описывает иерархическое документное хранилище, поверх которого
// работает трекер дел: коллекции записей JSON с адресацией путями
// "collection/id" и "collection/id/field" и атомарным многопутевым обновлением.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNotFound — запись по пути отсутствует.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidPath — путь не соответствует форме collection/id[/field].
	ErrInvalidPath = errors.New("invalid document path")
)

// Node — запись коллекции: ключ и сохранённый JSON.
type Node struct {
	Key   string
	Value json.RawMessage
}

// Store — документное хранилище.
//
// Update применяет все пары путь→значение как одну атомарную операцию:
// либо записываются все, либо ни одна. Значение nil (или JSON null) удаляет
// запись или поле. Запись поля в отсутствующую запись прерывает всё обновление
// с ErrNotFound.
type Store interface {
	// Get возвращает запись по пути collection/id.
	Get(ctx context.Context, path string) (json.RawMessage, error)
	// List возвращает записи коллекции в порядке вставки.
	List(ctx context.Context, collection string) ([]Node, error)
	// Set записывает запись целиком.
	Set(ctx context.Context, path string, value any) error
	// Update атомарно применяет многопутевое обновление.
	Update(ctx context.Context, updates map[string]any) error
	// Remove удаляет запись; удаление отсутствующей записи не является ошибкой.
	Remove(ctx context.Context, path string) error
	// Increment атомарно прибавляет delta к числовому полю collection/id/field.
	Increment(ctx context.Context, path string, delta int) error
	// Ping проверяет доступность хранилища.
	Ping(ctx context.Context) error
	Close() error
}

// Path собирает путь записи.
func Path(collection, id string) string {
	return collection + "/" + id
}

// FieldPath собирает путь поля записи.
func FieldPath(collection, id, field string) string {
	return collection + "/" + id + "/" + field
}

// Address — разобранный путь.
type Address struct {
	Collection string
	ID         string
	Field      string
}

// Record возвращает путь записи, которой принадлежит адрес.
func (a Address) Record() string { return Path(a.Collection, a.ID) }

// ParsePath разбирает путь вида collection/id или collection/id/field.
func ParsePath(path string) (Address, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for _, p := range parts {
		if p == "" {
			return Address{}, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	switch len(parts) {
	case 2:
		return Address{Collection: parts[0], ID: parts[1]}, nil
	case 3:
		return Address{Collection: parts[0], ID: parts[1], Field: parts[2]}, nil
	default:
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
}

// Encode превращает значение в JSON. Возвращает nil для удаления (nil или null).
func Encode(value any) (json.RawMessage, error) {
	if value == nil {
		return nil, nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return nil, nil
	}
	return b, nil
}

// NewKey выдаёт новый упорядоченный по времени ключ записи.
func NewKey() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
