// Package repository предоставляет типизированные коллекции JSON-документов
// поверх storage.Store.
package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Xmananti/llb-case-tracker/internal/storage"
)

// Collection — коллекция документов типа T.
type Collection[T any] struct {
	store storage.Store
	name  string
}

// NewCollection создаёт коллекцию name поверх store.
func NewCollection[T any](store storage.Store, name string) *Collection[T] {
	return &Collection[T]{store: store, name: name}
}

// Name возвращает имя коллекции.
func (c *Collection[T]) Name() string { return c.name }

// Path возвращает путь документа.
func (c *Collection[T]) Path(id string) string { return storage.Path(c.name, id) }

// FieldPath возвращает путь поля документа.
func (c *Collection[T]) FieldPath(id, field string) string {
	return storage.FieldPath(c.name, id, field)
}

// Get загружает документ. Отсутствие документа возвращается как storage.ErrNotFound.
func (c *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	const op = "repository.Collection.Get"

	raw, err := c.store.Get(ctx, c.Path(id))
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", op, c.name, err)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%s: decode %s/%s: %w", op, c.name, id, err)
	}
	return &v, nil
}

// List загружает все документы коллекции в порядке вставки.
func (c *Collection[T]) List(ctx context.Context) ([]*T, error) {
	const op = "repository.Collection.List"

	nodes, err := c.store.List(ctx, c.name)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", op, c.name, err)
	}
	result := make([]*T, 0, len(nodes))
	for _, n := range nodes {
		var v T
		if err := json.Unmarshal(n.Value, &v); err != nil {
			return nil, fmt.Errorf("%s: decode %s/%s: %w", op, c.name, n.Key, err)
		}
		result = append(result, &v)
	}
	return result, nil
}

// Put записывает документ целиком.
func (c *Collection[T]) Put(ctx context.Context, id string, v *T) error {
	const op = "repository.Collection.Put"

	if err := c.store.Set(ctx, c.Path(id), v); err != nil {
		return fmt.Errorf("%s: %s: %w", op, c.name, err)
	}
	return nil
}

// Update атомарно применяет многопутевое обновление к хранилищу коллекции.
func (c *Collection[T]) Update(ctx context.Context, updates map[string]any) error {
	const op = "repository.Collection.Update"

	if err := c.store.Update(ctx, updates); err != nil {
		return fmt.Errorf("%s: %s: %w", op, c.name, err)
	}
	return nil
}

// Delete удаляет документ.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	const op = "repository.Collection.Delete"

	if err := c.store.Remove(ctx, c.Path(id)); err != nil {
		return fmt.Errorf("%s: %s: %w", op, c.name, err)
	}
	return nil
}
