// Package memory реализует storage.Store в памяти процесса. Используется
// в разработке и тестах; многопутевое обновление атомарно под одной блокировкой.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/Xmananti/llb-case-tracker/internal/storage"
)

type collection struct {
	order []string
	items map[string]json.RawMessage
}

// Store — хранилище документов в памяти.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

// Get возвращает копию записи по пути collection/id.
func (s *Store) Get(ctx context.Context, path string) (json.RawMessage, error) {
	const op = "storage.memory.Get"
	addr, err := recordAddress(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[addr.Collection]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	v, ok := c.items[addr.ID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return slices.Clone(v), nil
}

// List возвращает копии записей коллекции в порядке вставки.
func (s *Store) List(ctx context.Context, name string) ([]storage.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return []storage.Node{}, nil
	}
	result := make([]storage.Node, 0, len(c.order))
	for _, id := range c.order {
		result = append(result, storage.Node{Key: id, Value: slices.Clone(c.items[id])})
	}
	return result, nil
}

// Set записывает запись целиком.
func (s *Store) Set(ctx context.Context, path string, value any) error {
	return s.Update(ctx, map[string]any{path: value})
}

// Remove удаляет запись.
func (s *Store) Remove(ctx context.Context, path string) error {
	const op = "storage.memory.Remove"
	addr, err := recordAddress(path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.delete(addr)
	return nil
}

// Update применяет все записи под одной блокировкой. Сначала все значения
// вычисляются на черновике, и только затем черновик фиксируется.
func (s *Store) Update(ctx context.Context, updates map[string]any) error {
	const op = "storage.memory.Update"

	paths := make([]string, 0, len(updates))
	for p := range updates {
		paths = append(paths, p)
	}
	// путь записи короче путей её полей, поэтому запись применяется раньше полей
	sort.Strings(paths)

	s.mu.Lock()
	defer s.mu.Unlock()

	type staged struct {
		addr  storage.Address
		value json.RawMessage
	}
	draft := make(map[string]*staged)
	var order []string

	current := func(addr storage.Address) (json.RawMessage, bool) {
		if st, ok := draft[addr.Record()]; ok {
			return st.value, st.value != nil
		}
		c, ok := s.collections[addr.Collection]
		if !ok {
			return nil, false
		}
		v, ok := c.items[addr.ID]
		return v, ok
	}

	for _, p := range paths {
		addr, err := storage.ParsePath(p)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		value, err := storage.Encode(updates[p])
		if err != nil {
			return fmt.Errorf("%s: %s: %w", op, p, err)
		}

		key := addr.Record()
		if _, ok := draft[key]; !ok {
			order = append(order, key)
		}

		if addr.Field == "" {
			draft[key] = &staged{addr: addr, value: value}
			continue
		}

		doc, ok := current(addr)
		if !ok {
			return fmt.Errorf("%s: %s: %w", op, p, storage.ErrNotFound)
		}
		next, err := setField(doc, addr.Field, value)
		if err != nil {
			return fmt.Errorf("%s: %s: %w", op, p, err)
		}
		draft[key] = &staged{addr: storage.Address{Collection: addr.Collection, ID: addr.ID}, value: next}
	}

	for _, key := range order {
		st := draft[key]
		if st.value == nil {
			s.delete(st.addr)
			continue
		}
		s.put(st.addr, st.value)
	}
	return nil
}

// Increment прибавляет delta к числовому полю записи.
func (s *Store) Increment(ctx context.Context, path string, delta int) error {
	const op = "storage.memory.Increment"
	addr, err := storage.ParsePath(path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if addr.Field == "" {
		return fmt.Errorf("%s: %w: field path expected", op, storage.ErrInvalidPath)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[addr.Collection]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	doc, ok := c.items[addr.ID]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	var n int
	if raw, ok := fields[addr.Field]; ok {
		if err := json.Unmarshal(raw, &n); err != nil {
			return fmt.Errorf("%s: field %s is not a number: %w", op, addr.Field, err)
		}
	}
	next, err := setField(doc, addr.Field, json.RawMessage(fmt.Sprint(n+delta)))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	c.items[addr.ID] = next
	return nil
}

// Ping всегда успешен.
func (s *Store) Ping(ctx context.Context) error { return nil }

// Close ничего не освобождает.
func (s *Store) Close() error { return nil }

func (s *Store) put(addr storage.Address, value json.RawMessage) {
	c, ok := s.collections[addr.Collection]
	if !ok {
		c = &collection{items: make(map[string]json.RawMessage)}
		s.collections[addr.Collection] = c
	}
	if _, exists := c.items[addr.ID]; !exists {
		c.order = append(c.order, addr.ID)
	}
	c.items[addr.ID] = value
}

func (s *Store) delete(addr storage.Address) {
	c, ok := s.collections[addr.Collection]
	if !ok {
		return
	}
	if _, exists := c.items[addr.ID]; !exists {
		return
	}
	delete(c.items, addr.ID)
	c.order = slices.DeleteFunc(c.order, func(id string) bool { return id == addr.ID })
}

func setField(doc json.RawMessage, field string, value json.RawMessage) (json.RawMessage, error) {
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(doc, &fields); err != nil {
		return nil, err
	}
	if value == nil {
		delete(fields, field)
	} else {
		fields[field] = value
	}
	return json.Marshal(fields)
}

func recordAddress(path string) (storage.Address, error) {
	addr, err := storage.ParsePath(path)
	if err != nil {
		return storage.Address{}, err
	}
	if addr.Field != "" {
		return storage.Address{}, fmt.Errorf("%w: record path expected, got %q", storage.ErrInvalidPath, path)
	}
	return addr, nil
}
