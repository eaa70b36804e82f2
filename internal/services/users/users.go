// Package users содержит бизнес-логику профилей пользователей.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Xmananti/llb-case-tracker/internal/cache"
	"github.com/Xmananti/llb-case-tracker/internal/lib/schema"
	"github.com/Xmananti/llb-case-tracker/internal/lib/sl"
	"github.com/Xmananti/llb-case-tracker/internal/models"
	"github.com/Xmananti/llb-case-tracker/internal/services/records"
	"github.com/Xmananti/llb-case-tracker/internal/storage"
	"github.com/Xmananti/llb-case-tracker/internal/storage/repository"
)

// Cache описывает методы для кеширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(ctx context.Context, key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	// Invalidate удаляет значения из кеша по ключам.
	Invalidate(ctx context.Context, keys ...string) error
}

// Service реализует операции с профилями.
type Service struct {
	log    *slog.Logger
	store  storage.Store
	users  *repository.Collection[models.User]
	cache  Cache
	ttl    time.Duration
	schema *schema.Validator
	now    func() time.Time
}

// New создаёт Service.
func New(log *slog.Logger, store storage.Store, c Cache, ttl time.Duration, v *schema.Validator) *Service {
	return &Service{
		log:    log,
		store:  store,
		users:  repository.NewCollection[models.User](store, models.CollectionUsers),
		cache:  c,
		ttl:    ttl,
		schema: v,
		now:    time.Now,
	}
}

// GetUser возвращает профиль из кеша или хранилища. Отсутствие профиля — storage.ErrNotFound.
func (s *Service) GetUser(ctx context.Context, id string) (*models.User, error) {
	const op = "services.users.GetUser"
	key := cache.UserKey(id)

	var cached models.User
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.log.Warn("failed to read user from cache", sl.Op(op), slog.String("key", key), sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	u, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Set(ctx, key, u, s.ttl); err != nil {
		s.log.Warn("failed to cache user", sl.Op(op), slog.String("key", key), sl.Err(err))
	}
	return u, nil
}

// Get возвращает профиль или NotFound.
func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	const op = "services.users.Get"
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, records.StoreError(op, "user not found", err)
	}
	return u, nil
}

// Upsert создаёт или обновляет профиль. Роль и организация назначаются только
// через организацию: новый профиль получает роль member, у существующего
// меняются лишь email и имя.
func (s *Service) Upsert(ctx context.Context, u models.User) (*models.User, error) {
	const op = "services.users.Upsert"

	u.OrganizationID = nil
	if err := s.schema.Check(&u); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	_, err := s.users.Get(ctx, u.ID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		u.Role = models.RoleMember
		u.CreatedAt = now
		u.UpdatedAt = now
		if err := s.users.Put(ctx, u.ID, &u); err != nil {
			return nil, records.StoreError(op, "failed to save user", err)
		}
	case err != nil:
		return nil, records.StoreError(op, "failed to read user", err)
	default:
		err := s.store.Update(ctx, map[string]any{
			s.users.FieldPath(u.ID, "email"):     u.Email,
			s.users.FieldPath(u.ID, "name"):      u.Name,
			s.users.FieldPath(u.ID, "updatedAt"): now,
		})
		if err != nil {
			return nil, records.StoreError(op, "failed to save user", err)
		}
		saved, err := s.users.Get(ctx, u.ID)
		if err != nil {
			return nil, records.StoreError(op, "failed to read user", err)
		}
		u = *saved
	}

	if err := s.cache.Invalidate(ctx, cache.UserKey(u.ID)); err != nil {
		s.log.Warn("failed to invalidate user cache", sl.Op(op), sl.Err(err))
	}
	s.log.Info("user profile saved", sl.Op(op), slog.String("user_id", u.ID))
	return &u, nil
}
