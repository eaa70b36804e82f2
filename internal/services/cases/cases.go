// Package cases содержит бизнес-логику судебных дел: проверку подписки и квот
// организации при создании, счётчики организации и перенос наследованных дел.
package cases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Xmananti/llb-case-tracker/internal/cache"
	"github.com/Xmananti/llb-case-tracker/internal/lib/apperr"
	"github.com/Xmananti/llb-case-tracker/internal/lib/schema"
	"github.com/Xmananti/llb-case-tracker/internal/lib/sl"
	"github.com/Xmananti/llb-case-tracker/internal/metrics"
	"github.com/Xmananti/llb-case-tracker/internal/models"
	"github.com/Xmananti/llb-case-tracker/internal/services/records"
	"github.com/Xmananti/llb-case-tracker/internal/storage"
	"github.com/Xmananti/llb-case-tracker/internal/storage/repository"
	"github.com/Xmananti/llb-case-tracker/internal/subscription"
	"github.com/Xmananti/llb-case-tracker/internal/tenancy"
)

// Migrator переносит наследованные дела в организацию.
type Migrator interface {
	Migrate(ctx context.Context, userID, organizationID string) (models.MigrationResult, error)
}

// Invalidator удаляет устаревшие значения из кеша.
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
}

// Service реализует операции над делами.
type Service struct {
	*records.Base[models.Case, *models.Case]

	log      *slog.Logger
	store    storage.Store
	orgs     *repository.Collection[models.Organization]
	cache    Invalidator
	migrator Migrator
	events   records.Publisher
	schema   *schema.Validator
}

// New создаёт Service.
func New(log *slog.Logger, store storage.Store, c Invalidator, resolver *tenancy.Resolver, v *schema.Validator, migrator Migrator, events records.Publisher) *Service {
	return &Service{
		Base:     records.NewBase[models.Case](log, store, models.CollectionCases, resolver, v),
		log:      log,
		store:    store,
		orgs:     repository.NewCollection[models.Organization](store, models.CollectionOrganizations),
		cache:    c,
		migrator: migrator,
		events:   events,
		schema:   v,
	}
}

// Create создаёт дело. Дело пользователя из организации привязывается к ней;
// организация должна иметь действующую подписку и свободную квоту дел.
func (s *Service) Create(ctx context.Context, c *models.Case) (*models.Case, error) {
	const op = "services.cases.Create"
	log := s.log.With(sl.Op(op), slog.String("user_id", c.UserID))

	p, err := s.Prepare(ctx, c)
	if err != nil {
		return nil, err
	}

	if p.HasOrganization() {
		if err := s.checkOrganization(ctx, *p.OrganizationID); err != nil {
			return nil, err
		}
	}

	created, err := s.Insert(ctx, c)
	if err != nil {
		return nil, err
	}

	if created.OrganizationID != nil {
		s.adjustCounter(ctx, log, *created.OrganizationID, 1)
	}
	records.Notify(ctx, log, s.events, models.Event{
		Type:           models.EventCaseCreated,
		UserID:         created.UserID,
		OrganizationID: models.Deref(created.OrganizationID),
		RecordID:       created.ID,
	})
	log.Info("case created", slog.String("case_id", created.ID))
	return created, nil
}

func (s *Service) checkOrganization(ctx context.Context, organizationID string) error {
	const op = "services.cases.checkOrganization"

	org, err := s.orgs.Get(ctx, organizationID)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.Forbidden("organization not found for user")
	}
	if err != nil {
		return apperr.Unavailable("failed to read organization", fmt.Errorf("%s: %w", op, err))
	}
	if !subscription.Active(*org, s.Now()) {
		return apperr.Forbidden("subscription inactive")
	}
	if !subscription.WithinQuota(org.MaxCases, org.CurrentCases) {
		return apperr.Forbidden("case limit reached")
	}
	return nil
}

// Delete удаляет дело владельца и уменьшает счётчик организации.
func (s *Service) Delete(ctx context.Context, userID, id string) (*models.Case, error) {
	const op = "services.cases.Delete"
	log := s.log.With(sl.Op(op), slog.String("user_id", userID), slog.String("case_id", id))

	deleted, err := s.Base.Delete(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if deleted.OrganizationID != nil {
		s.adjustCounter(ctx, log, *deleted.OrganizationID, -1)
	}
	records.Notify(ctx, log, s.events, models.Event{
		Type:           models.EventCaseDeleted,
		UserID:         userID,
		OrganizationID: models.Deref(deleted.OrganizationID),
		RecordID:       id,
	})
	log.Info("case deleted")
	return deleted, nil
}

// adjustCounter обновляет currentCases. Ошибка не отменяет уже выполненную операцию.
func (s *Service) adjustCounter(ctx context.Context, log *slog.Logger, organizationID string, delta int) {
	if err := s.store.Increment(ctx, s.orgs.FieldPath(organizationID, "currentCases"), delta); err != nil {
		log.Warn("failed to update organization case counter",
			slog.String("organization_id", organizationID), slog.Int("delta", delta), sl.Err(err))
		return
	}
	s.invalidateOrganization(ctx, log, organizationID)
}

// invalidateOrganization сбрасывает кешированную организацию после смены её счётчиков.
func (s *Service) invalidateOrganization(ctx context.Context, log *slog.Logger, organizationID string) {
	if err := s.cache.Invalidate(ctx, cache.OrganizationKey(organizationID)); err != nil {
		log.Warn("failed to invalidate organization cache", slog.String("organization_id", organizationID), sl.Err(err))
	}
}

// Migrate переносит наследованные дела пользователя в организацию.
func (s *Service) Migrate(ctx context.Context, req models.MigrateRequest) (models.MigrationResult, error) {
	const op = "services.cases.Migrate"
	log := s.log.With(sl.Op(op), slog.String("user_id", req.UserID), slog.String("organization_id", req.OrganizationID))

	if err := s.schema.Check(&req); err != nil {
		return models.MigrationResult{}, err
	}

	res, err := s.migrator.Migrate(ctx, req.UserID, req.OrganizationID)
	if err != nil {
		return models.MigrationResult{}, err
	}
	if res.Migrated > 0 {
		s.invalidateOrganization(ctx, log, req.OrganizationID)
		metrics.CasesMigrated(res.Migrated)
		records.Notify(ctx, log, s.events, models.Event{
			Type:           models.EventCasesMigrated,
			UserID:         req.UserID,
			OrganizationID: req.OrganizationID,
			Count:          res.Migrated,
		})
	}
	return res, nil
}
