// Package migration переносит наследованные дела пользователя в организацию.
package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Xmananti/llb-case-tracker/internal/lib/apperr"
	"github.com/Xmananti/llb-case-tracker/internal/lib/sl"
	"github.com/Xmananti/llb-case-tracker/internal/models"
	"github.com/Xmananti/llb-case-tracker/internal/storage"
	"github.com/Xmananti/llb-case-tracker/internal/storage/repository"
)

// MessageNothingToMigrate — ответ, когда подходящих дел нет.
const MessageNothingToMigrate = "no cases to migrate"

// Engine выполняет перенос: все изменения дел фиксируются одним атомарным
// многопутевым обновлением, счётчик организации обновляется отдельно.
type Engine struct {
	log   *slog.Logger
	store storage.Store
	cases *repository.Collection[models.Case]
	orgs  *repository.Collection[models.Organization]
	users *repository.Collection[models.User]
	now   func() time.Time

	// переносы внутри процесса выполняются последовательно, чтобы два
	// одновременных запроса не увеличили счётчик дважды
	mu sync.Mutex
}

// New создаёт Engine.
func New(log *slog.Logger, store storage.Store) *Engine {
	return &Engine{
		log:   log,
		store: store,
		cases: repository.NewCollection[models.Case](store, models.CollectionCases),
		orgs:  repository.NewCollection[models.Organization](store, models.CollectionOrganizations),
		users: repository.NewCollection[models.User](store, models.CollectionUsers),
		now:   time.Now,
	}
}

// Migrate привязывает к организации organizationID все дела userID без организации.
func (e *Engine) Migrate(ctx context.Context, userID, organizationID string) (models.MigrationResult, error) {
	const op = "migration.Engine.Migrate"
	log := e.log.With(sl.Op(op), slog.String("user_id", userID), slog.String("organization_id", organizationID))

	if err := e.checkMembership(ctx, userID, organizationID); err != nil {
		return models.MigrationResult{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cases, err := e.cases.List(ctx)
	if err != nil {
		return models.MigrationResult{}, apperr.Unavailable("failed to read cases", fmt.Errorf("%s: %w", op, err))
	}

	now := e.now().UTC()
	updates := make(map[string]any)
	migrated := 0
	for _, c := range cases {
		if c.UserID != userID || c.OrganizationID != nil {
			continue
		}
		updates[e.cases.FieldPath(c.ID, "organizationId")] = organizationID
		updates[e.cases.FieldPath(c.ID, "updatedAt")] = now
		migrated++
	}

	if migrated == 0 {
		log.Info("nothing to migrate")
		return models.MigrationResult{Message: MessageNothingToMigrate}, nil
	}

	if err := e.store.Update(ctx, updates); err != nil {
		return models.MigrationResult{}, apperr.Unavailable("failed to migrate cases", fmt.Errorf("%s: %w", op, err))
	}

	result := models.MigrationResult{
		Message:  fmt.Sprintf("migrated %d cases", migrated),
		Migrated: migrated,
	}
	if err := e.store.Increment(ctx, e.orgs.FieldPath(organizationID, "currentCases"), migrated); err != nil {
		log.Error("cases migrated, organization counter not updated", slog.Int("migrated", migrated), sl.Err(err))
		result.Message = fmt.Sprintf("migrated %d cases, organization counter not updated", migrated)
		result.Partial = true
		return result, nil
	}

	log.Info("cases migrated", slog.Int("migrated", migrated))
	return result, nil
}

// checkMembership пускает создателя организации и её участников.
// Пользователь другой организации получает Forbidden.
func (e *Engine) checkMembership(ctx context.Context, userID, organizationID string) error {
	const op = "migration.Engine.checkMembership"

	org, err := e.orgs.Get(ctx, organizationID)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("organization not found")
	}
	if err != nil {
		return apperr.Unavailable("failed to read organization", fmt.Errorf("%s: %w", op, err))
	}

	user, err := e.users.Get(ctx, userID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		user = nil
	case err != nil:
		return apperr.Unavailable("failed to read user", fmt.Errorf("%s: %w", op, err))
	}

	if user != nil && user.OrganizationID != nil && *user.OrganizationID != organizationID {
		return apperr.Forbidden("user belongs to another organization")
	}
	if org.CreatedBy == userID || (user != nil && models.Deref(user.OrganizationID) == organizationID) {
		return nil
	}
	return apperr.Forbidden("user is not a member of the organization")
}
