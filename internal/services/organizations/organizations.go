// Package organizations содержит бизнес-логику организаций: создание, смену тарифа,
// добавление участников и перевод истёкших пробных периодов в expired.
package organizations

import (
	"context"
	"errors"
	"log/slog"
	"time"

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
)

// Cache описывает методы для кеширования данных.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// Service реализует операции с организациями.
type Service struct {
	log    *slog.Logger
	store  storage.Store
	orgs   *repository.Collection[models.Organization]
	users  *repository.Collection[models.User]
	cache  Cache
	ttl    time.Duration
	events records.Publisher
	schema *schema.Validator
	now    func() time.Time
}

// New создаёт Service.
func New(log *slog.Logger, store storage.Store, c Cache, ttl time.Duration, v *schema.Validator, events records.Publisher) *Service {
	return &Service{
		log:    log,
		store:  store,
		orgs:   repository.NewCollection[models.Organization](store, models.CollectionOrganizations),
		users:  repository.NewCollection[models.User](store, models.CollectionUsers),
		cache:  c,
		ttl:    ttl,
		events: events,
		schema: v,
		now:    time.Now,
	}
}

// Create создаёт организацию и делает создателя её администратором.
// Организация и ссылка пользователя на неё пишутся одним атомарным обновлением.
func (s *Service) Create(ctx context.Context, req models.CreateOrganizationRequest) (*models.Organization, error) {
	const op = "services.organizations.Create"
	log := s.log.With(sl.Op(op), slog.String("user_id", req.UserID))

	if err := s.schema.Check(&req); err != nil {
		return nil, err
	}

	user, err := s.users.Get(ctx, req.UserID)
	if err != nil {
		return nil, records.StoreError(op, "user not found", err)
	}
	if user.OrganizationID != nil {
		return nil, apperr.Forbidden("user already belongs to an organization")
	}

	now := s.now().UTC()
	org := models.Organization{
		ID:           storage.NewKey(),
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Address:      req.Address,
		CurrentUsers: 1,
		CreatedBy:    req.UserID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	plan := req.SubscriptionPlan
	if plan == "" {
		plan = models.PlanFree
	}
	if err := subscription.Initial(&org, plan, now); err != nil {
		return nil, err
	}

	err = s.store.Update(ctx, map[string]any{
		s.orgs.Path(org.ID):                          org,
		s.users.FieldPath(user.ID, "organizationId"): org.ID,
		s.users.FieldPath(user.ID, "role"):           models.RoleAdmin,
		s.users.FieldPath(user.ID, "updatedAt"):      now,
	})
	if err != nil {
		return nil, records.StoreError(op, "failed to create organization", err)
	}
	s.invalidate(ctx, log, cache.UserKey(user.ID))

	records.Notify(ctx, log, s.events, models.Event{
		Type:           models.EventOrganizationCreated,
		UserID:         req.UserID,
		OrganizationID: org.ID,
	})
	log.Info("organization created", slog.String("organization_id", org.ID), slog.String("plan", org.SubscriptionPlan))
	return &org, nil
}

// Get возвращает организацию её участнику.
func (s *Service) Get(ctx context.Context, userID, id string) (*models.Organization, error) {
	const op = "services.organizations.Get"

	org, err := s.cached(ctx, id)
	if err != nil {
		return nil, records.StoreError(op, "organization not found", err)
	}
	if err := s.checkMember(ctx, org, userID); err != nil {
		return nil, err
	}
	return org, nil
}

func (s *Service) cached(ctx context.Context, id string) (*models.Organization, error) {
	const op = "services.organizations.cached"
	key := cache.OrganizationKey(id)

	var org models.Organization
	found, err := s.cache.Get(ctx, key, &org)
	if err != nil {
		s.log.Warn("failed to read organization from cache", sl.Op(op), slog.String("key", key), sl.Err(err))
	}
	if found {
		return &org, nil
	}

	stored, err := s.orgs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, stored, s.ttl); err != nil {
		s.log.Warn("failed to cache organization", sl.Op(op), slog.String("key", key), sl.Err(err))
	}
	return stored, nil
}

func (s *Service) checkMember(ctx context.Context, org *models.Organization, userID string) error {
	const op = "services.organizations.checkMember"
	if org.CreatedBy == userID {
		return nil
	}
	user, err := s.users.Get(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.Forbidden("user is not a member of the organization")
	}
	if err != nil {
		return records.StoreError(op, "failed to read user", err)
	}
	if models.Deref(user.OrganizationID) != org.ID {
		return apperr.Forbidden("user is not a member of the organization")
	}
	return nil
}

// UpdateSubscription меняет тариф. Доступно только создателю организации.
// Пишутся только поля подписки: счётчики организации меняются отдельно.
func (s *Service) UpdateSubscription(ctx context.Context, userID, id string, change models.SubscriptionChange) (*models.Organization, error) {
	const op = "services.organizations.UpdateSubscription"
	log := s.log.With(sl.Op(op), slog.String("user_id", userID), slog.String("organization_id", id))

	if err := s.schema.Check(&change); err != nil {
		return nil, err
	}

	org, err := s.orgs.Get(ctx, id)
	if err != nil {
		return nil, records.StoreError(op, "organization not found", err)
	}
	if org.CreatedBy != userID {
		return nil, apperr.Forbidden("only the organization admin can change the subscription")
	}

	next, err := subscription.Transition(*org, change, s.now().UTC())
	if err != nil {
		return nil, err
	}
	err = s.orgs.Update(ctx, map[string]any{
		s.orgs.FieldPath(id, "subscriptionPlan"):      next.SubscriptionPlan,
		s.orgs.FieldPath(id, "subscriptionStatus"):    next.SubscriptionStatus,
		s.orgs.FieldPath(id, "maxUsers"):              next.MaxUsers,
		s.orgs.FieldPath(id, "maxCases"):              next.MaxCases,
		s.orgs.FieldPath(id, "trialEndDate"):          next.TrialEndDate,
		s.orgs.FieldPath(id, "subscriptionStartDate"): next.SubscriptionStartDate,
		s.orgs.FieldPath(id, "updatedAt"):             next.UpdatedAt,
	})
	if err != nil {
		return nil, records.StoreError(op, "failed to update subscription", err)
	}
	s.invalidate(ctx, log, cache.OrganizationKey(id))

	saved, err := s.orgs.Get(ctx, id)
	if err != nil {
		return nil, records.StoreError(op, "organization not found", err)
	}

	records.Notify(ctx, log, s.events, models.Event{
		Type:           models.EventSubscriptionChanged,
		UserID:         userID,
		OrganizationID: id,
	})
	log.Info("subscription changed",
		slog.String("from_plan", org.SubscriptionPlan), slog.String("to_plan", saved.SubscriptionPlan),
		slog.String("status", saved.SubscriptionStatus))
	return saved, nil
}

// AddMember добавляет пользователя в организацию. Доступно только создателю,
// учитывает квоту maxUsers.
func (s *Service) AddMember(ctx context.Context, id string, req models.AddMemberRequest) (*models.Organization, error) {
	const op = "services.organizations.AddMember"
	log := s.log.With(sl.Op(op), slog.String("organization_id", id), slog.String("member_id", req.MemberID))

	if err := s.schema.Check(&req); err != nil {
		return nil, err
	}

	org, err := s.orgs.Get(ctx, id)
	if err != nil {
		return nil, records.StoreError(op, "organization not found", err)
	}
	if org.CreatedBy != req.UserID {
		return nil, apperr.Forbidden("only the organization admin can add members")
	}

	member, err := s.users.Get(ctx, req.MemberID)
	if err != nil {
		return nil, records.StoreError(op, "member not found", err)
	}
	if member.OrganizationID != nil {
		return nil, apperr.Forbidden("user already belongs to an organization")
	}
	if !subscription.WithinQuota(org.MaxUsers, org.CurrentUsers) {
		return nil, apperr.Forbidden("user limit reached")
	}

	now := s.now().UTC()
	org.CurrentUsers++
	org.UpdatedAt = now
	err = s.store.Update(ctx, map[string]any{
		s.users.FieldPath(member.ID, "organizationId"): id,
		s.users.FieldPath(member.ID, "role"):           models.RoleMember,
		s.users.FieldPath(member.ID, "updatedAt"):      now,
		s.orgs.FieldPath(id, "currentUsers"):           org.CurrentUsers,
		s.orgs.FieldPath(id, "updatedAt"):              now,
	})
	if err != nil {
		return nil, records.StoreError(op, "failed to add member", err)
	}
	s.invalidate(ctx, log, cache.UserKey(member.ID), cache.OrganizationKey(id))

	records.Notify(ctx, log, s.events, models.Event{
		Type:           models.EventMemberAdded,
		UserID:         member.ID,
		OrganizationID: id,
	})
	log.Info("member added", slog.Int("current_users", org.CurrentUsers))
	return org, nil
}

// ExpireTrials переводит организации с истёкшим пробным периодом в expired
// одним атомарным обновлением и возвращает их число.
func (s *Service) ExpireTrials(ctx context.Context) (int, error) {
	const op = "services.organizations.ExpireTrials"
	log := s.log.With(sl.Op(op))

	all, err := s.orgs.List(ctx)
	if err != nil {
		return 0, records.StoreError(op, "failed to list organizations", err)
	}

	now := s.now().UTC()
	updates := make(map[string]any)
	var expired []string
	for _, org := range all {
		if !subscription.TrialExpired(*org, now) {
			continue
		}
		updates[s.orgs.FieldPath(org.ID, "subscriptionStatus")] = models.StatusExpired
		updates[s.orgs.FieldPath(org.ID, "updatedAt")] = now
		expired = append(expired, org.ID)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	if err := s.store.Update(ctx, updates); err != nil {
		return 0, records.StoreError(op, "failed to expire trials", err)
	}

	keys := make([]string, 0, len(expired))
	for _, id := range expired {
		keys = append(keys, cache.OrganizationKey(id))
		records.Notify(ctx, log, s.events, models.Event{
			Type:           models.EventTrialExpired,
			OrganizationID: id,
		})
	}
	s.invalidate(ctx, log, keys...)
	metrics.TrialsExpired(len(expired))
	log.Info("trials expired", slog.Int("count", len(expired)))
	return len(expired), nil
}

func (s *Service) invalidate(ctx context.Context, log *slog.Logger, keys ...string) {
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		log.Warn("failed to invalidate cache", slog.Any("keys", keys), sl.Err(err))
	}
}

