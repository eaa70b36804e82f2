package cases

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Xmananti/llb-case-tracker/internal/cache"
	"github.com/Xmananti/llb-case-tracker/internal/config"
	"github.com/Xmananti/llb-case-tracker/internal/lib/apperr"
	"github.com/Xmananti/llb-case-tracker/internal/lib/schema"
	"github.com/Xmananti/llb-case-tracker/internal/migration"
	"github.com/Xmananti/llb-case-tracker/internal/models"
	"github.com/Xmananti/llb-case-tracker/internal/storage"
	"github.com/Xmananti/llb-case-tracker/internal/storage/memory"
	"github.com/Xmananti/llb-case-tracker/internal/storage/repository"
	"github.com/Xmananti/llb-case-tracker/internal/tenancy"
)

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) Publish(ctx context.Context, event models.Event) error {
	return m.Called(ctx, event).Error(0)
}

type userLookup struct {
	users *repository.Collection[models.User]
}

func (u userLookup) GetUser(ctx context.Context, id string) (*models.User, error) {
	return u.users.Get(ctx, id)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

type fixture struct {
	svc  *Service
	pub  *PublisherMock
	orgs *repository.Collection[models.Organization]
}

func newFixture(t *testing.T, org models.Organization) fixture {
	t.Helper()
	return newCachedFixture(t, org, cache.Nop{})
}

func newCachedFixture(t *testing.T, org models.Organization, c Invalidator) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	users := repository.NewCollection[models.User](store, models.CollectionUsers)
	orgs := repository.NewCollection[models.Organization](store, models.CollectionOrganizations)

	require.NoError(t, users.Put(ctx, "member", &models.User{ID: "member", OrganizationID: models.StringPtr(org.ID)}))
	require.NoError(t, users.Put(ctx, "solo", &models.User{ID: "solo"}))
	require.NoError(t, orgs.Put(ctx, org.ID, &org))

	pub := &PublisherMock{}
	log := newNoopLogger()
	svc := New(log, store, c, tenancy.NewResolver(userLookup{users: users}), schema.New(), migration.New(log, store), pub)
	return fixture{svc: svc, pub: pub, orgs: orgs}
}

func newCase(userID string) *models.Case {
	return &models.Case{
		Envelope:   models.Envelope{UserID: userID},
		CaseNumber: "CS-1/2025",
		Title:      "State v. Doe",
		Court:      "High Court",
		Status:     models.CaseStatusPending,
	}
}

func activeOrg() models.Organization {
	return models.Organization{
		ID: "org1", Name: "Firm", CreatedBy: "member",
		SubscriptionPlan: models.PlanStarter, SubscriptionStatus: models.StatusActive,
		MaxUsers: 5, MaxCases: 2, CurrentUsers: 1,
	}
}

func TestService_CreateInOrganization(t *testing.T) {
	f := newFixture(t, activeOrg())
	f.pub.On("Publish", mock.Anything, mock.MatchedBy(func(e models.Event) bool {
		return e.Type == models.EventCaseCreated && e.OrganizationID == "org1"
	})).Return(nil).Once()
	ctx := context.Background()

	created, err := f.svc.Create(ctx, newCase("member"))
	require.NoError(t, err)
	require.NotNil(t, created.OrganizationID)
	assert.Equal(t, "org1", *created.OrganizationID)

	org, err := f.orgs.Get(ctx, "org1")
	require.NoError(t, err)
	assert.Equal(t, 1, org.CurrentCases)
	f.pub.AssertExpectations(t)
}

func TestService_CreateLegacy(t *testing.T) {
	f := newFixture(t, activeOrg())
	f.pub.On("Publish", mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, newCase("solo"))
	require.NoError(t, err)
	assert.Nil(t, created.OrganizationID)

	org, err := f.orgs.Get(ctx, "org1")
	require.NoError(t, err)
	assert.Equal(t, 0, org.CurrentCases)
}

func TestService_CreateRejected(t *testing.T) {
	past := time.Now().Add(-time.Hour)

	tests := []struct {
		name string
		org  func() models.Organization
		msg  string
	}{
		{"expired", func() models.Organization {
			o := activeOrg()
			o.SubscriptionStatus = models.StatusExpired
			return o
		}, "subscription inactive"},
		{"cancelled", func() models.Organization {
			o := activeOrg()
			o.SubscriptionStatus = models.StatusCancelled
			return o
		}, "subscription inactive"},
		{"trial ended", func() models.Organization {
			o := activeOrg()
			o.SubscriptionStatus = models.StatusTrial
			o.TrialEndDate = &past
			return o
		}, "subscription inactive"},
		{"quota", func() models.Organization {
			o := activeOrg()
			o.CurrentCases = 2
			return o
		}, "case limit reached"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.org())
			_, err := f.svc.Create(context.Background(), newCase("member"))

			var appErr *apperr.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperr.KindForbidden, appErr.Kind)
			assert.Equal(t, tt.msg, appErr.Message)
			f.pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
		})
	}
}

func TestService_CreateUnlimitedQuota(t *testing.T) {
	org := activeOrg()
	org.MaxCases = -1
	org.CurrentCases = 5000
	f := newFixture(t, org)
	f.pub.On("Publish", mock.Anything, mock.Anything).Return(nil)

	_, err := f.svc.Create(context.Background(), newCase("member"))
	assert.NoError(t, err)
}

func TestService_DeleteDecrementsCounter(t *testing.T) {
	f := newFixture(t, activeOrg())
	f.pub.On("Publish", mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, newCase("member"))
	require.NoError(t, err)

	_, err = f.svc.Delete(ctx, "solo", created.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = f.svc.Delete(ctx, "member", created.ID)
	require.NoError(t, err)

	org, err := f.orgs.Get(ctx, "org1")
	require.NoError(t, err)
	assert.Equal(t, 0, org.CurrentCases)
	f.pub.AssertCalled(t, "Publish", mock.Anything, mock.MatchedBy(func(e models.Event) bool {
		return e.Type == models.EventCaseDeleted && e.RecordID == created.ID
	}))
}

func TestService_Migrate(t *testing.T) {
	f := newFixture(t, activeOrg())
	ctx := context.Background()

	legacy := newCase("member")
	legacy.ID = "legacy"
	require.NoError(t, f.svc.Collection().Put(ctx, legacy.ID, legacy))

	f.pub.On("Publish", mock.Anything, mock.MatchedBy(func(e models.Event) bool {
		return e.Type == models.EventCasesMigrated && e.Count == 1
	})).Return(nil).Once()

	res, err := f.svc.Migrate(ctx, models.MigrateRequest{UserID: "member", OrganizationID: "org1"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Migrated)

	again, err := f.svc.Migrate(ctx, models.MigrateRequest{UserID: "member", OrganizationID: "org1"})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Migrated)
	assert.Equal(t, migration.MessageNothingToMigrate, again.Message)
	f.pub.AssertExpectations(t)
}

func TestService_MigrateValidation(t *testing.T) {
	f := newFixture(t, activeOrg())

	_, err := f.svc.Migrate(context.Background(), models.MigrateRequest{})
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Len(t, appErr.Fields, 2)
}

func TestService_CounterChangesInvalidateOrganizationCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rc, err := cache.InitServer(context.Background(), config.RedisConnection{AddressRedis: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { rc.Close() })

	f := newCachedFixture(t, activeOrg(), rc)
	f.pub.On("Publish", mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()
	key := cache.OrganizationKey("org1")

	warm := func(t *testing.T) {
		t.Helper()
		org, err := f.orgs.Get(ctx, "org1")
		require.NoError(t, err)
		require.NoError(t, rc.Set(ctx, key, org, time.Minute))
		require.True(t, mr.Exists(key))
	}

	warm(t)
	created, err := f.svc.Create(ctx, newCase("member"))
	require.NoError(t, err)
	assert.False(t, mr.Exists(key), "создание дела сбрасывает кеш организации")

	warm(t)
	_, err = f.svc.Delete(ctx, "member", created.ID)
	require.NoError(t, err)
	assert.False(t, mr.Exists(key), "удаление дела сбрасывает кеш организации")

	legacy := newCase("member")
	legacy.ID = "legacy"
	require.NoError(t, f.svc.Collection().Put(ctx, legacy.ID, legacy))

	warm(t)
	res, err := f.svc.Migrate(ctx, models.MigrateRequest{UserID: "member", OrganizationID: "org1"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Migrated)
	assert.False(t, mr.Exists(key), "перенос дел сбрасывает кеш организации")

	var cached models.Organization
	found, err := rc.Get(ctx, key, &cached)
	require.NoError(t, err)
	assert.False(t, found)

	org, err := f.orgs.Get(ctx, "org1")
	require.NoError(t, err)
	assert.Equal(t, 1, org.CurrentCases)
}

// interleavingStore выполняет between сразу после первого чтения path,
// имитируя изменение, зафиксированное между чтением и записью.
type interleavingStore struct {
	storage.Store
	path    string
	once    sync.Once
	between func()
}

func (s *interleavingStore) Get(ctx context.Context, path string) (json.RawMessage, error) {
	raw, err := s.Store.Get(ctx, path)
	if path == s.path {
		s.once.Do(s.between)
	}
	return raw, err
}

func TestService_UpdateKeepsConcurrentMigration(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	users := repository.NewCollection[models.User](store, models.CollectionUsers)
	orgs := repository.NewCollection[models.Organization](store, models.CollectionOrganizations)
	org := activeOrg()
	require.NoError(t, users.Put(ctx, "member", &models.User{ID: "member", OrganizationID: models.StringPtr(org.ID)}))
	require.NoError(t, orgs.Put(ctx, org.ID, &org))

	legacy := newCase("member")
	legacy.ID = "legacy"
	require.NoError(t, repository.NewCollection[models.Case](store, models.CollectionCases).Put(ctx, legacy.ID, legacy))

	log := newNoopLogger()
	engine := migration.New(log, store)
	wrapped := &interleavingStore{
		Store: store,
		path:  storage.Path(models.CollectionCases, "legacy"),
		between: func() {
			res, err := engine.Migrate(ctx, "member", org.ID)
			require.NoError(t, err)
			require.Equal(t, 1, res.Migrated)
		},
	}

	pub := &PublisherMock{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil)
	svc := New(log, wrapped, cache.Nop{}, tenancy.NewResolver(userLookup{users: users}), schema.New(), engine, pub)

	updated, err := svc.Update(ctx, "member", "legacy", json.RawMessage(`{"title":"State v. Roe","organizationId":null}`))
	require.NoError(t, err)
	assert.Equal(t, "State v. Roe", updated.Title)
	require.NotNil(t, updated.OrganizationID, "перенос, зафиксированный во время обновления, сохраняется")
	assert.Equal(t, org.ID, *updated.OrganizationID)

	again, err := svc.Migrate(ctx, models.MigrateRequest{UserID: "member", OrganizationID: org.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Migrated)

	stored, err := orgs.Get(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentCases)
}
