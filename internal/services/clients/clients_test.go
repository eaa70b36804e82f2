package clients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Xmananti/llb-case-tracker/internal/lib/apperr"
	"github.com/Xmananti/llb-case-tracker/internal/lib/schema"
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

// flakyStore отклоняет многопутевые обновления, затрагивающие пути из failing.
type flakyStore struct {
	storage.Store
	failing map[string]bool
}

func (s flakyStore) Update(ctx context.Context, updates map[string]any) error {
	for path := range updates {
		if s.failing[path] {
			return errors.New("write timeout")
		}
	}
	return s.Store.Update(ctx, updates)
}

// lateWriteStore записывает платёж клиента сразу после первого удаления клиента.
type lateWriteStore struct {
	storage.Store
	clientPath string
	late       *models.Payment
	once       sync.Once
}

func (s *lateWriteStore) Update(ctx context.Context, updates map[string]any) error {
	if err := s.Store.Update(ctx, updates); err != nil {
		return err
	}
	if _, ok := updates[s.clientPath]; ok {
		var err error
		s.once.Do(func() {
			err = s.Store.Set(ctx, storage.Path(models.CollectionPayments, s.late.ID), s.late)
		})
		return err
	}
	return nil
}

func setup(t *testing.T, store storage.Store, payments int) (*Service, *PublisherMock, *repository.Collection[models.Payment]) {
	t.Helper()
	ctx := context.Background()
	users := repository.NewCollection[models.User](store, models.CollectionUsers)
	require.NoError(t, users.Put(ctx, "u1", &models.User{ID: "u1"}))

	pub := &PublisherMock{}
	svc := New(newNoopLogger(), store, tenancy.NewResolver(userLookup{users: users}), schema.New(), pub)
	require.NoError(t, svc.Collection().Put(ctx, "c1", &models.Client{Envelope: models.Envelope{ID: "c1", UserID: "u1"}, Name: "Acme"}))
	require.NoError(t, svc.Collection().Put(ctx, "c2", &models.Client{Envelope: models.Envelope{ID: "c2", UserID: "u1"}, Name: "Globex"}))

	pays := repository.NewCollection[models.Payment](store, models.CollectionPayments)
	for i := range payments {
		id := fmt.Sprintf("p%d", i)
		require.NoError(t, pays.Put(ctx, id, &models.Payment{
			Envelope: models.Envelope{ID: id, UserID: "u1"}, ClientID: "c1", Amount: 100, Date: "2025-01-01",
		}))
	}
	require.NoError(t, pays.Put(ctx, "other", &models.Payment{
		Envelope: models.Envelope{ID: "other", UserID: "u1"}, ClientID: "c2", Amount: 50, Date: "2025-01-02",
	}))
	return svc, pub, pays
}

func TestService_DeleteCascades(t *testing.T) {
	for _, n := range []int{0, 1, 7} {
		t.Run(fmt.Sprintf("%d payments", n), func(t *testing.T) {
			ctx := context.Background()
			svc, pub, pays := setup(t, memory.New(), n)
			pub.On("Publish", mock.Anything, mock.MatchedBy(func(e models.Event) bool {
				return e.Type == models.EventClientDeleted && e.Count == n
			})).Return(nil).Once()

			_, err := svc.Delete(ctx, "u1", "c1")
			require.NoError(t, err)

			left, err := pays.List(ctx)
			require.NoError(t, err)
			for _, p := range left {
				assert.NotEqual(t, "c1", p.ClientID)
			}
			assert.Len(t, left, 1)

			_, err = svc.Get(ctx, "u1", "c1")
			assert.True(t, apperr.Is(err, apperr.KindNotFound))
			pub.AssertExpectations(t)
		})
	}
}

func TestService_DeleteCascadeFailure(t *testing.T) {
	ctx := context.Background()
	store := flakyStore{Store: memory.New(), failing: map[string]bool{"payments/p3": true}}
	svc, pub, pays := setup(t, store, 5)

	_, err := svc.Delete(ctx, "u1", "c1")
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindDependencyUnavailable, appErr.Kind)
	assert.Equal(t, "failed to delete client and 5 payments", appErr.Message)
	assert.Contains(t, err.Error(), "write timeout")

	client, err := svc.Get(ctx, "u1", "c1")
	require.NoError(t, err, "клиент остаётся после неудачного каскада")
	assert.Equal(t, "Acme", client.Name)

	left, err := pays.List(ctx)
	require.NoError(t, err)
	assert.Len(t, left, 6, "ни один платёж не удалён")
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestService_DeleteSweepsLatePayments(t *testing.T) {
	ctx := context.Background()
	store := &lateWriteStore{
		Store:      memory.New(),
		clientPath: storage.Path(models.CollectionClients, "c1"),
		late: &models.Payment{
			Envelope: models.Envelope{ID: "late", UserID: "u1"}, ClientID: "c1", Amount: 10, Date: "2025-02-01",
		},
	}
	svc, pub, pays := setup(t, store, 2)
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(e models.Event) bool {
		return e.Type == models.EventClientDeleted && e.Count == 3
	})).Return(nil).Once()

	_, err := svc.Delete(ctx, "u1", "c1")
	require.NoError(t, err)

	left, err := pays.List(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "other", left[0].ID)
	pub.AssertExpectations(t)
}

func TestService_DeleteForeignClient(t *testing.T) {
	ctx := context.Background()
	svc, _, pays := setup(t, memory.New(), 2)

	_, err := svc.Delete(ctx, "intruder", "c1")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	left, err := pays.List(ctx)
	require.NoError(t, err)
	assert.Len(t, left, 3)
}
