package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xmananti/llb-case-tracker/internal/models"
	"github.com/Xmananti/llb-case-tracker/internal/storage"
	"github.com/Xmananti/llb-case-tracker/internal/storage/memory"
)

func TestCollection_PutGetListDelete(t *testing.T) {
	ctx := context.Background()
	clients := NewCollection[models.Client](memory.New(), models.CollectionClients)

	first := &models.Client{Envelope: models.Envelope{ID: "c1", UserID: "u1"}, Name: "Acme"}
	second := &models.Client{Envelope: models.Envelope{ID: "c2", UserID: "u1", OrganizationID: models.StringPtr("org1")}, Name: "Globex"}
	require.NoError(t, clients.Put(ctx, first.ID, first))
	require.NoError(t, clients.Put(ctx, second.ID, second))

	got, err := clients.Get(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, "Globex", got.Name)
	require.NotNil(t, got.OrganizationID)
	assert.Equal(t, "org1", *got.OrganizationID)

	all, err := clients.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "c1", all[0].ID)
	assert.True(t, all[0].Legacy())

	require.NoError(t, clients.Delete(ctx, "c1"))
	_, err = clients.Get(ctx, "c1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCollection_UpdateFields(t *testing.T) {
	ctx := context.Background()
	clients := NewCollection[models.Client](memory.New(), models.CollectionClients)
	require.NoError(t, clients.Put(ctx, "c1", &models.Client{
		Envelope: models.Envelope{ID: "c1", UserID: "u1", OrganizationID: models.StringPtr("org1")},
		Name:     "Acme",
		Phone:    "555-0100",
	}))

	require.NoError(t, clients.Update(ctx, map[string]any{clients.FieldPath("c1", "name"): "Acme Ltd"}))

	got, err := clients.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Ltd", got.Name)
	assert.Equal(t, "555-0100", got.Phone)
	require.NotNil(t, got.OrganizationID)
	assert.Equal(t, "org1", *got.OrganizationID)

	err = clients.Update(ctx, map[string]any{clients.FieldPath("missing", "name"): "x"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCollection_Paths(t *testing.T) {
	orgs := NewCollection[models.Organization](memory.New(), models.CollectionOrganizations)

	assert.Equal(t, "organizations", orgs.Name())
	assert.Equal(t, "organizations/o1", orgs.Path("o1"))
	assert.Equal(t, "organizations/o1/currentCases", orgs.FieldPath("o1", "currentCases"))
}

func TestCollection_DecodeError(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Set(ctx, "users/u1", map[string]any{"id": 42}))

	users := NewCollection[models.User](store, models.CollectionUsers)
	_, err := users.Get(ctx, "u1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrNotFound)
}
