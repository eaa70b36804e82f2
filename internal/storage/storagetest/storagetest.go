// Package storagetest содержит общий набор проверок для реализаций storage.Store.
package storagetest

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xmananti/llb-case-tracker/internal/storage"
)

type doc struct {
	Name    string  `json:"name"`
	Count   int     `json:"count,omitempty"`
	OrgID   *string `json:"organizationId,omitempty"`
	Deleted bool    `json:"deleted,omitempty"`
}

func decode(t *testing.T, raw json.RawMessage) doc {
	t.Helper()
	var d doc
	require.NoError(t, json.Unmarshal(raw, &d))
	return d
}

// Run прогоняет набор проверок на хранилищах, выдаваемых newStore.
// Каждый подтест получает новое пустое хранилище.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	ctx := context.Background()

	t.Run("get missing returns ErrNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "cases/none")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("set, get and list keep insertion order", func(t *testing.T) {
		s := newStore(t)
		for _, id := range []string{"c", "a", "b"} {
			require.NoError(t, s.Set(ctx, storage.Path("cases", id), doc{Name: id}))
		}
		// перезапись не меняет позицию
		require.NoError(t, s.Set(ctx, "cases/c", doc{Name: "c2"}))

		nodes, err := s.List(ctx, "cases")
		require.NoError(t, err)
		require.Len(t, nodes, 3)
		assert.Equal(t, []string{"c", "a", "b"}, []string{nodes[0].Key, nodes[1].Key, nodes[2].Key})
		assert.Equal(t, "c2", decode(t, nodes[0].Value).Name)

		raw, err := s.Get(ctx, "cases/a")
		require.NoError(t, err)
		assert.Equal(t, "a", decode(t, raw).Name)
	})

	t.Run("list of unknown collection is empty", func(t *testing.T) {
		s := newStore(t)
		nodes, err := s.List(ctx, "payments")
		require.NoError(t, err)
		assert.Empty(t, nodes)
	})

	t.Run("remove is idempotent", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "clients/x", doc{Name: "x"}))
		require.NoError(t, s.Remove(ctx, "clients/x"))
		require.NoError(t, s.Remove(ctx, "clients/x"))
		_, err := s.Get(ctx, "clients/x")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("multi-path update sets fields and records", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "cases/a", doc{Name: "a"}))
		require.NoError(t, s.Set(ctx, "cases/b", doc{Name: "b"}))

		err := s.Update(ctx, map[string]any{
			"cases/a/organizationId": "org1",
			"cases/b/organizationId": "org1",
			"cases/b/name":           "b2",
			"organizations/org1":     doc{Name: "org"},
		})
		require.NoError(t, err)

		raw, err := s.Get(ctx, "cases/b")
		require.NoError(t, err)
		got := decode(t, raw)
		assert.Equal(t, "b2", got.Name)
		require.NotNil(t, got.OrgID)
		assert.Equal(t, "org1", *got.OrgID)

		_, err = s.Get(ctx, "organizations/org1")
		assert.NoError(t, err)
	})

	t.Run("multi-path update is all-or-nothing", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "cases/a", doc{Name: "a"}))

		err := s.Update(ctx, map[string]any{
			"cases/a/name":       "changed",
			"cases/ghost/name":   "nobody",
			"organizations/org1": doc{Name: "org"},
		})
		require.ErrorIs(t, err, storage.ErrNotFound)

		raw, err := s.Get(ctx, "cases/a")
		require.NoError(t, err)
		assert.Equal(t, "a", decode(t, raw).Name)
		_, err = s.Get(ctx, "organizations/org1")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("nil value deletes record and field", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "users/u1", doc{Name: "u", OrgID: strPtr("org1")}))
		require.NoError(t, s.Set(ctx, "payments/p1", doc{Name: "p"}))

		var noOrg *string
		require.NoError(t, s.Update(ctx, map[string]any{
			"users/u1/organizationId": noOrg,
			"payments/p1":             nil,
		}))

		raw, err := s.Get(ctx, "users/u1")
		require.NoError(t, err)
		assert.Nil(t, decode(t, raw).OrgID)
		_, err = s.Get(ctx, "payments/p1")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("increment counter", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "organizations/o1", doc{Name: "o"}))

		require.NoError(t, s.Increment(ctx, "organizations/o1/count", 3))
		require.NoError(t, s.Increment(ctx, "organizations/o1/count", -1))

		raw, err := s.Get(ctx, "organizations/o1")
		require.NoError(t, err)
		assert.Equal(t, 2, decode(t, raw).Count)

		assert.ErrorIs(t, s.Increment(ctx, "organizations/missing/count", 1), storage.ErrNotFound)
		assert.ErrorIs(t, s.Increment(ctx, "organizations/o1", 1), storage.ErrInvalidPath)
	})

	t.Run("invalid paths are rejected", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "cases")
		assert.ErrorIs(t, err, storage.ErrInvalidPath)
		assert.ErrorIs(t, s.Update(ctx, map[string]any{"a/b/c/d": 1}), storage.ErrInvalidPath)
	})

	t.Run("ping", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Ping(ctx))
	})
}

func strPtr(s string) *string { return &s }
