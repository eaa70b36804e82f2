package tenancy

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xmananti/llb-case-tracker/internal/lib/apperr"
	"github.com/Xmananti/llb-case-tracker/internal/models"
	"github.com/Xmananti/llb-case-tracker/internal/storage"
)

func org(id string) *string { return &id }

func TestVisible(t *testing.T) {
	tests := []struct {
		name      string
		principal Principal
		record    models.Envelope
		want      bool
	}{
		{"наследованная запись без организации", Principal{UserID: "u1"}, models.Envelope{UserID: "u1"}, true},
		{"чужая запись", Principal{UserID: "u1"}, models.Envelope{UserID: "u2"}, false},
		{"без организации не видит перенесённую", Principal{UserID: "u1"}, models.Envelope{UserID: "u1", OrganizationID: org("o1")}, false},
		{"своя организация", Principal{UserID: "u1", OrganizationID: org("o1")}, models.Envelope{UserID: "u1", OrganizationID: org("o1")}, true},
		{"наследованная видна в организации", Principal{UserID: "u1", OrganizationID: org("o1")}, models.Envelope{UserID: "u1"}, true},
		{"другая организация", Principal{UserID: "u1", OrganizationID: org("o1")}, models.Envelope{UserID: "u1", OrganizationID: org("o2")}, false},
		{"своя организация, чужой владелец", Principal{UserID: "u1", OrganizationID: org("o1")}, models.Envelope{UserID: "u2", OrganizationID: org("o1")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Visible(tt.principal, &tt.record))
		})
	}
	assert.False(t, Visible(Principal{UserID: "u1"}, nil))
}

// reference — прямая запись предиката для сверки со случайными комбинациями.
func reference(p Principal, e models.Envelope) bool {
	if e.UserID != p.UserID {
		return false
	}
	if p.OrganizationID != nil {
		return e.OrganizationID == nil || *e.OrganizationID == *p.OrganizationID
	}
	return e.OrganizationID == nil
}

func TestFilter_RandomPrincipals(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	users := []string{"u1", "u2", "u3"}
	orgs := []*string{nil, org("o1"), org("o2")}

	scenarios := map[string]func() *string{
		"all legacy":   func() *string { return nil },
		"all migrated": func() *string { return orgs[1+rnd.Intn(2)] },
		"mixed":        func() *string { return orgs[rnd.Intn(3)] },
	}

	for name, pickOrg := range scenarios {
		t.Run(name, func(t *testing.T) {
			for iter := 0; iter < 200; iter++ {
				cases := make([]*models.Case, 0, 20)
				for i := 0; i < 20; i++ {
					cases = append(cases, &models.Case{Envelope: models.Envelope{
						ID:             fmt.Sprintf("c%d", i),
						UserID:         users[rnd.Intn(len(users))],
						OrganizationID: pickOrg(),
					}})
				}
				p := Principal{UserID: users[rnd.Intn(len(users))], OrganizationID: orgs[rnd.Intn(len(orgs))]}

				got := Filter[models.Case](p, cases)

				var want []string
				for _, c := range cases {
					if reference(p, c.Envelope) {
						want = append(want, c.ID)
					}
				}
				ids := make([]string, 0, len(got))
				for _, c := range got {
					ids = append(ids, c.ID)
				}
				if len(want) == 0 {
					assert.Empty(t, ids)
				} else {
					assert.Equal(t, want, ids, "principal %+v", p)
				}
			}
		})
	}
}

type users map[string]*models.User

func (u users) GetUser(_ context.Context, id string) (*models.User, error) {
	if id == "broken" {
		return nil, errors.New("connection refused")
	}
	user, ok := u[id]
	if !ok {
		return nil, fmt.Errorf("get user: %w", storage.ErrNotFound)
	}
	return user, nil
}

func TestResolver_Resolve(t *testing.T) {
	r := NewResolver(users{
		"member": {ID: "member", OrganizationID: org("o1")},
		"solo":   {ID: "solo"},
	})
	ctx := context.Background()

	t.Run("hint wins", func(t *testing.T) {
		p, found, err := r.Resolve(ctx, "ghost", org("o9"))
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "o9", *p.OrganizationID)
	})
	t.Run("organization from profile", func(t *testing.T) {
		p, found, err := r.Resolve(ctx, "member", nil)
		require.NoError(t, err)
		assert.True(t, found)
		require.True(t, p.HasOrganization())
		assert.Equal(t, "o1", *p.OrganizationID)
	})
	t.Run("profile without organization", func(t *testing.T) {
		p, found, err := r.Resolve(ctx, "solo", org(""))
		require.NoError(t, err)
		assert.True(t, found)
		assert.False(t, p.HasOrganization())
	})
	t.Run("missing profile is not an error", func(t *testing.T) {
		_, found, err := r.Resolve(ctx, "ghost", nil)
		require.NoError(t, err)
		assert.False(t, found)
	})
	t.Run("store failure", func(t *testing.T) {
		_, _, err := r.Resolve(ctx, "broken", nil)
		assert.True(t, apperr.Is(err, apperr.KindDependencyUnavailable))
	})
}

func TestAuthorize(t *testing.T) {
	assert.True(t, apperr.Is(Authorize(nil, "u1"), apperr.KindNotFound))
	assert.True(t, apperr.Is(Authorize(&models.Envelope{UserID: "u2"}, "u1"), apperr.KindForbidden))
	assert.NoError(t, Authorize(&models.Envelope{UserID: "u1"}, "u1"))
}

func TestSortPayments(t *testing.T) {
	payments := []*models.Payment{
		{Envelope: models.Envelope{ID: "old"}, Date: "2024-01-10"},
		{Envelope: models.Envelope{ID: "bad"}, Date: "10/01/2024"},
		{Envelope: models.Envelope{ID: "new-a"}, Date: "2024-03-01"},
		{Envelope: models.Envelope{ID: "mid"}, Date: "2024-02-15"},
		{Envelope: models.Envelope{ID: "new-b"}, Date: "2024-03-01"},
	}
	SortPayments(payments)

	ids := make([]string, 0, len(payments))
	for _, p := range payments {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"new-a", "new-b", "mid", "old", "bad"}, ids)
}
