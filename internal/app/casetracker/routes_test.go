package casetracker

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xmananti/llb-case-tracker/internal/app/bootstrap"
	"github.com/Xmananti/llb-case-tracker/internal/config"
	"github.com/Xmananti/llb-case-tracker/internal/lib/jwt"
	"github.com/Xmananti/llb-case-tracker/internal/models"
	"github.com/Xmananti/llb-case-tracker/internal/storage/repository"
)

type envelope struct {
	Status string          `json:"status"`
	Kind   string          `json:"kind"`
	Error  string          `json:"error"`
	Data   json.RawMessage `json:"data"`
}

type apiClient struct {
	t     *testing.T
	srv   *httptest.Server
	token string
}

func (c apiClient) do(method, path string, body any) (int, envelope) {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.srv.URL+path, rd)
	require.NoError(c.t, err)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.srv.Client().Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func newTestServer(t *testing.T, cfg *config.Config) (*httptest.Server, *bootstrap.Resources) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	res, err := bootstrap.Open(context.Background(), cfg, logger)
	require.NoError(t, err)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, NewServices(logger, cfg, res))
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		_ = res.Close()
	})
	return srv, res
}

func testConfig() *config.Config {
	return &config.Config{
		Storage:   config.Storage{Driver: config.DriverMemory},
		RateLimit: config.RateLimit{RPS: 1000, Burst: 1000},
	}
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestAPI_CaseLifecycle(t *testing.T) {
	srv, res := newTestServer(t, testConfig())
	api := apiClient{t: t, srv: srv}
	ctx := context.Background()

	status, _ := api.do(http.MethodPost, "/api/v1/users", map[string]any{"id": "u1", "email": "u1@example.com"})
	require.Equal(t, http.StatusOK, status)

	// наследованное дело, созданное до появления организации
	legacy := models.Case{
		Envelope:   models.Envelope{ID: "legacy", UserID: "u1", CreatedAt: time.Now().UTC()},
		CaseNumber: "OS-1/2019", Title: "Old matter", Court: "District Court", Status: models.CaseStatusPending,
	}
	require.NoError(t, repository.NewCollection[models.Case](res.Store, models.CollectionCases).Put(ctx, legacy.ID, &legacy))

	status, env := api.do(http.MethodPost, "/api/v1/organizations", map[string]any{"userId": "u1", "name": "Firm", "subscriptionPlan": "starter"})
	require.Equal(t, http.StatusCreated, status)
	org := decode[models.Organization](t, env.Data)
	assert.Equal(t, models.StatusTrial, org.SubscriptionStatus)

	status, env = api.do(http.MethodPost, "/api/v1/cases", map[string]any{
		"userId": "u1", "caseNumber": "CS-7/2025", "title": "State v. Rao", "court": "High Court", "status": "pending",
	})
	require.Equal(t, http.StatusCreated, status)
	created := decode[models.Case](t, env.Data)
	assert.Equal(t, org.ID, models.Deref(created.OrganizationID))
	assert.False(t, created.CreatedAt.IsZero())

	status, env = api.do(http.MethodPost, "/api/v1/cases/migrate", map[string]any{"userId": "u1", "organizationId": org.ID})
	require.Equal(t, http.StatusOK, status)
	result := decode[models.MigrationResult](t, env.Data)
	assert.Equal(t, 1, result.Migrated)

	status, env = api.do(http.MethodPost, "/api/v1/cases/migrate", map[string]any{"userId": "u1", "organizationId": org.ID})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "no cases to migrate", decode[models.MigrationResult](t, env.Data).Message)

	status, env = api.do(http.MethodGet, "/api/v1/organizations/"+org.ID+"?userId=u1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, decode[models.Organization](t, env.Data).CurrentCases)

	status, env = api.do(http.MethodGet, "/api/v1/cases?userId=u1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.Case](t, env.Data), 2)

	status, env = api.do(http.MethodPut, "/api/v1/cases/"+created.ID+"?userId=u1", map[string]any{"status": "admitted"})
	require.Equal(t, http.StatusOK, status)
	updated := decode[models.Case](t, env.Data)
	assert.Equal(t, models.CaseStatusAdmitted, updated.Status)
	assert.Equal(t, "State v. Rao", updated.Title)

	status, env = api.do(http.MethodPut, "/api/v1/cases/"+created.ID+"?userId=u2", map[string]any{"status": "admitted"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "forbidden", env.Kind)

	status, env = api.do(http.MethodDelete, "/api/v1/cases/missing?userId=u1", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", env.Kind)
}

func TestAPI_ClientCascadeAndPaymentOrder(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	api := apiClient{t: t, srv: srv}

	status, _ := api.do(http.MethodPost, "/api/v1/users", map[string]any{"id": "u1", "email": "u1@example.com"})
	require.Equal(t, http.StatusOK, status)

	status, env := api.do(http.MethodPost, "/api/v1/clients", map[string]any{"userId": "u1", "name": "Acme"})
	require.Equal(t, http.StatusCreated, status)
	client := decode[models.Client](t, env.Data)

	for _, date := range []string{"2025-01-10", "2025-03-01", "2024-12-31"} {
		status, env = api.do(http.MethodPost, "/api/v1/payments", map[string]any{
			"userId": "u1", "clientId": client.ID, "amount": 1500, "date": date,
		})
		require.Equal(t, http.StatusCreated, status, env.Error)
	}

	status, env = api.do(http.MethodGet, "/api/v1/payments?userId=u1&clientId="+client.ID, nil)
	require.Equal(t, http.StatusOK, status)
	list := decode[[]models.Payment](t, env.Data)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"2025-03-01", "2025-01-10", "2024-12-31"}, []string{list[0].Date, list[1].Date, list[2].Date})

	status, env = api.do(http.MethodPost, "/api/v1/payments", map[string]any{"userId": "u1", "amount": -5})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "validation", env.Kind)

	status, _ = api.do(http.MethodDelete, "/api/v1/clients/"+client.ID+"?userId=u1", nil)
	require.Equal(t, http.StatusOK, status)

	status, env = api.do(http.MethodGet, "/api/v1/payments?userId=u1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode[[]models.Payment](t, env.Data))
}

func TestAPI_ListForUnknownUserIsEmpty(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	api := apiClient{t: t, srv: srv}

	status, env := api.do(http.MethodGet, "/api/v1/clients?userId=nobody", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestAPI_JWT(t *testing.T) {
	cfg := testConfig()
	cfg.JWTSecretKey = "test-secret"
	cfg.TokenTTL = time.Hour
	srv, _ := newTestServer(t, cfg)

	anon := apiClient{t: t, srv: srv}
	status, env := anon.do(http.MethodGet, "/api/v1/cases?userId=u1", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", env.Kind)

	token, err := jwt.NewJWTMaker(cfg.JWTSecretKey, time.Hour).GenerateToken("u1", "u1@example.com")
	require.NoError(t, err)
	api := apiClient{t: t, srv: srv, token: token}

	status, _ = api.do(http.MethodPost, "/api/v1/users", map[string]any{"email": "u1@example.com"})
	require.Equal(t, http.StatusOK, status)

	status, env = api.do(http.MethodGet, "/api/v1/cases?userId=u2", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env = api.do(http.MethodGet, "/api/v1/cases", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(env.Data))

	status, _ = anon.do(http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, status)
}
