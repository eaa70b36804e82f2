package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/cases/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.CollectAndCount(httpRequestDuration)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/cases/abc", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/cases/def", nil))

	// оба запроса попадают в одну серию
	assert.Equal(t, before+1, testutil.CollectAndCount(httpRequestDuration))
}

func TestCounters(t *testing.T) {
	base := testutil.ToFloat64(casesMigrated)
	CasesMigrated(3)
	assert.Equal(t, base+3, testutil.ToFloat64(casesMigrated))

	created := testutil.ToFloat64(recordsCreated.WithLabelValues("cases"))
	RecordCreated("cases")
	assert.Equal(t, created+1, testutil.ToFloat64(recordsCreated.WithLabelValues("cases")))

	deleted := testutil.ToFloat64(recordsDeleted.WithLabelValues("clients"))
	RecordDeleted("clients")
	assert.Equal(t, deleted+1, testutil.ToFloat64(recordsDeleted.WithLabelValues("clients")))

	cascaded := testutil.ToFloat64(paymentsCascaded)
	PaymentsCascaded(2)
	assert.Equal(t, cascaded+2, testutil.ToFloat64(paymentsCascaded))

	expired := testutil.ToFloat64(trialsExpired)
	TrialsExpired(1)
	assert.Equal(t, expired+1, testutil.ToFloat64(trialsExpired))

	failed := testutil.ToFloat64(eventsFailed.WithLabelValues("case.created"))
	EventFailed("case.created")
	assert.Equal(t, failed+1, testutil.ToFloat64(eventsFailed.WithLabelValues("case.created")))
}
