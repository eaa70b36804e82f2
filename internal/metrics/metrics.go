// Package metrics содержит метрики Prometheus трекера дел.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "case_tracker_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
	recordsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "case_tracker_records_created_total",
			Help: "Records created by collection",
		},
		[]string{"collection"},
	)
	recordsDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "case_tracker_records_deleted_total",
			Help: "Records deleted by collection",
		},
		[]string{"collection"},
	)
	casesMigrated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "case_tracker_cases_migrated_total",
		Help: "Legacy cases moved into an organization",
	})
	paymentsCascaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "case_tracker_payments_cascaded_total",
		Help: "Payments removed together with their client",
	})
	trialsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "case_tracker_trials_expired_total",
		Help: "Organizations moved from trial to expired",
	})
	eventsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "case_tracker_events_failed_total",
			Help: "Domain events that could not be published",
		},
		[]string{"type"},
	)
)

// Middleware записывает длительность запроса. Маршрут берётся из шаблона chi,
// чтобы идентификаторы записей не попадали в метки.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}

// RecordCreated учитывает созданную запись.
func RecordCreated(collection string) { recordsCreated.WithLabelValues(collection).Inc() }

// RecordDeleted учитывает удалённую запись.
func RecordDeleted(collection string) { recordsDeleted.WithLabelValues(collection).Inc() }

// CasesMigrated учитывает перенесённые дела.
func CasesMigrated(n int) { casesMigrated.Add(float64(n)) }

// PaymentsCascaded учитывает платежи, удалённые вместе с клиентом.
func PaymentsCascaded(n int) { paymentsCascaded.Add(float64(n)) }

// TrialsExpired учитывает организации с истёкшим пробным периодом.
func TrialsExpired(n int) { trialsExpired.Add(float64(n)) }

// EventFailed учитывает неопубликованное событие.
func EventFailed(eventType string) { eventsFailed.WithLabelValues(eventType).Inc() }
