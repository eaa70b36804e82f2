package casetracker

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/Xmananti/llb-case-tracker/internal/config"
	"github.com/Xmananti/llb-case-tracker/internal/http/handlers/cases/migrate"
	"github.com/Xmananti/llb-case-tracker/internal/http/handlers/health"
	orgcreate "github.com/Xmananti/llb-case-tracker/internal/http/handlers/organization/create"
	"github.com/Xmananti/llb-case-tracker/internal/http/handlers/organization/members"
	orgread "github.com/Xmananti/llb-case-tracker/internal/http/handlers/organization/read"
	"github.com/Xmananti/llb-case-tracker/internal/http/handlers/organization/subscription"
	"github.com/Xmananti/llb-case-tracker/internal/http/handlers/record/create"
	"github.com/Xmananti/llb-case-tracker/internal/http/handlers/record/list"
	"github.com/Xmananti/llb-case-tracker/internal/http/handlers/record/read"
	"github.com/Xmananti/llb-case-tracker/internal/http/handlers/record/remove"
	"github.com/Xmananti/llb-case-tracker/internal/http/handlers/record/update"
	userread "github.com/Xmananti/llb-case-tracker/internal/http/handlers/user/read"
	"github.com/Xmananti/llb-case-tracker/internal/http/handlers/user/upsert"
	"github.com/Xmananti/llb-case-tracker/internal/http/middlewarectx"
	"github.com/Xmananti/llb-case-tracker/internal/lib/jwt"
	"github.com/Xmananti/llb-case-tracker/internal/metrics"
	"github.com/Xmananti/llb-case-tracker/internal/models"
	"github.com/Xmananti/llb-case-tracker/internal/services/cases"
	"github.com/Xmananti/llb-case-tracker/internal/services/clients"
	"github.com/Xmananti/llb-case-tracker/internal/services/organizations"
	"github.com/Xmananti/llb-case-tracker/internal/services/payments"
	"github.com/Xmananti/llb-case-tracker/internal/services/users"
)

// Services — сервисы, обслуживающие маршруты API.
type Services struct {
	Cases         *cases.Service
	Clients       *clients.Service
	Payments      *payments.Service
	Organizations *organizations.Service
	Users         *users.Service
	Health        health.Pinger
}

type recordService[T any] interface {
	create.Service[T]
	list.Service[T]
	read.Service[T]
	update.Service[T]
	remove.Service[T]
}

func recordRoutes[T any, PT interface {
	*T
	models.Record
}](r chi.Router, logger *slog.Logger, svc recordService[T], kind string) {
	r.Get("/", list.New[T](logger, svc, kind).ServeHTTP)
	r.Post("/", create.New[T, PT](logger, svc, kind).ServeHTTP)
	r.Get("/{id}", read.New[T](logger, svc, kind).ServeHTTP)
	r.Put("/{id}", update.New[T](logger, svc, kind).ServeHTTP)
	r.Delete("/{id}", remove.New[T](logger, svc, kind).ServeHTTP)
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config, svc Services) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
		metrics.Middleware,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", health.New(logger, svc.Health).ServeHTTP)

		r.Group(func(r chi.Router) {
			if cfg.JWTSecretKey != "" {
				r.Use(middlewarectx.JWTMiddleware(jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL), logger))
			} else {
				logger.Warn("jwt secret is empty, userId is taken from requests as is")
			}
			r.Use(middlewarectx.RateLimitMiddleware(logger, cfg.RPS, cfg.Burst))

			r.Post("/users", upsert.New(logger, svc.Users).ServeHTTP)
			r.Get("/users/{id}", userread.New(logger, svc.Users).ServeHTTP)

			r.Route("/cases", func(r chi.Router) {
				r.Post("/migrate", migrate.New(logger, svc.Cases).ServeHTTP)
				recordRoutes[models.Case](r, logger, svc.Cases, "case")
			})
			r.Route("/clients", func(r chi.Router) {
				recordRoutes[models.Client](r, logger, svc.Clients, "client")
			})
			r.Route("/payments", func(r chi.Router) {
				recordRoutes[models.Payment](r, logger, svc.Payments, "payment")
			})

			r.Post("/organizations", orgcreate.New(logger, svc.Organizations).ServeHTTP)
			r.Get("/organizations/{id}", orgread.New(logger, svc.Organizations).ServeHTTP)
			r.Put("/organizations/{id}/subscription", subscription.New(logger, svc.Organizations).ServeHTTP)
			r.Post("/organizations/{id}/members", members.New(logger, svc.Organizations).ServeHTTP)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
