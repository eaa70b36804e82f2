// Package casetracker собирает HTTP API трекера дел: хранилище, кеш,
// публикацию событий, сервисы и маршруты.
package casetracker

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/hashicorp/go-multierror"

	"github.com/Xmananti/llb-case-tracker/internal/app/bootstrap"
	"github.com/Xmananti/llb-case-tracker/internal/config"
	"github.com/Xmananti/llb-case-tracker/internal/lib/schema"
	"github.com/Xmananti/llb-case-tracker/internal/migration"
	"github.com/Xmananti/llb-case-tracker/internal/services/cases"
	"github.com/Xmananti/llb-case-tracker/internal/services/clients"
	"github.com/Xmananti/llb-case-tracker/internal/services/organizations"
	"github.com/Xmananti/llb-case-tracker/internal/services/payments"
	"github.com/Xmananti/llb-case-tracker/internal/services/users"
	"github.com/Xmananti/llb-case-tracker/internal/tenancy"
)

const shutdownTimeout = 15 * time.Second

// App — HTTP-приложение трекера дел.
type App struct {
	server    *http.Server
	logger    *slog.Logger
	resources *bootstrap.Resources
}

// NewServices собирает сервисы поверх открытых зависимостей.
func NewServices(logger *slog.Logger, cfg *config.Config, res *bootstrap.Resources) Services {
	v := schema.New()
	userService := users.New(logger, res.Store, res.Cache, cfg.CacheTTL, v)
	resolver := tenancy.NewResolver(userService)

	return Services{
		Cases:         cases.New(logger, res.Store, res.Cache, resolver, v, migration.New(logger, res.Store), res.Publisher),
		Clients:       clients.New(logger, res.Store, resolver, v, res.Publisher),
		Payments:      payments.New(logger, res.Store, resolver, v),
		Organizations: organizations.New(logger, res.Store, res.Cache, cfg.CacheTTL, v, res.Publisher),
		Users:         userService,
		Health:        res.Store,
	}
}

// New создает приложение и открывает его зависимости.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	res, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, NewServices(logger, cfg, res))

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:    srv,
		logger:    logger,
		resources: res,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его при отмене ctx.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		_ = a.resources.Close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		return multierror.Append(err, a.resources.Close()).ErrorOrNil()
	}
}
