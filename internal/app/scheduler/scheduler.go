// Package scheduler собирает фоновый процесс, переводящий истёкшие пробные
// периоды организаций в статус expired.
package scheduler

import (
	"context"
	"log/slog"

	"github.com/Xmananti/llb-case-tracker/internal/app/bootstrap"
	"github.com/Xmananti/llb-case-tracker/internal/config"
	"github.com/Xmananti/llb-case-tracker/internal/lib/schema"
	"github.com/Xmananti/llb-case-tracker/internal/services/organizations"
	schedulerservice "github.com/Xmananti/llb-case-tracker/internal/services/scheduler"
)

// App представляет приложение планировщика.
type App struct {
	schedulerService *schedulerservice.SchedulerService
	resources        *bootstrap.Resources
	logger           *slog.Logger
}

// New создает новый экземпляр приложения планировщика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	res, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	orgs := organizations.New(logger, res.Store, res.Cache, cfg.CacheTTL, schema.New(), res.Publisher)

	return &App{
		schedulerService: schedulerservice.NewSchedulerService(orgs, cfg.Scheduler.Interval, logger),
		resources:        res,
		logger:           logger,
	}, nil
}

// Run запускает планировщик и блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	a.schedulerService.ExpireTrialsPeriodically(ctx)

	a.logger.Info("shutting down scheduler service")
	return a.resources.Close()
}
