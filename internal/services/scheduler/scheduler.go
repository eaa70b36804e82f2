// Package scheduler периодически переводит организации с истёкшим пробным
// периодом в статус expired.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/Xmananti/llb-case-tracker/internal/lib/sl"
)

// TrialExpirer переводит истёкшие пробные периоды в expired.
type TrialExpirer interface {
	ExpireTrials(ctx context.Context) (int, error)
}

// SchedulerService запускает проверку пробных периодов по таймеру.
type SchedulerService struct {
	expirer  TrialExpirer
	interval time.Duration
	log      *slog.Logger
}

// NewSchedulerService создает новый экземпляр SchedulerService.
func NewSchedulerService(expirer TrialExpirer, interval time.Duration, log *slog.Logger) *SchedulerService {
	return &SchedulerService{
		expirer:  expirer,
		interval: interval,
		log:      log,
	}
}

// ExpireTrialsPeriodically выполняет проверку сразу и затем на каждом тике,
// пока не отменён ctx.
func (s *SchedulerService) ExpireTrialsPeriodically(ctx context.Context) {
	s.runExpireTrials(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("trial expiry scheduler stopped")
			return
		case <-ticker.C:
			s.runExpireTrials(ctx)
		}
	}
}

func (s *SchedulerService) runExpireTrials(ctx context.Context) {
	const op = "services.scheduler.runExpireTrials"
	log := s.log.With(sl.Op(op))

	log.Info("starting trial expiry check")
	n, err := s.expirer.ExpireTrials(ctx)
	if err != nil {
		log.Error("failed to expire trials", sl.Err(err))
		return
	}
	if n == 0 {
		log.Info("no expired trials found")
		return
	}
	log.Info("expired trials", slog.Int("count", n))
}
