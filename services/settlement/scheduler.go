package settlement

import (
	"context"
	"time"

	"campaign-settlement/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Scheduler invokes the coordinator on a fixed interval. Correctness does
// not depend on the interval: every tick funnels through the same lock and
// completion-marker gate.
type Scheduler struct {
	service  *Service
	interval time.Duration
}

func NewScheduler(svc *Service, cfg *config.Config) *Scheduler {
	return &Scheduler{
		service:  svc,
		interval: cfg.Scheduler.Interval,
	}
}

func StartScheduler(lc fx.Lifecycle, s *Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func (s *Scheduler) run(ctx context.Context) {
	zap.L().Info("[Scheduler] started settlement scheduler", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			zap.L().Warn("[Scheduler] stopped")
			return
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	start := time.Now()

	if err := s.service.Run(ctx); err != nil {
		zap.L().Error("[Scheduler] settlement tick failed, retrying next interval", zap.Error(err))
		return
	}

	zap.L().Info("[Scheduler] settlement tick finished", zap.Duration("duration", time.Since(start)))
}
