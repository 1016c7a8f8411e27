package service

import (
	"context"
	"time"

	"beautymart/config"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// SweepTarget is the work the sweeper drives on a schedule.
type SweepTarget interface {
	ReconcileOutstanding(ctx context.Context, settledBefore time.Time, limit int) (int, error)
	ResolveStale(ctx context.Context, createdBefore time.Time, limit int) (int, error)
}

// Sweeper retries reconciliation that failed after settlement and resolves
// pending requests whose callback never came.
type Sweeper struct {
	sched  gocron.Scheduler
	target SweepTarget
	cfg    config.SweeperConfig
	logger *zap.Logger
	now    func() time.Time
}

func NewSweeper(target SweepTarget, cfg config.SweeperConfig, logger *zap.Logger) (*Sweeper, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	s := &Sweeper{sched: sched, target: target, cfg: cfg, logger: logger, now: time.Now}

	if _, err := sched.NewJob(
		gocron.DurationJob(cfg.Interval),
		gocron.NewTask(s.sweep),
		gocron.WithName("payment-sweeper"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sweeper) Start() {
	s.logger.Info("[sweeper] started", zap.Duration("interval", s.cfg.Interval))
	s.sched.Start()
}

func (s *Sweeper) Stop() error {
	return s.sched.Shutdown()
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Interval)
	defer cancel()
	s.RunOnce(ctx)
}

// RunOnce performs a single pass of both jobs.
func (s *Sweeper) RunOnce(ctx context.Context) {
	now := s.now()
	reconciled, err := s.target.ReconcileOutstanding(ctx, now.Add(-s.cfg.ReconcileAfter), s.cfg.BatchSize)
	if err != nil {
		s.logger.Error("[sweeper] list unreconciled failed", zap.Error(err))
	} else if reconciled > 0 {
		s.logger.Info("[sweeper] reconciled", zap.Int("count", reconciled))
	}

	resolved, err := s.target.ResolveStale(ctx, now.Add(-s.cfg.StalePending), s.cfg.BatchSize)
	if err != nil {
		s.logger.Error("[sweeper] list stale pending failed", zap.Error(err))
	} else if resolved > 0 {
		s.logger.Info("[sweeper] resolved stale", zap.Int("count", resolved))
	}
}
