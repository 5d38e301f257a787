package recovery

import (
	"context"

	"go.uber.org/zap"

	"github.com/portalclube/payment-reconciler/internal/config"
)

// Scheduler drives the orchestrator on a fixed period. When a health check
// registers new automated actions, their execution is deferred by a one-shot
// delay so that transient blips can clear on their own first.
type Scheduler struct {
	orch   *Orchestrator
	cfg    config.RecoveryConfig
	clock  Clock
	logger *zap.Logger
}

// NewScheduler creates the recovery scheduler
func NewScheduler(orch *Orchestrator, cfg config.RecoveryConfig, clock Clock, logger *zap.Logger) *Scheduler {
	if clock == nil {
		clock = NewRealClock()
	}
	return &Scheduler{orch: orch, cfg: cfg, clock: clock, logger: logger}
}

// Run blocks until ctx is canceled, performing a health check every interval.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("recovery scheduler started",
		zap.Duration("health_interval", s.cfg.HealthInterval),
		zap.Duration("action_delay", s.cfg.ActionDelay),
	)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("recovery scheduler stopped")
			return
		case <-s.clock.After(s.cfg.HealthInterval):
			_, newActions := s.orch.CheckHealth(ctx)
			if len(newActions) > 0 {
				go s.runAfterDelay(ctx)
			}
		}
	}
}

// runAfterDelay waits the configured one-shot delay, then executes whatever
// automated actions are still active.
func (s *Scheduler) runAfterDelay(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-s.clock.After(s.cfg.ActionDelay):
	}
	executed := s.orch.RunAutomatic(ctx)
	s.logger.Info("automated recovery pass finished", zap.Int("executed", executed))
}
