// Package scheduler drives timer-triggered monitor runs.
package scheduler

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sale-monitor/internal/monitor"
)

// Runner executes one monitor request.
type Runner interface {
	Run(ctx context.Context, req monitor.Request) monitor.Outcome
}

// Scheduler issues a Scheduled request on every tick. Requests carry no URL;
// the pipeline substitutes its default.
type Scheduler struct {
	runner     Runner
	interval   time.Duration
	runOnStart bool
	logger     *zap.Logger
}

// New creates a Scheduler firing every interval.
func New(runner Runner, interval time.Duration, runOnStart bool, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		runner:     runner,
		interval:   interval,
		runOnStart: runOnStart,
		logger:     logger.Named("scheduler"),
	}
}

// Start blocks until ctx is canceled. Runs execute on the calling goroutine, so
// a tick that arrives during a long run is dropped by the ticker rather than
// queued behind it.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("scheduler started", zap.Duration("interval", s.interval), zap.Bool("run_on_start", s.runOnStart))
	defer s.logger.Info("scheduler stopped")

	if s.runOnStart {
		s.Tick(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick performs one scheduled run and logs its status report.
func (s *Scheduler) Tick(ctx context.Context) monitor.StatusReport {
	out := s.runner.Run(ctx, monitor.Request{Trigger: monitor.TriggerScheduled})
	report := out.Report()

	payload, err := json.Marshal(report)
	if err != nil {
		s.logger.Error("encode status report", zap.Error(err))
		return report
	}
	fields := []zap.Field{
		zap.String("run_id", out.RunID),
		zap.ByteString("report", payload),
	}
	if report.Success {
		s.logger.Info("scheduled run completed", fields...)
	} else {
		s.logger.Error("scheduled run failed", fields...)
	}
	return report
}
