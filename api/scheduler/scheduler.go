package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const sweepTimeout = 5 * time.Minute

// Reconciler closes sessions whose teardown was missed or interrupted
type Reconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

// Scheduler handles periodic background jobs for LFG sessions
type Scheduler struct {
	cron     *cron.Cron
	sessions Reconciler
	spec     string
}

// NewScheduler creates a new scheduler that sweeps sessions on spec
func NewScheduler(sessions Reconciler, spec string) *Scheduler {
	logger := zapLogger{}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		sessions: sessions,
		spec:     spec,
	}
}

// Start runs the startup reconciliation scan and then schedules the
// periodic idle sweep
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.sweep); err != nil {
		return fmt.Errorf("failed to register idle sweep job: %w", err)
	}

	s.sweep()

	s.cron.Start()
	zap.S().Infow("session scheduler started", "spec", s.spec)
	return nil
}

// Stop gracefully stops the scheduler, waiting for a running sweep
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("session scheduler stopped")
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	start := time.Now()
	closed, err := s.sessions.Reconcile(ctx)
	if err != nil {
		zap.S().Errorw("session sweep failed", "closed", closed, "error", err)
		return
	}
	if closed > 0 {
		zap.S().Infow("session sweep closed sessions", "closed", closed, "took", time.Since(start))
		return
	}
	zap.S().Debugw("session sweep found nothing to close", "took", time.Since(start))
}

// zapLogger routes cron's own logging through the global zap logger
type zapLogger struct{}

func (zapLogger) Info(msg string, keysAndValues ...interface{}) {
	zap.S().Debugw(msg, keysAndValues...)
}

func (zapLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	zap.S().Errorw(msg, append(keysAndValues, "error", err)...)
}
