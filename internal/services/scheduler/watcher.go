// Package scheduler repeats the diagnostic on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mapcheck/internal/common"
	"github.com/ternarybob/mapcheck/internal/models"
)

// RunFunc performs one independent diagnostic run
type RunFunc func(ctx context.Context) (*models.Report, error)

// Watcher runs a RunFunc on a schedule. Ticks never overlap.
type Watcher struct {
	schedule string
	run      RunFunc
	logger   arbor.ILogger
	cron     *cron.Cron
	cancel   context.CancelFunc
	mu       sync.Mutex
	tickMu   sync.Mutex
	running  bool
	lastRun  *time.Time
	ticks    int
	failures int
}

// NewWatcher creates a watcher; the schedule uses a leading seconds field
func NewWatcher(schedule string, run RunFunc, logger arbor.ILogger) *Watcher {
	return &Watcher{
		schedule: schedule,
		run:      run,
		logger:   logger,
	}
}

// Start registers the schedule and starts the cron loop
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	c := cron.New(
		cron.WithParser(common.ScheduleParser()),
		cron.WithChain(cron.SkipIfStillRunning(&cronLogger{logger: w.logger})),
	)

	runCtx, cancel := context.WithCancel(ctx)
	if _, err := c.AddFunc(w.schedule, func() { w.Tick(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("failed to add watch schedule: %w", err)
	}

	c.Start()
	w.cron = c
	w.cancel = cancel
	w.running = true

	w.logger.Info().Str("schedule", w.schedule).Msg("Watch mode started")
	return nil
}

// Tick performs one run with panic recovery. A tick requested while
// another is in flight is skipped.
func (w *Watcher) Tick(ctx context.Context) {
	if !w.tickMu.TryLock() {
		w.logger.Debug().Msg("Watch run already in progress, skipping")
		return
	}
	defer w.tickMu.Unlock()

	started := time.Now()

	var report *models.Report
	var err error
	ok := common.SafeRun(w.logger, "watch-tick", func() {
		report, err = w.run(ctx)
	})

	w.mu.Lock()
	w.ticks++
	w.lastRun = &started
	failed := !ok || err != nil || (report != nil && report.HasFailures())
	if failed {
		w.failures++
	}
	w.mu.Unlock()

	switch {
	case !ok:
		// SafeRun already logged the panic
	case err != nil:
		w.logger.Error().Err(err).Msg("Watch run failed")
	case report != nil:
		w.logger.Info().
			Str("run_id", report.RunID).
			Bool("has_failures", report.HasFailures()).
			Bool("has_warnings", report.HasWarnings()).
			Dur("duration", time.Since(started)).
			Msg("Watch run completed")
	}
}

// Stop halts the schedule and waits for an in-flight run to finish
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	c := w.cron
	w.running = false
	w.mu.Unlock()

	<-c.Stop().Done()
	w.cancel()
	w.logger.Info().Msg("Watch mode stopped")
}

// Stats reports tick counters
func (w *Watcher) Stats() map[string]interface{} {
	w.mu.Lock()
	defer w.mu.Unlock()

	stats := map[string]interface{}{
		"schedule": w.schedule,
		"running":  w.running,
		"ticks":    w.ticks,
		"failures": w.failures,
		// process-wide, includes panics recovered outside this watcher
		"recovered_panics": common.GetRecoveredPanicCount(),
	}
	if w.lastRun != nil {
		stats["last_run"] = *w.lastRun
	}
	return stats
}

// cronLogger adapts arbor to cron.Logger
type cronLogger struct {
	logger arbor.ILogger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Str("fields", fmt.Sprint(keysAndValues...)).Msg("cron: " + msg)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Str("fields", fmt.Sprint(keysAndValues...)).Msg("cron: " + msg)
}
