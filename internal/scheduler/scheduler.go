// Package scheduler drives evaluation cycles on a fixed interval and on demand.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/finsightx/alert-engine/internal/evaluator"
	"github.com/finsightx/alert-engine/internal/metrics"
)

// Defaults for Config.
const (
	DefaultInterval     = time.Minute
	DefaultMaxOverlap   = 2
	DefaultCycleTimeout = 5 * time.Minute
)

// CycleRunner runs one evaluation cycle. *evaluator.Evaluator satisfies it.
type CycleRunner interface {
	RunCycle(ctx context.Context) (*evaluator.CycleResult, error)
}

// Config controls cycle timing.
type Config struct {
	Interval time.Duration
	// MaxOverlap caps how many cycles may be in flight at once. Overlap is
	// safe because the trigger guard in the store deduplicates alerts.
	MaxOverlap   int
	CycleTimeout time.Duration
	RunOnStart   bool
}

// Scheduler runs cycles on every tick and on TriggerNow.
type Scheduler struct {
	runner  CycleRunner
	cfg     Config
	slots   chan struct{}
	trigger chan struct{}
	wg      sync.WaitGroup
}

// New creates a scheduler.
func New(runner CycleRunner, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxOverlap <= 0 {
		cfg.MaxOverlap = DefaultMaxOverlap
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = DefaultCycleTimeout
	}
	return &Scheduler{
		runner:  runner,
		cfg:     cfg,
		slots:   make(chan struct{}, cfg.MaxOverlap),
		trigger: make(chan struct{}, 1),
	}
}

// TriggerNow requests an immediate cycle. Requests made while one is already
// pending are coalesced.
func (s *Scheduler) TriggerNow() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled, then waits for in-flight cycles.
func (s *Scheduler) Run(ctx context.Context) {
	slog.Info("Starting evaluation scheduler",
		"interval", s.cfg.Interval,
		"max_overlap", s.cfg.MaxOverlap,
		"cycle_timeout", s.cfg.CycleTimeout,
	)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	if s.cfg.RunOnStart {
		s.launch(ctx, "start")
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("Evaluation scheduler stopping, waiting for in-flight cycles")
			s.wg.Wait()
			slog.Info("Evaluation scheduler stopped")
			return
		case <-ticker.C:
			s.launch(ctx, "tick")
		case <-s.trigger:
			s.launch(ctx, "trigger")
		}
	}
}

// launch starts a cycle if a slot is free. It reports whether a cycle started.
func (s *Scheduler) launch(ctx context.Context, reason string) bool {
	select {
	case s.slots <- struct{}{}:
	default:
		metrics.EvaluationCyclesTotal.WithLabelValues("skipped").Inc()
		slog.Warn("Skipping evaluation cycle, too many cycles in flight",
			"reason", reason,
			"max_overlap", s.cfg.MaxOverlap,
		)
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { <-s.slots }()

		cycleCtx, cancel := context.WithTimeout(ctx, s.cfg.CycleTimeout)
		defer cancel()

		slog.Debug("Starting evaluation cycle", "reason", reason)
		if _, err := s.runner.RunCycle(cycleCtx); err != nil {
			metrics.EvaluationCyclesTotal.WithLabelValues("failed").Inc()
			slog.Error("Evaluation cycle failed", "reason", reason, "error", err)
			return
		}
		metrics.EvaluationCyclesTotal.WithLabelValues("completed").Inc()
	}()
	return true
}
