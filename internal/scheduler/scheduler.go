// Package scheduler drives recurring chain verification. One worker
// goroutine serves both the interval ticker and manual triggers; runs are
// independent, so an overlapping manual API-triggered run is harmless.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/clarimed/auditchain/internal/service"
)

type Config struct {
	Interval    time.Duration
	Incremental bool
}

type Scheduler struct {
	verification *service.VerificationService
	cfg          Config
	logger       *slog.Logger
	trigger      chan struct{}
	stop         chan struct{}
	waitGroup    sync.WaitGroup
}

func New(verification *service.VerificationService, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &Scheduler{
		verification: verification,
		cfg:          cfg,
		logger:       logger,
		trigger:      make(chan struct{}, 1),
		stop:         make(chan struct{}),
	}
}

// Start begins the verification worker.
func (s *Scheduler) Start() {
	s.waitGroup.Add(1)
	go s.worker()
	s.logger.Info("verification scheduler started", "interval", s.cfg.Interval.String())
}

// Stop shuts the worker down and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	close(s.stop)
	s.waitGroup.Wait()
	s.logger.Info("verification scheduler stopped")
}

// TriggerNow requests an immediate verification pass. Non-blocking; if a
// trigger is already pending the request coalesces with it.
func (s *Scheduler) TriggerNow() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Scheduler) worker() {
	defer s.waitGroup.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.runOnce("schedule")
		case <-s.trigger:
			s.runOnce("manual")
		}
	}
}

func (s *Scheduler) runOnce(trigger string) {
	ctx := context.Background()
	run, err := s.verification.Run(ctx, service.VerificationOptions{Incremental: s.cfg.Incremental})
	if err != nil {
		s.logger.ErrorContext(ctx, "scheduled verification failed to execute",
			"trigger", trigger, "error", err.Error())
		return
	}
	s.logger.InfoContext(ctx, "verification run completed",
		"trigger", trigger,
		"run_id", run.ID.String(),
		"intact", run.Intact,
		"total_entries", run.TotalEntries,
	)
}
