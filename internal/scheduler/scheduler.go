package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aashrilshazar/WorldSalesMap/internal/newsjob"
)

// Scheduler drives a news refresh job to completion on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	stepper  newsjob.Stepper
	spec     string
	maxSteps int
	pause    time.Duration
	entryID  cron.EntryID

	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(stepper newsjob.Stepper, spec string, maxSteps int, pause time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		ctx:      ctx,
		cancel:   cancel,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		stepper:  stepper,
		spec:     spec,
		maxSteps: maxSteps,
		pause:    pause,
	}
}

func (s *Scheduler) Start() error {
	id, err := s.cron.AddFunc(s.spec, func() {
		s.RunOnce(s.ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.spec, err)
	}
	s.entryID = id

	s.cron.Start()
	slog.Info("scheduler started", "schedule", s.spec, "next", s.NextRun())
	return nil
}

// RunOnce steps the current job until it stops running. Errors are logged.
func (s *Scheduler) RunOnce(ctx context.Context) {
	slog.Info("scheduled refresh starting")

	res, err := newsjob.RunToCompletion(ctx, s.stepper, s.maxSteps, s.pause)
	if err != nil {
		slog.Error("scheduled refresh failed", "error", err)
		return
	}
	slog.Info("scheduled refresh finished", "status", res.Status, "items", len(res.Items))
}

// NextRun returns the zero time until Start has registered the entry.
func (s *Scheduler) NextRun() time.Time {
	return s.cron.Entry(s.entryID).Next
}

// Stop interrupts a running refresh between firms and waits for it to
// return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}
