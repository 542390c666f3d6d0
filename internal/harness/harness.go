package harness

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/seantiz/ballast/internal/backend"
	"github.com/seantiz/ballast/internal/model"
)

// Options configure a stress run.
type Options struct {
	// Count is the total number of tasks to drive.
	Count int

	// Parallel bounds how many tasks may be in create/start concurrently.
	// Zero means unbounded, i.e. a pool the size of Count.
	Parallel int

	// Timeout bounds the measurement phase only; setup time is excluded.
	// Zero disables the watchdog.
	Timeout time.Duration

	// Workload every task executes.
	Workload model.WorkloadSpec

	// CaptureOutput surfaces each task's output.
	CaptureOutput bool
}

// Harness drives Count identical task lifecycles against a shim under the
// configured admission limit and aggregates their outcomes.
type Harness struct {
	opts      Options
	admission *semaphore.Weighted
	setup     *barrier
	outcomes  chan error
	counters  *Counters
	notifier  Notifier
	logger    *slog.Logger
}

// New creates a harness. The counters may be shared with a status server;
// the notifier receives user-facing progress events.
func New(opts Options, counters *Counters, notifier Notifier, logger *slog.Logger) *Harness {
	permits := opts.Parallel
	if permits == 0 {
		permits = opts.Count
	}

	return &Harness{
		opts:      opts,
		admission: semaphore.NewWeighted(int64(permits)),
		// The orchestrator is the extra barrier party.
		setup:    newBarrier(opts.Count + 1),
		outcomes: make(chan error, opts.Count),
		counters: counters,
		notifier: notifier,
		logger:   logger,
	}
}

// Run spawns the drivers and runs the arbiter loop until all tasks have
// reported, the watchdog fires, or the context is cancelled. In-flight
// drivers are abandoned on early termination, not cancelled; this process
// is short-lived and exits right after.
func (h *Harness) Run(ctx context.Context, shim backend.Shim) Report {
	for i := 0; i < h.opts.Count; i++ {
		go h.runDriver(ctx, shim)
	}
	// All drivers are spawned; the orchestrator's arrival means the
	// barrier releases exactly when the slowest create completes.
	h.setup.arrive()

	h.notifier.SetupStarted()
	h.logger.Debug("drivers spawned", "count", h.opts.Count, "parallel", h.opts.Parallel)

	outcome := h.arbitrate(ctx)

	h.counters.setPhase(PhaseDone)
	h.notifier.Stopped(outcome)

	return h.aggregate(outcome)
}

// arbitrate is the control loop. It waits on four event sources and
// consumes exactly one ready source per iteration: the barrier release,
// the watchdog (armed only after the barrier releases), the external
// interrupt, and the stream of driver outcomes. It returns on the first
// of timeout, interrupt, or stream exhaustion.
func (h *Harness) arbitrate(ctx context.Context) Outcome {
	var (
		released    = h.setup.released()
		watchdog    <-chan time.Time
		timer       *time.Timer
		barrierDone bool
		reported    int
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-released:
			// One-shot: disable this case for subsequent iterations.
			released = nil
			barrierDone = true
			h.counters.setPhase(PhaseMeasuring)
			h.notifier.SetupDone()
			h.logger.Debug("setup complete, measuring")

			// Arm the watchdog only now so setup time never eats into the
			// measurement budget.
			if h.opts.Timeout > 0 {
				timer = time.NewTimer(h.opts.Timeout)
				watchdog = timer.C
			}

			if reported == h.opts.Count {
				return OutcomeAllReported
			}

		case <-watchdog:
			return OutcomeTimeout

		case <-ctx.Done():
			return OutcomeInterrupted

		case err := <-h.outcomes:
			reported++
			if err != nil {
				h.counters.addFailed()
				h.notifier.TaskFailed(reported, h.opts.Count, err)
			} else {
				h.counters.addSuccess()
				h.notifier.TaskOK(reported, h.opts.Count)
			}

			if barrierDone && reported == h.opts.Count {
				return OutcomeAllReported
			}
		}
	}
}

// aggregate builds the final report from the counters. Incomplete covers
// tasks whose outcome was never observed before the loop stopped.
func (h *Harness) aggregate(outcome Outcome) Report {
	snap := h.counters.Snapshot()

	rep := Report{
		Total:      h.opts.Count,
		Success:    snap.Success,
		Failed:     snap.Failed,
		Incomplete: h.opts.Count - snap.Success - snap.Failed,
		Outcome:    outcome,
	}

	if start, ok := h.counters.startedAt(); ok {
		rep.Measured = true
		rep.Elapsed = time.Since(start)
		if secs := rep.Elapsed.Seconds(); secs > 0 {
			rep.Throughput = float64(h.opts.Count) / secs
		}
	}
	return rep
}
