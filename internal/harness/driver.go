package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/seantiz/ballast/internal/backend"
)

// runDriver executes one task lifecycle and reports its outcome on the
// outcomes channel. The channel is buffered to the task count, so the send
// never blocks even after the arbiter has stopped consuming.
func (h *Harness) runDriver(ctx context.Context, shim backend.Shim) {
	h.outcomes <- h.driveTask(ctx, shim)
}

// driveTask sequences create, barrier rendezvous, admission, start, wait
// and delete for a single task. The first failing step short-circuits the
// rest; there is no rollback of earlier steps.
func (h *Harness) driveTask(ctx context.Context, shim backend.Shim) error {
	// Construct the task bundle before measurement starts; this is setup
	// work, not work done by the shim.
	task, err := shim.NewTask(ctx, h.opts.Workload)
	if err != nil {
		// Still arrive at the barrier so siblings are not stranded waiting
		// on a party that will never show up. The failure is reported once
		// the barrier releases.
		h.setup.wait()
		return fmt.Errorf("new task: %w", err)
	}

	// Rendezvous with all peers before any task is admitted.
	h.setup.wait()

	if err := h.admitAndStart(ctx, task); err != nil {
		return err
	}

	if err := task.Wait(ctx); err != nil {
		return fmt.Errorf("wait: %w", err)
	}
	if err := task.Delete(ctx); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// admitAndStart holds an admission permit across create and start only.
// The deferred release makes a permit leak structurally impossible on the
// failure paths; wait and delete run unadmitted so slow tasks do not
// starve admission.
func (h *Harness) admitAndStart(ctx context.Context, task backend.Task) error {
	if err := h.admission.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("admission: %w", err)
	}
	defer h.admission.Release(1)

	// The first admission grant marks the start of the measured phase.
	h.counters.markStarted(time.Now())

	if err := task.Create(ctx, h.opts.CaptureOutput); err != nil {
		return fmt.Errorf("create: %w", err)
	}
	if err := task.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	return nil
}
