package harness

import (
	"errors"
	"time"
)

// Outcome is the arbiter's stop reason.
type Outcome string

const (
	// OutcomeAllReported means every driver reported before the watchdog
	// or an interrupt fired.
	OutcomeAllReported Outcome = "all-reported"

	// OutcomeTimeout means the watchdog fired during the measurement phase.
	OutcomeTimeout Outcome = "timeout"

	// OutcomeInterrupted means an external stop signal arrived.
	OutcomeInterrupted Outcome = "interrupted"
)

// Sentinel errors distinguishing the failure exits of a run.
var (
	ErrTasksFailed = errors.New("some tasks did not succeed")
	ErrTimeout     = errors.New("run timed out")
	ErrInterrupted = errors.New("run interrupted")
)

// Report is the aggregate result of one run. Counts always satisfy
// Success + Failed + Incomplete == Total.
type Report struct {
	Total      int
	Success    int
	Failed     int
	Incomplete int

	// Measured is false when no task ever reached admission (for example a
	// zero-task run), in which case Elapsed and Throughput are zero.
	Measured   bool
	Elapsed    time.Duration
	Throughput float64

	Outcome Outcome
}

// Succeeded reports whether every task completed its lifecycle.
func (r Report) Succeeded() bool {
	return r.Success == r.Total
}

// Err maps the report to a process-level error: nil on full success,
// otherwise the sentinel matching the stop reason.
func (r Report) Err() error {
	switch {
	case r.Outcome == OutcomeTimeout:
		return ErrTimeout
	case r.Outcome == OutcomeInterrupted:
		return ErrInterrupted
	case !r.Succeeded():
		return ErrTasksFailed
	default:
		return nil
	}
}
