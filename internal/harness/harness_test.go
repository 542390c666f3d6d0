package harness

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/seantiz/ballast/internal/backend/mock"
	"github.com/seantiz/ballast/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// recordingNotifier captures progress events for assertions.
type recordingNotifier struct {
	mu         sync.Mutex
	setupDone  int
	okLines    []int
	failLines  []int
	stopReason Outcome
}

func (r *recordingNotifier) SetupStarted() {}

func (r *recordingNotifier) SetupDone() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setupDone++
}

func (r *recordingNotifier) TaskOK(reported, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.okLines = append(r.okLines, reported)
}

func (r *recordingNotifier) TaskFailed(reported, _ int, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failLines = append(r.failLines, reported)
}

func (r *recordingNotifier) Stopped(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopReason = o
}

// runHarness drives a run against the stand-in backend and returns the report.
func runHarness(t *testing.T, ctx context.Context, opts Options, mockOpts mock.Options, n Notifier) Report {
	t.Helper()

	b := mock.New(mockOpts, testLogger())
	shim, err := b.StartShim(ctx, "/bin/true")
	if err != nil {
		t.Fatalf("StartShim: %v", err)
	}

	if opts.Workload.Image == "" {
		opts.Workload = model.WorkloadSpec{Image: "example:latest"}
	}
	if n == nil {
		n = NopNotifier{}
	}

	h := New(opts, NewCounters(opts.Count), n, testLogger())
	return h.Run(ctx, shim)
}

func assertCounts(t *testing.T, rep Report, success, failed, incomplete int) {
	t.Helper()
	if rep.Success != success || rep.Failed != failed || rep.Incomplete != incomplete {
		t.Errorf("counts = (%d, %d, %d), want (%d, %d, %d)",
			rep.Success, rep.Failed, rep.Incomplete, success, failed, incomplete)
	}
	if rep.Success+rep.Failed+rep.Incomplete != rep.Total {
		t.Errorf("success+failed+incomplete = %d, want total %d",
			rep.Success+rep.Failed+rep.Incomplete, rep.Total)
	}
}

func TestRunAllSucceed(t *testing.T) {
	rep := runHarness(t, context.Background(),
		Options{Count: 5, Parallel: 1},
		mock.Options{}, nil)

	assertCounts(t, rep, 5, 0, 0)
	if rep.Outcome != OutcomeAllReported {
		t.Errorf("outcome = %q, want %q", rep.Outcome, OutcomeAllReported)
	}
	if err := rep.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
	if !rep.Measured {
		t.Error("run was not measured")
	}
	if rep.Throughput <= 0 {
		t.Errorf("throughput = %v, want > 0", rep.Throughput)
	}
}

func TestRunSingleStartFailure(t *testing.T) {
	injected := errors.New("injected start failure")
	notifier := &recordingNotifier{}

	rep := runHarness(t, context.Background(),
		Options{Count: 3, Parallel: 3},
		mock.Options{
			FailStart: func(ordinal int) error {
				if ordinal == 1 {
					return injected
				}
				return nil
			},
		}, notifier)

	assertCounts(t, rep, 2, 1, 0)
	if !errors.Is(rep.Err(), ErrTasksFailed) {
		t.Errorf("Err() = %v, want %v", rep.Err(), ErrTasksFailed)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.failLines) != 1 {
		t.Fatalf("failure printed %d times, want exactly once", len(notifier.failLines))
	}
	pos := notifier.failLines[0]
	if pos < 1 || pos > 3 {
		t.Errorf("failure position = %d, want within [1, 3]", pos)
	}
}

func TestRunTimeoutLeavesIncomplete(t *testing.T) {
	rep := runHarness(t, context.Background(),
		Options{Count: 10, Parallel: 2, Timeout: 10 * time.Millisecond},
		mock.Options{BlockWait: true}, nil)

	if rep.Outcome != OutcomeTimeout {
		t.Fatalf("outcome = %q, want %q", rep.Outcome, OutcomeTimeout)
	}
	if rep.Incomplete == 0 {
		t.Error("incomplete = 0, want > 0 after timeout")
	}
	if !errors.Is(rep.Err(), ErrTimeout) {
		t.Errorf("Err() = %v, want %v", rep.Err(), ErrTimeout)
	}
	// Run returned at all: admission pool exhaustion did not livelock
	// shutdown even though every task's wait hangs forever.
}

func TestRunInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan Report, 1)
	go func() {
		done <- runHarness(t, ctx,
			Options{Count: 4, Parallel: 0},
			mock.Options{BlockWait: true}, nil)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case rep := <-done:
		if rep.Outcome != OutcomeInterrupted {
			t.Errorf("outcome = %q, want %q", rep.Outcome, OutcomeInterrupted)
		}
		if !errors.Is(rep.Err(), ErrInterrupted) {
			t.Errorf("Err() = %v, want %v", rep.Err(), ErrInterrupted)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after interrupt")
	}
}

func TestRunCreateFailureDoesNotHang(t *testing.T) {
	// A task whose construction fails must still arrive at the setup
	// barrier, or every sibling deadlocks waiting for it.
	injected := errors.New("construction refused")

	done := make(chan Report, 1)
	go func() {
		done <- runHarness(t, context.Background(),
			Options{Count: 3, Parallel: 1},
			mock.Options{
				FailNewTask: func(ordinal int) error {
					if ordinal == 0 {
						return injected
					}
					return nil
				},
			}, nil)
	}()

	select {
	case rep := <-done:
		assertCounts(t, rep, 2, 1, 0)
		if rep.Outcome != OutcomeAllReported {
			t.Errorf("outcome = %q, want %q", rep.Outcome, OutcomeAllReported)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run hung on a create-step failure")
	}
}

func TestRunZeroTasks(t *testing.T) {
	rep := runHarness(t, context.Background(), Options{Count: 0}, mock.Options{}, nil)

	assertCounts(t, rep, 0, 0, 0)
	if rep.Measured {
		t.Error("zero-task run reported a measurement")
	}
	if rep.Throughput != 0 {
		t.Errorf("throughput = %v, want 0", rep.Throughput)
	}
	if err := rep.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestAdmissionBound(t *testing.T) {
	// The permit is held across create and start; probe concurrency by
	// counting tasks between create entry and start entry.
	const parallel = 2

	var (
		mu       sync.Mutex
		inflight int
		peak     int
	)

	rep := runHarness(t, context.Background(),
		Options{Count: 8, Parallel: parallel},
		mock.Options{
			CreateDelay: 5 * time.Millisecond,
			StartDelay:  5 * time.Millisecond,
			FailCreate: func(int) error {
				mu.Lock()
				inflight++
				if inflight > peak {
					peak = inflight
				}
				mu.Unlock()
				return nil
			},
			FailStart: func(int) error {
				mu.Lock()
				inflight--
				mu.Unlock()
				return nil
			},
		}, nil)

	assertCounts(t, rep, 8, 0, 0)

	mu.Lock()
	defer mu.Unlock()
	if peak > parallel {
		t.Errorf("peak admitted tasks = %d, want <= %d", peak, parallel)
	}
	if peak < 1 {
		t.Errorf("peak admitted tasks = %d, probe never fired", peak)
	}
}

func TestPermitReleasedAfterFailedStart(t *testing.T) {
	// With parallel = 1, a leaked permit on the failure path would wedge
	// every remaining task; completion of the run proves the release.
	injected := errors.New("injected start failure")

	done := make(chan Report, 1)
	go func() {
		done <- runHarness(t, context.Background(),
			Options{Count: 4, Parallel: 1},
			mock.Options{
				FailStart: func(ordinal int) error {
					if ordinal == 0 {
						return injected
					}
					return nil
				},
			}, nil)
	}()

	select {
	case rep := <-done:
		assertCounts(t, rep, 3, 1, 0)
	case <-time.After(5 * time.Second):
		t.Fatal("run wedged: permit leaked on the failed-start path")
	}
}

func TestMeasurementStartsAfterSetup(t *testing.T) {
	// The measurement instant is recorded at the first admission grant,
	// which the barrier orders after every construction has completed.
	var (
		mu         sync.Mutex
		lastCreate time.Time
	)

	b := mock.New(mock.Options{
		FailNewTask: func(int) error {
			mu.Lock()
			lastCreate = time.Now()
			mu.Unlock()
			return nil
		},
	}, testLogger())

	shim, err := b.StartShim(context.Background(), "/bin/true")
	if err != nil {
		t.Fatalf("StartShim: %v", err)
	}

	counters := NewCounters(6)
	h := New(Options{Count: 6, Parallel: 2, Workload: model.WorkloadSpec{Image: "img"}},
		counters, NopNotifier{}, testLogger())

	rep := h.Run(context.Background(), shim)
	assertCounts(t, rep, 6, 0, 0)

	start, ok := counters.startedAt()
	if !ok {
		t.Fatal("measurement start was never recorded")
	}
	mu.Lock()
	defer mu.Unlock()
	if start.Before(lastCreate) {
		t.Errorf("measurement start %v precedes last create completion %v", start, lastCreate)
	}
}

func TestCountersSnapshot(t *testing.T) {
	c := NewCounters(3)

	snap := c.Snapshot()
	if snap.Phase != PhaseSetup {
		t.Errorf("initial phase = %q, want %q", snap.Phase, PhaseSetup)
	}
	if snap.Pending != 3 {
		t.Errorf("initial pending = %d, want 3", snap.Pending)
	}

	c.setPhase(PhaseMeasuring)
	c.markStarted(time.Now().Add(-time.Second))
	c.addSuccess()
	c.addFailed()

	snap = c.Snapshot()
	if snap.Success != 1 || snap.Failed != 1 || snap.Pending != 1 {
		t.Errorf("snapshot = %+v, want success=1 failed=1 pending=1", snap)
	}
	if snap.ElapsedMS < 900 {
		t.Errorf("elapsed_ms = %d, want >= 900", snap.ElapsedMS)
	}

	// markStarted is set-if-absent; a later call must not move the instant.
	first, _ := c.startedAt()
	c.markStarted(time.Now())
	second, _ := c.startedAt()
	if !first.Equal(second) {
		t.Error("markStarted overwrote the recorded start instant")
	}
}

func TestReportErrMapping(t *testing.T) {
	tests := []struct {
		name string
		rep  Report
		want error
	}{
		{"full success", Report{Total: 5, Success: 5, Outcome: OutcomeAllReported}, nil},
		{"task failures", Report{Total: 5, Success: 4, Failed: 1, Outcome: OutcomeAllReported}, ErrTasksFailed},
		{"timeout", Report{Total: 5, Success: 2, Incomplete: 3, Outcome: OutcomeTimeout}, ErrTimeout},
		{"interrupt", Report{Total: 5, Outcome: OutcomeInterrupted}, ErrInterrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.rep.Err()
			if tt.want == nil {
				if got != nil {
					t.Errorf("Err() = %v, want nil", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("Err() = %v, want %v", got, tt.want)
			}
		})
	}
}
