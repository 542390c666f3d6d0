// Package mock provides a deterministic in-process stand-in for a real task
// runtime. The default behavior succeeds instantly; Options expose fault
// injection and delays so the harness's own tests can script failures.
package mock

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/seantiz/ballast/internal/backend"
	"github.com/seantiz/ballast/internal/model"
)

// BackendName is the name used when registering with the backend registry.
const BackendName = "mock"

// Options configure the stand-in's behavior. All hooks receive the task's
// ordinal (0-based, in NewTask call order) and are optional; a nil hook
// means the step succeeds.
type Options struct {
	// ExecArgs runs the workload arguments as a local subprocess during
	// Wait, so the stand-in performs real work instead of sleeping.
	ExecArgs bool

	// BlockWait makes Wait block until the context is cancelled. Used to
	// simulate tasks that never finish.
	BlockWait bool

	// Per-step delays, applied before the step's hook runs.
	CreateDelay time.Duration
	StartDelay  time.Duration
	WaitDelay   time.Duration

	// Fault-injection hooks. A non-nil error fails the step.
	FailNewTask func(ordinal int) error
	FailCreate  func(ordinal int) error
	FailStart   func(ordinal int) error
	FailWait    func(ordinal int) error
	FailDelete  func(ordinal int) error
}

// Backend is the in-process stand-in runtime.
type Backend struct {
	opts   Options
	logger *slog.Logger
}

// New creates a stand-in backend with the given behavior.
func New(opts Options, logger *slog.Logger) *Backend {
	return &Backend{opts: opts, logger: logger}
}

func (b *Backend) Name() string { return BackendName }

// NeedsKeepalive is false: there is no external shim process to keep alive.
func (b *Backend) NeedsKeepalive() bool { return false }

// StartShim returns an in-process shim handle. The shim path is recorded
// but never executed.
func (b *Backend) StartShim(_ context.Context, shimPath string) (backend.Shim, error) {
	b.logger.Debug("mock shim started", "shim_path", shimPath)
	return &Shim{backend: b, shimPath: shimPath}, nil
}

// Shim is an in-process shim handle. It hands out ordinals in NewTask call
// order so fault hooks can target a specific task.
type Shim struct {
	backend  *Backend
	shimPath string
	next     atomic.Int64
}

func (s *Shim) NewTask(_ context.Context, spec model.WorkloadSpec) (backend.Task, error) {
	ordinal := int(s.next.Add(1) - 1)
	if hook := s.backend.opts.FailNewTask; hook != nil {
		if err := hook(ordinal); err != nil {
			return nil, fmt.Errorf("new task %d: %w", ordinal, err)
		}
	}
	return &Task{
		backend: s.backend,
		id:      model.NewID(),
		ordinal: ordinal,
		spec:    spec,
		state:   model.StateUnstarted,
	}, nil
}

func (s *Shim) Close() error { return nil }

// Task is an in-process task. State transitions are validated against the
// model's transition table, so out-of-order lifecycle calls are errors.
type Task struct {
	backend *Backend
	id      string
	ordinal int
	spec    model.WorkloadSpec

	mu      sync.Mutex
	state   string
	capture bool
}

func (t *Task) ID() string { return t.id }

func (t *Task) transition(to string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !model.ValidTransition(t.state, to) {
		return fmt.Errorf("task %s: invalid transition %s -> %s", t.id, t.state, to)
	}
	t.state = to
	return nil
}

// State returns the task's current lifecycle state.
func (t *Task) State() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Task) Create(ctx context.Context, captureOutput bool) error {
	if err := sleep(ctx, t.backend.opts.CreateDelay); err != nil {
		return err
	}
	if hook := t.backend.opts.FailCreate; hook != nil {
		if err := hook(t.ordinal); err != nil {
			return fmt.Errorf("create: %w", err)
		}
	}
	t.mu.Lock()
	t.capture = captureOutput
	t.mu.Unlock()
	return t.transition(model.StateCreated)
}

func (t *Task) Start(ctx context.Context) error {
	if err := sleep(ctx, t.backend.opts.StartDelay); err != nil {
		return err
	}
	if hook := t.backend.opts.FailStart; hook != nil {
		if err := hook(t.ordinal); err != nil {
			return fmt.Errorf("start: %w", err)
		}
	}
	return t.transition(model.StateStarted)
}

func (t *Task) Wait(ctx context.Context) error {
	if t.backend.opts.BlockWait {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := sleep(ctx, t.backend.opts.WaitDelay); err != nil {
		return err
	}
	if hook := t.backend.opts.FailWait; hook != nil {
		if err := hook(t.ordinal); err != nil {
			return fmt.Errorf("wait: %w", err)
		}
	}
	if t.backend.opts.ExecArgs {
		if err := t.execArgs(ctx); err != nil {
			return fmt.Errorf("wait: %w", err)
		}
	}
	return t.transition(model.StateWaited)
}

func (t *Task) Delete(_ context.Context) error {
	if hook := t.backend.opts.FailDelete; hook != nil {
		if err := hook(t.ordinal); err != nil {
			return fmt.Errorf("delete: %w", err)
		}
	}
	return t.transition(model.StateDeleted)
}

// execArgs runs the workload arguments as a local subprocess, standing in
// for the container the real backend would run.
func (t *Task) execArgs(ctx context.Context) error {
	if len(t.spec.Args) == 0 {
		return nil
	}

	cmd := exec.CommandContext(ctx, t.spec.Args[0], t.spec.Args[1:]...)
	t.mu.Lock()
	capture := t.capture
	t.mu.Unlock()
	if capture {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	} else {
		cmd.Stdout = io.Discard
		cmd.Stderr = io.Discard
	}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("exec %q: %w", t.spec.Args[0], err)
	}
	return nil
}

// sleep pauses for d, returning early if the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Compile-time checks against the capability interfaces.
var (
	_ backend.Backend = (*Backend)(nil)
	_ backend.Shim    = (*Shim)(nil)
	_ backend.Task    = (*Task)(nil)
)
