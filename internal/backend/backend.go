package backend

import (
	"context"

	"github.com/seantiz/ballast/internal/model"
)

// Backend is the interface that all task runtimes must implement. Each
// backend (the real containerd client, the in-process stand-in) provides
// its own implementation of these methods.
type Backend interface {
	// Name returns the registry name of this backend.
	Name() string

	// StartShim launches or connects to the runtime behind the given shim
	// binary and returns a handle for creating tasks on it. A failure here
	// is fatal to the whole run.
	StartShim(ctx context.Context, shimPath string) (Shim, error)

	// NeedsKeepalive reports whether the shim requires an idle task to be
	// created up front so it stays alive while individual tasks are torn down.
	NeedsKeepalive() bool
}

// Shim is a handle to a running shim, from which tasks are constructed.
type Shim interface {
	// NewTask constructs a task bound to the given workload. The task is
	// not created on the runtime until Task.Create is called.
	NewTask(ctx context.Context, spec model.WorkloadSpec) (Task, error)

	// Close releases the connection or process behind the handle.
	Close() error
}

// Task is one workload lifecycle instance. The four operations must be
// invoked strictly in order; each may fail with a backend error, after
// which the task is abandoned (no retry, no rollback of prior steps).
type Task interface {
	// ID returns the task's identifier.
	ID() string

	// Create materializes the task on the runtime. When captureOutput is
	// set, the task's standard output is surfaced to the harness process.
	Create(ctx context.Context, captureOutput bool) error

	// Start begins execution of the created task.
	Start(ctx context.Context) error

	// Wait blocks until the runtime reports the task has exited.
	Wait(ctx context.Context) error

	// Delete tears the task down on the runtime.
	Delete(ctx context.Context) error
}
