package containerd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/pkg/cio"
	"github.com/containerd/containerd/v2/pkg/namespaces"
	"github.com/containerd/containerd/v2/pkg/oci"
	"github.com/containerd/errdefs"

	"github.com/seantiz/ballast/internal/backend"
	"github.com/seantiz/ballast/internal/model"
)

// Config holds settings for the containerd backend.
type Config struct {
	// Address of the containerd socket. Defaults to DefaultAddress.
	Address string

	// Namespace tasks are created in. Defaults to DefaultNamespace.
	Namespace string
}

// Backend implements the backend capability interfaces against a containerd
// daemon, which manages the shim on our behalf.
type Backend struct {
	cfg    Config
	logger *slog.Logger
}

// NewBackend creates a containerd backend.
func NewBackend(cfg Config, logger *slog.Logger) *Backend {
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	return &Backend{cfg: cfg, logger: logger}
}

func (b *Backend) Name() string { return BackendName }

// NeedsKeepalive is true: without an idle task the shim exits once the last
// task is deleted, and the next create pays shim startup cost again.
func (b *Backend) NeedsKeepalive() bool { return true }

// StartShim connects to containerd and derives the runtime name from the
// shim binary path. The shim process itself is launched lazily by
// containerd on the first task create.
func (b *Backend) StartShim(ctx context.Context, shimPath string) (backend.Shim, error) {
	runtime, err := runtimeName(shimPath)
	if err != nil {
		return nil, err
	}

	cli, err := client.New(b.cfg.Address, client.WithTimeout(connectTimeout))
	if err != nil {
		return nil, fmt.Errorf("connect to containerd at %q: %w", b.cfg.Address, err)
	}

	b.logger.Debug("connected to containerd",
		"address", b.cfg.Address,
		"namespace", b.cfg.Namespace,
		"runtime", runtime,
	)

	return &Shim{
		cli:       cli,
		runtime:   runtime,
		namespace: b.cfg.Namespace,
		logger:    b.logger,
		images:    make(map[string]client.Image),
	}, nil
}

// runtimeName maps a shim binary path to its containerd runtime name:
// containerd-shim-<name>-<version> becomes io.containerd.<name>.<version>.
func runtimeName(shimPath string) (string, error) {
	base := filepath.Base(shimPath)
	trimmed := strings.TrimPrefix(base, shimPrefix)
	if trimmed == base || trimmed == "" {
		return "", fmt.Errorf("shim binary %q does not follow the containerd-shim-<name>-<version> naming convention", base)
	}
	i := strings.LastIndex(trimmed, "-")
	if i <= 0 || i == len(trimmed)-1 {
		return "", fmt.Errorf("shim binary %q is missing a version suffix", base)
	}
	return runtimePrefix + trimmed[:i] + "." + trimmed[i+1:], nil
}

// Shim is a connection to containerd bound to one runtime. Images are
// pulled once per reference and shared across tasks.
type Shim struct {
	cli       *client.Client
	runtime   string
	namespace string
	logger    *slog.Logger

	mu     sync.Mutex
	images map[string]client.Image
}

func (s *Shim) NewTask(ctx context.Context, spec model.WorkloadSpec) (backend.Task, error) {
	ctx = namespaces.WithNamespace(ctx, s.namespace)

	img, err := s.image(ctx, spec.Image)
	if err != nil {
		return nil, err
	}

	return &Task{
		shim:  s,
		id:    "ballast-" + strings.ToLower(model.NewID()),
		image: img,
		args:  spec.Args,
	}, nil
}

// image returns the pulled image for ref, pulling and unpacking it on
// first use.
func (s *Shim) image(ctx context.Context, ref string) (client.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if img, ok := s.images[ref]; ok {
		return img, nil
	}

	s.logger.Info("pulling image", "ref", ref)
	img, err := s.cli.Pull(ctx, ref, client.WithPullUnpack)
	if err != nil {
		return nil, fmt.Errorf("pull %q: %w", ref, err)
	}
	s.images[ref] = img
	return img, nil
}

func (s *Shim) Close() error {
	return s.cli.Close()
}

// Task drives one container+task pair on containerd.
type Task struct {
	shim  *Shim
	id    string
	image client.Image
	args  []string

	container client.Container
	task      client.Task
	exitCh    <-chan client.ExitStatus
}

func (t *Task) ID() string { return t.id }

func (t *Task) Create(ctx context.Context, captureOutput bool) error {
	ctx = namespaces.WithNamespace(ctx, t.shim.namespace)

	container, err := t.shim.cli.NewContainer(ctx, t.id,
		client.WithNewSnapshot(t.id+snapshotSuffix, t.image),
		client.WithNewSpec(
			oci.WithImageConfig(t.image),
			oci.WithProcessArgs(t.args...),
		),
		client.WithRuntime(t.shim.runtime, nil),
	)
	if err != nil {
		return fmt.Errorf("create container: %w", err)
	}
	t.container = container

	ioCreator := cio.NullIO
	if captureOutput {
		ioCreator = cio.NewCreator(cio.WithStdio)
	}

	task, err := container.NewTask(ctx, ioCreator)
	if err != nil {
		// The container exists but the task does not; remove the container
		// so a retry of the whole run does not collide on the ID.
		if derr := container.Delete(ctx, client.WithSnapshotCleanup); derr != nil && !errdefs.IsNotFound(derr) {
			t.shim.logger.Warn("cleanup after failed task create", "task_id", t.id, "error", derr)
		}
		return fmt.Errorf("create task: %w", err)
	}
	t.task = task

	// Subscribe to the exit status before Start so the exit event cannot
	// be missed for fast workloads.
	exitCh, err := task.Wait(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to task exit: %w", err)
	}
	t.exitCh = exitCh

	return nil
}

func (t *Task) Start(ctx context.Context) error {
	ctx = namespaces.WithNamespace(ctx, t.shim.namespace)
	if err := t.task.Start(ctx); err != nil {
		return fmt.Errorf("start task: %w", err)
	}
	return nil
}

func (t *Task) Wait(ctx context.Context) error {
	select {
	case status := <-t.exitCh:
		code, _, err := status.Result()
		if err != nil {
			return fmt.Errorf("task exit: %w", err)
		}
		if code != 0 {
			return fmt.Errorf("task exited with status %d", code)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Task) Delete(ctx context.Context) error {
	ctx = namespaces.WithNamespace(ctx, t.shim.namespace)

	if _, err := t.task.Delete(ctx); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("delete task: %w", err)
	}
	if err := t.container.Delete(ctx, client.WithSnapshotCleanup); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("delete container: %w", err)
	}
	return nil
}

// Compile-time checks against the capability interfaces.
var (
	_ backend.Backend = (*Backend)(nil)
	_ backend.Shim    = (*Shim)(nil)
	_ backend.Task    = (*Task)(nil)
)
