package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/seantiz/ballast/internal/api"
	"github.com/seantiz/ballast/internal/backend"
	containerdbackend "github.com/seantiz/ballast/internal/backend/containerd"
	"github.com/seantiz/ballast/internal/backend/mock"
	"github.com/seantiz/ballast/internal/config"
	"github.com/seantiz/ballast/internal/harness"
	"github.com/seantiz/ballast/internal/model"
	"github.com/seantiz/ballast/internal/progress"
)

// run wires the backend, status server and harness together and executes
// one stress run. Per-task failures are absorbed into the report; only
// backend startup errors and stop conditions surface here.
func run(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := config.NewLogger(os.Stderr, cfg.LogLevel)

	// The interrupt is observed by the arbiter; in-flight tasks are
	// abandoned, not cancelled.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := backend.NewRegistry()
	reg.Register(containerdbackend.BackendName, containerdbackend.NewBackend(
		containerdbackend.Config{Address: cfg.Address},
		logger,
	))
	reg.Register(mock.BackendName, mock.New(mock.Options{ExecArgs: true}, logger))

	name := mock.BackendName
	if cfg.Containerd {
		name = containerdbackend.BackendName
	}
	be, err := reg.Resolve(name)
	if err != nil {
		return err
	}

	workload := model.WorkloadSpec{Image: cfg.Image, Args: cfg.Args}
	progress.Banner(os.Stderr, workload.Image, workload.Args)

	shim, err := be.StartShim(ctx, cfg.ShimPath)
	if err != nil {
		return fmt.Errorf("start shim: %w", err)
	}
	defer shim.Close()

	// Keep the shim alive across individual task teardown with one idle
	// task that is created but never started.
	if be.NeedsKeepalive() {
		pause, err := shim.NewTask(ctx, workload)
		if err != nil {
			return fmt.Errorf("create keepalive task: %w", err)
		}
		if err := pause.Create(ctx, false); err != nil {
			return fmt.Errorf("create keepalive task: %w", err)
		}
	}

	counters := harness.NewCounters(cfg.Count)

	if cfg.StatusAddr != "" {
		srv := api.NewServer(cfg.StatusAddr, counters, logger)
		srv.Start()
		defer srv.Shutdown()
	}

	h := harness.New(harness.Options{
		Count:         cfg.Count,
		Parallel:      cfg.Parallel,
		Timeout:       cfg.Timeout,
		Workload:      workload,
		CaptureOutput: cfg.ContainerOutput,
	}, counters, progress.NewPrinter(os.Stderr, cfg.Verbose), logger)

	report := h.Run(ctx, shim)

	progress.WriteSummary(os.Stdout, report)
	return report.Err()
}
