package config

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Defaults for the run settings exposed as command-line flags.
const (
	DefaultImage    = "ghcr.io/containerd/runwasi/wasi-demo-app:latest"
	DefaultCount    = 10
	DefaultParallel = 1
	DefaultTimeout  = 2 * time.Second

	envLogLevel = "BALLAST_LOG_LEVEL"
)

// DefaultArgs is the workload run when no arguments are given.
var DefaultArgs = []string{"echo", "hello"}

// Config holds one run's settings. Flags populate most of it; the log
// level comes from the environment so diagnostics can be turned on
// without touching the flag surface.
type Config struct {
	// Containerd selects the real backend instead of the in-process stand-in.
	Containerd bool

	// Verbose echoes per-task success lines on stderr.
	Verbose bool

	// ContainerOutput captures and shows each task's output.
	ContainerOutput bool

	// Parallel is the admission pool size; 0 means unbounded.
	Parallel int

	// Count is the total number of tasks.
	Count int

	// Timeout bounds the measurement phase; 0 disables the watchdog.
	Timeout time.Duration

	// Image is the workload image.
	Image string

	// Address is the containerd socket, used only with the real backend.
	Address string

	// StatusAddr, when set, serves /healthz, /v1/stats and /metrics.
	StatusAddr string

	// ShimPath is the path to the shim binary (required positional).
	ShimPath string

	// Args are the workload arguments (remaining positionals).
	Args []string

	LogLevel slog.Level
}

// Load returns a Config with defaults applied and the log level read from
// the environment. Flag values are bound on top by the command.
func Load() Config {
	cfg := Config{
		Parallel: DefaultParallel,
		Count:    DefaultCount,
		Timeout:  DefaultTimeout,
		Image:    DefaultImage,
		Args:     DefaultArgs,
		LogLevel: slog.LevelInfo,
	}

	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}

	return cfg
}

// Validate rejects settings the harness cannot run with.
func (c Config) Validate() error {
	if c.Count < 0 {
		return errors.New("count must not be negative")
	}
	if c.Parallel < 0 {
		return errors.New("parallel must not be negative")
	}
	if c.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	if c.ShimPath == "" {
		return errors.New("shim path is required")
	}
	if c.Image == "" {
		return errors.New("image must not be empty")
	}
	return nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
