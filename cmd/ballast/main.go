package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/seantiz/ballast/internal/config"
	"github.com/seantiz/ballast/internal/reaper"
)

func main() {
	// Orphaned shim children reparent to us; collect them on the way out
	// regardless of how the run ended.
	if err := reaper.Subreap(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	err := newRootCmd().Execute()

	if rerr := reaper.ReapChildren(); rerr != nil {
		fmt.Fprintf(os.Stderr, "warning: reap children: %v\n", rerr)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Load()

	cmd := &cobra.Command{
		Use:   "ballast [flags] SHIM_PATH [ARGS...]",
		Short: "Stress-test a containerd shim by driving many task lifecycles",
		Long: `ballast drives a number of identical task lifecycles (create, start,
wait, delete) against a shim under a bounded concurrency limit and reports
the steady-state throughput. Setup cost is excluded from the measurement.

By default tasks run against a deterministic in-process stand-in; pass
--containerd to drive the real daemon.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.ShimPath = args[0]
			if len(args) > 1 {
				cfg.Args = args[1:]
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&cfg.Containerd, "containerd", "c", false, "use containerd to manage the shim")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "show per-task success lines on stderr")
	flags.BoolVarP(&cfg.ContainerOutput, "container-output", "O", false, "show the container output on stdout")
	flags.IntVarP(&cfg.Parallel, "parallel", "p", cfg.Parallel, "number of tasks to create and start concurrently (0 = no limit)")
	flags.IntVarP(&cfg.Count, "count", "n", cfg.Count, "number of tasks to run")
	flags.DurationVarP(&cfg.Timeout, "timeout", "t", cfg.Timeout, "runtime timeout (0 = no timeout)")
	flags.StringVarP(&cfg.Image, "image", "i", cfg.Image, "image to use for the test")
	flags.StringVar(&cfg.Address, "address", "", "containerd socket address")
	flags.StringVar(&cfg.StatusAddr, "status-addr", "", "serve /healthz, /v1/stats and /metrics on this address")

	return cmd
}
