// Package progress renders live run progress to a terminal, rewriting a
// hint line in place with ANSI escapes, and formats the final summary.
// It implements the harness Notifier so the orchestration core stays free
// of output formatting.
package progress

import (
	"fmt"
	"io"

	"github.com/seantiz/ballast/internal/harness"
)

// ANSI escape sequences for the live status display.
const (
	clearLine = "\x1b[2K"
	cursorUp  = "\x1b[A"
	bold      = "\x1b[1m"
	red       = "\x1b[31m"
	green     = "\x1b[32m"
	reset     = "\x1b[0m"

	hint = "  Press Ctrl-C to terminate."
)

// Printer writes live progress lines. Success lines are emitted only in
// verbose mode; failures are always emitted.
type Printer struct {
	w       io.Writer
	verbose bool
}

// NewPrinter creates a printer writing to w, normally standard error.
func NewPrinter(w io.Writer, verbose bool) *Printer {
	return &Printer{w: w, verbose: verbose}
}

// status prints a progress line followed by the hint line, then moves the
// cursor back up so the next status overwrites the hint.
func (p *Printer) status(line string) {
	fmt.Fprint(p.w, clearLine)
	fmt.Fprintln(p.w, line)
	fmt.Fprintln(p.w, hint+cursorUp)
}

func (p *Printer) SetupStarted() {
	p.status("> Setting up tasks.")
}

func (p *Printer) SetupDone() {
	p.status("> Waiting for tasks to finish.")
}

func (p *Printer) TaskOK(reported, _ int) {
	if !p.verbose {
		return
	}
	p.status(fmt.Sprintf("> %d .. [OK]", reported))
}

func (p *Printer) TaskFailed(reported, _ int, err error) {
	p.status(fmt.Sprintf("> %d .. %v", reported, err))
}

func (p *Printer) Stopped(outcome harness.Outcome) {
	fmt.Fprint(p.w, clearLine)
	switch outcome {
	case harness.OutcomeTimeout:
		fmt.Fprintln(p.w, red+"Timeout"+reset)
	case harness.OutcomeInterrupted:
		fmt.Fprintln(p.w, red+"Cancelled"+reset)
	}
}

var _ harness.Notifier = (*Printer)(nil)

// Banner announces the workload before the run starts.
func Banner(w io.Writer, image string, args []string) {
	fmt.Fprintf(w, "%sUsing image %q with arguments %q%s\n", bold, image, args, reset)
}

// WriteSummary writes the final run summary, normally to standard output.
// Success is green with timing; anything else is the red failure triple.
func WriteSummary(w io.Writer, rep harness.Report) {
	if !rep.Succeeded() {
		fmt.Fprintf(w, "%s%d tasks succeeded, %d tasks failed, %d tasks didn't finish%s\n",
			red, rep.Success, rep.Failed, rep.Incomplete, reset)
		return
	}

	fmt.Fprintf(w, "%s%d tasks succeeded%s\n", green, rep.Success, reset)
	if rep.Measured {
		fmt.Fprintf(w, "%s  elapsed time: %s%s\n", green, rep.Elapsed, reset)
		fmt.Fprintf(w, "%s  throughput: %.2f tasks/s%s\n", green, rep.Throughput, reset)
	}
}
