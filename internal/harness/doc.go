// Package harness contains the stress-run orchestration core: the per-task
// lifecycle driver, the admission permit pool, the one-shot setup barrier
// separating setup cost from the measured steady state, the arbiter loop
// racing completions against the watchdog and external interrupts, and the
// result aggregation.
package harness
