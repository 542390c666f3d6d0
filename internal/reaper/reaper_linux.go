// Package reaper keeps orphaned child processes from outliving the run.
// The stand-in backend and abandoned shims can leave children behind;
// marking this process a subreaper lets it collect them at exit.
package reaper

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Subreap marks the current process as a child subreaper, so orphaned
// descendants reparent to us instead of init.
func Subreap() error {
	if err := unix.Prctl(unix.PR_SET_CHILD_SUBREAPER, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("set child subreaper: %w", err)
	}
	return nil
}

// ReapChildren collects exited child processes without blocking. It stops
// when no more children are immediately reapable.
func ReapChildren() error {
	for {
		var status unix.WaitStatus
		pid, err := unix.Wait4(-1, &status, unix.WNOHANG, nil)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.ECHILD:
			return nil
		case err != nil:
			return fmt.Errorf("wait4: %w", err)
		case pid == 0:
			return nil
		}
	}
}
