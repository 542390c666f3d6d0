package harness

// Notifier receives user-facing progress events from the arbiter. The
// terminal printer implements it; tests use NopNotifier.
type Notifier interface {
	// SetupStarted fires once, before any driver has been admitted.
	SetupStarted()

	// SetupDone fires once, when the setup barrier releases.
	SetupDone()

	// TaskOK reports a successful task; reported is its 1-based position
	// among completions.
	TaskOK(reported, total int)

	// TaskFailed reports a failed task with its position among completions.
	// Failures are never silent regardless of verbosity.
	TaskFailed(reported, total int, err error)

	// Stopped fires once, with the arbiter's stop reason.
	Stopped(outcome Outcome)
}

// NopNotifier discards all progress events.
type NopNotifier struct{}

func (NopNotifier) SetupStarted()              {}
func (NopNotifier) SetupDone()                 {}
func (NopNotifier) TaskOK(int, int)            {}
func (NopNotifier) TaskFailed(int, int, error) {}
func (NopNotifier) Stopped(Outcome)            {}
