package harness

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Run phases as observed by the arbiter.
const (
	PhaseSetup     = "setup"
	PhaseMeasuring = "measuring"
	PhaseDone      = "done"
)

var (
	tasksCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ballast_tasks_completed_total",
			Help: "Tasks that reported an outcome, by result.",
		},
		[]string{"result"},
	)

	tasksPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ballast_tasks_pending",
			Help: "Tasks whose outcome has not been observed yet.",
		},
	)
)

func init() {
	prometheus.MustRegister(tasksCompleted)
	prometheus.MustRegister(tasksPending)
}

// Counters is the live view of run progress. The arbiter loop is the only
// writer; the status server reads snapshots concurrently, so all fields
// are atomics.
type Counters struct {
	total      int
	success    atomic.Int64
	failed     atomic.Int64
	phase      atomic.Value // string
	startNanos atomic.Int64 // measurement start, 0 until first admission
}

// NewCounters creates counters for a run of the given size.
func NewCounters(total int) *Counters {
	c := &Counters{total: total}
	c.phase.Store(PhaseSetup)
	tasksPending.Set(float64(total))
	return c
}

// Snapshot is a point-in-time view of run progress, served by /v1/stats.
type Snapshot struct {
	Total     int    `json:"total"`
	Success   int    `json:"success"`
	Failed    int    `json:"failed"`
	Pending   int    `json:"pending"`
	Phase     string `json:"phase"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// Snapshot returns the current progress. Safe for concurrent callers.
func (c *Counters) Snapshot() Snapshot {
	success := int(c.success.Load())
	failed := int(c.failed.Load())

	snap := Snapshot{
		Total:   c.total,
		Success: success,
		Failed:  failed,
		Pending: c.total - success - failed,
		Phase:   c.phase.Load().(string),
	}
	if start, ok := c.startedAt(); ok {
		snap.ElapsedMS = time.Since(start).Milliseconds()
	}
	return snap
}

func (c *Counters) addSuccess() {
	c.success.Add(1)
	tasksCompleted.WithLabelValues("success").Inc()
	tasksPending.Dec()
}

func (c *Counters) addFailed() {
	c.failed.Add(1)
	tasksCompleted.WithLabelValues("failed").Inc()
	tasksPending.Dec()
}

func (c *Counters) setPhase(phase string) {
	c.phase.Store(phase)
}

// markStarted records the measurement start instant, set-if-absent. Called
// by every driver at its first admission grant; only the first call wins.
func (c *Counters) markStarted(t time.Time) {
	c.startNanos.CompareAndSwap(0, t.UnixNano())
}

// startedAt returns the measurement start instant, if one was recorded.
func (c *Counters) startedAt() (time.Time, bool) {
	n := c.startNanos.Load()
	if n == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, n), true
}
