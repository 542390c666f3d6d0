package model

// Task lifecycle states. Transitions only move forward; a task that fails
// mid-lifecycle is abandoned in whatever state it reached.
const (
	StateUnstarted = "unstarted"
	StateCreated   = "created"
	StateStarted   = "started"
	StateWaited    = "waited"
	StateDeleted   = "deleted"
)

// validTransitions maps each state to the set of states it may transition to.
var validTransitions = map[string]map[string]bool{
	StateUnstarted: {
		StateCreated: true,
	},
	StateCreated: {
		StateStarted: true,
	},
	StateStarted: {
		StateWaited: true,
	},
	StateWaited: {
		StateDeleted: true,
	},
}

// ValidTransition reports whether transitioning from one state to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// WorkloadSpec describes the workload every task in a run executes.
type WorkloadSpec struct {
	Image string   `json:"image"`
	Args  []string `json:"args"`
}
