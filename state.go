package simloop

// State represents the scheduler's run-loop state.
//
// State Machine:
//
//	StateIdle → StateRunning        [Run() / Step()]
//	StateRunning → StateDraining    [no timers or jobs remain]
//	StateDraining → StateIdle       [terminal; run complete]
//
// The scheduler is single-threaded and cooperative, so state is a plain
// field with no atomics: nothing ever races with the execution context.
type State uint8

const (
	// StateIdle means no run is in progress. Submissions are accepted and
	// will be served by the next run.
	StateIdle State = iota
	// StateRunning means the run loop is actively draining queues and
	// rotating macrotask phases.
	StateRunning
	// StateDraining means the loop has observed that no pending timers or
	// jobs remain and is performing its final wind-down.
	StateDraining
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateDraining:
		return "Draining"
	default:
		return "Unknown"
	}
}
