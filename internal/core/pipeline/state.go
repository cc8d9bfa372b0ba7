package pipeline

// State is the orchestrator's position in the job lifecycle.
type State int

const (
	StateIdle State = iota
	StateAcquiring
	StateSegmenting
	StateRecognizing
	StateAggregating
	StateCompleted
	StateFailed
	StateCancelled
)

var stateNames = [...]string{
	StateIdle:        "idle",
	StateAcquiring:   "acquiring",
	StateSegmenting:  "segmenting",
	StateRecognizing: "recognizing",
	StateAggregating: "aggregating",
	StateCompleted:   "completed",
	StateFailed:      "failed",
	StateCancelled:   "cancelled",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether the job has finished.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Active reports whether a job occupies the orchestrator.
func (s State) Active() bool {
	return s != StateIdle
}
