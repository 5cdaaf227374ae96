package mtsp

import "time"

// Phase names a step of a solve as reported to observers.
type Phase string

const (
	PhaseMatrix      Phase = "matrix"
	PhasePartitioned Phase = "partitioned"
	PhaseSequenced   Phase = "sequenced"
	PhaseAssembled   Phase = "assembled"
	PhaseSolved      Phase = "solved"
	PhaseInfeasible  Phase = "infeasible"
)

// Event is a progress notification. Group is -1 for events that are not about one group.
type Event struct {
	Phase   Phase         `json:"phase"`
	Group   int           `json:"group"`
	Size    int           `json:"size,omitempty"`
	Cost    float64       `json:"cost,omitempty"`
	Elapsed time.Duration `json:"elapsedNs"`
}

// Observer receives events. Calls are serialized.
type Observer func(Event)
