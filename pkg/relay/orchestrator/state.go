package orchestrator

// State is the phase of one continuation interaction.
type State string

const (
	StateIdle       State = "idle"       // No draft in flight
	StateGenerating State = "generating" // A generation job is being watched
	StatePreviewing State = "previewing" // At least one ready candidate is shown
	StatePublishing State = "publishing" // Publish request in flight
)

// ValidTransitions defines the allowed state changes.
var ValidTransitions = map[State][]State{
	StateIdle:       {StateGenerating},
	StateGenerating: {StateIdle, StatePreviewing},
	StatePreviewing: {StateGenerating, StatePublishing, StateIdle},
	StatePublishing: {StateIdle, StatePreviewing},
}

// CanTransitionTo reports whether s may move to target.
func (s State) CanTransitionTo(target State) bool {
	for _, t := range ValidTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// Busy reports whether a remote operation owned by the interaction is running.
func (s State) Busy() bool {
	return s == StateGenerating || s == StatePublishing
}

func (s State) String() string {
	return string(s)
}
