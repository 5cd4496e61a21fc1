package pipeline

// State is the orchestrator's position in a generation pass.
type State int32

const (
	StateIdle State = iota
	StateAwaitingRender
	StateAwaitingReadback
	StateDecoding
	StateRunningJobs
	StateStamping
	StateAssembling
)

var stateNames = [...]string{
	StateIdle:             "idle",
	StateAwaitingRender:   "awaiting_render",
	StateAwaitingReadback: "awaiting_readback",
	StateDecoding:         "decoding",
	StateRunningJobs:      "running_jobs",
	StateStamping:         "stamping",
	StateAssembling:       "assembling",
}

func (s State) String() string {
	if int(s) >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}
