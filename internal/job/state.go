package job

// State is the lifecycle state of an interactive job.
type State int

// Job states. Completed and Terminated are terminal.
const (
	StateCreated State = iota
	StateSpawned
	StateAwaitingInteraction
	StateInteracting
	StateCompleted
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateSpawned:
		return "spawned"
	case StateAwaitingInteraction:
		return "awaiting_interaction"
	case StateInteracting:
		return "interacting"
	case StateCompleted:
		return "completed"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateTerminated
}

// PollResult is the outcome of Registry.Poll.
type PollResult int

// Poll outcomes.
const (
	Unknown PollResult = iota
	Running
	Exited
)

func (p PollResult) String() string {
	switch p {
	case Running:
		return "running"
	case Exited:
		return "exited"
	default:
		return "unknown"
	}
}

// TerminateResult is the outcome of Registry.Terminate.
type TerminateResult int

// Terminate outcomes.
const (
	NotFound TerminateResult = iota
	Terminated
	AlreadyExited
)
