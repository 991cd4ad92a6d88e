package element

// ExecutionState identifies the lifecycle phase of an element's worker.
// It is published by the worker and can be observed from any goroutine via
// Status and WaitForExecutionState.
type ExecutionState int

// Lifecycle states of an element worker.
const (
	// WaitingForExecute means that the worker was not started yet or
	// already finished.
	WaitingForExecute ExecutionState = iota
	// Initializing means that the worker is running the Initialize hook.
	Initializing
	// Executing means that the worker is in the work loop.
	Executing
	// Terminating means that termination was requested and the worker is
	// about to exit the work loop.
	Terminating
	// Failed means that Initialize or DoWork returned an error and the
	// worker exited. Failed is terminal.
	Failed
)

func (s ExecutionState) String() string {
	switch s {
	case WaitingForExecute:
		return "waiting for execute"
	case Initializing:
		return "initializing"
	case Executing:
		return "executing"
	case Terminating:
		return "terminating"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// PlayState identifies whether an executing element is actively doing work.
// It is independent of ExecutionState and may be toggled at any time.
type PlayState int

// Play states of an element. Zero value is Pause: a new element does no
// work until it is explicitly played.
const (
	// Pause means that the element is idle: the work loop skips DoWork.
	Pause PlayState = iota
	// Play means that the element performs DoWork on every iteration.
	Play
)

func (s PlayState) String() string {
	switch s {
	case Pause:
		return "pause"
	case Play:
		return "play"
	}
	return "unknown"
}
