package subcast

import "github.com/bft-labs/subcast/internal/app"

// State is the lifecycle state of a Subcast instance.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// StateChangeEvent is emitted on every lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// DataRequestEvent is emitted after a caption window request reaches the sender.
type DataRequestEvent struct {
	TimeMs     int64
	DurationMs int64
	Session    uint64
	Seeking    bool
}

// EventHandler receives notifications about receiver operations.
// OnStateChange runs on the goroutine that caused the transition.
// OnDataRequest runs on the event loop and must return quickly.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)
	OnDataRequest(event DataRequestEvent)
}

// BaseEventHandler implements EventHandler with no-ops. Embed it to
// override only the callbacks you need.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent) {}
func (BaseEventHandler) OnDataRequest(DataRequestEvent) {}

// eventEmitterWrapper adapts EventHandler to the internal emitter interface.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}

func (e *eventEmitterWrapper) onDataRequest(ev DataRequestEvent) {
	if e.handler == nil {
		return
	}
	e.handler.OnDataRequest(ev)
}

func convertState(s app.State) State {
	switch s {
	case app.StateStopped:
		return StateStopped
	case app.StateStarting:
		return StateStarting
	case app.StateRunning:
		return StateRunning
	case app.StateStopping:
		return StateStopping
	case app.StateCrashed:
		return StateCrashed
	default:
		return StateStopped
	}
}
