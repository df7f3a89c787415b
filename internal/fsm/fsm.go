package fsm

import "fmt"

type State string

type Event string

const (
	StateUninitialized State = "uninitialized"
	StateReady         State = "ready"
	StateListening     State = "listening"
	StateReconfiguring State = "reconfiguring"
	StateStopped       State = "stopped"
)

const (
	EventInit         Event = "init"
	EventListen       Event = "listen"
	EventIdle         Event = "idle"
	EventReconfigure  Event = "reconfigure"
	EventReconfigured Event = "reconfigured"
	EventStop         Event = "stop"
)

// Serving reports whether the engine can act on speech in state s.
func (s State) Serving() bool {
	return s == StateReady || s == StateListening
}

func Transition(current State, event Event) (State, error) {
	if event == EventStop {
		if current == StateStopped {
			return current, invalidTransition(current, event)
		}
		return StateStopped, nil
	}

	switch current {
	case StateUninitialized:
		switch event {
		case EventInit:
			return StateReady, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateReady:
		switch event {
		case EventListen:
			return StateListening, nil
		case EventReconfigure:
			return StateReconfiguring, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateListening:
		switch event {
		case EventIdle:
			return StateReady, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateReconfiguring:
		switch event {
		case EventReconfigured:
			return StateReady, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateStopped:
		return current, invalidTransition(current, event)
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
