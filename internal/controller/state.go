package controller

// State is a phase of the restart cycle.
type State int

const (
	// StateStarting is the zero value before the host reports ready.
	StateStarting State = iota
	StateColdStart
	StateResumedAfterRestart
	StateWindowsOpen
	StateRestartInFlight
	StateTerminated
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateColdStart:
		return "cold-start"
	case StateResumedAfterRestart:
		return "resumed-after-restart"
	case StateWindowsOpen:
		return "windows-open"
	case StateRestartInFlight:
		return "restart-in-flight"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// EventKind enumerates everything that can drive a transition.
type EventKind int

const (
	EventReady EventKind = iota
	EventRestartTimerFired
	EventSettleElapsed
	EventDisplayAdded
	EventDisplayRemoved
	EventExitShortcut
	EventWindowCrashed
	EventWindowClosed
	EventReloadTick
	EventRematerialize
	EventShutdown
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventRestartTimerFired:
		return "restart-timer-fired"
	case EventSettleElapsed:
		return "settle-elapsed"
	case EventDisplayAdded:
		return "display-added"
	case EventDisplayRemoved:
		return "display-removed"
	case EventExitShortcut:
		return "exit-shortcut"
	case EventWindowCrashed:
		return "window-crashed"
	case EventWindowClosed:
		return "window-closed"
	case EventReloadTick:
		return "reload-tick"
	case EventRematerialize:
		return "rematerialize"
	case EventShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Event is delivered to the controller one at a time.
type Event struct {
	Kind EventKind
	// Pass and Window identify the window for window-scoped events. Events
	// from an older materialization pass are ignored.
	Pass   uint64
	Window int
	// Reason is free text for logs (which shortcut, which IPC client, ...).
	Reason string
}

// windowScoped reports whether the event refers to a single window.
func (e Event) windowScoped() bool {
	switch e.Kind {
	case EventWindowCrashed, EventWindowClosed, EventReloadTick:
		return true
	}
	return false
}
