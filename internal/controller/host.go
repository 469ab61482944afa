package controller

import (
	"time"

	"github.com/1broseidon/kiosk/internal/assign"
	"github.com/1broseidon/kiosk/internal/config"
	"github.com/1broseidon/kiosk/internal/marker"
	"github.com/1broseidon/kiosk/internal/platform"
)

// WindowEvents are the callbacks a host invokes for one window. They may be
// called from any goroutine.
type WindowEvents struct {
	OnCrash        func()
	OnClose        func()
	OnExitShortcut func()
}

// Window is a materialized kiosk window.
type Window interface {
	// Close asks the window to close; OnClose follows.
	Close() error
	// Destroy tears the window down immediately without firing callbacks.
	Destroy() error
	// Reload recovers crashed content. Hosts may throttle it.
	Reload() error
	// Refresh reloads the content on the periodic schedule and is never
	// throttled, so the configured interval is kept as is.
	Refresh() error
}

// Host is the windowing toolkit boundary.
type Host interface {
	Displays() ([]platform.Display, error)
	OpenWindow(p assign.Placement, events WindowEvents) (Window, error)
	// RegisterGlobalShortcuts installs the focus-independent exit shortcuts.
	RegisterGlobalShortcuts(onExit func()) error
	// UnregisterGlobalShortcuts releases them. Safe to call when none are
	// registered.
	UnregisterGlobalShortcuts()
}

// Process is the OS process boundary.
type Process interface {
	// Relaunch spawns a new instance of this executable.
	Relaunch() error
	// Exit terminates the current process with code.
	Exit(code int)
}

// Markers is the marker store as the controller uses it.
type Markers interface {
	WriteInFlight()
	HasInFlight() bool
	ClearInFlight()
	WriteCompletion(c marker.Completion, payload string)
	ReadCompletion(c marker.Completion) (string, bool)
}

// ConfigSource yields a fresh config for every materialization pass.
type ConfigSource interface {
	Load() *config.Config
}

// Timer is a handle to a scheduled action.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealScheduler schedules with the wall clock.
type RealScheduler struct{}

func (RealScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Observer receives state and activity notifications, e.g. for metrics.
type Observer interface {
	StateChanged(s State)
	Materialized(reason string, windows int)
	WindowCrashed()
	WindowReloaded()
	RestartCycleStarted()
}

type nopObserver struct{}

func (nopObserver) StateChanged(State)       {}
func (nopObserver) Materialized(string, int) {}
func (nopObserver) WindowCrashed()           {}
func (nopObserver) WindowReloaded()          {}
func (nopObserver) RestartCycleStarted()     {}
