// Package browser renders kiosk windows with a Chromium-family browser, one
// browser process and profile per window, and pins each window to its
// display through the X11 backend.
package browser

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/1broseidon/kiosk/internal/assign"
	"github.com/1broseidon/kiosk/internal/config"
	"github.com/1broseidon/kiosk/internal/controller"
	"github.com/1broseidon/kiosk/internal/hotkeys"
	"github.com/1broseidon/kiosk/internal/platform"
	"github.com/1broseidon/kiosk/internal/runtimepath"
)

const (
	defaultWindowTimeout = 15 * time.Second
	defaultPollInterval  = 150 * time.Millisecond
	defaultCloseGrace    = 3 * time.Second
)

// ErrNoBackend is returned for operations that need a display server.
var ErrNoBackend = errors.New("browser: no display backend")

// Shortcuts is the subset of the hotkey handler the host uses.
type Shortcuts interface {
	RegisterGlobal(keys []string, callback func()) error
	UnregisterGlobal()
	BindWindow(windowID platform.WindowID, keys []string, callback func()) error
	UnbindWindow(windowID platform.WindowID)
}

var _ Shortcuts = (*hotkeys.Handler)(nil)

// Options configures a Host.
type Options struct {
	// Command and Args select the browser; Args are appended after the
	// kiosk flags and before the URL.
	Command string
	Args    []string

	// Backend places windows. Without it the browser's own
	// --window-position and --window-size flags are all that apply.
	Backend platform.Backend
	// Shortcuts registers exit keys. Without it shortcuts are unavailable.
	Shortcuts Shortcuts
	Logger    *slog.Logger

	ProfileDir    func(index int) (string, error)
	WindowTimeout time.Duration
	PollInterval  time.Duration
	CloseGrace    time.Duration
}

// Host implements controller.Host.
type Host struct {
	opts   Options
	logger *slog.Logger
}

var _ controller.Host = (*Host)(nil)

// NewHost creates a browser host.
func NewHost(opts Options) *Host {
	if opts.Command == "" {
		opts.Command = config.DefaultBrowserCommand
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ProfileDir == nil {
		opts.ProfileDir = runtimepath.ProfileDir
	}
	if opts.WindowTimeout <= 0 {
		opts.WindowTimeout = defaultWindowTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.CloseGrace <= 0 {
		opts.CloseGrace = defaultCloseGrace
	}
	return &Host{opts: opts, logger: opts.Logger}
}

// Displays enumerates the connected displays.
func (h *Host) Displays() ([]platform.Display, error) {
	if h.opts.Backend == nil {
		return nil, ErrNoBackend
	}
	return h.opts.Backend.Displays()
}

// OpenWindow starts a browser for the placement.
func (h *Host) OpenWindow(p assign.Placement, events controller.WindowEvents) (controller.Window, error) {
	profile, err := h.opts.ProfileDir(p.Index)
	if err != nil {
		return nil, fmt.Errorf("profile dir for window %d: %w", p.Index, err)
	}
	w := newWindow(h, p, profile, events)
	if err := w.start(); err != nil {
		return nil, err
	}
	return w, nil
}

// RegisterGlobalShortcuts grabs the exit keys on the root window.
func (h *Host) RegisterGlobalShortcuts(onExit func()) error {
	if h.opts.Shortcuts == nil {
		return ErrNoBackend
	}
	return h.opts.Shortcuts.RegisterGlobal(hotkeys.ExitKeys, onExit)
}

// UnregisterGlobalShortcuts releases the root window grabs.
func (h *Host) UnregisterGlobalShortcuts() {
	if h.opts.Shortcuts != nil {
		h.opts.Shortcuts.UnregisterGlobal()
	}
}

// BuildArgs returns the browser argument list for a placement.
func BuildArgs(p assign.Placement, profileDir string, extra []string) []string {
	args := []string{
		"--user-data-dir=" + profileDir,
		"--kiosk",
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-session-crashed-bubble",
		"--disable-infobars",
		"--noerrdialogs",
		fmt.Sprintf("--window-position=%d,%d", p.Bounds.X, p.Bounds.Y),
		fmt.Sprintf("--window-size=%d,%d", p.Bounds.Width, p.Bounds.Height),
	}
	args = append(args, extra...)
	return append(args, p.URL)
}
