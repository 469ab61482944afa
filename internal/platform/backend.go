package platform

import "fmt"

// WindowID is a platform-neutral window identifier.
type WindowID uint32

// Rect describes a rectangular region in screen coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// Display describes a physical display. Bounds is the full output area,
// including any region a panel or taskbar reserves.
type Display struct {
	ID     int
	Name   string
	Bounds Rect
}

// Backend abstracts the window-system operations the kiosk needs.
type Backend interface {
	Displays() ([]Display, error)
	// FindWindowByPID returns the top-level window owned by pid. It returns
	// ErrWindowNotFound while the process has not mapped a window yet.
	FindWindowByPID(pid int) (WindowID, error)
	// PlaceKiosk makes windowID borderless, always on top and fullscreen
	// over bounds.
	PlaceKiosk(windowID WindowID, bounds Rect) error
	Close(windowID WindowID) error
}

// ErrWindowNotFound is returned by FindWindowByPID when no window matches.
var ErrWindowNotFound = fmt.Errorf("window not found")
