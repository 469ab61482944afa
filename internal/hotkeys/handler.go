package hotkeys

import (
	"errors"
	"fmt"
	"sync"

	"github.com/1broseidon/kiosk/internal/platform"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
)

// ExitKeys are the key sequences that leave kiosk mode, in xgbutil keybind
// notation.
var ExitKeys = []string{"Control-q", "Escape"}

// ErrNoDisplay is returned when the backend exposes no X11 connection.
var ErrNoDisplay = errors.New("hotkeys: backend has no X11 connection")

// x11Accessor is an optional interface for backends that expose X11 internals.
type x11Accessor interface {
	XUtil() *xgbutil.XUtil
	RootWindow() xproto.Window
}

// Handler manages keyboard grabs: global ones on the root window and local
// ones on individual kiosk windows.
type Handler struct {
	xu   *xgbutil.XUtil
	root xproto.Window

	mu     sync.Mutex
	global bool
}

var ignoreModsOnce sync.Once

// NewHandler creates a new hotkey handler.
func NewHandler(backend platform.Backend) *Handler {
	var xu *xgbutil.XUtil
	var root xproto.Window
	if accessor, ok := backend.(x11Accessor); ok {
		xu = accessor.XUtil()
		root = accessor.RootWindow()
	}

	if xu != nil {
		ignoreModsOnce.Do(func() {
			configureIgnoreMods(xu)
		})
	}

	return &Handler{
		xu:   xu,
		root: root,
	}
}

// RegisterGlobal grabs keys on the root window so callback fires regardless
// of focus. A second call while registered is a no-op.
func (h *Handler) RegisterGlobal(keys []string, callback func()) error {
	if h.xu == nil {
		return ErrNoDisplay
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.global {
		return nil
	}

	for _, key := range keys {
		if err := h.connect(h.root, key, callback); err != nil {
			keybind.Detach(h.xu, h.root)
			return fmt.Errorf("register global %q: %w", key, err)
		}
	}
	h.global = true
	return nil
}

// UnregisterGlobal releases every root window grab. Safe to call repeatedly.
func (h *Handler) UnregisterGlobal() {
	if h.xu == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.global {
		return
	}
	keybind.Detach(h.xu, h.root)
	h.global = false
}

// GlobalRegistered reports whether root grabs are active.
func (h *Handler) GlobalRegistered() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.global
}

// BindWindow grabs keys on a single window; they fire only while that window
// has input focus.
func (h *Handler) BindWindow(windowID platform.WindowID, keys []string, callback func()) error {
	if h.xu == nil {
		return ErrNoDisplay
	}
	win := xproto.Window(windowID)
	for _, key := range keys {
		if err := h.connect(win, key, callback); err != nil {
			keybind.Detach(h.xu, win)
			return fmt.Errorf("bind %q on window %d: %w", key, windowID, err)
		}
	}
	return nil
}

// UnbindWindow drops all key handlers attached to windowID.
func (h *Handler) UnbindWindow(windowID platform.WindowID) {
	if h.xu == nil {
		return
	}
	keybind.Detach(h.xu, xproto.Window(windowID))
}

func (h *Handler) connect(win xproto.Window, keySequence string, callback func()) error {
	return keybind.KeyPressFun(func(xu *xgbutil.XUtil, ev xevent.KeyPressEvent) {
		callback()
	}).Connect(h.xu, win, keySequence, true)
}

func configureIgnoreMods(xu *xgbutil.XUtil) {
	// Always ignore CapsLock.
	caps := uint16(xproto.ModMaskLock)

	numLock := modMaskForKeysym(xu, "Num_Lock")
	scrollLock := modMaskForKeysym(xu, "Scroll_Lock")

	unique := make(map[uint16]struct{})
	add := func(mask uint16) {
		unique[mask] = struct{}{}
	}

	add(0)
	base := []uint16{caps}
	if numLock != 0 && numLock != caps {
		base = append(base, numLock)
	}
	if scrollLock != 0 && scrollLock != caps && scrollLock != numLock {
		base = append(base, scrollLock)
	}

	for subset := 1; subset < (1 << len(base)); subset++ {
		var mask uint16
		for bit := range base {
			if subset&(1<<bit) != 0 {
				mask |= base[bit]
			}
		}
		add(mask)
	}

	ignore := make([]uint16, 0, len(unique))
	for mask := range unique {
		ignore = append(ignore, mask)
	}

	xevent.IgnoreMods = ignore
}

func modMaskForKeysym(xu *xgbutil.XUtil, keysym string) uint16 {
	for _, keycode := range keybind.StrToKeycodes(xu, keysym) {
		if mask := keybind.ModGet(xu, keycode); mask != 0 {
			return mask
		}
	}
	return 0
}
