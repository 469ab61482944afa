package x11

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
)

// Connection is the kiosk's single X11 connection. Key grabs, window
// placement and display enumeration all share it.
type Connection struct {
	XUtil *xgbutil.XUtil
	Root  xproto.Window

	randrErr  error
	closeOnce sync.Once
}

// NewConnection connects to $DISPLAY and prepares the keybind and RandR
// extensions. A server without RandR still connects; GetMonitors then
// reports the init error.
func NewConnection() (*Connection, error) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, err
	}

	keybind.Initialize(xu)

	c := &Connection{
		XUtil: xu,
		Root:  xu.RootWin(),
	}
	if err := randr.Init(xu.Conn()); err != nil {
		c.randrErr = fmt.Errorf("randr init failed: %w", err)
	}
	return c, nil
}

// EventLoop dispatches X events (key presses) until Quit is called. It
// blocks.
func (c *Connection) EventLoop() {
	xevent.Main(c.XUtil)
}

// Quit makes EventLoop return.
func (c *Connection) Quit() {
	xevent.Quit(c.XUtil)
}

// Close disconnects from the server. Grabs held by this connection are
// released by the server. Safe to call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.XUtil.Conn().Close()
	})
}
