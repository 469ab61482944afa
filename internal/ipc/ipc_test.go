package ipc

import (
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/kiosk/internal/assign"
	"github.com/1broseidon/kiosk/internal/config"
	"github.com/1broseidon/kiosk/internal/controller"
	"github.com/1broseidon/kiosk/internal/platform"
)

type fakeController struct {
	mu     sync.Mutex
	status controller.Status
	events []controller.Event
}

func (f *fakeController) Status() controller.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeController) Dispatch(ev controller.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeController) dispatched() []controller.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]controller.Event(nil), f.events...)
}

type staticDisplays []platform.Display

func (s staticDisplays) Displays() ([]platform.Display, error) { return s, nil }

type staticConfig struct{ cfg *config.Config }

func (s staticConfig) Load() *config.Config { return s.cfg }

func startServer(t *testing.T, ctrl *fakeController) (*Server, *Client) {
	t.Helper()
	socket := filepath.Join(t.TempDir(), "kiosk.sock")
	srv, err := NewServer(ServerOptions{
		SocketPath: socket,
		Controller: ctrl,
		Displays: staticDisplays{
			{ID: 0, Name: "DP-1", Bounds: platform.Rect{Width: 1920, Height: 1080}},
			{ID: 1, Name: "DP-2", Bounds: platform.Rect{X: 1920, Width: 1280, Height: 1024}},
		},
		Config: staticConfig{cfg: &config.Config{Windows: []config.WindowSpec{
			{URL: "https://a.example"},
			{URL: "https://b.example"},
		}}},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)
	return srv, NewClientWithPath(socket)
}

func TestGetStatus(t *testing.T) {
	ctrl := &fakeController{status: controller.Status{
		State:       "windows-open",
		Policy:      "session",
		TimerArmed:  true,
		OpenWindows: 2,
	}}
	_, client := startServer(t, ctrl)

	status, err := client.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, "windows-open", status.State)
	assert.Equal(t, "session", status.Policy)
	assert.True(t, status.TimerArmed)
	assert.Equal(t, 2, status.OpenWindows)
	assert.NotZero(t, status.PID)
	assert.NoError(t, client.Ping())
}

func TestGetDisplays(t *testing.T) {
	_, client := startServer(t, &fakeController{})

	data, err := client.GetDisplays()
	require.NoError(t, err)
	require.Len(t, data.Displays, 2)
	assert.Equal(t, "DP-2", data.Displays[1].Name)
	assert.Equal(t, 1920, data.Displays[1].X)
	assert.Equal(t, 1024, data.Displays[1].Height)
}

func TestGetPlanPreviewsConfigOnDisk(t *testing.T) {
	ctrl := &fakeController{status: controller.Status{Placements: []assign.Placement{
		{Index: 0, URL: "https://old.example", ShortcutOwner: true},
	}}}
	_, client := startServer(t, ctrl)

	plan, err := client.GetPlan()
	require.NoError(t, err)
	require.Len(t, plan.Current, 1)
	assert.Equal(t, "https://old.example", plan.Current[0].URL)
	require.Len(t, plan.Preview, 2)
	assert.Equal(t, 1, plan.Preview[1].DisplayIndex)
	assert.Equal(t, 1280, plan.Preview[1].Bounds.Width)
}

func TestStateChangingCommandsDispatchEvents(t *testing.T) {
	ctrl := &fakeController{}
	_, client := startServer(t, ctrl)

	require.NoError(t, client.Rematerialize("config edited"))
	require.NoError(t, client.Quit(""))

	events := ctrl.dispatched()
	require.Len(t, events, 2)
	assert.Equal(t, controller.EventRematerialize, events[0].Kind)
	assert.Equal(t, "ipc: config edited", events[0].Reason)
	assert.Equal(t, controller.EventExitShortcut, events[1].Kind)
	assert.Equal(t, "ipc", events[1].Reason)
}

func TestUnknownCommand(t *testing.T) {
	_, client := startServer(t, &fakeController{})

	_, err := client.sendRequest(&Request{Command: "TILE"})
	assert.ErrorContains(t, err, "Unknown command")
}

func TestSecondServerRefusesLiveSocket(t *testing.T) {
	srv, _ := startServer(t, &fakeController{})

	other, err := NewServer(ServerOptions{SocketPath: srv.SocketPath(), Controller: &fakeController{}})
	require.NoError(t, err)
	assert.ErrorIs(t, other.Start(), ErrAlreadyRunning)
}

func TestStaleSocketIsReplaced(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "kiosk.sock")
	l, err := net.Listen("unix", socket)
	require.NoError(t, err)
	// Closing a unix listener removes the file; leave one behind by hand.
	l.(*net.UnixListener).SetUnlinkOnClose(false)
	require.NoError(t, l.Close())

	srv, err := NewServer(ServerOptions{SocketPath: socket, Controller: &fakeController{}})
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	defer srv.Stop()

	assert.NoError(t, NewClientWithPath(socket).Ping())
}

func TestClientWithoutServer(t *testing.T) {
	client := NewClientWithPath(filepath.Join(t.TempDir(), "missing.sock"))
	assert.ErrorContains(t, client.Ping(), "is kiosk running?")
}
