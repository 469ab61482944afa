package relaunch

import (
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/kiosk/internal/controller"
)

var _ controller.Process = (*Process)(nil)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewProcessUsesRunningExecutable(t *testing.T) {
	p, err := NewProcess(quietLogger())
	require.NoError(t, err)
	assert.NotEmpty(t, p.Path)
	assert.NotNil(t, p.Env)
}

func TestCommandPreservesArguments(t *testing.T) {
	p := &Process{Path: "/opt/kiosk/kiosk", Args: []string{"run", "--policy", "boot"}, Logger: quietLogger()}

	cmd := p.Command()

	assert.Equal(t, "/opt/kiosk/kiosk", cmd.Path)
	assert.Equal(t, []string{"/opt/kiosk/kiosk", "run", "--policy", "boot"}, cmd.Args)
	require.NotNil(t, cmd.SysProcAttr)
}

func TestRelaunchStartsDetachedChild(t *testing.T) {
	var started *exec.Cmd
	p := &Process{Path: "/opt/kiosk/kiosk", Args: []string{"run"}, Logger: quietLogger()}
	p.start = func(cmd *exec.Cmd) error {
		started = cmd
		return nil
	}

	require.NoError(t, p.Relaunch())
	require.NotNil(t, started)
	assert.Equal(t, []string{"/opt/kiosk/kiosk", "run"}, started.Args)
}

func TestRelaunchReportsStartFailure(t *testing.T) {
	p := &Process{Path: "/opt/kiosk/kiosk", Logger: quietLogger()}
	p.start = func(*exec.Cmd) error { return errors.New("exec format error") }

	err := p.Relaunch()
	assert.ErrorContains(t, err, "exec format error")
}

func TestExitFlushesFirst(t *testing.T) {
	var order []string
	p := &Process{Logger: quietLogger()}
	p.Flush = func() { order = append(order, "flush") }
	p.exit = func(code int) { order = append(order, "exit") }

	p.Exit(0)

	assert.Equal(t, []string{"flush", "exit"}, order)
}

func TestFlushRunsOnceAcrossRelaunchAndExit(t *testing.T) {
	var order []string
	p := &Process{Path: "/opt/kiosk/kiosk", Logger: quietLogger()}
	p.Flush = func() { order = append(order, "flush") }
	p.start = func(*exec.Cmd) error {
		order = append(order, "start")
		return nil
	}
	p.exit = func(int) { order = append(order, "exit") }

	require.NoError(t, p.Relaunch())
	p.Exit(0)

	assert.Equal(t, []string{"flush", "start", "exit"}, order)
}

func TestRelaunchRealBinary(t *testing.T) {
	path, err := exec.LookPath("true")
	if err != nil {
		t.Skip("true not available")
	}
	p := &Process{Path: path, Logger: quietLogger()}

	assert.NoError(t, p.Relaunch())
}
