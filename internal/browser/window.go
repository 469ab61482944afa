package browser

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/1broseidon/kiosk/internal/assign"
	"github.com/1broseidon/kiosk/internal/controller"
	"github.com/1broseidon/kiosk/internal/hotkeys"
	"github.com/1broseidon/kiosk/internal/platform"
)

// Respawns are limited per window so a browser that dies on startup does
// not spin.
const (
	respawnInterval = 5 * time.Second
	respawnBurst    = 3
)

type process struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

// Window is one browser process rendering one placement.
type Window struct {
	host      *Host
	placement assign.Placement
	profile   string
	events    controller.WindowEvents
	limiter   *rate.Limiter
	logger    *slog.Logger

	mu        sync.Mutex
	proc      *process
	windowID  platform.WindowID
	closing   bool
	destroyed bool
	pending   *time.Timer
}

func newWindow(h *Host, p assign.Placement, profile string, events controller.WindowEvents) *Window {
	return &Window{
		host:      h,
		placement: p,
		profile:   profile,
		events:    events,
		limiter:   rate.NewLimiter(rate.Every(respawnInterval), respawnBurst),
		logger:    h.logger.With("window", p.Index),
	}
}

// Placement returns the geometry and URL the window was opened with.
func (w *Window) Placement() assign.Placement {
	return w.placement
}

// PID returns the current browser process id, or 0 when none is running.
func (w *Window) PID() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.proc == nil {
		return 0
	}
	return w.proc.cmd.Process.Pid
}

func (w *Window) start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.spawnLocked()
}

func (w *Window) spawnLocked() error {
	args := BuildArgs(w.placement, w.profile, w.host.opts.Args)
	cmd := exec.Command(w.host.opts.Command, args...)
	cmd.SysProcAttr = sysProcAttr()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %q: %w", w.host.opts.Command, err)
	}

	proc := &process{cmd: cmd, done: make(chan struct{})}
	w.proc = proc
	w.windowID = 0
	w.logger.Debug("browser started", "pid", cmd.Process.Pid, "url", w.placement.URL)

	go w.wait(proc)
	if w.host.opts.Backend != nil {
		go w.attach(proc)
	}
	return nil
}

// wait reports the exit of proc unless the window has moved on from it.
func (w *Window) wait(proc *process) {
	proc.err = proc.cmd.Wait()
	close(proc.done)

	w.mu.Lock()
	if w.proc != proc || w.destroyed {
		w.mu.Unlock()
		return
	}
	w.proc = nil
	id := w.windowID
	w.windowID = 0
	closing := w.closing
	w.mu.Unlock()

	w.unbind(id)
	if closing || proc.err == nil {
		w.logger.Info("browser exited")
		fire(w.events.OnClose)
		return
	}
	w.logger.Warn("browser exited unexpectedly", "error", proc.err)
	fire(w.events.OnCrash)
}

// attach polls for the browser's top-level window, then pins it to the
// placement bounds and binds the window-local exit keys.
func (w *Window) attach(proc *process) {
	backend := w.host.opts.Backend
	pid := proc.cmd.Process.Pid
	deadline := time.Now().Add(w.host.opts.WindowTimeout)

	ticker := time.NewTicker(w.host.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-proc.done:
			return
		case <-ticker.C:
		}

		id, err := backend.FindWindowByPID(pid)
		if err == nil {
			w.place(proc, id)
			return
		}
		if !errors.Is(err, platform.ErrWindowNotFound) {
			w.logger.Debug("window lookup failed", "pid", pid, "error", err)
		}
		if time.Now().After(deadline) {
			w.logger.Warn("browser window did not appear", "pid", pid, "timeout", w.host.opts.WindowTimeout.String())
			return
		}
	}
}

func (w *Window) place(proc *process, id platform.WindowID) {
	w.mu.Lock()
	if w.proc != proc || w.destroyed {
		w.mu.Unlock()
		return
	}
	w.windowID = id
	w.mu.Unlock()

	if err := w.host.opts.Backend.PlaceKiosk(id, w.placement.Bounds); err != nil {
		w.logger.Warn("failed to place window", "window_id", id, "error", err)
	}
	if sc := w.host.opts.Shortcuts; sc != nil {
		if err := sc.BindWindow(id, hotkeys.ExitKeys, func() { fire(w.events.OnExitShortcut) }); err != nil {
			w.logger.Warn("failed to bind window exit keys", "window_id", id, "error", err)
		}
	}
	w.logger.Debug("window placed", "window_id", id, "bounds", w.placement.Bounds.String())
}

// Close asks the browser to close its window, and kills it if it has not
// exited after the grace period.
func (w *Window) Close() error {
	w.mu.Lock()
	if w.destroyed {
		w.mu.Unlock()
		return nil
	}
	w.closing = true
	w.stopPendingLocked()
	proc, id := w.proc, w.windowID
	w.mu.Unlock()

	if proc == nil {
		return nil
	}

	var err error
	if backend := w.host.opts.Backend; backend != nil && id != 0 {
		err = backend.Close(id)
	}
	if id == 0 || err != nil {
		err = ignoreDone(signalGroup(proc.cmd.Process, syscall.SIGTERM))
	}
	go w.waitOrKill(proc)
	return err
}

// Destroy kills the browser without reporting the exit.
func (w *Window) Destroy() error {
	w.mu.Lock()
	if w.destroyed {
		w.mu.Unlock()
		return nil
	}
	w.destroyed = true
	w.stopPendingLocked()
	proc, id := w.proc, w.windowID
	w.proc = nil
	w.windowID = 0
	w.mu.Unlock()

	w.unbind(id)
	if proc == nil {
		return nil
	}
	if err := ignoreDone(signalGroup(proc.cmd.Process, syscall.SIGKILL)); err != nil {
		return fmt.Errorf("failed to kill browser (PID %d): %w", proc.cmd.Process.Pid, err)
	}
	return nil
}

// Reload restarts the browser on the same profile and URL. Restarts are
// rate limited; an over-limit reload is deferred rather than dropped.
func (w *Window) Reload() error {
	return w.restart(true)
}

// Refresh restarts the browser like Reload but skips the crash limiter.
// It is driven by the reload interval, which sets its own pace.
func (w *Window) Refresh() error {
	return w.restart(false)
}

func (w *Window) restart(throttled bool) error {
	w.mu.Lock()
	if w.destroyed || w.closing {
		w.mu.Unlock()
		return nil
	}
	w.stopPendingLocked()
	old, id := w.proc, w.windowID
	w.proc = nil
	w.windowID = 0
	var delay time.Duration
	if throttled {
		delay = w.limiter.Reserve().Delay()
	}
	w.mu.Unlock()

	w.unbind(id)
	if old != nil {
		if err := ignoreDone(signalGroup(old.cmd.Process, syscall.SIGTERM)); err != nil {
			w.logger.Warn("failed to stop browser for reload", "error", err)
		}
	}

	respawn := func() {
		if old != nil {
			w.waitOrKill(old)
		}
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.destroyed || w.closing || w.proc != nil {
			return
		}
		if err := w.spawnLocked(); err != nil {
			w.logger.Error("failed to restart browser", "error", err)
		}
	}

	if delay > 0 {
		w.logger.Info("browser restart throttled", "delay", delay.String())
		w.mu.Lock()
		w.pending = time.AfterFunc(delay, respawn)
		w.mu.Unlock()
		return nil
	}
	go respawn()
	return nil
}

// waitOrKill waits for proc to exit, escalating to SIGKILL after the grace
// period.
func (w *Window) waitOrKill(proc *process) {
	timer := time.NewTimer(w.host.opts.CloseGrace)
	defer timer.Stop()

	select {
	case <-proc.done:
		return
	case <-timer.C:
	}
	w.logger.Warn("browser did not exit, killing", "pid", proc.cmd.Process.Pid)
	_ = signalGroup(proc.cmd.Process, syscall.SIGKILL)
	<-proc.done
}

func (w *Window) stopPendingLocked() {
	if w.pending != nil {
		w.pending.Stop()
		w.pending = nil
	}
}

func (w *Window) unbind(id platform.WindowID) {
	if id == 0 {
		return
	}
	if sc := w.host.opts.Shortcuts; sc != nil {
		sc.UnbindWindow(id)
	}
}

func fire(f func()) {
	if f != nil {
		f()
	}
}

// ignoreDone treats signalling an already exited process as success.
func ignoreDone(err error) error {
	if err == nil || errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}
