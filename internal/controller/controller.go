// Package controller drives the kiosk restart cycle: it materializes
// windows, arms the one-time restart timer, and relaunches the process once
// per cycle as decided by the active freshness policy.
package controller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/1broseidon/kiosk/internal/assign"
	"github.com/1broseidon/kiosk/internal/freshness"
	"github.com/1broseidon/kiosk/internal/platform"
)

const (
	// AutoCloseDelay is how long windows stay open before the restart.
	AutoCloseDelay = 5 * time.Second
	// SettleDelay is the pause between closing windows and relaunching.
	SettleDelay = 500 * time.Millisecond
)

// Options wires a Controller to its collaborators.
type Options struct {
	Host      Host
	Process   Process
	Markers   Markers
	Policy    freshness.Policy
	Config    ConfigSource
	Uptime    freshness.UptimeFunc
	Scheduler Scheduler
	Observer  Observer
	Logger    *slog.Logger
	Now       func() time.Time

	RestartDelay time.Duration
	SettleDelay  time.Duration
}

type openWindow struct {
	placement assign.Placement
	window    Window
	closed    bool
	reload    Timer
}

// Controller owns all restart-cycle state. Every transition happens on the
// goroutine running Run; other goroutines only Dispatch events.
type Controller struct {
	host      Host
	process   Process
	markers   Markers
	policy    freshness.Policy
	configs   ConfigSource
	uptime    freshness.UptimeFunc
	scheduler Scheduler
	observer  Observer
	logger    *slog.Logger
	now       func() time.Time

	restartDelay time.Duration
	settleDelay  time.Duration

	events chan Event
	done   chan struct{}

	state          State
	timerArmed     bool
	restartTimer   Timer
	settleTimer    Timer
	pass           uint64
	windows        []*openWindow
	reloadInterval time.Duration
	shortcuts      bool
	startObs       freshness.Observation
	startedAt      time.Time

	statusMu    sync.RWMutex
	status      Status
	statusState State
}

// New creates a controller. Host, Process, Markers, Policy and Config are
// required; the rest have defaults.
func New(opts Options) *Controller {
	c := &Controller{
		host:         opts.Host,
		process:      opts.Process,
		markers:      opts.Markers,
		policy:       opts.Policy,
		configs:      opts.Config,
		uptime:       opts.Uptime,
		scheduler:    opts.Scheduler,
		observer:     opts.Observer,
		logger:       opts.Logger,
		now:          opts.Now,
		restartDelay: opts.RestartDelay,
		settleDelay:  opts.SettleDelay,
		events:       make(chan Event, 64),
		done:         make(chan struct{}),
	}
	if c.policy == nil {
		c.policy = freshness.SessionCount{}
	}
	if c.uptime == nil {
		c.uptime = freshness.SystemUptime
	}
	if c.scheduler == nil {
		c.scheduler = RealScheduler{}
	}
	if c.observer == nil {
		c.observer = nopObserver{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.restartDelay <= 0 {
		c.restartDelay = AutoCloseDelay
	}
	if c.settleDelay <= 0 {
		c.settleDelay = SettleDelay
	}
	c.status = Status{State: StateStarting.String(), Policy: c.policy.Name()}
	return c
}

// Dispatch queues an event for the controller goroutine. It never blocks
// after Run has returned.
func (c *Controller) Dispatch(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// Run starts the controller and processes events until the state machine
// terminates. Cancelling ctx is treated as a shutdown request.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)

	c.handle(Event{Kind: EventReady})
	for c.state != StateTerminated {
		select {
		case <-ctx.Done():
			c.handle(Event{Kind: EventShutdown, Reason: ctx.Err().Error()})
		case ev := <-c.events:
			c.handle(ev)
		}
	}
	return nil
}

// Done is closed once Run has returned.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// drain handles every queued event without blocking.
func (c *Controller) drain() {
	for {
		select {
		case ev := <-c.events:
			c.handle(ev)
		default:
			return
		}
	}
}

func (c *Controller) handle(ev Event) {
	if c.state == StateTerminated {
		return
	}
	if ev.windowScoped() && ev.Pass != c.pass {
		c.logger.Debug("ignoring event from previous window pass",
			"event", ev.Kind.String(), "pass", ev.Pass, "current", c.pass)
		return
	}

	switch ev.Kind {
	case EventReady:
		if c.state == StateStarting {
			c.start()
		}
	case EventRestartTimerFired:
		if c.state == StateWindowsOpen && c.timerArmed {
			c.beginRestart()
		}
	case EventSettleElapsed:
		if c.state == StateRestartInFlight {
			c.relaunch()
		}
	case EventDisplayAdded, EventDisplayRemoved, EventRematerialize:
		if c.state == StateWindowsOpen {
			c.logger.Info("rematerializing windows", "event", ev.Kind.String(), "reason", ev.Reason)
			c.destroyWindows()
			c.materialize(ev.Kind.String())
		}
	case EventExitShortcut:
		if c.state == StateRestartInFlight {
			c.logger.Info("exit shortcut ignored while restart is in flight", "source", ev.Reason)
			return
		}
		c.quit("exit shortcut: " + ev.Reason)
	case EventShutdown:
		c.quit("shutdown: " + ev.Reason)
	case EventWindowCrashed:
		c.windowCrashed(ev.Window)
	case EventWindowClosed:
		c.windowClosed(ev.Window)
	case EventReloadTick:
		c.reloadTick(ev.Window)
	}
}

func (c *Controller) start() {
	c.startedAt = c.now()
	c.startObs = c.observe()

	if c.markers.HasInFlight() {
		c.setState(StateResumedAfterRestart)
		c.logger.Info("app was restarted, skipping auto-close")
		c.markers.ClearInFlight()
		c.materialize("startup")
		c.setState(StateWindowsOpen)
		return
	}

	c.setState(StateColdStart)
	c.materialize("startup")
	if c.policy.ShouldArm(c.startObs) {
		c.logger.Info("scheduling one-time restart",
			"policy", c.policy.Name(), "delay", c.restartDelay.String())
		c.restartTimer = c.scheduler.AfterFunc(c.restartDelay, func() {
			c.Dispatch(Event{Kind: EventRestartTimerFired})
		})
		c.timerArmed = true
	} else {
		c.logger.Info("restart cycle not needed",
			"policy", c.policy.Name(),
			"uptime", c.startObs.Uptime,
			"uptime_known", c.startObs.UptimeKnown,
			"completed", c.startObs.HasCompletion)
	}
	c.setState(StateWindowsOpen)
}

// observe samples uptime and the active policy's completion marker.
func (c *Controller) observe() freshness.Observation {
	var obs freshness.Observation
	if up, err := c.uptime(); err != nil {
		c.logger.Warn("system uptime unavailable", "error", err)
	} else {
		obs.Uptime = up
		obs.UptimeKnown = true
	}
	obs.Completion, obs.HasCompletion = c.markers.ReadCompletion(c.policy.Marker())
	return obs
}

func (c *Controller) beginRestart() {
	c.logger.Info("auto-closing windows for one-time restart")
	c.setState(StateRestartInFlight)
	c.timerArmed = false
	c.restartTimer = nil
	c.observer.RestartCycleStarted()

	c.stopReloads()
	c.unregisterShortcuts()

	obs := c.startObs
	if up, err := c.uptime(); err == nil {
		obs.Uptime = up
		obs.UptimeKnown = true
	}
	c.markers.WriteInFlight()
	c.markers.WriteCompletion(c.policy.Marker(), c.policy.Payload(obs, c.now()))

	c.closeWindows()
	c.settleTimer = c.scheduler.AfterFunc(c.settleDelay, func() {
		c.Dispatch(Event{Kind: EventSettleElapsed})
	})
	c.publish()
}

func (c *Controller) relaunch() {
	c.settleTimer = nil
	c.logger.Info("relaunching")
	if err := c.process.Relaunch(); err != nil {
		c.logger.Error("relaunch failed", "error", err)
	}
	c.setState(StateTerminated)
	c.process.Exit(0)
}

// quit is the manual exit path. It never touches restart markers.
func (c *Controller) quit(reason string) {
	c.logger.Info("exiting", "reason", reason)
	if c.restartTimer != nil {
		c.restartTimer.Stop()
		c.restartTimer = nil
	}
	if c.settleTimer != nil {
		c.settleTimer.Stop()
		c.settleTimer = nil
	}
	c.timerArmed = false
	c.stopReloads()
	c.closeWindows()
	c.unregisterShortcuts()
	c.setState(StateTerminated)
}

func (c *Controller) materialize(reason string) {
	cfg := c.configs.Load()

	displays, err := c.host.Displays()
	if err != nil {
		c.logger.Warn("failed to enumerate displays", "error", err)
		displays = nil
	}
	c.logger.Info("detected displays", "count", len(displays), "displays", displayNames(displays))

	placements := assign.Materialize(cfg, displays)
	c.pass++
	pass := c.pass
	c.windows = nil
	c.reloadInterval = cfg.ReloadInterval()

	for _, p := range placements {
		if p.FellBack() {
			c.logger.Warn("requested display not available, using primary",
				"window", p.Index, "requested", p.RequestedDisplay)
		}
		index := p.Index
		w, err := c.host.OpenWindow(p, WindowEvents{
			OnCrash: func() {
				c.Dispatch(Event{Kind: EventWindowCrashed, Pass: pass, Window: index})
			},
			OnClose: func() {
				c.Dispatch(Event{Kind: EventWindowClosed, Pass: pass, Window: index})
			},
			OnExitShortcut: func() {
				c.Dispatch(Event{Kind: EventExitShortcut, Reason: "window shortcut"})
			},
		})
		if err != nil {
			c.logger.Error("failed to open window", "window", index, "url", p.URL, "error", err)
		} else {
			c.logger.Info("opened window",
				"window", index, "display", p.DisplayIndex, "bounds", p.Bounds.String(), "url", p.URL)
			ow := &openWindow{placement: p, window: w}
			c.windows = append(c.windows, ow)
			c.scheduleReload(ow, pass)
		}

		if p.ShortcutOwner && !c.shortcuts {
			err := c.host.RegisterGlobalShortcuts(func() {
				c.Dispatch(Event{Kind: EventExitShortcut, Reason: "global shortcut"})
			})
			if err != nil {
				c.logger.Warn("failed to register global exit shortcuts", "error", err)
			} else {
				c.shortcuts = true
			}
		}
	}

	c.observer.Materialized(reason, len(c.windows))
	c.publish()
}

func (c *Controller) scheduleReload(ow *openWindow, pass uint64) {
	if c.reloadInterval <= 0 {
		return
	}
	index := ow.placement.Index
	ow.reload = c.scheduler.AfterFunc(c.reloadInterval, func() {
		c.Dispatch(Event{Kind: EventReloadTick, Pass: pass, Window: index})
	})
}

func (c *Controller) find(index int) *openWindow {
	for _, ow := range c.windows {
		if ow.placement.Index == index {
			return ow
		}
	}
	return nil
}

func (c *Controller) windowCrashed(index int) {
	ow := c.find(index)
	if ow == nil || ow.closed || c.state != StateWindowsOpen {
		return
	}
	c.logger.Warn("window content crashed, reloading", "window", index)
	c.observer.WindowCrashed()
	if err := ow.window.Reload(); err != nil {
		c.logger.Error("failed to reload crashed window", "window", index, "error", err)
	}
}

func (c *Controller) windowClosed(index int) {
	ow := c.find(index)
	if ow == nil || ow.closed {
		return
	}
	ow.closed = true
	if ow.reload != nil {
		ow.reload.Stop()
		ow.reload = nil
	}
	c.logger.Info("window closed", "window", index)
	c.publish()

	for _, w := range c.windows {
		if !w.closed {
			return
		}
	}
	if c.state == StateRestartInFlight {
		return
	}
	c.quit("all windows closed")
}

func (c *Controller) reloadTick(index int) {
	ow := c.find(index)
	if ow == nil || ow.closed || c.state != StateWindowsOpen {
		return
	}
	c.logger.Debug("reloading window", "window", index)
	if err := ow.window.Refresh(); err != nil {
		c.logger.Error("failed to reload window", "window", index, "error", err)
	} else {
		c.observer.WindowReloaded()
	}
	c.scheduleReload(ow, c.pass)
}

func (c *Controller) stopReloads() {
	for _, ow := range c.windows {
		if ow.reload != nil {
			ow.reload.Stop()
			ow.reload = nil
		}
	}
}

// closeWindows asks every open window to close. Failures are logged.
func (c *Controller) closeWindows() {
	for _, ow := range c.windows {
		if ow.closed {
			continue
		}
		if err := ow.window.Close(); err != nil {
			c.logger.Warn("failed to close window", "window", ow.placement.Index, "error", err)
		}
	}
}

// destroyWindows drops the current pass without firing window callbacks.
func (c *Controller) destroyWindows() {
	c.stopReloads()
	for _, ow := range c.windows {
		if ow.closed {
			continue
		}
		if err := ow.window.Destroy(); err != nil {
			c.logger.Warn("failed to destroy window", "window", ow.placement.Index, "error", err)
		}
	}
	c.windows = nil
}

func (c *Controller) unregisterShortcuts() {
	if c.shortcuts {
		c.host.UnregisterGlobalShortcuts()
		c.shortcuts = false
	}
}

func (c *Controller) setState(s State) {
	if c.state == s {
		return
	}
	c.logger.Debug("state transition", "from", c.state.String(), "to", s.String())
	c.state = s
	c.observer.StateChanged(s)
	c.publish()
}

func displayNames(displays []platform.Display) []string {
	names := make([]string, 0, len(displays))
	for _, d := range displays {
		names = append(names, d.Name+" "+d.Bounds.String())
	}
	return names
}
