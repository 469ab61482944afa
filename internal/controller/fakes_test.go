package controller

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/kiosk/internal/assign"
	"github.com/1broseidon/kiosk/internal/config"
	"github.com/1broseidon/kiosk/internal/freshness"
	"github.com/1broseidon/kiosk/internal/marker"
	"github.com/1broseidon/kiosk/internal/platform"
)

type fakeTimer struct {
	at      time.Duration
	seq     int
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// fakeScheduler runs callbacks only when Advance moves past their deadline.
type fakeScheduler struct {
	now    time.Duration
	seq    int
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.seq++
	t := &fakeTimer{at: s.now + d, seq: s.seq, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) Advance(d time.Duration) {
	target := s.now + d
	for {
		var due []*fakeTimer
		for _, t := range s.timers {
			if !t.stopped && !t.fired && t.at <= target {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			break
		}
		sort.Slice(due, func(i, j int) bool {
			if due[i].at != due[j].at {
				return due[i].at < due[j].at
			}
			return due[i].seq < due[j].seq
		})
		t := due[0]
		s.now = t.at
		t.fired = true
		t.f()
	}
	s.now = target
}

func (s *fakeScheduler) pending() int {
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type fakeWindow struct {
	host      *fakeHost
	placement assign.Placement
	events    WindowEvents
	closes    int
	destroyed bool
	reloads   int
	refreshes int
}

func (w *fakeWindow) Close() error {
	w.closes++
	if w.host.notifyOnClose {
		w.events.OnClose()
	}
	return nil
}

func (w *fakeWindow) Destroy() error {
	w.destroyed = true
	return nil
}

func (w *fakeWindow) Reload() error {
	w.reloads++
	return nil
}

func (w *fakeWindow) Refresh() error {
	w.refreshes++
	return nil
}

type fakeHost struct {
	mu            sync.Mutex
	displays      []platform.Display
	displaysErr   error
	openErr       map[int]error
	notifyOnClose bool

	windows      []*fakeWindow
	registered   int
	unregistered int
	globalExit   func()
}

func (h *fakeHost) Displays() ([]platform.Display, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.displaysErr != nil {
		return nil, h.displaysErr
	}
	return append([]platform.Display(nil), h.displays...), nil
}

func (h *fakeHost) OpenWindow(p assign.Placement, events WindowEvents) (Window, error) {
	if err := h.openErr[p.Index]; err != nil {
		return nil, err
	}
	w := &fakeWindow{host: h, placement: p, events: events}
	h.windows = append(h.windows, w)
	return w, nil
}

func (h *fakeHost) RegisterGlobalShortcuts(onExit func()) error {
	h.registered++
	h.globalExit = onExit
	return nil
}

func (h *fakeHost) UnregisterGlobalShortcuts() {
	h.unregistered++
	h.globalExit = nil
}

func (h *fakeHost) setDisplays(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.displays = testDisplays(n)
}

type fakeProcess struct {
	relaunches  int
	relaunchErr error
	exitCodes   []int
}

func (p *fakeProcess) Relaunch() error {
	p.relaunches++
	return p.relaunchErr
}

func (p *fakeProcess) Exit(code int) {
	p.exitCodes = append(p.exitCodes, code)
}

type staticConfig struct {
	cfg   *config.Config
	loads int
}

func (s *staticConfig) Load() *config.Config {
	s.loads++
	return s.cfg
}

type countingObserver struct {
	states        []State
	materialized  []string
	crashes       int
	reloads       int
	restartCycles int
}

func (o *countingObserver) StateChanged(s State) { o.states = append(o.states, s) }
func (o *countingObserver) Materialized(reason string, _ int) {
	o.materialized = append(o.materialized, reason)
}
func (o *countingObserver) WindowCrashed()       { o.crashes++ }
func (o *countingObserver) WindowReloaded()      { o.reloads++ }
func (o *countingObserver) RestartCycleStarted() { o.restartCycles++ }

func testDisplays(n int) []platform.Display {
	out := make([]platform.Display, n)
	for i := range out {
		out[i] = platform.Display{
			ID:     i,
			Name:   fmt.Sprintf("DP-%d", i+1),
			Bounds: platform.Rect{X: i * 1920, Y: 0, Width: 1920, Height: 1080},
		}
	}
	return out
}

func twoWindowConfig() *config.Config {
	return &config.Config{Windows: []config.WindowSpec{
		{URL: "https://left.example"},
		{URL: "https://right.example"},
	}}
}

type harness struct {
	t         *testing.T
	c         *Controller
	host      *fakeHost
	proc      *fakeProcess
	sched     *fakeScheduler
	store     *marker.Store
	config    *staticConfig
	observer  *countingObserver
	uptime    float64
	uptimeErr error
	clock     time.Time
}

func newHarness(t *testing.T, policy freshness.Policy, cfg *config.Config) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &harness{
		t:        t,
		host:     &fakeHost{displays: testDisplays(2), notifyOnClose: true},
		proc:     &fakeProcess{},
		sched:    &fakeScheduler{},
		store:    marker.NewStore(t.TempDir(), logger),
		config:   &staticConfig{cfg: cfg},
		observer: &countingObserver{},
		uptime:   3600,
		clock:    time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	h.c = New(Options{
		Host:      h.host,
		Process:   h.proc,
		Markers:   h.store,
		Policy:    policy,
		Config:    h.config,
		Uptime:    h.readUptime,
		Scheduler: h.sched,
		Observer:  h.observer,
		Logger:    logger,
		Now:       func() time.Time { return h.clock },
	})
	return h
}

func (h *harness) readUptime() (float64, error) {
	if h.uptimeErr != nil {
		return 0, h.uptimeErr
	}
	return h.uptime, nil
}

func (h *harness) ready() {
	h.c.handle(Event{Kind: EventReady})
	h.c.drain()
}

func (h *harness) advance(d time.Duration) {
	h.uptime += d.Seconds()
	h.sched.Advance(d)
	h.c.drain()
}

func (h *harness) dispatch(ev Event) {
	h.c.Dispatch(ev)
	h.c.drain()
}

var errNoX = errors.New("no X server")
