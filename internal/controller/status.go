package controller

import (
	"time"

	"github.com/1broseidon/kiosk/internal/assign"
	"github.com/1broseidon/kiosk/internal/freshness"
)

// Status is a point-in-time snapshot of the controller, safe to read from
// any goroutine.
type Status struct {
	State       string             `json:"state"`
	Policy      string             `json:"policy"`
	TimerArmed  bool               `json:"timer_armed"`
	Pass        uint64             `json:"pass"`
	OpenWindows int                `json:"open_windows"`
	Shortcuts   bool               `json:"global_shortcuts"`
	Uptime      float64            `json:"uptime_seconds,omitempty"`
	UptimeKnown bool               `json:"uptime_known"`
	FreshBoot   bool               `json:"fresh_boot"`
	Completed   bool               `json:"completion_marker"`
	StartedAt   time.Time          `json:"started_at"`
	Placements  []assign.Placement `json:"placements"`
}

// Status returns the latest snapshot.
func (c *Controller) Status() Status {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	s := c.status
	s.Placements = append([]assign.Placement(nil), c.status.Placements...)
	return s
}

// State returns the current state from the latest snapshot.
func (c *Controller) State() State {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.statusState
}

// publish refreshes the snapshot. Called on the controller goroutine only.
func (c *Controller) publish() {
	s := Status{
		State:       c.state.String(),
		Policy:      c.policy.Name(),
		TimerArmed:  c.timerArmed,
		Pass:        c.pass,
		Shortcuts:   c.shortcuts,
		Uptime:      c.startObs.Uptime,
		UptimeKnown: c.startObs.UptimeKnown,
		FreshBoot:   c.startObs.UptimeKnown && freshness.IsFreshBoot(c.startObs.Uptime),
		Completed:   c.startObs.HasCompletion,
		StartedAt:   c.startedAt,
	}
	for _, ow := range c.windows {
		s.Placements = append(s.Placements, ow.placement)
		if !ow.closed {
			s.OpenWindows++
		}
	}

	c.statusMu.Lock()
	c.status = s
	c.statusState = c.state
	c.statusMu.Unlock()
}
