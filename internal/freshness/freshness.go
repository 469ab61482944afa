// Package freshness decides whether the current boot still owes its one-time
// restart cycle. Policies are pure functions of the current uptime and the
// completion marker contents.
package freshness

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/1broseidon/kiosk/internal/marker"
)

const (
	// FreshBootThreshold is the uptime below which a start counts as
	// following a reboot.
	FreshBootThreshold = 120.0
	// SameBootTolerance is the maximum uptime distance, in seconds, between
	// a stored completion value and the current uptime for both to describe
	// the same boot.
	SameBootTolerance = 10.0
)

// IsFreshBoot reports whether uptime (seconds) is below FreshBootThreshold.
func IsFreshBoot(uptime float64) bool {
	return uptime < FreshBootThreshold
}

// SameBoot reports whether a completion marker written at stored uptime
// belongs to the boot whose uptime is now current.
func SameBoot(current, stored float64) bool {
	return math.Abs(current-stored) < SameBootTolerance
}

// Observation is everything a policy may look at.
type Observation struct {
	Uptime        float64
	UptimeKnown   bool
	Completion    string
	HasCompletion bool
}

// Policy decides whether to arm the restart timer and what the completion
// marker records.
type Policy interface {
	Name() string
	Marker() marker.Completion
	ShouldArm(obs Observation) bool
	Payload(obs Observation, now time.Time) string
}

// Policy names accepted by Parse.
const (
	SessionCountName = "session"
	BootEpochName    = "boot"
)

// Parse returns the policy registered under name. Empty selects the
// session-count policy.
func Parse(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", SessionCountName, "session-count":
		return SessionCount{}, nil
	case BootEpochName, "boot-epoch":
		return BootEpoch{}, nil
	default:
		return nil, fmt.Errorf("unknown restart policy %q (want %q or %q)", name, SessionCountName, BootEpochName)
	}
}

// SessionCount restarts exactly once over the lifetime of the install: the
// completion marker is a presence flag that is never cleared automatically.
type SessionCount struct{}

func (SessionCount) Name() string              { return SessionCountName }
func (SessionCount) Marker() marker.Completion { return marker.SessionCompleted }

// Done reports whether the lifetime restart already happened.
func (SessionCount) Done(obs Observation) bool {
	return obs.HasCompletion
}

func (p SessionCount) ShouldArm(obs Observation) bool {
	return !p.Done(obs)
}

func (SessionCount) Payload(_ Observation, now time.Time) string {
	return now.UTC().Format(marker.TimestampLayout)
}

// BootEpoch restarts once per boot, and only while the boot is fresh. The
// completion marker stores the uptime at completion.
type BootEpoch struct{}

func (BootEpoch) Name() string              { return BootEpochName }
func (BootEpoch) Marker() marker.Completion { return marker.BootCompleted }

// Fresh reports whether the observation describes a freshly booted system.
// An unknown uptime is never fresh.
func (BootEpoch) Fresh(obs Observation) bool {
	return obs.UptimeKnown && IsFreshBoot(obs.Uptime)
}

// Done reports whether the restart cycle already completed for this boot.
func (BootEpoch) Done(obs Observation) bool {
	if !obs.HasCompletion || !obs.UptimeKnown {
		return false
	}
	stored, ok := ParseUptime(obs.Completion)
	if !ok {
		return false
	}
	return SameBoot(obs.Uptime, stored)
}

func (p BootEpoch) ShouldArm(obs Observation) bool {
	return p.Fresh(obs) && !p.Done(obs)
}

func (BootEpoch) Payload(obs Observation, _ time.Time) string {
	return FormatUptime(obs.Uptime)
}

// FormatUptime renders seconds the way boot markers store them: the
// shortest decimal that parses back to the same value, so the same-boot
// comparison sees exactly the uptime that was observed.
func FormatUptime(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', -1, 64)
}

// ParseUptime parses a stored uptime. Negative, NaN and infinite values are
// rejected.
func ParseUptime(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}
