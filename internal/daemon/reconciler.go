// Package daemon holds the kiosk's background watchers.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/1broseidon/kiosk/internal/platform"
)

// DefaultInterval is the display poll cadence when none is configured.
const DefaultInterval = 2 * time.Second

// DisplayLister returns the currently connected displays.
type DisplayLister func() ([]platform.Display, error)

// Change describes how the display set moved between two polls.
type Change struct {
	Added   []platform.Display
	Removed []platform.Display
	// Changed holds displays that kept their output name but moved,
	// changed resolution or changed enumeration order.
	Changed []platform.Display
}

// Empty reports whether nothing changed.
func (c Change) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Changed) == 0
}

// ReconcilerConfig holds configuration for the reconciler.
type ReconcilerConfig struct {
	Interval time.Duration
	Logger   *slog.Logger
}

// Reconciler polls the display set and reports hotplug changes.
type Reconciler struct {
	interval     time.Duration
	listDisplays DisplayLister
	onChange     func(Change)
	logger       *slog.Logger

	primed bool
	hash   uint64
	last   map[string]platform.Display
}

// NewReconciler creates a new reconciler. onChange is called from the Run
// goroutine for every non-empty change after the first poll.
func NewReconciler(cfg ReconcilerConfig, listDisplays DisplayLister, onChange func(Change)) *Reconciler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Reconciler{
		interval:     interval,
		listDisplays: listDisplays,
		onChange:     onChange,
		logger:       logger,
	}
}

// Run polls until the context is cancelled. The first poll records the
// baseline without reporting a change.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("display watcher started", "interval", r.interval)
	r.reconcile()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("display watcher stopped")
			return
		case <-ticker.C:
			r.reconcile()
		}
	}
}

// ReconcileNow triggers an immediate poll.
func (r *Reconciler) ReconcileNow() {
	r.reconcile()
}

func (r *Reconciler) reconcile() {
	defer func() {
		if err := recover(); err != nil {
			r.logger.Error("display watcher panic recovered", "error", err)
		}
	}()

	displays, err := r.listDisplays()
	if err != nil {
		r.logger.Warn("display watcher: failed to list displays", "error", err)
		return
	}

	hash, err := Fingerprint(displays)
	if err != nil {
		r.logger.Warn("display watcher: failed to fingerprint displays", "error", err)
		return
	}
	if r.primed && hash == r.hash {
		return
	}

	current := index(displays)
	if !r.primed {
		r.primed = true
		r.hash = hash
		r.last = current
		return
	}

	change := diff(r.last, current)
	r.hash = hash
	r.last = current
	if change.Empty() {
		return
	}

	r.logger.Info("display configuration changed",
		"added", names(change.Added),
		"removed", names(change.Removed),
		"changed", names(change.Changed))
	if r.onChange != nil {
		r.onChange(change)
	}
}

// Fingerprint hashes a display set independent of enumeration order.
func Fingerprint(displays []platform.Display) (uint64, error) {
	return hashstructure.Hash(displays, hashstructure.FormatV2, &hashstructure.HashOptions{
		SlicesAsSets: true,
	})
}

func key(d platform.Display) string {
	if d.Name != "" {
		return d.Name
	}
	return fmt.Sprintf("#%d", d.ID)
}

func index(displays []platform.Display) map[string]platform.Display {
	m := make(map[string]platform.Display, len(displays))
	for _, d := range displays {
		m[key(d)] = d
	}
	return m
}

func diff(prev, cur map[string]platform.Display) Change {
	var c Change
	for k, d := range cur {
		old, ok := prev[k]
		switch {
		case !ok:
			c.Added = append(c.Added, d)
		case old.Bounds != d.Bounds || old.ID != d.ID:
			c.Changed = append(c.Changed, d)
		}
	}
	for k, d := range prev {
		if _, ok := cur[k]; !ok {
			c.Removed = append(c.Removed, d)
		}
	}
	sortByID(c.Added)
	sortByID(c.Removed)
	sortByID(c.Changed)
	return c
}

func sortByID(ds []platform.Display) {
	sort.Slice(ds, func(i, j int) bool { return ds[i].ID < ds[j].ID })
}

func names(ds []platform.Display) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, key(d))
	}
	return out
}
