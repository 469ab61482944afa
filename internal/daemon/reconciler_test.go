package daemon

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/kiosk/internal/platform"
)

func display(id int, name string, x int) platform.Display {
	return platform.Display{ID: id, Name: name, Bounds: platform.Rect{X: x, Width: 1920, Height: 1080}}
}

type scripted struct {
	sets [][]platform.Display
	errs []error
	call int
}

func (s *scripted) list() ([]platform.Display, error) {
	i := s.call
	s.call++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i >= len(s.sets) {
		i = len(s.sets) - 1
	}
	return s.sets[i], nil
}

func newTestReconciler(s *scripted, changes *[]Change) *Reconciler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewReconciler(ReconcilerConfig{Logger: logger}, s.list, func(c Change) {
		*changes = append(*changes, c)
	})
}

func TestReconcilerFirstPollOnlyPrimes(t *testing.T) {
	s := &scripted{sets: [][]platform.Display{{display(0, "DP-1", 0)}}}
	var changes []Change
	r := newTestReconciler(s, &changes)

	r.ReconcileNow()
	r.ReconcileNow()

	assert.Empty(t, changes)
	assert.Equal(t, 2, s.call)
}

func TestReconcilerReportsAddedAndRemoved(t *testing.T) {
	s := &scripted{sets: [][]platform.Display{
		{display(0, "DP-1", 0)},
		{display(0, "DP-1", 0), display(1, "HDMI-1", 1920)},
		{display(0, "HDMI-1", 1920)},
	}}
	var changes []Change
	r := newTestReconciler(s, &changes)

	r.ReconcileNow()
	r.ReconcileNow()
	require.Len(t, changes, 1)
	assert.Equal(t, []platform.Display{display(1, "HDMI-1", 1920)}, changes[0].Added)
	assert.Empty(t, changes[0].Removed)

	r.ReconcileNow()
	require.Len(t, changes, 2)
	assert.Equal(t, "DP-1", changes[1].Removed[0].Name)
	assert.Equal(t, "HDMI-1", changes[1].Changed[0].Name, "HDMI-1 moved to index 0")
}

func TestReconcilerReportsGeometryChange(t *testing.T) {
	s := &scripted{sets: [][]platform.Display{
		{display(0, "DP-1", 0)},
		{{ID: 0, Name: "DP-1", Bounds: platform.Rect{Width: 3840, Height: 2160}}},
	}}
	var changes []Change
	r := newTestReconciler(s, &changes)

	r.ReconcileNow()
	r.ReconcileNow()

	require.Len(t, changes, 1)
	assert.Len(t, changes[0].Changed, 1)
	assert.Empty(t, changes[0].Added)
}

func TestReconcilerIgnoresListErrors(t *testing.T) {
	s := &scripted{
		sets: [][]platform.Display{
			{display(0, "DP-1", 0)},
			nil,
			{display(0, "DP-1", 0)},
		},
		errs: []error{nil, errors.New("x connection lost"), nil},
	}
	var changes []Change
	r := newTestReconciler(s, &changes)

	r.ReconcileNow()
	r.ReconcileNow()
	r.ReconcileNow()

	assert.Empty(t, changes, "a failed poll is not an unplug")
}

func TestFingerprintIgnoresOrder(t *testing.T) {
	a := []platform.Display{display(0, "DP-1", 0), display(1, "DP-2", 1920)}
	b := []platform.Display{a[1], a[0]}

	ha, err := Fingerprint(a)
	require.NoError(t, err)
	hb, err := Fingerprint(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)

	hc, err := Fingerprint(a[:1])
	require.NoError(t, err)
	assert.NotEqual(t, ha, hc)
}

func TestChangeEmpty(t *testing.T) {
	assert.True(t, Change{}.Empty())
	assert.False(t, Change{Removed: []platform.Display{display(0, "DP-1", 0)}}.Empty())
}
