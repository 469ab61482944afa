package freshness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/kiosk/internal/marker"
)

func TestIsFreshBoot_Boundary(t *testing.T) {
	assert.True(t, IsFreshBoot(0))
	assert.True(t, IsFreshBoot(119.999))
	assert.False(t, IsFreshBoot(120.0))
	assert.False(t, IsFreshBoot(86400))
}

func TestSameBoot_Boundary(t *testing.T) {
	assert.True(t, SameBoot(105, 100))
	assert.True(t, SameBoot(100, 109.99))
	assert.False(t, SameBoot(110, 100))
	assert.False(t, SameBoot(100, 110))
	assert.False(t, SameBoot(30, 4000))
}

func TestParse(t *testing.T) {
	p, err := Parse("")
	require.NoError(t, err)
	assert.Equal(t, SessionCountName, p.Name())

	p, err = Parse(" Boot ")
	require.NoError(t, err)
	assert.Equal(t, BootEpochName, p.Name())
	assert.Equal(t, marker.BootCompleted, p.Marker())

	_, err = Parse("weekly")
	assert.Error(t, err)
}

func TestSessionCount(t *testing.T) {
	p := SessionCount{}

	assert.True(t, p.ShouldArm(Observation{}))
	assert.True(t, p.ShouldArm(Observation{Uptime: 99999, UptimeKnown: true}))
	assert.False(t, p.ShouldArm(Observation{HasCompletion: true, Completion: "2026-01-01T00:00:00.000Z"}))
	// Presence is all that matters.
	assert.False(t, p.ShouldArm(Observation{HasCompletion: true, Completion: "garbage"}))

	now := time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)
	assert.Equal(t, "2026-05-04T03:02:01.000Z", p.Payload(Observation{}, now))
}

func TestBootEpoch_ShouldArm(t *testing.T) {
	p := BootEpoch{}

	tests := []struct {
		name string
		obs  Observation
		want bool
	}{
		{"fresh boot, no marker", Observation{Uptime: 30, UptimeKnown: true}, true},
		{"long running, no marker", Observation{Uptime: 300, UptimeKnown: true}, false},
		{"fresh boot, marker from this boot", Observation{Uptime: 30, UptimeKnown: true, HasCompletion: true, Completion: "25.10"}, false},
		{"fresh boot, marker from previous boot", Observation{Uptime: 30, UptimeKnown: true, HasCompletion: true, Completion: "5400.00"}, true},
		{"fresh boot, marker exactly at tolerance", Observation{Uptime: 30, UptimeKnown: true, HasCompletion: true, Completion: "20"}, true},
		{"fresh boot, malformed marker", Observation{Uptime: 30, UptimeKnown: true, HasCompletion: true, Completion: "yesterday"}, true},
		{"uptime unknown", Observation{HasCompletion: false}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, p.ShouldArm(tc.obs))
		})
	}
}

func TestBootEpoch_PayloadIsUptime(t *testing.T) {
	p := BootEpoch{}
	got := p.Payload(Observation{Uptime: 35.126, UptimeKnown: true}, time.Now())
	assert.Equal(t, "35.126", got)

	v, ok := ParseUptime(got)
	require.True(t, ok)
	assert.True(t, SameBoot(36, v))
}

func TestBootEpoch_StoredUptimeKeepsBoundaryExact(t *testing.T) {
	p := BootEpoch{}
	stored := 100.004
	payload := p.Payload(Observation{Uptime: stored, UptimeKnown: true}, time.Now())

	v, ok := ParseUptime(payload)
	require.True(t, ok)
	assert.Equal(t, stored, v)

	// 9.999s later is still the same boot, so the cycle must not re-arm.
	obs := Observation{Uptime: 110.003, UptimeKnown: true, HasCompletion: true, Completion: payload}
	assert.True(t, p.Done(obs))
	assert.False(t, p.ShouldArm(obs))
}

func TestParseUptime(t *testing.T) {
	v, ok := ParseUptime("12.5\n")
	require.True(t, ok)
	assert.Equal(t, 12.5, v)

	for _, bad := range []string{"", "abc", "-1", "NaN", "+Inf"} {
		_, ok := ParseUptime(bad)
		assert.False(t, ok, bad)
	}
}

func TestReadProcUptime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uptime")
	require.NoError(t, os.WriteFile(path, []byte("3512.44 12000.01\n"), 0644))

	v, err := readProcUptime(path)
	require.NoError(t, err)
	assert.Equal(t, 3512.44, v)

	require.NoError(t, os.WriteFile(path, []byte("\n"), 0644))
	_, err = readProcUptime(path)
	assert.Error(t, err)

	_, err = readProcUptime(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
