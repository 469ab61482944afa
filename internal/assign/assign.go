// Package assign maps configured kiosk windows onto the displays that are
// attached right now.
package assign

import (
	"github.com/1broseidon/kiosk/internal/config"
	"github.com/1broseidon/kiosk/internal/platform"
)

// DefaultBounds is used when no display is attached at all.
var DefaultBounds = platform.Rect{X: 0, Y: 0, Width: 1920, Height: 1080}

// Placement is one concrete window to open during a materialization pass.
type Placement struct {
	// Index is the window's position in the configured list.
	Index int `json:"index"`
	// RequestedDisplay is the display index the config asked for (explicit
	// or positional).
	RequestedDisplay int `json:"requestedDisplay"`
	// DisplayIndex is the display actually used, or -1 when there were no
	// displays and DefaultBounds applies.
	DisplayIndex  int           `json:"displayIndex"`
	DisplayName   string        `json:"displayName,omitempty"`
	Bounds        platform.Rect `json:"bounds"`
	URL           string        `json:"url"`
	ShortcutOwner bool          `json:"shortcutOwner"`
}

// FellBack reports whether the requested display was unavailable.
func (p Placement) FellBack() bool {
	return p.DisplayIndex != p.RequestedDisplay
}

// Materialize produces one placement per configured window, in order. It has
// no side effects.
func Materialize(cfg *config.Config, displays []platform.Display) []Placement {
	if cfg == nil {
		return nil
	}

	placements := make([]Placement, 0, len(cfg.Windows))
	for i, spec := range cfg.Windows {
		requested := i
		if spec.DisplayIndex != nil {
			requested = *spec.DisplayIndex
		}

		p := Placement{
			Index:            i,
			RequestedDisplay: requested,
			URL:              resolveURL(spec, cfg),
			ShortcutOwner:    i == 0,
		}

		switch {
		case len(displays) == 0:
			p.DisplayIndex = -1
			p.Bounds = DefaultBounds
		case requested >= 0 && requested < len(displays):
			p.DisplayIndex = requested
		default:
			p.DisplayIndex = 0
		}
		if p.DisplayIndex >= 0 {
			d := displays[p.DisplayIndex]
			p.Bounds = d.Bounds
			p.DisplayName = d.Name
		}

		placements = append(placements, p)
	}
	return placements
}

func resolveURL(spec config.WindowSpec, cfg *config.Config) string {
	if spec.URL != "" {
		return spec.URL
	}
	if cfg.FallbackURL != "" {
		return cfg.FallbackURL
	}
	return config.BlankURL
}
