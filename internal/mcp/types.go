package mcp

import "github.com/1broseidon/kiosk/internal/assign"

// StatusInput is the input for the kiosk_status tool.
type StatusInput struct{}

// StatusOutput is the output for the kiosk_status tool.
type StatusOutput struct {
	State          string `json:"state"`
	Policy         string `json:"policy"`
	TimerArmed     bool   `json:"timer_armed"`
	OpenWindows    int    `json:"open_windows"`
	Pass           uint64 `json:"pass"`
	UptimeKnown    bool   `json:"uptime_known"`
	UptimeSeconds  string `json:"uptime_seconds,omitempty"`
	CompletionSeen bool   `json:"completion_marker"`
	PID            int    `json:"pid"`
}

// ListDisplaysInput is the input for the list_displays tool.
type ListDisplaysInput struct{}

// DisplayInfo describes a single connected display.
type DisplayInfo struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Geometry string `json:"geometry"`
}

// ListDisplaysOutput is the output for the list_displays tool.
type ListDisplaysOutput struct {
	Displays []DisplayInfo `json:"displays"`
}

// WindowPlanInput is the input for the window_plan tool.
type WindowPlanInput struct {
	Preview bool `json:"preview,omitempty" jsonschema:"When true, also return the placements a rematerialization would produce from the config on disk"`
}

// WindowPlanOutput is the output for the window_plan tool.
type WindowPlanOutput struct {
	Current []assign.Placement `json:"current"`
	Preview []assign.Placement `json:"preview,omitempty"`
}

// RematerializeInput is the input for the rematerialize_windows tool.
type RematerializeInput struct {
	Reason string `json:"reason,omitempty" jsonschema:"Free-text reason recorded in the kiosk log"`
}

// RematerializeOutput is the output for the rematerialize_windows tool.
type RematerializeOutput struct {
	Requested bool `json:"requested"`
}
