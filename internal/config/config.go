package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/1broseidon/kiosk/internal/freshness"
)

// DefaultBrowserCommand is launched for each kiosk window when the config
// does not name a browser.
const DefaultBrowserCommand = "chromium"

// BlankURL is shown when neither the window nor the config names a URL.
const BlankURL = "about:blank"

// WindowSpec describes one kiosk window. DisplayIndex is nil when the entry
// should follow its position in the windows list.
type WindowSpec struct {
	DisplayIndex *int   `json:"displayIndex,omitempty" yaml:"displayIndex,omitempty"`
	URL          string `json:"url,omitempty" yaml:"url,omitempty"`
}

// BrowserConfig selects the program that renders kiosk windows.
type BrowserConfig struct {
	Command string   `json:"command,omitempty" yaml:"command,omitempty"`
	Args    []string `json:"args,omitempty" yaml:"args,omitempty"`
}

// Config is the kiosk configuration file.
type Config struct {
	Windows           []WindowSpec  `json:"windows" yaml:"windows"`
	FallbackURL       string        `json:"fallbackUrl,omitempty" yaml:"fallbackUrl,omitempty"`
	ReloadIntervalSec float64       `json:"reloadIntervalSec,omitempty" yaml:"reloadIntervalSec,omitempty"`
	RestartPolicy     string        `json:"restartPolicy,omitempty" yaml:"restartPolicy,omitempty"`
	Browser           BrowserConfig `json:"browser,omitempty" yaml:"browser,omitempty"`
}

// Empty returns the configuration used when no usable file exists: no
// windows.
func Empty() *Config {
	return &Config{Windows: []WindowSpec{}}
}

// ReloadInterval returns the periodic reload cadence, or 0 when disabled.
func (c *Config) ReloadInterval() time.Duration {
	if c == nil || c.ReloadIntervalSec <= 0 {
		return 0
	}
	return time.Duration(c.ReloadIntervalSec * float64(time.Second))
}

// BrowserCommand returns the configured browser or the default.
func (c *Config) BrowserCommand() string {
	if c == nil || strings.TrimSpace(c.Browser.Command) == "" {
		return DefaultBrowserCommand
	}
	return strings.TrimSpace(c.Browser.Command)
}

// ValidationError describes an invalid config value.
type ValidationError struct {
	Path string
	Err  error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Normalize replaces values the kiosk cannot use with their defaults and
// reports each one. No value makes the file unusable: an unknown restart
// policy becomes the default, a negative reload interval disables reloads,
// and a negative display index is kept so placement falls back to the
// primary display like any other out-of-range index.
func (c *Config) Normalize() []error {
	var problems []error
	if c.Windows == nil {
		c.Windows = []WindowSpec{}
	}
	if _, err := freshness.Parse(c.RestartPolicy); err != nil {
		problems = append(problems, &ValidationError{Path: "restartPolicy", Err: fmt.Errorf("%w; using %q", err, freshness.SessionCountName)})
		c.RestartPolicy = ""
	}
	if c.ReloadIntervalSec < 0 {
		problems = append(problems, &ValidationError{Path: "reloadIntervalSec", Err: fmt.Errorf("%v is negative; periodic reload disabled", c.ReloadIntervalSec)})
		c.ReloadIntervalSec = 0
	}
	for i, w := range c.Windows {
		if w.DisplayIndex != nil && *w.DisplayIndex < 0 {
			problems = append(problems, &ValidationError{
				Path: fmt.Sprintf("windows[%d].displayIndex", i),
				Err:  fmt.Errorf("%d is negative; using display 0", *w.DisplayIndex),
			})
		}
	}
	return problems
}
