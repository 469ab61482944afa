package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileNames are tried in order inside every search directory.
var FileNames = []string{"config.json", "config.yaml"}

// SearchPaths lists the directories a config file is looked up in, in
// priority order.
type SearchPaths struct {
	// Explicit short-circuits the search when non-empty.
	Explicit     string
	ExeDir       string
	ResourcesDir string
	DevDir       string
}

// Candidates returns every path that Locate checks, in order.
func (s SearchPaths) Candidates() []string {
	if strings.TrimSpace(s.Explicit) != "" {
		return []string{s.Explicit}
	}
	var out []string
	for _, dir := range []string{s.ExeDir, s.ResourcesDir, s.DevDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		for _, name := range FileNames {
			out = append(out, filepath.Join(dir, name))
		}
	}
	return out
}

// Locate returns the first existing candidate.
func (s SearchPaths) Locate() (string, bool) {
	for _, path := range s.Candidates() {
		if exists, err := pathExists(path); err == nil && exists {
			return path, true
		}
	}
	return "", false
}

// LoadFromPath reads, decodes and normalizes the config file at path. The
// decoder is chosen by extension; anything that is not .yaml/.yml is JSON.
// Both decoders ignore unknown keys. Only an unreadable or undecodable file
// is an error; problems Normalize repaired are returned alongside the
// config.
func LoadFromPath(path string) (*Config, []error, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: failed to read: %w", path, err)
	}

	cfg := Empty()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("%s: failed to parse YAML: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, nil, fmt.Errorf("%s: failed to parse JSON: %w", path, err)
		}
	}
	return cfg, cfg.Normalize(), nil
}

// Loader re-reads the config file on every call to Load.
type Loader struct {
	paths  SearchPaths
	logger *slog.Logger
}

// NewLoader returns a loader searching paths.
func NewLoader(paths SearchPaths, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{paths: paths, logger: logger}
}

// Paths returns the search paths.
func (l *Loader) Paths() SearchPaths {
	return l.paths
}

// Load never fails: a missing or broken file yields Empty() and a log entry.
func (l *Loader) Load() *Config {
	path, ok := l.paths.Locate()
	if !ok {
		l.logger.Error("config file not found; no windows will be created",
			"searched", l.paths.Candidates())
		return Empty()
	}

	cfg, problems, err := LoadFromPath(path)
	if err != nil {
		l.logger.Error("failed to load config; no windows will be created", "path", path, "error", err)
		return Empty()
	}
	for _, p := range problems {
		l.logger.Warn("config value ignored", "path", path, "error", p)
	}

	l.logger.Info("config loaded", "path", path, "windows", len(cfg.Windows))
	return cfg
}

func pathExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err == nil {
		return !info.IsDir(), nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
