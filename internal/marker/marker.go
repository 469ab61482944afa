// Package marker persists the small files that carry restart state across
// process relaunches and reboots. Every operation is best effort: writes log
// and swallow failures, reads report "absent" on any error.
package marker

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Completion names a completion marker file. The file used depends on the
// active restart policy.
type Completion string

const (
	// InFlightFile signals that a relaunch is in progress and the next start
	// is its continuation.
	InFlightFile = ".app-restart-marker"

	// SessionCompleted is the presence-only completion marker.
	SessionCompleted Completion = ".app-restart-completed"
	// BootCompleted stores the uptime at which the cycle completed.
	BootCompleted Completion = ".app-boot-restart-marker"
)

// TimestampLayout is the ISO-8601 layout written into timestamp markers.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// ErrorObserver is notified of swallowed I/O failures. op is one of
// "write", "read" or "remove".
type ErrorObserver func(op, file string, err error)

// Store reads and writes marker files in a single directory.
type Store struct {
	dir     string
	logger  *slog.Logger
	now     func() time.Time
	onError ErrorObserver
}

// NewStore returns a store rooted at dir.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		dir:    dir,
		logger: logger,
		now:    time.Now,
	}
}

// SetErrorObserver registers fn to be called for every swallowed failure.
func (s *Store) SetErrorObserver(fn ErrorObserver) {
	s.onError = fn
}

// Dir returns the directory holding the markers.
func (s *Store) Dir() string {
	return s.dir
}

// Timestamp formats the current time the way markers store it.
func (s *Store) Timestamp() string {
	return s.now().UTC().Format(TimestampLayout)
}

// WriteInFlight creates or overwrites the in-flight marker.
func (s *Store) WriteInFlight() {
	if s.write(InFlightFile, s.Timestamp()) {
		s.logger.Info("created restart marker", "file", s.path(InFlightFile))
	}
}

// HasInFlight reports whether the in-flight marker exists.
func (s *Store) HasInFlight() bool {
	_, err := os.Stat(s.path(InFlightFile))
	if err == nil {
		return true
	}
	if !errors.Is(err, fs.ErrNotExist) {
		s.fail("read", InFlightFile, err)
	}
	return false
}

// ClearInFlight removes the in-flight marker. Missing files are not an error.
func (s *Store) ClearInFlight() {
	err := os.Remove(s.path(InFlightFile))
	switch {
	case err == nil:
		s.logger.Info("removed restart marker", "file", s.path(InFlightFile))
	case errors.Is(err, fs.ErrNotExist):
	default:
		s.fail("remove", InFlightFile, err)
	}
}

// WriteCompletion creates or overwrites the completion marker c with payload.
func (s *Store) WriteCompletion(c Completion, payload string) {
	if s.write(string(c), payload) {
		s.logger.Info("marked restart cycle completed", "file", s.path(string(c)), "payload", payload)
	}
}

// ReadCompletion returns the trimmed payload of completion marker c. ok is
// false when the file is absent, unreadable, or not valid text.
func (s *Store) ReadCompletion(c Completion) (payload string, ok bool) {
	data, err := os.ReadFile(s.path(string(c)))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.fail("read", string(c), err)
		}
		return "", false
	}
	if !isText(data) {
		s.logger.Warn("ignoring malformed marker", "file", s.path(string(c)))
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

// ClearCompletion removes completion marker c if present.
func (s *Store) ClearCompletion(c Completion) {
	if err := os.Remove(s.path(string(c))); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.fail("remove", string(c), err)
	}
}

func (s *Store) write(name, payload string) bool {
	if err := os.WriteFile(s.path(name), []byte(payload), 0644); err != nil {
		s.fail("write", name, err)
		return false
	}
	return true
}

func (s *Store) fail(op, name string, err error) {
	s.logger.Warn("marker I/O failed", "op", op, "file", s.path(name), "error", err)
	if s.onError != nil {
		s.onError(op, name, err)
	}
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

func isText(data []byte) bool {
	for _, b := range data {
		if b == 0 {
			return false
		}
	}
	return true
}
