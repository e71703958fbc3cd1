// Package status persists whether the plugin is enabled.
package status

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// States as written to the status file.
const (
	Enabled  = "enabled"
	Disabled = "disabled"
)

// ErrInvalidState is returned for anything other than "enabled" or "disabled".
var ErrInvalidState = errors.New("status: state must be enabled or disabled")

// Store is the enabled flag backed by a one-line file. Any failure to read
// or write the file leaves the plugin disabled.
type Store struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	enabled bool
}

// Open loads the flag from path. A missing, unreadable or unrecognised file
// means disabled.
func Open(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{path: path, logger: logger}
	s.enabled = s.read()
	return s
}

// Path returns the status file location.
func (s *Store) Path() string { return s.path }

// Enabled reports the last known state.
func (s *Store) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// Refresh re-reads the file and returns the resulting state.
func (s *Store) Refresh() bool {
	enabled := s.read()
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()
	return enabled
}

// Set writes the flag and returns the state now in effect, which is
// disabled if the file could not be written.
func (s *Store) Set(enabled bool) bool {
	state := Disabled
	if enabled {
		state = Enabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(state); err != nil {
		s.logger.Error("cannot save plugin state, plugin is now disabled", "path", s.path, "error", err)
		s.enabled = false
		return false
	}
	s.enabled = enabled
	return enabled
}

// SetState parses state and applies it with Set.
func (s *Store) SetState(state string) (bool, error) {
	switch strings.TrimSpace(state) {
	case Enabled:
		return s.Set(true), nil
	case Disabled:
		return s.Set(false), nil
	default:
		return s.Enabled(), fmt.Errorf("%w: got %q", ErrInvalidState, state)
	}
}

// String returns "enabled" or "disabled".
func (s *Store) String() string {
	if s.Enabled() {
		return Enabled
	}
	return Disabled
}

func (s *Store) read() bool {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Error("cannot read plugin state, plugin is disabled", "path", s.path, "error", err)
		}
		return false
	}
	line, _, _ := strings.Cut(string(data), "\n")
	switch strings.TrimSpace(line) {
	case Enabled:
		return true
	case Disabled, "":
		return false
	default:
		s.logger.Warn("unrecognised plugin state, plugin is disabled", "path", s.path, "state", line)
		return false
	}
}

func (s *Store) write(state string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(state), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
