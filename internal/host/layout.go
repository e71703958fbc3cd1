package host

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const backupTimeLayout = "2006-01-02-15-04-05"

// Layout names the files under the host storage root.
type Layout struct {
	Root string
}

// Active is the configuration in effect.
func (l Layout) Active() string { return filepath.Join(l.Root, ".configs", "ca.control") }

// Previous holds timestamped backups of every recorded configuration.
func (l Layout) Previous() string { return filepath.Join(l.Root, ".configs", "previous") }

// HistoryFile is the text configuration history.
func (l Layout) HistoryFile() string { return filepath.Join(l.Previous(), "config_history") }

// StatusDir holds the enabled flag.
func (l Layout) StatusDir() string { return filepath.Join(l.Root, "status") }

// StatusFile is the enabled flag.
func (l Layout) StatusFile() string { return filepath.Join(l.StatusDir(), "mode") }

// Outputs is where plugin commands may write their results.
func (l Layout) Outputs() string { return filepath.Join(l.Root, "outputs") }

// Backup returns an unused backup path for a configuration recorded at t.
// Records within the same second get a numeric suffix.
func (l Layout) Backup(t time.Time) string {
	base := filepath.Join(l.Previous(), "ca.control."+t.Format(backupTimeLayout))
	path := base
	for n := 1; ; n++ {
		if _, err := os.Lstat(path); err != nil {
			return path
		}
		path = fmt.Sprintf("%s.%d", base, n)
	}
}

// Ensure creates the directory structure. It reports whether the status
// directory already existed, which tells a fresh install from a restart.
func (l Layout) Ensure() (bool, error) {
	_, err := os.Stat(l.StatusDir())
	existed := err == nil
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("host: %w", err)
	}
	for _, dir := range []string{l.Previous(), l.StatusDir(), l.Outputs()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return existed, fmt.Errorf("host: creating %s: %w", dir, err)
		}
	}
	return existed, nil
}
