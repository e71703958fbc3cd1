package host

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/pluginhost/internal/core"
	"github.com/flemzord/pluginhost/internal/history"
	"github.com/flemzord/pluginhost/internal/job/jobtest"
)

const shippedV1 = `Plugin Name: Sample
Actions:
  Echo:
    command: /bin/echo %p
Cron Jobs:
  Tick:
    Command: /bin/true
    Execute On:
      Start: true
`

const shippedV2 = `Plugin Name: Sample v2
Actions:
  Echo:
    command: /bin/echo %p
  Count:
    endpoint: /count/
    command: /bin/wc -l %pfile
`

const customConfig = `Plugin Name: Sample custom
Actions:
  Echo:
    command: /bin/echo custom %p
`

// stepClock advances one second per call.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func writeShipped(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "shipped", "ca.control")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newConfigurer(t *testing.T, root string) *configurer {
	t.Helper()
	layout := Layout{Root: root}
	if _, err := layout.Ensure(); err != nil {
		t.Fatal(err)
	}
	return &configurer{
		layout:  layout,
		history: history.NewFileStore(layout.HistoryFile()),
		logger:  slog.Default(),
		now:     newStepClock().Now,
	}
}

// startHost provisions and starts a host on storage with the given shipped
// configuration. The host is stopped at cleanup.
func startHost(t *testing.T, storage, shippedPath string) (*Host, *jobtest.Spawner) {
	t.Helper()
	spawner := &jobtest.Spawner{}
	h := &Host{
		config: Config{
			Storage:       storage,
			ShippedConfig: shippedPath,
		},
		spawner: spawner,
		now:     newStepClock().Now,
	}
	ctx := core.NewAppContext(slog.Default(), t.TempDir())
	if err := h.Provision(ctx); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if err := h.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := h.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = h.Stop(t.Context()) })
	return h, spawner
}
