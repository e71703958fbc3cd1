package host

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flemzord/pluginhost/internal/status"
)

func TestHost_StartFreshStorage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	h, _ := startHost(t, filepath.Join(dir, "storage"), writeShipped(t, dir, shippedV1))

	if h.Enabled() {
		t.Error("plugin enabled on fresh storage")
	}
	if h.PluginName() != "Sample" {
		t.Errorf("PluginName = %q", h.PluginName())
	}
	if _, err := h.Catalog().Lookup("Echo"); err != nil {
		t.Errorf("Lookup(Echo): %v", err)
	}
	jobs := h.CronJobs()
	if len(jobs) != 1 || jobs[0].Name != "Tick" || !jobs[0].RunOnStart {
		t.Errorf("CronJobs = %+v", jobs)
	}
	for _, p := range []string{h.Layout().Outputs(), h.Layout().Previous(), h.Layout().StatusDir()} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("missing %s: %v", p, err)
		}
	}
	if h.Engine() == nil {
		t.Error("Engine is nil after Start")
	}
}

func TestHost_StatusSurvivesRestart(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	storage := filepath.Join(dir, "storage")
	shipped := writeShipped(t, dir, shippedV1)

	h, _ := startHost(t, storage, shipped)
	if err := h.SetStatus(status.Enabled); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	_ = h.Stop(t.Context())

	again, _ := startHost(t, storage, shipped)
	if !again.Enabled() {
		t.Error("plugin disabled after restart")
	}
}

func TestHost_UnknownEditDisables(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	storage := filepath.Join(dir, "storage")
	shipped := writeShipped(t, dir, shippedV1)

	h, _ := startHost(t, storage, shipped)
	if err := h.SetStatus(status.Enabled); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(h.Layout().Active(), []byte(customConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	_ = h.Stop(t.Context())

	again, _ := startHost(t, storage, shipped)
	if again.Enabled() {
		t.Error("plugin enabled with a configuration edited outside the host")
	}
}

func TestHost_DisableRequestsCronTermination(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	h, _ := startHost(t, filepath.Join(dir, "storage"), writeShipped(t, dir, shippedV1))
	if err := h.SetStatus("enabled"); err != nil {
		t.Fatal(err)
	}
	if err := h.CronTable().Register("cron-1"); err != nil {
		t.Fatal(err)
	}

	if err := h.SetStatus("disabled"); err != nil {
		t.Fatal(err)
	}
	if got := h.CronTable().TerminationRequests(); !slices.Equal(got, []string{"cron-1"}) {
		t.Errorf("TerminationRequests = %v", got)
	}
	if err := h.SetStatus("paused"); !errors.Is(err, status.ErrInvalidState) {
		t.Errorf("err = %v, want ErrInvalidState", err)
	}
}

func TestHost_ReloadIfChanged(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	h, _ := startHost(t, filepath.Join(dir, "storage"), writeShipped(t, dir, shippedV1))

	var notified atomic.Int32
	h.Subscribe(func() { notified.Add(1) })

	if changed, err := h.ReloadIfChanged(); err != nil || changed {
		t.Fatalf("ReloadIfChanged = %v, %v, want no change", changed, err)
	}

	active := h.Layout().Active()
	if err := os.WriteFile(active, []byte(shippedV2), 0o644); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(active, later, later); err != nil {
		t.Fatal(err)
	}

	changed, err := h.ReloadIfChanged()
	if err != nil || !changed {
		t.Fatalf("ReloadIfChanged = %v, %v, want change", changed, err)
	}
	if h.PluginName() != "Sample v2" || h.HasCronJobs() {
		t.Errorf("catalog not swapped: %q, cron=%v", h.PluginName(), h.HasCronJobs())
	}
	if notified.Load() != 1 {
		t.Errorf("notified %d times, want 1", notified.Load())
	}
}

func TestHost_ReloadKeepsCatalogOnParseError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	h, _ := startHost(t, filepath.Join(dir, "storage"), writeShipped(t, dir, shippedV1))

	active := h.Layout().Active()
	if err := os.WriteFile(active, []byte("Actions:\n  Echo: {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(active, later, later); err != nil {
		t.Fatal(err)
	}

	if _, err := h.ReloadIfChanged(); err == nil {
		t.Fatal("ReloadIfChanged accepted an invalid configuration")
	}
	if h.PluginName() != "Sample" {
		t.Errorf("PluginName = %q, want the previous catalog", h.PluginName())
	}
	// The broken file is not re-parsed until it changes again.
	if changed, err := h.ReloadIfChanged(); changed || err != nil {
		t.Errorf("second ReloadIfChanged = %v, %v", changed, err)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	c := Config{}
	c.defaults()
	if err := c.validate(); err == nil {
		t.Error("empty storage accepted")
	}
	c.Storage = "/srv/host"
	c.ReapInterval = time.Minute
	if err := c.validate(); err == nil {
		t.Error("reap_interval above grace_period accepted")
	}
}
