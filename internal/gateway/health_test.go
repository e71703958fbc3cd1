package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/flemzord/pluginhost/internal/action"
	"github.com/flemzord/pluginhost/internal/core"
)

func TestHealth_OK(t *testing.T) {
	t.Parallel()
	h := newFakeHost(t)
	srv := newTestServer(t, h, Config{})
	if err := h.CronTable().Register("c1"); err != nil {
		t.Fatal(err)
	}

	got := do(t, http.MethodGet, srv.URL+"/health", "", "")
	if got.code != http.StatusOK {
		t.Fatalf("status = %d", got.code)
	}
	var resp HealthResponse
	if err := json.Unmarshal([]byte(got.body), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.Plugin != "Test Plugin" || !resp.Enabled || resp.CronRunning != 1 {
		t.Errorf("health = %+v", resp)
	}
}

func TestHealth_DegradedWithoutCatalog(t *testing.T) {
	t.Parallel()
	h := newFakeHost(t)
	h.mu.Lock()
	h.catalog = (*action.Catalog)(nil)
	h.mu.Unlock()
	srv := newTestServer(t, h, Config{})

	got := do(t, http.MethodGet, srv.URL+"/health", "", "")
	if got.code != http.StatusServiceUnavailable || !strings.Contains(got.body, "degraded") {
		t.Errorf("health = %d %q", got.code, got.body)
	}
	if r := do(t, http.MethodGet, srv.URL+"/internal/configuration/", "", ""); r.code != http.StatusServiceUnavailable {
		t.Errorf("configuration = %d", r.code)
	}
}

type fakeModules []core.ModuleStatus

func (f fakeModules) Status() []core.ModuleStatus { return f }

func TestHealth_ReportsModules(t *testing.T) {
	t.Parallel()

	h := newFakeHost(t)
	mods := fakeModules{
		{ID: "plugin.host", State: core.StateRunning},
		{ID: "gateway.http", State: core.StateRunning},
	}
	g := &Gateway{logger: slog.Default(), metrics: NewMetrics(), host: h, modules: mods}
	rr := httptest.NewRecorder()
	g.handleHealth()(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if rr.Code != http.StatusOK || resp.Modules["gateway.http"] != "running" {
		t.Errorf("health = %d %+v", rr.Code, resp)
	}

	g.modules = append(mods, core.ModuleStatus{ID: "plugin.cron", State: core.StateFailed})
	rr = httptest.NewRecorder()
	g.handleHealth()(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusServiceUnavailable || !strings.Contains(rr.Body.String(), `"plugin.cron":"failed"`) {
		t.Errorf("health with a failed module = %d %s", rr.Code, rr.Body.String())
	}
}
