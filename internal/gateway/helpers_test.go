package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/pluginhost/internal/action"
	"github.com/flemzord/pluginhost/internal/execution"
	"github.com/flemzord/pluginhost/internal/history"
	"github.com/flemzord/pluginhost/internal/host"
	"github.com/flemzord/pluginhost/internal/job"
	"github.com/flemzord/pluginhost/internal/job/jobtest"
	"github.com/flemzord/pluginhost/internal/status"
)

const testConfig = `Plugin Name: Test Plugin
Actions:
  Show Form:
    command: form.sh %p %guitoken
  Check:
    endpoint: /check/
    validate: /check-validate/
    command: check.sh %p %validate
`

// fakeHost is an in-memory plugin.host backed by a real registry and engine
// with fake processes.
type fakeHost struct {
	registry *job.Registry
	engine   *execution.Engine
	spawner  *jobtest.Spawner
	status   *status.Store

	mu       sync.Mutex
	catalog  *action.Catalog
	settings []byte
	history  []history.Entry
}

var _ Host = (*fakeHost)(nil)

func newFakeHost(t *testing.T) *fakeHost {
	t.Helper()
	c, err := action.Parse([]byte(testConfig))
	if err != nil {
		t.Fatalf("action.Parse: %v", err)
	}
	h := &fakeHost{
		spawner:  &jobtest.Spawner{},
		status:   status.Open(t.TempDir()+"/mode", slog.Default()),
		catalog:  c,
		settings: []byte(testConfig),
	}
	h.registry = job.NewRegistry(job.Config{Spawner: h.spawner})
	h.engine = execution.NewEngine(execution.Config{
		Registry: h.registry,
		Catalog:  h,
		TempDir:  t.TempDir(),
	})
	h.status.Set(true)
	return h
}

func (h *fakeHost) PluginName() string {
	if c := h.Catalog(); c != nil {
		return c.PluginName
	}
	return ""
}

func (h *fakeHost) Catalog() *action.Catalog {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.catalog
}

func (h *fakeHost) Engine() *execution.Engine  { return h.engine }
func (h *fakeHost) Registry() *job.Registry    { return h.registry }
func (h *fakeHost) CronTable() *job.CronTable  { return h.registry.Cron() }
func (h *fakeHost) HasCronJobs() bool          { return false }
func (h *fakeHost) Enabled() bool              { return h.status.Enabled() }
func (h *fakeHost) Status() string             { return h.status.String() }

func (h *fakeHost) SetStatus(state string) error {
	enabled, err := h.status.SetState(state)
	if err != nil {
		return err
	}
	if !enabled {
		h.registry.Cron().RequestAll()
	}
	return nil
}

func (h *fakeHost) ReadSettings() ([]byte, string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.settings, history.Checksum(h.settings), nil
}

func (h *fakeHost) WriteSettings(_ context.Context, ifMatch string, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ifMatch != history.Checksum(h.settings) {
		return host.ErrPreconditionFailed
	}
	c, err := action.Parse(data)
	if err != nil {
		return fmt.Errorf("%w: %w", host.ErrInvalidSettings, err)
	}
	h.settings = data
	h.catalog = c
	h.history = append(h.history, history.Entry{
		Checksum:   history.Checksum(data),
		Kind:       history.KindCustom,
		RecordedAt: time.Now(),
	})
	return nil
}

func (h *fakeHost) History(_ context.Context, limit int) ([]history.Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]history.Entry, 0, len(h.history))
	for i := len(h.history) - 1; i >= 0 && (limit == 0 || len(out) < limit); i-- {
		out = append(out, h.history[i])
	}
	return out, nil
}

// newTestServer serves a gateway bound to h.
func newTestServer(t *testing.T, h Host, cfg Config) *httptest.Server {
	t.Helper()
	cfg.defaults()
	g := &Gateway{
		config:    cfg,
		logger:    slog.Default(),
		metrics:   NewMetrics(),
		host:      h,
		startedAt: time.Now(),
	}
	g.metrics.watchRegistry(h.Registry())
	srv := httptest.NewServer(g.buildRouter())
	t.Cleanup(srv.Close)
	return srv
}

type response struct {
	code   int
	header http.Header
	body   string
}

// do sends one request. It may run outside the test goroutine, so failures
// are reported with Errorf.
func do(t *testing.T, method, target, contentType, body string, header ...string) response {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), method, target, strings.NewReader(body))
	if err != nil {
		t.Errorf("NewRequest: %v", err)
		return response{}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Errorf("%s %s: %v", method, target, err)
		return response{}
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Errorf("reading body: %v", err)
	}
	return response{code: resp.StatusCode, header: resp.Header, body: string(data)}
}

func postJSON(t *testing.T, target, body string) response {
	t.Helper()
	return do(t, http.MethodPost, target, "application/json", body)
}

func postForm(t *testing.T, target string, form url.Values) response {
	t.Helper()
	return do(t, http.MethodPost, target, "application/x-www-form-urlencoded", form.Encode())
}

// async runs fn in the background and returns its response channel.
func async(fn func() response) <-chan response {
	ch := make(chan response, 1)
	go func() { ch <- fn() }()
	return ch
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func receive(t *testing.T, ch <-chan response) response {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(3 * time.Second):
		t.Fatal("request did not return")
		return response{}
	}
}

func mustYAMLNode(t *testing.T, s string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.NewDecoder(bytes.NewBufferString(s)).Decode(&doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Content) == 0 {
		return &yaml.Node{Kind: yaml.MappingNode}
	}
	return doc.Content[0]
}
