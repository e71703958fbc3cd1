package gateway

import (
	"bytes"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/flemzord/pluginhost/internal/core"
	"github.com/flemzord/pluginhost/internal/cron"
	"github.com/flemzord/pluginhost/internal/execution"
	"github.com/flemzord/pluginhost/internal/redact"
)

func TestGateway_ModuleInfo(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	info := g.ModuleInfo()

	if info.ID != "gateway.http" {
		t.Errorf("ID = %q, want %q", info.ID, "gateway.http")
	}
	if _, ok := info.New().(*Gateway); !ok {
		t.Error("New() should return *Gateway")
	}
	if req := g.Requires(); len(req) != 1 || req[0] != "plugin.host" {
		t.Errorf("Requires = %v", req)
	}
}

func TestGateway_ConfigureDefaults(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	if err := g.Configure(mustYAMLNode(t, "{}")); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	if g.config.Bind != "127.0.0.1:8080" {
		t.Errorf("Bind = %q, want default", g.config.Bind)
	}
	if g.config.ReadTimeout != 10*time.Second {
		t.Errorf("ReadTimeout = %v, want 10s", g.config.ReadTimeout)
	}
	if g.config.WriteTimeout != 0 {
		t.Errorf("WriteTimeout = %v, want none", g.config.WriteTimeout)
	}
	if g.config.MaxBodyBytes != 1<<20 {
		t.Errorf("MaxBodyBytes = %d", g.config.MaxBodyBytes)
	}
}

func TestGateway_ConfigureCustom(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	node := mustYAMLNode(t, `
bind: "0.0.0.0:9090"
read_timeout: 5s
shutdown_timeout: 10s
auth:
  bearer_token: "my-token"
`)
	if err := g.Configure(node); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if g.config.Bind != "0.0.0.0:9090" || g.config.ReadTimeout != 5*time.Second {
		t.Errorf("config = %+v", g.config)
	}
	if g.config.Auth.BearerToken != "my-token" {
		t.Errorf("BearerToken = %q", g.config.Auth.BearerToken)
	}
}

func TestGateway_ValidateBind(t *testing.T) {
	t.Parallel()

	g := &Gateway{config: Config{Bind: "not an address"}}
	if err := g.Validate(); err == nil {
		t.Error("invalid bind accepted")
	}
}

func TestGateway_ProvisionRegistersObservers(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	g.config.defaults()
	appCtx := core.NewAppContext(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), t.TempDir())
	if err := g.Provision(appCtx); err != nil {
		t.Fatalf("Provision: %v", err)
	}

	if _, ok := core.ServiceAs[execution.Observer](appCtx, "gateway.metrics"); !ok {
		t.Error("gateway.metrics is not an execution.Observer")
	}
	if _, ok := core.ServiceAs[cron.Observer](appCtx, "gateway.metrics"); !ok {
		t.Error("gateway.metrics is not a cron.Observer")
	}
}

func TestGateway_ProvisionRegistersSecrets(t *testing.T) {
	t.Parallel()

	g := &Gateway{config: Config{Auth: AuthConfig{BearerToken: "gateway-token", BasicPass: "basic-pass"}}}
	g.config.defaults()
	r := redact.New()
	appCtx := core.NewAppContext(slog.Default(), t.TempDir())
	appCtx.RegisterService("log.redactor", r)
	if err := g.Provision(appCtx); err != nil {
		t.Fatal(err)
	}

	if got := r.Redact("token gateway-token pass basic-pass"); got != "token "+redact.Placeholder+" pass "+redact.Placeholder {
		t.Errorf("Redact = %q", got)
	}
}

func TestGateway_StartWithoutHost(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	g.config.defaults()
	if err := g.Provision(core.NewAppContext(slog.Default(), t.TempDir())); err != nil {
		t.Fatal(err)
	}
	if err := g.Start(); err == nil {
		t.Error("Start succeeded without a plugin host")
	}
}

func TestGateway_StartStop(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	if err := g.Configure(mustYAMLNode(t, `bind: "127.0.0.1:0"`)); err != nil {
		t.Fatal(err)
	}
	appCtx := core.NewAppContext(slog.Default(), t.TempDir())
	appCtx.RegisterService("plugin.host", newFakeHost(t))
	if err := g.Provision(appCtx); err != nil {
		t.Fatal(err)
	}
	if err := g.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	resp, err := http.Get("http://" + g.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health = %d", resp.StatusCode)
	}

	if err := g.Stop(t.Context()); err != nil {
		t.Errorf("Stop: %v", err)
	}
}
