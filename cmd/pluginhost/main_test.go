package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionListsModules(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"plugin.host", "plugin.cron", "gateway.http", "history.sqlite", "telemetry.otel"} {
		if !strings.Contains(out, id) {
			t.Errorf("version output lacks %s:\n%s", id, out)
		}
	}
}

func TestConfigCheck(t *testing.T) {
	path := writeFile(t, "host.yaml", `version: "1"
modules:
  plugin.host:
    storage: /tmp/hoststorage
  gateway.http: {}
`)
	out, err := run(t, "config", "check", path)
	if err != nil {
		t.Fatalf("config check: %v", err)
	}
	if !strings.Contains(out, "Configuration OK (2 modules)") {
		t.Errorf("output = %q", out)
	}

	bad := writeFile(t, "bad.yaml", "version: \"1\"\nmodules:\n  gateway.http: {}\n")
	if _, err := run(t, "config", "check", bad); err == nil {
		t.Error("gateway without plugin host accepted")
	}
}

func TestPluginCheck(t *testing.T) {
	path := writeFile(t, "ca.control", `Plugin Name: Sample
Actions:
  Echo:
    command: /bin/echo %p
Cron Jobs:
  Nightly:
    Command: /bin/true
    Execute On:
      Yearly:
        Hours: 2
`)
	out, err := run(t, "plugin", "check", path)
	if err != nil {
		t.Fatalf("plugin check: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Echo  endpoint=/execute/ validate=/validate/") || !strings.Contains(out, "Nightly") {
		t.Errorf("output = %q", out)
	}
}

func TestPluginCheckReportsProblems(t *testing.T) {
	path := writeFile(t, "ca.control", `Actions:
  Echo:
    command: /bin/echo %p
Cron Jobs:
  Broken:
    Command: /bin/true
    Execute On:
      Yearly:
        Months: 13
`)
	out, err := run(t, "plugin", "check", path)
	if err == nil {
		t.Fatal("invalid cron job accepted")
	}
	if !strings.Contains(out, "Problems (1)") {
		t.Errorf("output = %q", out)
	}
}
