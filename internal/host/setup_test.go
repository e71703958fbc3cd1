package host

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/flemzord/pluginhost/internal/history"
)

func TestSetup_FirstInstall(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c := newConfigurer(t, filepath.Join(dir, "storage"))
	shipped := writeShipped(t, dir, shippedV1)

	outcome, err := c.Setup(t.Context(), shipped)
	if err != nil || outcome != Installed {
		t.Fatalf("Setup = %v, %v, want installed", outcome, err)
	}
	data, err := os.ReadFile(c.layout.Active())
	if err != nil || string(data) != shippedV1 {
		t.Fatalf("active = %q, %v", data, err)
	}
	e, ok, err := c.history.Lookup(t.Context(), history.Checksum([]byte(shippedV1)))
	if err != nil || !ok || e.Kind != history.KindDefault {
		t.Errorf("history entry = %+v, %v, %v", e, ok, err)
	}
	if _, err := os.Stat(e.Path); err != nil {
		t.Errorf("backup missing: %v", err)
	}

	outcome, err = c.Setup(t.Context(), shipped)
	if err != nil || outcome != Unchanged {
		t.Errorf("second Setup = %v, %v, want unchanged", outcome, err)
	}
}

func TestSetup_NewDefaultReplacesOldDefault(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c := newConfigurer(t, filepath.Join(dir, "storage"))
	if _, err := c.Setup(t.Context(), writeShipped(t, dir, shippedV1)); err != nil {
		t.Fatal(err)
	}

	outcome, err := c.Setup(t.Context(), writeShipped(t, dir, shippedV2))
	if err != nil || outcome != UpdatedDefault {
		t.Fatalf("Setup = %v, %v, want updated_default", outcome, err)
	}
	data, _ := os.ReadFile(c.layout.Active())
	if string(data) != shippedV2 {
		t.Errorf("active = %q, want the new default", data)
	}
}

func TestSetup_CustomIsKept(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c := newConfigurer(t, filepath.Join(dir, "storage"))
	if _, err := c.Setup(t.Context(), writeShipped(t, dir, shippedV1)); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(c.layout.Active(), []byte(customConfig)); err != nil {
		t.Fatal(err)
	}
	if err := c.record(t.Context(), history.Checksum([]byte(customConfig)), history.KindCustom); err != nil {
		t.Fatal(err)
	}

	outcome, err := c.Setup(t.Context(), writeShipped(t, dir, shippedV2))
	if err != nil || outcome != KeptCustom {
		t.Fatalf("Setup = %v, %v, want kept_custom", outcome, err)
	}
	data, _ := os.ReadFile(c.layout.Active())
	if string(data) != customConfig {
		t.Errorf("active = %q, want the custom config", data)
	}
}

func TestSetup_DisablingOutcomes(t *testing.T) {
	t.Parallel()

	t.Run("unknown edit", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		c := newConfigurer(t, filepath.Join(dir, "storage"))
		shipped := writeShipped(t, dir, shippedV1)
		if _, err := c.Setup(t.Context(), shipped); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(c.layout.Active(), []byte(customConfig), 0o644); err != nil {
			t.Fatal(err)
		}
		outcome, err := c.Setup(t.Context(), shipped)
		if err != nil || outcome != UnknownEdit || !outcome.Disables() {
			t.Errorf("Setup = %v, %v, want unknown_edit", outcome, err)
		}
	})

	t.Run("saved config without history", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		c := newConfigurer(t, filepath.Join(dir, "storage"))
		if err := writeFile(c.layout.Active(), []byte(shippedV1)); err != nil {
			t.Fatal(err)
		}
		outcome, err := c.Setup(t.Context(), writeShipped(t, dir, shippedV1))
		if err != nil || outcome != Unrecorded || !outcome.Disables() {
			t.Errorf("Setup = %v, %v, want unrecorded", outcome, err)
		}
	})

	t.Run("missing shipped", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		c := newConfigurer(t, filepath.Join(dir, "storage"))
		outcome, err := c.Setup(t.Context(), filepath.Join(dir, "nope"))
		if err != nil || outcome != MissingShipped || !outcome.Disables() {
			t.Errorf("Setup = %v, %v, want missing_shipped", outcome, err)
		}
	})

	t.Run("invalid shipped", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		c := newConfigurer(t, filepath.Join(dir, "storage"))
		outcome, err := c.Setup(t.Context(), writeShipped(t, dir, "Actions:\n  Echo: {}\n"))
		if err != nil || outcome != InvalidShipped {
			t.Errorf("Setup = %v, %v, want invalid_shipped", outcome, err)
		}
	})
}

func TestSetup_RestoresDeletedConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c := newConfigurer(t, filepath.Join(dir, "storage"))
	shipped := writeShipped(t, dir, shippedV1)
	if _, err := c.Setup(t.Context(), shipped); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(c.layout.Active()); err != nil {
		t.Fatal(err)
	}
	outcome, err := c.Setup(t.Context(), shipped)
	if err != nil || outcome != Restored || outcome.Disables() {
		t.Errorf("Setup = %v, %v, want restored", outcome, err)
	}
}

func TestSetup_BackupsInTheSameSecond(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c := newConfigurer(t, filepath.Join(dir, "storage"))
	stamp := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return stamp }

	if _, err := c.Setup(t.Context(), writeShipped(t, dir, shippedV1)); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(c.layout.Active(), []byte(customConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	customSum := history.Checksum([]byte(customConfig))
	if err := c.record(t.Context(), customSum, history.KindCustom); err != nil {
		t.Fatalf("record: %v", err)
	}

	first, _, _ := c.history.Lookup(t.Context(), history.Checksum([]byte(shippedV1)))
	second, _, _ := c.history.Lookup(t.Context(), customSum)
	if first.Path == "" || first.Path == second.Path {
		t.Fatalf("backup paths = %q and %q, want two distinct files", first.Path, second.Path)
	}
	for path, want := range map[string]string{first.Path: shippedV1, second.Path: customConfig} {
		data, err := os.ReadFile(path)
		if err != nil || string(data) != want {
			t.Errorf("%s = %q, %v; want %q", path, data, err, want)
		}
	}
}

func TestOutcome_String(t *testing.T) {
	t.Parallel()

	if Installed.String() != "installed" || InvalidShipped.String() != "invalid_shipped" {
		t.Error("unexpected outcome names")
	}
	if Outcome(99).String() != "outcome(99)" {
		t.Errorf("String = %q", Outcome(99).String())
	}
}
