package execution

import (
	"errors"
	"os"
	"slices"
	"testing"

	"github.com/flemzord/pluginhost/internal/action"
	"github.com/flemzord/pluginhost/internal/command"
)

func mustAction(t *testing.T, cmd string) *action.Action {
	t.Helper()
	a, err := action.New("Test Action", "", cmd, action.DefaultFilter(), "")
	if err != nil {
		t.Fatalf("action.New: %v", err)
	}
	return a
}

func TestExecution_Argv(t *testing.T) {
	t.Parallel()

	a := mustAction(t, `run.sh %p% --user=%{u}% --groups %group --job %guitoken --check %validate`)
	ctx := command.Context{
		command.PPath:  "/vol/a.txt",
		command.User:   "joe",
		command.Groups: []any{"eng", "ops"},
	}

	e := New(a, ctx, "17", true, t.TempDir(), nil)
	argv, err := e.Argv()
	if err != nil {
		t.Fatalf("Argv: %v", err)
	}
	want := []string{"run.sh", "/vol/a.txt", "--user=joe", "--groups", "eng,ops", "--job", "17", "--check", "1"}
	if !slices.Equal(argv, want) {
		t.Errorf("argv = %q, want %q", argv, want)
	}

	e = New(a, ctx, "18", false, t.TempDir(), nil)
	argv, _ = e.Argv()
	if argv[len(argv)-1] != "0" {
		t.Errorf("validate flag = %q, want 0", argv[len(argv)-1])
	}
}

func TestExecution_TempFilesCleanedUp(t *testing.T) {
	t.Parallel()

	a := mustAction(t, `list.sh %pfile %vfile`)
	ctx := command.Context{
		command.PPaths: []any{"/a", "/b"},
		command.VPaths: "/only",
	}
	e := New(a, ctx, "3", false, t.TempDir(), nil)

	argv, err := e.Argv()
	if err != nil {
		t.Fatalf("Argv: %v", err)
	}
	if len(argv) != 3 {
		t.Fatalf("argv = %q", argv)
	}

	data, err := os.ReadFile(argv[1])
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "/a\n/b" {
		t.Errorf("pfile contents = %q", data)
	}
	data, _ = os.ReadFile(argv[2])
	if string(data) != "/only" {
		t.Errorf("vfile contents = %q", data)
	}

	e.Cleanup()
	for _, p := range argv[1:] {
		if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s still exists after cleanup", p)
		}
	}
}

func TestExecution_CleanupOrderAndFailures(t *testing.T) {
	t.Parallel()

	e := New(mustAction(t, "true"), command.Context{}, "1", false, "", nil)
	var order []int
	e.Defer(func() error { order = append(order, 1); return nil })
	e.Defer(func() error { order = append(order, 2); return errors.New("boom") })
	e.Defer(func() error { order = append(order, 3); return nil })

	e.Cleanup()
	if !slices.Equal(order, []int{3, 2, 1}) {
		t.Errorf("order = %v, want LIFO with failures not blocking", order)
	}

	e.Cleanup()
	if len(order) != 3 {
		t.Errorf("second Cleanup reran tasks: %v", order)
	}
}

func TestExecution_MissingParameter(t *testing.T) {
	t.Parallel()

	e := New(mustAction(t, "show %p"), command.Context{}, "1", false, "", nil)
	if _, err := e.Argv(); !errors.Is(err, command.ErrMissingParameter) {
		t.Errorf("err = %v, want ErrMissingParameter", err)
	}
}

func TestExecution_ShellQuoting(t *testing.T) {
	t.Parallel()

	e := New(mustAction(t, `echo "hello world" %p`), command.Context{command.PPath: "x"}, "1", false, "", nil)
	argv, err := e.Argv()
	if err != nil {
		t.Fatalf("Argv: %v", err)
	}
	if !slices.Equal(argv, []string{"echo", "hello world", "x"}) {
		t.Errorf("argv = %q", argv)
	}
}
