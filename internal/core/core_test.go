package core

import (
	"context"
	"errors"
	"slices"
	"testing"
)

type lifecycleModule struct {
	id       ModuleID
	startErr error
	stopErr  error
	noStart  bool
	events   *[]string
}

func (m *lifecycleModule) ModuleInfo() ModuleInfo {
	return ModuleInfo{ID: m.id, New: func() Module {
		if m.noStart {
			return &stopOnly{m}
		}
		return m
	}}
}

func (m *lifecycleModule) Start() error {
	*m.events = append(*m.events, "start "+string(m.id))
	return m.startErr
}

func (m *lifecycleModule) Stop(context.Context) error {
	*m.events = append(*m.events, "stop "+string(m.id))
	return m.stopErr
}

// stopOnly has resources to release but nothing to start.
type stopOnly struct{ m *lifecycleModule }

func (s *stopOnly) ModuleInfo() ModuleInfo { return s.m.ModuleInfo() }
func (s *stopOnly) Stop(ctx context.Context) error { return s.m.Stop(ctx) }

func newTestApp(t *testing.T, mods ...*lifecycleModule) *App {
	t.Helper()
	t.Cleanup(resetRegistry)
	ids := make([]string, len(mods))
	for i, m := range mods {
		RegisterModule(m)
		ids[i] = string(m.id)
	}
	app := NewApp(NewAppContext(nil, t.TempDir()))
	if err := app.LoadModules(ids); err != nil {
		t.Fatal(err)
	}
	return app
}

func states(app *App) []string {
	var out []string
	for _, st := range app.Status() {
		out = append(out, string(st.ID)+"="+st.State.String())
	}
	return out
}

func TestApp_StartStopOrder(t *testing.T) {
	var events []string
	app := newTestApp(t,
		&lifecycleModule{id: "history.store", events: &events, noStart: true},
		&lifecycleModule{id: "plugin.host", events: &events},
		&lifecycleModule{id: "gateway.http", events: &events},
	)
	if _, ok := app.Module("plugin.host"); !ok {
		t.Fatal("plugin.host not loaded")
	}
	if svc, ok := ServiceAs[*App](app.Context(), "core.app"); !ok || svc != app {
		t.Error("app not published as core.app")
	}

	if err := app.Start(); err != nil {
		t.Fatal(err)
	}
	want := []string{"history.store=running", "plugin.host=running", "gateway.http=running"}
	if got := states(app); !slices.Equal(got, want) {
		t.Errorf("states = %v, want %v", got, want)
	}
	if err := app.Stop(); err != nil {
		t.Fatal(err)
	}

	wantEvents := []string{"start plugin.host", "start gateway.http", "stop gateway.http", "stop plugin.host", "stop history.store"}
	if !slices.Equal(events, wantEvents) {
		t.Errorf("events = %v, want %v", events, wantEvents)
	}
	// A second Stop has nothing left to do.
	if err := app.Stop(); err != nil || len(events) != len(wantEvents) {
		t.Errorf("second Stop = %v, events = %v", err, events)
	}
}

func TestApp_StartFailureStopsStarted(t *testing.T) {
	boom := errors.New("boom")
	var events []string
	app := newTestApp(t,
		&lifecycleModule{id: "test.a", events: &events},
		&lifecycleModule{id: "test.b", events: &events, startErr: boom},
		&lifecycleModule{id: "test.c", events: &events},
	)

	err := app.Start()
	var me *ModuleError
	if !errors.As(err, &me) || me.ID != "test.b" || me.Phase != PhaseStart || !errors.Is(err, boom) {
		t.Fatalf("Start = %v", err)
	}
	if want := []string{"start test.a", "start test.b", "stop test.a"}; !slices.Equal(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
	if want := []string{"test.a=stopped", "test.b=failed", "test.c=loaded"}; !slices.Equal(states(app), want) {
		t.Errorf("states = %v, want %v", states(app), want)
	}
}

func TestApp_StopJoinsErrors(t *testing.T) {
	var events []string
	app := newTestApp(t,
		&lifecycleModule{id: "test.a", events: &events, stopErr: errors.New("a")},
		&lifecycleModule{id: "test.b", events: &events, stopErr: errors.New("b")},
	)
	if err := app.Start(); err != nil {
		t.Fatal(err)
	}

	err := app.Stop()
	if err == nil {
		t.Fatal("Stop = nil")
	}
	for _, id := range []string{"test.a", "test.b"} {
		if !containsModuleError(err, ModuleID(id)) {
			t.Errorf("error %v does not name %s", err, id)
		}
	}
	for _, st := range app.Status() {
		if st.State != StateStopped || st.Err == nil {
			t.Errorf("%s: state %v err %v", st.ID, st.State, st.Err)
		}
	}
}

func containsModuleError(err error, id ModuleID) bool {
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return false
	}
	for _, e := range joined.Unwrap() {
		var me *ModuleError
		if errors.As(e, &me) && me.ID == id {
			return true
		}
	}
	return false
}

func TestApp_LoadFailureReleasesLoaded(t *testing.T) {
	t.Cleanup(resetRegistry)
	var events []string
	RegisterModule(&lifecycleModule{id: "test.a", events: &events})

	app := NewApp(NewAppContext(nil, t.TempDir()))
	err := app.LoadModules([]string{"test.a", "test.missing"})
	if !errors.Is(err, ErrUnknownModule) {
		t.Fatalf("LoadModules = %v, want ErrUnknownModule", err)
	}
	if !slices.Equal(events, []string{"stop test.a"}) {
		t.Errorf("events = %v", events)
	}
	if len(app.Status()) != 0 {
		t.Errorf("Status = %v, want empty", app.Status())
	}
}

func TestRegisterModule_Panics(t *testing.T) {
	t.Cleanup(resetRegistry)
	RegisterModule(&lifecycleModule{id: "test.dup"})

	for _, m := range []Module{
		&lifecycleModule{id: "nodot"},
		&lifecycleModule{id: ".name"},
		&lifecycleModule{id: "test.dup"},
		nilConstructor{},
	} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("RegisterModule(%s) did not panic", m.ModuleInfo().ID)
				}
			}()
			RegisterModule(m)
		}()
	}

	mods := RegisteredModules()
	if len(mods) != 1 || mods[0].ID != "test.dup" {
		t.Errorf("RegisteredModules = %v", mods)
	}
}

type nilConstructor struct{}

func (nilConstructor) ModuleInfo() ModuleInfo { return ModuleInfo{ID: "test.nilnew"} }

func TestState_String(t *testing.T) {
	t.Parallel()

	if StateRunning.String() != "running" || State(42).String() != "state(42)" {
		t.Errorf("got %q, %q", StateRunning, State(42))
	}
}
