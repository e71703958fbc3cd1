package job

import (
	"errors"
	"testing"
)

func TestCronTable_Handshake(t *testing.T) {
	t.Parallel()

	tbl := NewCronTable()
	if err := tbl.Register("c1"); err != nil {
		t.Fatal(err)
	}
	if err := tbl.Register("c1"); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("duplicate Register err = %v", err)
	}
	if got := tbl.TerminationRequests(); len(got) != 0 {
		t.Errorf("requests = %v, want none", got)
	}

	if !tbl.RequestTermination("c1") {
		t.Fatal("RequestTermination should accept a registered id")
	}
	if tbl.RequestTermination("missing") {
		t.Error("RequestTermination should reject an unknown id")
	}
	if got := tbl.TerminationRequests(); len(got) != 1 || got[0] != "c1" {
		t.Errorf("requests = %v, want [c1]", got)
	}

	if err := tbl.Unregister("c1"); err != nil {
		t.Fatal(err)
	}
	if err := tbl.Unregister("c1"); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("second Unregister err = %v", err)
	}
}

func TestCronTable_RequestAll(t *testing.T) {
	t.Parallel()

	tbl := NewCronTable()
	for _, id := range []string{"b", "a", "c"} {
		if err := tbl.Register(id); err != nil {
			t.Fatal(err)
		}
	}
	if n := tbl.RequestAll(); n != 3 {
		t.Errorf("RequestAll = %d, want 3", n)
	}
	got := tbl.TerminationRequests()
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("requests = %v, want %v", got, want)
			break
		}
	}
}
