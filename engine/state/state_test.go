package state

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testState(t *testing.T) *State {
	t.Helper()
	s := NewState()
	s.AddWorld("nether")
	if _, err := s.AddPlayer("Steve", "world"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddPlayer("Alex", "nether"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddEntity(&Entity{ID: "cow1", Name: "Brown Cow", Kind: "cow", Living: true}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddEntity(&Entity{ID: "boat1", Name: "Boat", Kind: "boat"}); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNewState_HasDefaultWorld(t *testing.T) {
	s := NewState()
	if _, ok := s.World("WORLD"); !ok {
		t.Error("default world missing")
	}
}

func TestAddEntity_Errors(t *testing.T) {
	s := testState(t)
	tests := []struct {
		name string
		e    *Entity
	}{
		{"no id", &Entity{}},
		{"duplicate", &Entity{ID: "cow1"}},
		{"unknown world", &Entity{ID: "x", World: "end"}},
	}
	for _, tt := range tests {
		if err := s.AddEntity(tt.e); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestPlayers_CreationOrder(t *testing.T) {
	s := testState(t)
	var got []string
	for _, p := range s.Players() {
		got = append(got, p.ID)
	}
	if diff := cmp.Diff([]string{"Steve", "Alex"}, got); diff != "" {
		t.Errorf("Players() mismatch (-want +got):\n%s", diff)
	}
}

func TestLeash(t *testing.T) {
	s := testState(t)
	cow, _ := s.Entity("cow1")
	boat, _ := s.Entity("boat1")
	steve, _ := s.Entity("Steve")

	if !s.Leash(cow, steve) {
		t.Fatal("expected cow to be leashed")
	}
	if h, ok := s.Holder(cow); !ok || h != steve {
		t.Errorf("Holder(cow) = %v, %v", h, ok)
	}
	if s.Leash(boat, steve) {
		t.Error("boats are not living and cannot be leashed")
	}

	s.RemoveEntity("Steve")
	if _, ok := s.Holder(cow); ok {
		t.Error("removing the holder should release the leash")
	}
}

func TestBroadcastAndDrain(t *testing.T) {
	s := testState(t)
	s.Broadcast("hi")
	s.Broadcast("nether only", "nether")
	steve, _ := s.Entity("Steve")
	s.Send(steve, "psst")

	want := []string{"[broadcast] hi", "[to Alex] nether only", "[to Steve] psst"}
	if diff := cmp.Diff(want, s.Drain()); diff != "" {
		t.Errorf("Drain() mismatch (-want +got):\n%s", diff)
	}
	if got := s.Drain(); len(got) != 0 {
		t.Errorf("second Drain() = %v, want empty", got)
	}
}

func TestVars(t *testing.T) {
	s := NewState()
	s.SetVar("Score", 3.0)
	if v, ok := s.Var("score"); !ok || v != 3.0 {
		t.Errorf("Var(score) = %v, %v", v, ok)
	}
	s.SetVar("score", nil)
	if _, ok := s.Var("score"); ok {
		t.Error("setting nil should delete the variable")
	}
}

func TestListVar_NumericOrder(t *testing.T) {
	s := NewState()
	vals := make([]any, 11)
	for i := range vals {
		vals[i] = float64(i)
	}
	s.SetListVar("nums", vals)
	got := s.ListVar("NUMS")
	if diff := cmp.Diff(vals, got); diff != "" {
		t.Errorf("ListVar mismatch (-want +got):\n%s", diff)
	}
}
