package resolve

import (
	"errors"
	"testing"

	"github.com/nathoo/questscript/engine/state"
)

func testState(t *testing.T) *state.State {
	t.Helper()
	s := state.NewState()
	for _, name := range []string{"Steve", "Alex"} {
		if _, err := s.AddPlayer(name, "world"); err != nil {
			t.Fatal(err)
		}
	}
	entities := []*state.Entity{
		{ID: "brown_cow", Name: "Brown Cow", Kind: "cow", Living: true},
		{ID: "black_cow", Name: "Black Cow", Kind: "cow", Living: true},
		{ID: "pig", Name: "Pig", Kind: "pig", Living: true},
	}
	for _, e := range entities {
		if err := s.AddEntity(e); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func TestEntity_Matches(t *testing.T) {
	s := testState(t)
	tests := []struct {
		name string
		want string
	}{
		{"Steve", "Steve"},
		{"steve", "Steve"},
		{"brown_cow", "brown_cow"},
		{"brown cow", "brown_cow"},
		{"BLACK COW", "black_cow"},
		{"pig", "pig"},
	}
	for _, tt := range tests {
		e, err := Entity(s, tt.name, nil)
		if err != nil {
			t.Errorf("Entity(%q) error: %v", tt.name, err)
			continue
		}
		if e.ID != tt.want {
			t.Errorf("Entity(%q) = %q, want %q", tt.name, e.ID, tt.want)
		}
	}
}

func TestEntity_Ambiguous(t *testing.T) {
	s := testState(t)
	_, err := Entity(s, "cow", nil)
	var amb *AmbiguityError
	if !errors.As(err, &amb) {
		t.Fatalf("expected AmbiguityError, got %v", err)
	}
	if len(amb.Candidates) != 2 {
		t.Errorf("candidates = %v, want 2", amb.Candidates)
	}
}

func TestEntity_NotFoundSuggests(t *testing.T) {
	s := testState(t)
	_, err := Entity(s, "stve", Players)
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if nf.Suggestion != "Steve" {
		t.Errorf("Suggestion = %q, want %q", nf.Suggestion, "Steve")
	}
}

func TestEntity_Filter(t *testing.T) {
	s := testState(t)
	if _, err := Entity(s, "pig", Players); err == nil {
		t.Error("pig is not a player")
	}
}
