package events

import (
	"testing"

	"github.com/nathoo/questscript/engine/lang"
	"github.com/nathoo/questscript/engine/state"
	"github.com/nathoo/questscript/engine/trigger"
	"github.com/nathoo/questscript/types"
)

// header accepts events whose "room" value equals room, or every event
// when room is empty.
type header struct {
	room     string
	interval int
}

func (h header) Init([]lang.Expression, int, lang.Kleenean, *lang.ParseResult) bool { return true }
func (h header) String() string                                                   { return "test" }

func (h header) Check(env *lang.Env) bool {
	if h.room == "" {
		return true
	}
	v, _ := env.Data("room")
	return v == h.room
}

type periodicHeader struct {
	header
}

func (p periodicHeader) Interval() int { return p.interval }

// say broadcasts its text.
type say string

func (s say) Init([]lang.Expression, int, lang.Kleenean, *lang.ParseResult) bool { return true }
func (s say) Run(env *lang.Env)                                                 { env.World.Broadcast(string(s)) }
func (s say) String() string                                                    { return string(s) }

type pause int

func (p pause) Init([]lang.Expression, int, lang.Kleenean, *lang.ParseResult) bool { return true }
func (p pause) Run(*lang.Env)                                                     {}
func (p pause) Ticks(*lang.Env) int                                               { return int(p) }
func (p pause) String() string                                                    { return "wait" }

func testTriggers() []*trigger.Trigger {
	return []*trigger.Trigger{
		{Script: "a.sk", Name: "item taken", Events: []string{"item_taken"}, Event: header{},
			Body: []trigger.Item{&trigger.Statement{Effect: say("You picked something up!")}}},
		{Script: "a.sk", Name: "room entered", Events: []string{"room_entered"}, Event: header{room: "cave"},
			Body: []trigger.Item{&trigger.Statement{Effect: say("Welcome back.")}}},
		{Script: "b.sk", Name: "item taken again", Events: []string{"item_taken"}, Event: header{},
			Body: []trigger.Item{&trigger.Statement{Effect: say("Counted.")}}},
	}
}

func TestDispatch_MatchesEventType(t *testing.T) {
	runs := Dispatch(types.Event{Type: "item_taken"}, testTriggers(), state.NewState())
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs from 2 matching triggers, got %d", len(runs))
	}
	if runs[0].Trigger.Name != "item taken" || runs[1].Trigger.Name != "item taken again" {
		t.Errorf("runs out of order: %q, %q", runs[0].Trigger.Name, runs[1].Trigger.Name)
	}
}

func TestDispatch_SkipsNonMatchingEventType(t *testing.T) {
	runs := Dispatch(types.Event{Type: "flag_changed"}, testTriggers(), state.NewState())
	if len(runs) != 0 {
		t.Fatalf("expected 0 runs for non-matching event, got %d", len(runs))
	}
}

func TestDispatch_HeaderCheck(t *testing.T) {
	s := state.NewState()
	if runs := Dispatch(types.Event{Type: "room_entered", Data: map[string]any{"room": "hall"}}, testTriggers(), s); len(runs) != 0 {
		t.Fatalf("expected header to reject hall, got %d runs", len(runs))
	}
	runs := Dispatch(types.Event{Type: "room_entered", Data: map[string]any{"room": "cave"}}, testTriggers(), s)
	if len(runs) != 1 {
		t.Fatalf("expected 1 run for cave, got %d", len(runs))
	}
	var sched Scheduler
	sched.Run(runs, 0)
	out := s.Drain()
	if len(out) != 1 || out[0] != "[broadcast] Welcome back." {
		t.Errorf("unexpected output %q", out)
	}
}

func TestDue(t *testing.T) {
	every := func(n int) *trigger.Trigger {
		return &trigger.Trigger{Events: []string{"tick"}, Event: periodicHeader{header{interval: n}}}
	}
	triggers := []*trigger.Trigger{every(2), every(3), testTriggers()[0]}
	tests := []struct {
		tick int
		want int
	}{
		{1, 0},
		{2, 1},
		{3, 1},
		{6, 2},
	}
	for _, tt := range tests {
		if got := len(Due(triggers, tt.tick)); got != tt.want {
			t.Errorf("Due(tick %d) = %d triggers, want %d", tt.tick, got, tt.want)
		}
	}
}

func TestScheduler_ResumesAfterDelay(t *testing.T) {
	s := state.NewState()
	tr := &trigger.Trigger{Script: "a.sk", Events: []string{"join"}, Event: header{}, Body: []trigger.Item{
		&trigger.Statement{Effect: say("one")},
		&trigger.Statement{Effect: pause(5)},
		&trigger.Statement{Effect: say("two")},
	}}
	var sched Scheduler
	sched.Run(Dispatch(types.Event{Type: "join"}, []*trigger.Trigger{tr}, s), 10)
	if sched.Pending() != 1 {
		t.Fatalf("expected 1 pending run, got %d", sched.Pending())
	}
	if out := s.Drain(); len(out) != 1 {
		t.Fatalf("expected output before the delay only, got %q", out)
	}
	if n := sched.Advance(14); n != 0 {
		t.Errorf("run resumed early at tick 14")
	}
	if n := sched.Advance(15); n != 1 {
		t.Errorf("expected 1 resumed run at tick 15, got %d", n)
	}
	if out := s.Drain(); len(out) != 1 || out[0] != "[broadcast] two" {
		t.Errorf("unexpected output after resume %q", out)
	}
	if sched.Pending() != 0 {
		t.Errorf("expected no pending runs, got %d", sched.Pending())
	}
}

func TestScheduler_Drop(t *testing.T) {
	s := state.NewState()
	waiting := func(script string) *trigger.Trigger {
		return &trigger.Trigger{Script: script, Events: []string{"join"}, Event: header{},
			Body: []trigger.Item{&trigger.Statement{Effect: pause(1)}}}
	}
	var sched Scheduler
	sched.Run(Dispatch(types.Event{Type: "join"}, []*trigger.Trigger{waiting("a.sk"), waiting("b.sk"), waiting("a.sk")}, s), 0)
	if n := sched.Drop("a.sk"); n != 2 {
		t.Errorf("Drop = %d, want 2", n)
	}
	if sched.Pending() != 1 {
		t.Errorf("expected 1 pending run, got %d", sched.Pending())
	}
}
