package trigger

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nathoo/questscript/engine/lang"
	"github.com/nathoo/questscript/engine/state"
	"github.com/nathoo/questscript/types"
)

type base struct{ text string }

func (b base) Init([]lang.Expression, int, lang.Kleenean, *lang.ParseResult) bool { return true }
func (b base) String() string                                                   { return b.text }

// say appends its text to the "log" local.
type say struct{ base }

func (s say) Run(env *lang.Env) {
	log, _ := env.Locals["log"].([]string)
	env.Locals["log"] = append(log, s.text)
}

type wait struct {
	base
	ticks int
}

func (w wait) Run(*lang.Env)       {}
func (w wait) Ticks(*lang.Env) int { return w.ticks }

type stop struct{ base }

func (stop) Run(env *lang.Env) { env.Halted = true }

type cond struct {
	base
	ok bool
}

func (c cond) Check(*lang.Env) bool { return c.ok }

type times struct {
	base
	n int
}

func (t times) Iterations(*lang.Env) int { return t.n }

func line(text string) *Statement { return &Statement{Effect: say{base{text}}} }

func logOf(env *lang.Env) []string {
	log, _ := env.Locals["log"].([]string)
	return log
}

func newEnv() *lang.Env {
	return lang.NewEnv(types.Event{Type: "test"}, state.NewState())
}

func TestRun_Sequence(t *testing.T) {
	env := newEnv()
	tr := &Trigger{Body: []Item{line("a"), line("b")}}
	run := tr.Start(env)
	if ticks := run.Resume(); ticks != 0 {
		t.Fatalf("unexpected suspension for %d ticks", ticks)
	}
	if !run.Done() {
		t.Fatal("expected run to be done")
	}
	if diff := cmp.Diff([]string{"a", "b"}, logOf(env)); diff != "" {
		t.Errorf("log mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_SuspendsOnDelay(t *testing.T) {
	env := newEnv()
	tr := &Trigger{Body: []Item{
		line("before"),
		&Statement{Effect: wait{base: base{"wait 3 ticks"}, ticks: 3}},
		line("after"),
	}}
	run := tr.Start(env)
	if ticks := run.Resume(); ticks != 3 {
		t.Fatalf("expected suspension for 3 ticks, got %d", ticks)
	}
	if run.Done() {
		t.Fatal("run should not be done while suspended")
	}
	if diff := cmp.Diff([]string{"before"}, logOf(env)); diff != "" {
		t.Errorf("log before resume (-want +got):\n%s", diff)
	}
	run.Resume()
	if diff := cmp.Diff([]string{"before", "after"}, logOf(env)); diff != "" {
		t.Errorf("log after resume (-want +got):\n%s", diff)
	}
}

func TestRun_FailedCheckStops(t *testing.T) {
	env := newEnv()
	tr := &Trigger{Body: []Item{line("a"), &Check{Cond: cond{ok: false}}, line("b")}}
	tr.Start(env).Resume()
	if diff := cmp.Diff([]string{"a"}, logOf(env)); diff != "" {
		t.Errorf("log mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_Conditional(t *testing.T) {
	tests := []struct {
		name   string
		first  bool
		second bool
		want   []string
	}{
		{"first arm", true, true, []string{"if", "end"}},
		{"second arm", false, true, []string{"else if", "end"}},
		{"else arm", false, false, []string{"else", "end"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv()
			body := []Item{
				&Conditional{Branches: []Branch{
					{Cond: cond{ok: tt.first}, Body: []Item{line("if")}},
					{Cond: cond{ok: tt.second}, Body: []Item{line("else if")}},
					{Body: []Item{line("else")}},
				}},
				line("end"),
			}
			Exec(body, env)
			if diff := cmp.Diff(tt.want, logOf(env)); diff != "" {
				t.Errorf("log mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRun_LoopRepeatsBody(t *testing.T) {
	env := newEnv()
	Exec([]Item{&Loop{Section: times{n: 3}, Body: []Item{line("x")}}, line("done")}, env)
	if diff := cmp.Diff([]string{"x", "x", "x", "done"}, logOf(env)); diff != "" {
		t.Errorf("log mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_LoopWithDelayResumesInside(t *testing.T) {
	env := newEnv()
	tr := &Trigger{Body: []Item{&Loop{Section: times{n: 2}, Body: []Item{
		line("tick"),
		&Statement{Effect: wait{ticks: 1}},
	}}}}
	run := tr.Start(env)
	suspensions := 0
	for !run.Done() {
		if run.Resume() > 0 {
			suspensions++
		}
	}
	if suspensions != 2 {
		t.Errorf("expected 2 suspensions, got %d", suspensions)
	}
	if diff := cmp.Diff([]string{"tick", "tick"}, logOf(env)); diff != "" {
		t.Errorf("log mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_StopHalts(t *testing.T) {
	env := newEnv()
	Exec([]Item{
		&Loop{Section: times{n: 5}, Body: []Item{line("x"), &Statement{Effect: stop{}}}},
		line("never"),
	}, env)
	if diff := cmp.Diff([]string{"x"}, logOf(env)); diff != "" {
		t.Errorf("log mismatch (-want +got):\n%s", diff)
	}
}

func TestTrigger_Handles(t *testing.T) {
	tr := &Trigger{Events: []string{"join", "quit"}}
	if !tr.Handles("quit") {
		t.Error("expected trigger to handle quit")
	}
	if tr.Handles("chat") {
		t.Error("trigger should not handle chat")
	}
}

func TestWalk_VisitsNestedItems(t *testing.T) {
	body := []Item{
		line("a"),
		&Conditional{Branches: []Branch{{Cond: cond{base: base{"c"}, ok: true}, Body: []Item{line("b")}}}},
		&Loop{Section: times{base: base{"loop"}}, Body: []Item{line("c")}},
	}
	var got []string
	Walk(body, func(it Item) { got = append(got, it.String()) })
	want := []string{"a", "if c", "b", "loop", "c"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("walk order (-want +got):\n%s", diff)
	}
}
