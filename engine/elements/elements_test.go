package elements

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nathoo/questscript/engine/function"
	"github.com/nathoo/questscript/engine/lang"
	"github.com/nathoo/questscript/engine/parselog"
	"github.com/nathoo/questscript/engine/pattern"
	"github.com/nathoo/questscript/engine/state"
	"github.com/nathoo/questscript/engine/syntax"
	"github.com/nathoo/questscript/types"
)

func TestParseTimespan(t *testing.T) {
	tests := []struct {
		in    string
		ticks int
		ok    bool
	}{
		{"1 tick", 1, true},
		{"10 ticks", 10, true},
		{"a second", 20, true},
		{"2.5 seconds", 50, true},
		{"one minute", 1200, true},
		{"1 minute and 30 seconds", 1800, true},
		{"an hour", 72000, true},
		{"3 parsecs", 0, false},
		{"seconds", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseTimespan(tt.in)
		if ok != tt.ok || got.Ticks != tt.ticks {
			t.Errorf("ParseTimespan(%q) = %d, %v; want %d, %v", tt.in, got.Ticks, ok, tt.ticks, tt.ok)
		}
	}
}

func TestTimespanString(t *testing.T) {
	tests := []struct {
		ticks int
		want  string
	}{
		{0, "0 seconds"},
		{1, "1 tick"},
		{7, "7 ticks"},
		{20, "1 second"},
		{60, "3 seconds"},
		{1200, "1 minute"},
		{3600, "3 minutes"},
	}
	for _, tt := range tests {
		if got := (Timespan{Ticks: tt.ticks}).String(); got != tt.want {
			t.Errorf("Timespan{%d}.String() = %q, want %q", tt.ticks, got, tt.want)
		}
	}
}

func TestParseBoolean(t *testing.T) {
	for in, want := range map[string]any{"true": true, "Yes": true, "on": true, "false": false, "NO": false, "off": false} {
		got, ok := parseBoolean(in)
		if !ok || got != want {
			t.Errorf("parseBoolean(%q) = %v, %v", in, got, ok)
		}
	}
	if _, ok := parseBoolean("maybe"); ok {
		t.Error("parseBoolean(maybe) should fail")
	}
}

func TestReplaceText(t *testing.T) {
	tests := []struct {
		s, needle, with string
		mode            int
		caseSensitive   bool
		want            string
	}{
		{"banana", "a", "o", ReplaceAll, false, "bonono"},
		{"banana", "a", "o", ReplaceFirst, false, "bonana"},
		{"banana", "a", "o", ReplaceLast, false, "banano"},
		{"BaNaNa", "a", "o", ReplaceAll, false, "BoNoNo"},
		{"BaNaNa", "A", "o", ReplaceAll, true, "BaNaNa"},
		{"aaaa", "aa", "b", ReplaceAll, false, "bb"},
		{"abc", "", "x", ReplaceAll, false, "abc"},
		{"abc", "z", "x", ReplaceAll, false, "abc"},
	}
	for _, tt := range tests {
		got := ReplaceText(tt.s, tt.needle, tt.with, tt.mode, tt.caseSensitive)
		if got != tt.want {
			t.Errorf("ReplaceText(%q, %q, %q, %d, %v) = %q, want %q", tt.s, tt.needle, tt.with, tt.mode, tt.caseSensitive, got, tt.want)
		}
	}
}

// world holds two players in two worlds and a cow.
type world struct {
	*state.State
	steve, alex, cow *state.Entity
}

func newWorld(t *testing.T) world {
	t.Helper()
	s := state.NewState()
	s.AddWorld("nether")
	steve, err := s.AddPlayer("Steve", "world")
	if err != nil {
		t.Fatal(err)
	}
	alex, err := s.AddPlayer("Alex", "nether")
	if err != nil {
		t.Fatal(err)
	}
	cow := &state.Entity{ID: "cow", Name: "Cow", Kind: "cow", Living: true, World: "world"}
	if err := s.AddEntity(cow); err != nil {
		t.Fatal(err)
	}
	return world{State: s, steve: steve, alex: alex, cow: cow}
}

func newParser(t *testing.T) (*syntax.Parser, *parselog.Collector) {
	t.Helper()
	classes := lang.NewClasses()
	if err := RegisterTypes(classes); err != nil {
		t.Fatal(err)
	}
	reg := syntax.NewRegistry(classes, pattern.NewCache(0), nil)
	ns := function.NewNamespace()
	if err := Register(reg, ns); err != nil {
		t.Fatal(err)
	}
	reg.Close()
	coll := parselog.NewCollector(nil)
	return syntax.NewParser(reg, ns, parselog.New(coll), syntax.Limits{}), coll
}

// runEffects parses and runs each line as an effect for a join event by
// Steve, returning what was sent.
func runEffects(t *testing.T, w world, lines ...string) []string {
	t.Helper()
	p, coll := newParser(t)
	env := lang.NewEnv(types.Event{Type: EventJoin, Data: map[string]any{"player": w.steve}}, w.State)
	for _, line := range lines {
		eff, err := p.ParseEffect(line)
		if err != nil || eff == nil {
			t.Fatalf("ParseEffect(%q): %v %v", line, err, coll.Diagnostics)
		}
		eff.Run(env)
	}
	return w.Drain()
}

func TestEffects_Messages(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{`broadcast "hi"`, []string{"[broadcast] hi"}},
		{`broadcast "hi" 2 times`, []string{"[broadcast] hi", "[broadcast] hi"}},
		{`broadcast "hot" in the world named "nether"`, []string{"[to Alex] hot"}},
		{`send "psst" to player`, []string{"[to Steve] psst"}},
		{`message "a" and "b" to all players`, []string{"[to Steve] a", "[to Steve] b", "[to Alex] a", "[to Alex] b"}},
		{`broadcast "hi %player%"`, []string{"[broadcast] hi Steve"}},
		{`broadcast "%name of the player named ""alex""%!"`, []string{"[broadcast] Alex!"}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			w := newWorld(t)
			got := runEffects(t, w, tt.line)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEffects_Variables(t *testing.T) {
	w := newWorld(t)
	runEffects(t, w,
		`set {score} to 5`,
		`set {text} to "A cat and a hat"`,
		`replace first "a" with "the" in {text}`,
		`add "x" and "y" to {letters::*}`,
		`set {gone} to true`,
		`delete {gone}`,
	)
	if v, _ := w.Var("score"); v != 5.0 {
		t.Errorf("{score} = %v, want 5", v)
	}
	if v, _ := w.Var("text"); v != "the cat and a hat" {
		t.Errorf("{text} = %v", v)
	}
	if diff := cmp.Diff([]any{"x", "y"}, w.ListVar("letters")); diff != "" {
		t.Errorf("{letters::*} mismatch (-want +got):\n%s", diff)
	}
	if _, ok := w.Var("gone"); ok {
		t.Error("{gone} should be deleted")
	}
}

func TestEffects_Leash(t *testing.T) {
	w := newWorld(t)
	runEffects(t, w, `leash the entity named "cow" to player`)
	if h, ok := w.Holder(w.cow); !ok || h != w.steve {
		t.Fatalf("cow holder = %v, %v", h, ok)
	}
	runEffects(t, w, `release the entity named "cow"`)
	if _, ok := w.Holder(w.cow); ok {
		t.Error("cow should be released")
	}
}

func TestConditions(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{`{score} is set`, true},
		{`{missing} is set`, false},
		{`{missing} is not set`, true},
		{`{score} is greater than 3`, true},
		{`{score} is less than 3`, false},
		{`{score} is greater than or equal to 7`, true},
		{`"Hello there" contains "THERE"`, true},
		{`"Hello" doesn't contain "bye"`, true},
		{`the player is leashed`, false},
		{`the entity named "cow" is leashed by the player`, true},
		{`the entity named "cow" is not leashed`, false},
		{`the player is the player named "Steve"`, true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			w := newWorld(t)
			w.SetVar("score", 7.0)
			w.Leash(w.cow, w.steve)
			p, coll := newParser(t)
			cond, err := p.ParseCondition(tt.line)
			if err != nil || cond == nil {
				t.Fatalf("ParseCondition: %v %v", err, coll.Diagnostics)
			}
			env := lang.NewEnv(types.Event{Type: EventJoin, Data: map[string]any{"player": w.steve}}, w.State)
			if got := cond.Check(env); got != tt.want {
				t.Errorf("Check = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpressions(t *testing.T) {
	tests := []struct {
		text string
		typ  string
		want []any
	}{
		{"2 * 3", TypeNumber, []any{6.0}},
		{"7 / 2", TypeNumber, []any{3.5}},
		{`the length of "four"`, TypeNumber, []any{4.0}},
		{"abs(-4)", TypeNumber, []any{4.0}},
		{"round(2.6)", TypeNumber, []any{3.0}},
		{`the name of the player`, TypeString, []any{"Steve"}},
		{`the name of the player named "alex"`, TypeString, []any{"Alex"}},
		{"a random integer between 4 and 4", TypeNumber, []any{4.0}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			w := newWorld(t)
			p, coll := newParser(t)
			e := p.ParseExpression(tt.text, tt.typ)
			if e == nil {
				t.Fatalf("ParseExpression: %v", coll.Diagnostics)
			}
			env := lang.NewEnv(types.Event{Type: EventJoin, Data: map[string]any{"player": w.steve}}, w.State)
			if diff := cmp.Diff(tt.want, e.All(env)); diff != "" {
				t.Errorf("value mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
