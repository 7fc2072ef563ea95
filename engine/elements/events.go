package elements

import (
	"strings"

	"github.com/nathoo/questscript/engine/lang"
	"github.com/nathoo/questscript/engine/syntax"
)

// Event types fired by the engine.
const (
	EventJoin = "join"
	EventQuit = "quit"
	EventChat = "chat"
	EventTick = "tick"
)

// simpleEvent accepts every event of its types.
type simpleEvent struct {
	name string
}

func (e *simpleEvent) Init([]lang.Expression, int, lang.Kleenean, *lang.ParseResult) bool {
	return true
}

func (e *simpleEvent) Check(*lang.Env) bool { return true }
func (e *simpleEvent) String() string       { return "on " + e.name }

type chatEvent struct {
	containing lang.Expression
}

func (e *chatEvent) Init(exprs []lang.Expression, _ int, _ lang.Kleenean, _ *lang.ParseResult) bool {
	e.containing = exprs[0]
	return true
}

func (e *chatEvent) Check(env *lang.Env) bool {
	if e.containing == nil {
		return true
	}
	msg, _ := env.Data("message")
	text, ok := msg.(string)
	if !ok {
		return false
	}
	needle, _ := lang.Single(e.containing, env).(string)
	return strings.Contains(strings.ToLower(text), strings.ToLower(needle))
}

func (e *chatEvent) String() string {
	if e.containing == nil {
		return "on chat"
	}
	return "on chat containing " + e.containing.String()
}

// periodic runs its trigger every Interval ticks.
type periodic struct {
	span Timespan
}

func (e *periodic) Init(exprs []lang.Expression, _ int, _ lang.Kleenean, res *lang.ParseResult) bool {
	var t Timespan
	if l, ok := exprs[0].(lang.Literal); ok && len(l.Values()) == 1 {
		t, _ = l.Values()[0].(Timespan)
	}
	if t.Ticks <= 0 {
		res.Error("the interval of a periodic event must be at least one tick")
		return false
	}
	e.span = t
	return true
}

// Interval returns the period in ticks.
func (e *periodic) Interval() int { return e.span.Ticks }

func (e *periodic) Check(*lang.Env) bool { return true }
func (e *periodic) String() string       { return "every " + e.span.String() }

func registerEvents(reg *syntax.Registry) error {
	simple := func(name string) syntax.Factory {
		return func() lang.Element { return &simpleEvent{name: name} }
	}
	regs := []struct {
		name     string
		events   []string
		f        syntax.Factory
		patterns []string
	}{
		{"join", []string{EventJoin}, simple("join"), []string{"[player] join[ing]"}},
		{"quit", []string{EventQuit}, simple("quit"), []string{"[player] (quit[ting]|leav(e|ing)|disconnect[ing])"}},
		{"chat", []string{EventChat}, func() lang.Element { return &chatEvent{} },
			[]string{"[player] chat[ting] [containing %-string%]"}},
		{"periodic", []string{EventTick}, func() lang.Element { return &periodic{} },
			[]string{"every %timespan%"}},
	}
	for _, r := range regs {
		if err := reg.RegisterEvent(r.name, r.events, r.f, r.patterns...); err != nil {
			return err
		}
	}
	return nil
}
