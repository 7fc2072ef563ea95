package elements

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/nathoo/questscript/engine/lang"
	"github.com/nathoo/questscript/engine/resolve"
	"github.com/nathoo/questscript/engine/state"
	"github.com/nathoo/questscript/engine/syntax"
)

// eventValue is a value of the event being handled, such as the player
// who joined. When the event has no value under key, fallback is tried.
type eventValue struct {
	key      string
	fallback string
	typ      string
}

func (e *eventValue) Init([]lang.Expression, int, lang.Kleenean, *lang.ParseResult) bool {
	return true
}

func (e *eventValue) ReturnType() string { return e.typ }
func (e *eventValue) IsSingle() bool     { return true }
func (e *eventValue) String() string     { return "the " + e.key }

func (e *eventValue) All(env *lang.Env) []any {
	for _, k := range []string{e.key, e.fallback} {
		if k == "" {
			continue
		}
		if v, ok := env.Data(k); ok && v != nil {
			return []any{v}
		}
	}
	return nil
}

type allPlayers struct{}

func (allPlayers) Init([]lang.Expression, int, lang.Kleenean, *lang.ParseResult) bool { return true }
func (allPlayers) ReturnType() string                                               { return TypePlayer }
func (allPlayers) IsSingle() bool                                                   { return false }
func (allPlayers) String() string                                                   { return "all players" }

func (allPlayers) All(env *lang.Env) []any {
	players := env.World.Players()
	out := make([]any, len(players))
	for i, p := range players {
		out[i] = p
	}
	return out
}

// named looks an entity up by name when the script runs.
type named struct {
	name    lang.Expression
	players bool
}

func (n *named) Init(exprs []lang.Expression, _ int, _ lang.Kleenean, _ *lang.ParseResult) bool {
	n.name = exprs[0]
	return true
}

func (n *named) ReturnType() string {
	if n.players {
		return TypePlayer
	}
	return TypeEntity
}

func (n *named) IsSingle() bool { return true }

func (n *named) String() string {
	if n.players {
		return "the player named " + n.name.String()
	}
	return "the entity named " + n.name.String()
}

func (n *named) All(env *lang.Env) []any {
	name, ok := lang.Single(n.name, env).(string)
	if !ok {
		return nil
	}
	var filter resolve.Filter
	if n.players {
		filter = resolve.Players
	}
	e, err := resolve.Entity(env.World, name, filter)
	if err != nil {
		return nil
	}
	return []any{e}
}

type nameOf struct {
	entities lang.Expression
}

func (n *nameOf) Init(exprs []lang.Expression, _ int, _ lang.Kleenean, _ *lang.ParseResult) bool {
	n.entities = exprs[0]
	return true
}

func (n *nameOf) ReturnType() string { return TypeString }
func (n *nameOf) IsSingle() bool     { return n.entities.IsSingle() }
func (n *nameOf) String() string     { return "the name of " + n.entities.String() }

func (n *nameOf) All(env *lang.Env) []any {
	var out []any
	for _, v := range n.entities.All(env) {
		out = append(out, v.(*state.Entity).String())
	}
	return out
}

type holderOf struct {
	entities lang.Expression
}

func (h *holderOf) Init(exprs []lang.Expression, _ int, _ lang.Kleenean, _ *lang.ParseResult) bool {
	h.entities = exprs[0]
	return true
}

func (h *holderOf) ReturnType() string { return TypeEntity }
func (h *holderOf) IsSingle() bool     { return h.entities.IsSingle() }
func (h *holderOf) String() string     { return "the leash holder of " + h.entities.String() }

func (h *holderOf) All(env *lang.Env) []any {
	var out []any
	for _, v := range h.entities.All(env) {
		if holder, ok := env.World.Holder(v.(*state.Entity)); ok {
			out = append(out, holder)
		}
	}
	return out
}

type lengthOf struct {
	texts lang.Expression
}

func (l *lengthOf) Init(exprs []lang.Expression, _ int, _ lang.Kleenean, _ *lang.ParseResult) bool {
	l.texts = exprs[0]
	return true
}

func (l *lengthOf) ReturnType() string { return TypeNumber }
func (l *lengthOf) IsSingle() bool     { return l.texts.IsSingle() }
func (l *lengthOf) String() string     { return "the length of " + l.texts.String() }

func (l *lengthOf) All(env *lang.Env) []any {
	var out []any
	for _, v := range l.texts.All(env) {
		out = append(out, float64(utf8.RuneCountInString(v.(string))))
	}
	return out
}

type worldNamed struct {
	name lang.Expression
}

func (w *worldNamed) Init(exprs []lang.Expression, _ int, _ lang.Kleenean, _ *lang.ParseResult) bool {
	w.name = exprs[0]
	return true
}

func (w *worldNamed) ReturnType() string { return TypeWorld }
func (w *worldNamed) IsSingle() bool     { return true }
func (w *worldNamed) String() string     { return "the world " + w.name.String() }

func (w *worldNamed) All(env *lang.Env) []any {
	name, ok := lang.Single(w.name, env).(string)
	if !ok {
		return nil
	}
	if world, ok := env.World.World(name); ok {
		return []any{world}
	}
	return nil
}

// randomInteger draws from the world's RNG on every evaluation.
type randomInteger struct {
	lo, hi lang.Expression
}

func (r *randomInteger) Init(exprs []lang.Expression, _ int, _ lang.Kleenean, _ *lang.ParseResult) bool {
	r.lo, r.hi = exprs[0], exprs[1]
	return true
}

func (r *randomInteger) ReturnType() string { return TypeNumber }
func (r *randomInteger) IsSingle() bool     { return true }

func (r *randomInteger) String() string {
	return fmt.Sprintf("a random integer between %s and %s", r.lo, r.hi)
}

func (r *randomInteger) All(env *lang.Env) []any {
	lo, ok1 := lang.Single(r.lo, env).(float64)
	hi, ok2 := lang.Single(r.hi, env).(float64)
	if !ok1 || !ok2 {
		return nil
	}
	return []any{float64(env.World.RNG.Between(int(math.Ceil(lo)), int(math.Floor(hi))))}
}

// Arithmetic operators, selected by parse mark.
const (
	opAdd = iota
	opSub
	opMul
	opDiv
)

var opSymbols = [...]string{"+", "-", "*", "/"}

type arithmetic struct {
	left, right lang.Expression
	op          int
}

func (a *arithmetic) Init(exprs []lang.Expression, _ int, _ lang.Kleenean, res *lang.ParseResult) bool {
	a.left, a.right = exprs[0], exprs[1]
	a.op = res.Mark
	return a.op >= opAdd && a.op <= opDiv
}

func (a *arithmetic) ReturnType() string { return TypeNumber }
func (a *arithmetic) IsSingle() bool     { return true }

func (a *arithmetic) String() string {
	return fmt.Sprintf("%s %s %s", a.left, opSymbols[a.op], a.right)
}

func (a *arithmetic) All(env *lang.Env) []any {
	l, lok := lang.Single(a.left, env).(float64)
	r, rok := lang.Single(a.right, env).(float64)
	if !lok || !rok {
		return nil
	}
	var v float64
	switch a.op {
	case opAdd:
		v = l + r
	case opSub:
		v = l - r
	case opMul:
		v = l * r
	case opDiv:
		if r == 0 {
			return nil
		}
		v = l / r
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return []any{v}
}

func registerExpressions(reg *syntax.Registry) error {
	ev := func(key, fallback, typ string) syntax.Factory {
		return func() lang.Element { return &eventValue{key: key, fallback: fallback, typ: typ} }
	}
	regs := []struct {
		name, ret string
		prio      syntax.Priority
		f         syntax.Factory
		patterns  []string
	}{
		{"event player", TypePlayer, syntax.PriorityEventValue, ev("player", "", TypePlayer), []string{"[the] player"}},
		{"event target", TypeEntity, syntax.PriorityEventValue, ev("target", "", TypeEntity), []string{"[the] target"}},
		{"event message", TypeString, syntax.PriorityEventValue, ev("message", "", TypeString), []string{"[the] [chat] message"}},
		{"event world", TypeWorld, syntax.PriorityEventValue, ev("world", "", TypeWorld), []string{"[the] [event-]world"}},
		{"all players", TypePlayer, syntax.PrioritySimple, func() lang.Element { return allPlayers{} },
			[]string{"all [[of] the] players", "[the] players"}},
		{"player named", TypePlayer, syntax.PrioritySimple, func() lang.Element { return &named{players: true} },
			[]string{"[the] player named %string%"}},
		{"entity named", TypeEntity, syntax.PrioritySimple, func() lang.Element { return &named{} },
			[]string{"[the] entity named %string%"}},
		{"world named", TypeWorld, syntax.PrioritySimple, func() lang.Element { return &worldNamed{} },
			[]string{"[the] world named %string%"}},
		{"name", TypeString, syntax.PriorityProperty, func() lang.Element { return &nameOf{} },
			[]string{"[the] name[s] of %entities%", "%entities%'[s] name[s]"}},
		{"leash holder", TypeEntity, syntax.PriorityProperty, func() lang.Element { return &holderOf{} },
			[]string{"[the] leash holder[s] of %livingentities%", "%livingentities%'[s] leash holder[s]"}},
		{"length", TypeNumber, syntax.PriorityProperty, func() lang.Element { return &lengthOf{} },
			[]string{"[the] length of %strings%"}},
		{"random integer", TypeNumber, syntax.PriorityCombined, func() lang.Element { return &randomInteger{} },
			[]string{"[a] random integer (between|from) %number% (and|to) %number%"}},
		{"arithmetic", TypeNumber, syntax.PriorityPatternMatchesEverything, func() lang.Element { return &arithmetic{} },
			[]string{"%number% (0¦+|1¦-|2¦*|3¦/) %number%"}},
	}
	for _, r := range regs {
		if err := reg.RegisterExpression(r.name, r.ret, r.prio, r.f, r.patterns...); err != nil {
			return err
		}
	}
	return nil
}
