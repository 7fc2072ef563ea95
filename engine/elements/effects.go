package elements

import (
	"strings"

	"github.com/nathoo/questscript/engine/lang"
	"github.com/nathoo/questscript/engine/state"
	"github.com/nathoo/questscript/engine/syntax"
)

// maxRepeats caps "broadcast ... n times".
const maxRepeats = 100

func strs(vals []any) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

type broadcast struct {
	messages lang.Expression
	worlds   lang.Expression
	times    lang.Expression
}

func (b *broadcast) Init(exprs []lang.Expression, _ int, _ lang.Kleenean, _ *lang.ParseResult) bool {
	b.messages, b.worlds, b.times = exprs[0], exprs[1], exprs[2]
	return true
}

func (b *broadcast) Run(env *lang.Env) {
	var worlds []string
	if b.worlds != nil {
		for _, w := range b.worlds.All(env) {
			worlds = append(worlds, w.(*state.World).Name)
		}
		if len(worlds) == 0 {
			return
		}
	}
	n := 1
	if b.times != nil {
		f, ok := lang.Single(b.times, env).(float64)
		if !ok {
			return
		}
		n = min(int(f), maxRepeats)
	}
	msgs := strs(b.messages.All(env))
	for i := 0; i < n; i++ {
		for _, m := range msgs {
			env.World.Broadcast(m, worlds...)
		}
	}
}

func (b *broadcast) String() string {
	s := "broadcast " + b.messages.String()
	if b.worlds != nil {
		s += " to " + b.worlds.String()
	}
	if b.times != nil {
		s += " " + b.times.String() + " times"
	}
	return s
}

type send struct {
	messages lang.Expression
	players  lang.Expression
}

func (s *send) Init(exprs []lang.Expression, _ int, _ lang.Kleenean, _ *lang.ParseResult) bool {
	s.messages, s.players = exprs[0], exprs[1]
	return true
}

func (s *send) Run(env *lang.Env) {
	msgs := strs(s.messages.All(env))
	for _, p := range s.players.All(env) {
		for _, m := range msgs {
			env.World.Send(p.(*state.Entity), m)
		}
	}
}

func (s *send) String() string {
	return "send " + s.messages.String() + " to " + s.players.String()
}

type leash struct {
	entities lang.Expression
	holder   lang.Expression
}

func (l *leash) Init(exprs []lang.Expression, _ int, _ lang.Kleenean, _ *lang.ParseResult) bool {
	l.entities, l.holder = exprs[0], exprs[1]
	return true
}

func (l *leash) Run(env *lang.Env) {
	holder, ok := lang.Single(l.holder, env).(*state.Entity)
	if !ok {
		return
	}
	for _, v := range l.entities.All(env) {
		env.World.Leash(v.(*state.Entity), holder)
	}
}

func (l *leash) String() string {
	return "leash " + l.entities.String() + " to " + l.holder.String()
}

type unleash struct {
	entities lang.Expression
}

func (u *unleash) Init(exprs []lang.Expression, _ int, _ lang.Kleenean, _ *lang.ParseResult) bool {
	u.entities = exprs[0]
	return true
}

func (u *unleash) Run(env *lang.Env) {
	for _, v := range u.entities.All(env) {
		env.World.Unleash(v.(*state.Entity))
	}
}

func (u *unleash) String() string { return "unleash " + u.entities.String() }

// delay suspends the trigger. The walker asks for Ticks instead of
// calling Run.
type delay struct {
	span lang.Expression
}

func (d *delay) Init(exprs []lang.Expression, _ int, _ lang.Kleenean, _ *lang.ParseResult) bool {
	d.span = exprs[0]
	return true
}

func (d *delay) Run(*lang.Env) {}

func (d *delay) Ticks(env *lang.Env) int {
	t, ok := lang.Single(d.span, env).(Timespan)
	if !ok {
		return 0
	}
	return t.Ticks
}

func (d *delay) String() string { return "wait " + d.span.String() }

type set struct {
	target lang.Settable
	value  lang.Expression
}

func (s *set) Init(exprs []lang.Expression, _ int, _ lang.Kleenean, res *lang.ParseResult) bool {
	t, ok := exprs[0].(lang.Settable)
	if !ok {
		res.Error("%s can't be set to anything", exprs[0])
		return false
	}
	if t.IsSingle() && !exprs[1].IsSingle() {
		res.Error("%s can only be set to one value, not more", exprs[0])
		return false
	}
	s.target, s.value = t, exprs[1]
	return true
}

func (s *set) Run(env *lang.Env) { s.target.Set(env, s.value.All(env)) }

func (s *set) String() string {
	return "set " + s.target.String() + " to " + s.value.String()
}

type remove struct {
	target lang.Settable
}

func (r *remove) Init(exprs []lang.Expression, _ int, _ lang.Kleenean, res *lang.ParseResult) bool {
	t, ok := exprs[0].(lang.Settable)
	if !ok {
		res.Error("%s can't be deleted", exprs[0])
		return false
	}
	r.target = t
	return true
}

func (r *remove) Run(env *lang.Env) { r.target.Set(env, nil) }
func (r *remove) String() string    { return "delete " + r.target.String() }

type add struct {
	values lang.Expression
	target *lang.Variable
}

func (a *add) Init(exprs []lang.Expression, _ int, _ lang.Kleenean, res *lang.ParseResult) bool {
	v, ok := exprs[1].(*lang.Variable)
	if !ok || !v.IsList() {
		res.Error("values can only be added to a list variable, not to %s", exprs[1])
		return false
	}
	a.values, a.target = exprs[0], v
	return true
}

func (a *add) Run(env *lang.Env) {
	a.target.Set(env, append(a.target.All(env), a.values.All(env)...))
}

func (a *add) String() string {
	return "add " + a.values.String() + " to " + a.target.String()
}

// Replace modes, selected by parse mark. Mark bit 4 makes the match
// case-sensitive.
const (
	ReplaceAll = iota
	ReplaceFirst
	ReplaceLast

	replaceModes         = 3
	replaceCaseSensitive = 4
)

type replace struct {
	needles       lang.Expression
	replacement   lang.Expression
	haystacks     lang.Settable
	mode          int
	caseSensitive bool
}

func (r *replace) Init(exprs []lang.Expression, _ int, _ lang.Kleenean, res *lang.ParseResult) bool {
	h, ok := exprs[2].(lang.Settable)
	if !ok {
		res.Error("%s can't have anything replaced in it", exprs[2])
		return false
	}
	r.needles, r.replacement, r.haystacks = exprs[0], exprs[1], h
	r.mode = res.Mark & replaceModes
	r.caseSensitive = res.Mark&replaceCaseSensitive != 0
	return true
}

func (r *replace) Run(env *lang.Env) {
	with, ok := lang.Single(r.replacement, env).(string)
	if !ok {
		return
	}
	needles := strs(r.needles.All(env))
	vals := r.haystacks.All(env)
	out := make([]any, len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			out[i] = v
			continue
		}
		for _, n := range needles {
			s = ReplaceText(s, n, with, r.mode, r.caseSensitive)
		}
		out[i] = s
	}
	r.haystacks.Set(env, out)
}

func (r *replace) String() string {
	return "replace " + r.needles.String() + " with " + r.replacement.String() + " in " + r.haystacks.String()
}

// ReplaceText replaces the first, last or every occurrence of needle in
// s. Without caseSensitive letters match regardless of case.
func ReplaceText(s, needle, with string, mode int, caseSensitive bool) string {
	if needle == "" {
		return s
	}
	var idx []int
	for i := 0; i+len(needle) <= len(s); i++ {
		part := s[i : i+len(needle)]
		if part == needle || (!caseSensitive && strings.EqualFold(part, needle)) {
			idx = append(idx, i)
			i += len(needle) - 1
		}
	}
	if len(idx) == 0 {
		return s
	}
	switch mode {
	case ReplaceFirst:
		idx = idx[:1]
	case ReplaceLast:
		idx = idx[len(idx)-1:]
	}
	var b strings.Builder
	prev := 0
	for _, i := range idx {
		b.WriteString(s[prev:i])
		b.WriteString(with)
		prev = i + len(needle)
	}
	b.WriteString(s[prev:])
	return b.String()
}

type stop struct{}

func (stop) Init([]lang.Expression, int, lang.Kleenean, *lang.ParseResult) bool { return true }
func (stop) Run(env *lang.Env)                                                  { env.Halted = true }
func (stop) String() string                                                     { return "stop" }

type ret struct {
	classes *lang.Classes
	value   lang.Expression
}

func (r *ret) Init(exprs []lang.Expression, _ int, _ lang.Kleenean, res *lang.ParseResult) bool {
	if !res.InFunction {
		res.Error("the return statement can only be used in a function")
		return false
	}
	if res.ReturnType == "" {
		res.Error("this function doesn't return any value; remove the return statement or add a return type")
		return false
	}
	v := r.classes.ConvertExpression(exprs[0], res.ReturnType)
	if v == nil {
		res.Error("%s is %s", exprs[0], r.classes.NotOfType(res.ReturnType))
		return false
	}
	if res.ReturnSingle && !v.IsSingle() {
		res.Error("this function is defined to only return a single %s, but this return statement can return multiple values", res.ReturnType)
		return false
	}
	r.value = v
	return true
}

func (r *ret) Run(env *lang.Env) {
	env.Return = r.value.All(env)
	env.Returned = true
}

func (r *ret) String() string { return "return " + r.value.String() }

func registerEffects(reg *syntax.Registry) error {
	classes := reg.Classes()
	regs := []struct {
		name     string
		f        syntax.Factory
		patterns []string
	}{
		{"broadcast", func() lang.Element { return &broadcast{} },
			[]string{"broadcast %strings% [(to|in) %-worlds%] [%-number% times]"}},
		{"send", func() lang.Element { return &send{} },
			[]string{"(send|tell|message) %strings% [to %players%]"}},
		{"leash", func() lang.Element { return &leash{} },
			[]string{"(leash|attach) %livingentities% to %entity%"}},
		{"unleash", func() lang.Element { return &unleash{} },
			[]string{"(unleash|release) %livingentities%"}},
		{"wait", func() lang.Element { return &delay{} },
			[]string{"(wait|halt) [for] %timespan%"}},
		{"set", func() lang.Element { return &set{} },
			[]string{"set %~objects% to %objects%"}},
		{"delete", func() lang.Element { return &remove{} },
			[]string{"(delete|clear|reset) %~objects%"}},
		{"add", func() lang.Element { return &add{} },
			[]string{"add %objects% to %~objects%"}},
		{"replace", func() lang.Element { return &replace{} },
			[]string{"[4¦case-sensitive] replace (1¦first|2¦last|0¦all|every|) %strings% with %string% in %~strings%"}},
		{"stop", func() lang.Element { return stop{} },
			[]string{"(stop|exit) [[the] trigger]"}},
		{"return", func() lang.Element { return &ret{classes: classes} },
			[]string{"return %objects%"}},
	}
	for _, r := range regs {
		if err := reg.RegisterEffect(r.name, r.f, r.patterns...); err != nil {
			return err
		}
	}
	return nil
}
