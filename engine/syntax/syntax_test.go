package syntax_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathoo/questscript/engine/elements"
	"github.com/nathoo/questscript/engine/function"
	"github.com/nathoo/questscript/engine/lang"
	"github.com/nathoo/questscript/engine/parselog"
	"github.com/nathoo/questscript/engine/pattern"
	"github.com/nathoo/questscript/engine/state"
	"github.com/nathoo/questscript/engine/syntax"
	"github.com/nathoo/questscript/types"
)

// builtins returns an open registry holding the built-in types and
// elements.
func builtins(t *testing.T) (*syntax.Registry, *function.Namespace) {
	t.Helper()
	classes := lang.NewClasses()
	require.NoError(t, elements.RegisterTypes(classes))
	reg := syntax.NewRegistry(classes, pattern.NewCache(0), nil)
	ns := function.NewNamespace()
	require.NoError(t, elements.Register(reg, ns))
	return reg, ns
}

func newParser(t *testing.T, limits syntax.Limits) (*syntax.Parser, *parselog.Collector) {
	t.Helper()
	reg, ns := builtins(t)
	reg.Close()
	coll := parselog.NewCollector(nil)
	return syntax.NewParser(reg, ns, parselog.New(coll), limits), coll
}

func messages(coll *parselog.Collector) []string {
	var out []string
	for _, d := range coll.Diagnostics {
		out = append(out, d.Message)
	}
	return out
}

func TestExplain_Broadcast(t *testing.T) {
	p, coll := newParser(t, syntax.Limits{})
	m, err := p.Explain(`broadcast "hi"`, types.CategoryEffect)
	require.NoError(t, err)
	require.NotNil(t, m, "diagnostics: %v", messages(coll))

	assert.Equal(t, "broadcast", m.Info.Name)
	assert.Equal(t, 0, m.Pattern)
	require.Len(t, m.Exprs, 3)
	assert.Nil(t, m.Exprs[1], "worlds slot should be absent")
	assert.Nil(t, m.Exprs[2], "times slot should be absent")

	env := lang.NewEnv(types.Event{}, state.NewState())
	assert.Equal(t, []any{"hi"}, m.Exprs[0].All(env))
}

func TestExplain_Leashed(t *testing.T) {
	p, coll := newParser(t, syntax.Limits{})
	m, err := p.Explain("the player is leashed by target", types.CategoryCondition)
	require.NoError(t, err)
	require.NotNil(t, m, "diagnostics: %v", messages(coll))

	assert.Equal(t, "leashed", m.Info.Name)
	assert.Equal(t, 0, m.Pattern, "the positive pattern should match")
	assert.Equal(t, 0, m.Mark)
	require.Len(t, m.Exprs, 2)
	assert.Equal(t, "the player", m.Exprs[0].String())
	require.NotNil(t, m.Exprs[1])
	assert.Equal(t, "the target", m.Exprs[1].String())
}

func TestExplain_ReplaceMarks(t *testing.T) {
	tests := []struct {
		text string
		mark int
	}{
		{`replace first "a" with "b" in {text}`, 1},
		{`replace last "a" with "b" in {text}`, 2},
		{`replace "a" with "b" in {text}`, 0},
		{`replace every "a" with "b" in {text}`, 0},
		{`case-sensitive replace all "a" with "b" in {text}`, 4},
		{`case-sensitive replace first "a" with "b" in {text}`, 5},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			p, coll := newParser(t, syntax.Limits{})
			m, err := p.Explain(tt.text, types.CategoryEffect)
			require.NoError(t, err)
			require.NotNil(t, m, "diagnostics: %v", messages(coll))
			assert.Equal(t, "replace", m.Info.Name)
			assert.Equal(t, tt.mark, m.Mark)
		})
	}
}

func TestExplain_FunctionCallEffect(t *testing.T) {
	p, _ := newParser(t, syntax.Limits{})
	m, err := p.Explain("abs(-3)", types.CategoryEffect)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Nil(t, m.Info)
	_, ok := m.Element.(*syntax.CallEffect)
	assert.True(t, ok, "expected a CallEffect, got %T", m.Element)
}

func TestExplain_Failures(t *testing.T) {
	tests := []struct {
		name string
		text string
		cat  types.Category
		want string
	}{
		{"unknown effect", "fly to the moon", types.CategoryEffect, "can't understand this effect: 'fly to the moon'"},
		{"empty", "   ", types.CategoryEffect, "can't understand this effect"},
		{"single slot given a list", `leash all players to all players`, types.CategoryEffect, "can only accept a single"},
		{"events take literals only", "chat containing {x}", types.CategoryEvent, "variables cannot be used here"},
		{"bad variable", "delete {a*b}", types.CategoryEffect, "list variables must end with '::*'"},
		{"unclosed percent", `broadcast "100% sure"`, types.CategoryEffect, "percent sign"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, coll := newParser(t, syntax.Limits{})
			m, err := p.Explain(tt.text, tt.cat)
			require.NoError(t, err)
			assert.Nil(t, m)
			require.NotEmpty(t, coll.Diagnostics)
			assert.Contains(t, strings.Join(messages(coll), "\n"), tt.want)
		})
	}
}

func TestExplain_CollapsesWhitespace(t *testing.T) {
	p, _ := newParser(t, syntax.Limits{})
	m, err := p.Explain("  broadcast    \"a  b\"  ", types.CategoryEffect)
	require.NoError(t, err)
	require.NotNil(t, m)
	env := lang.NewEnv(types.Event{}, state.NewState())
	assert.Equal(t, []any{"a  b"}, m.Exprs[0].All(env), "quoted text keeps its spacing")
}

func TestParseExpression_Lists(t *testing.T) {
	tests := []struct {
		text    string
		and     bool
		members int
		warn    string
	}{
		{`"a", "b" and "c"`, true, 3, ""},
		{`"a" or "b"`, false, 2, ""},
		{`"a", "b"`, true, 2, "list is missing 'and' or 'or'"},
		{`"a" and "b" or "c"`, true, 3, "list has multiple 'and' or 'or'"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			p, coll := newParser(t, syntax.Limits{})
			e := p.ParseExpression(tt.text, "string")
			require.NotNil(t, e, "diagnostics: %v", messages(coll))
			l, ok := e.(lang.List)
			require.True(t, ok, "expected a list, got %T", e)
			assert.Equal(t, tt.and, l.IsAnd())
			assert.Len(t, l.Members(), tt.members)
			if tt.warn == "" {
				assert.Empty(t, coll.Diagnostics)
			} else {
				assert.Contains(t, strings.Join(messages(coll), "\n"), tt.warn)
			}
		})
	}
}

func TestParseExpression_Nested(t *testing.T) {
	p, _ := newParser(t, syntax.Limits{})
	e := p.ParseExpression(`the length of ("ab", "cd" and "e")`, "number")
	require.NotNil(t, e)
	env := lang.NewEnv(types.Event{}, state.NewState())
	assert.Equal(t, []any{2.0, 2.0, 1.0}, e.All(env))
}

func TestParseExpression_Variables(t *testing.T) {
	p, coll := newParser(t, syntax.Limits{})
	world := state.NewState()
	world.SetVar("score", 7.0)
	env := lang.NewEnv(types.Event{}, world)

	e := p.ParseExpression("{score}", "number")
	require.NotNil(t, e, "diagnostics: %v", messages(coll))
	assert.Equal(t, []any{7.0}, e.All(env))

	e = p.ParseExpression(`"score: %{score}%"`, "string")
	require.NotNil(t, e)
	assert.Equal(t, []any{"score: 7"}, e.All(env))

	assert.Nil(t, p.ParseExpression("{::x}", "number"))
	assert.Contains(t, strings.Join(messages(coll), "\n"), "must not start or end with '::'")
}

func TestParseExpression_Depth(t *testing.T) {
	p, _ := newParser(t, syntax.Limits{})
	require.NotNil(t, p.ParseExpression("1 + 2", "number"))

	shallow, _ := newParser(t, syntax.Limits{MaxDepth: 1})
	assert.Nil(t, shallow.ParseExpression("1 + 2", "number"))
}

func TestParseExpression_StepBudgetPerLine(t *testing.T) {
	p, coll := newParser(t, syntax.Limits{MaxSteps: 1000})
	text := strings.Repeat("1 + ", 30) + "oops"

	done := make(chan lang.Expression, 1)
	go func() { done <- p.ParseExpression(text, "number") }()
	select {
	case e := <-done:
		assert.Nil(t, e)
	case <-time.After(5 * time.Second):
		t.Fatal("parse did not stop at the step budget")
	}
	msgs := messages(coll)
	require.Len(t, msgs, 1, "diagnostics: %v", msgs)
	assert.Contains(t, msgs[0], "too complex")

	// The budget is per line: the next line starts afresh.
	ok, okColl := newParser(t, syntax.Limits{})
	require.NotNil(t, ok.ParseExpression("1 + 2 + 3", "number"), "diagnostics: %v", messages(okColl))
}

func TestParseExpression_PluralSlotTakesSingle(t *testing.T) {
	p, coll := newParser(t, syntax.Limits{})
	m, err := p.Explain(`send "x" to player`, types.CategoryEffect)
	require.NoError(t, err)
	require.NotNil(t, m, "diagnostics: %v", messages(coll))
	require.NotNil(t, m.Exprs[0])
	assert.True(t, m.Exprs[0].IsSingle(), "a single string fills the strings slot")

	// The reverse is refused: a single slot does not take a list.
	p, coll = newParser(t, syntax.Limits{})
	m, err = p.Explain("leash all players to all players", types.CategoryEffect)
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Contains(t, strings.Join(messages(coll), "\n"), "can only accept a single")
}

func TestTakeCalls_KeepsAcceptedParsesOnly(t *testing.T) {
	p, _ := newParser(t, syntax.Limits{})
	p.SetScript("main.sk")

	require.NotNil(t, p.ParseExpression("abs(-3)", "number"))
	calls := p.TakeCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "abs", calls[0].Name)
	assert.Equal(t, "main.sk", calls[0].Script)
	assert.Empty(t, p.TakeCalls(), "taking forgets the calls")

	m, _ := p.Explain("send abs(-3) to oops", types.CategoryEffect)
	assert.Nil(t, m)
	assert.Empty(t, p.TakeCalls(), "a rejected line leaves no calls")
}

func TestParseDefault(t *testing.T) {
	p, _ := newParser(t, syntax.Limits{})
	env := lang.NewEnv(types.Event{}, state.NewState())

	tests := []struct {
		text, typ string
		want      []any
	}{
		{"hello", "string", []any{"hello"}},
		{`"quoted"`, "string", []any{"quoted"}},
		{"5", "number", []any{5.0}},
		{"%2 + 3%", "number", []any{5.0}},
	}
	for _, tt := range tests {
		e := p.ParseDefault(tt.text, tt.typ)
		require.NotNil(t, e, tt.text)
		assert.Equal(t, tt.want, e.All(env), tt.text)
	}
	assert.Nil(t, p.ParseDefault("{x}", "number"), "defaults are literals unless wrapped in percent signs")
}

func TestRegistry_Lifecycle(t *testing.T) {
	reg, ns := builtins(t)
	assert.False(t, reg.Closed())

	_, err := reg.Candidates(types.CategoryEffect)
	assert.ErrorIs(t, err, syntax.ErrRegistryOpen)

	p := syntax.NewParser(reg, ns, nil, syntax.Limits{})
	_, err = p.Explain(`broadcast "hi"`, types.CategoryEffect)
	assert.ErrorIs(t, err, syntax.ErrRegistryOpen)

	reg.Close()
	reg.Close()
	assert.True(t, reg.Closed())

	err = reg.RegisterEffect("late", func() lang.Element { return nil }, "late")
	assert.True(t, errors.Is(err, syntax.ErrRegistryClosed))

	infos, err := reg.Candidates(types.CategoryEffect)
	require.NoError(t, err)
	assert.NotEmpty(t, infos)
}

func TestRegistry_Rejects(t *testing.T) {
	noop := func() lang.Element { return nil }
	tests := []struct {
		name string
		info syntax.Info
		want string
	}{
		{"unknown type", syntax.Info{Category: types.CategoryEffect, Name: "x", Factory: noop, Patterns: []string{"poke %playr%"}}, `unknown type "playr", did you mean`},
		{"no patterns", syntax.Info{Category: types.CategoryEffect, Name: "x", Factory: noop}, "no patterns"},
		{"no factory", syntax.Info{Category: types.CategoryEffect, Name: "x", Patterns: []string{"x"}}, "missing factory"},
		{"bad return type", syntax.Info{Category: types.CategoryExpression, Name: "x", ReturnType: "dragon", Factory: noop, Patterns: []string{"x"}}, `unknown return type "dragon"`},
		{"bad category", syntax.Info{Category: "spell", Name: "x", Factory: noop, Patterns: []string{"x"}}, `unknown category "spell"`},
		{"absent slot without default", syntax.Info{Category: types.CategoryEffect, Name: "x", Factory: noop, Patterns: []string{"poke [%number%]"}}, `"number" has no default value`},
		{"bad pattern", syntax.Info{Category: types.CategoryEffect, Name: "x", Factory: noop, Patterns: []string{"poke (a|b"}}, "x:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, _ := builtins(t)
			before := reg.Len()
			_, err := reg.Register(tt.info)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, before, reg.Len(), "a rejected element must not be registered")
		})
	}
}

func TestRegistry_PriorityOrder(t *testing.T) {
	classes := lang.NewClasses()
	require.NoError(t, elements.RegisterTypes(classes))
	reg := syntax.NewRegistry(classes, nil, nil)
	noop := func() lang.Element { return nil }

	require.NoError(t, reg.RegisterExpression("greedy", "number", syntax.PriorityPatternMatchesEverything, noop, "%number% plus"))
	require.NoError(t, reg.RegisterExpression("first simple", "number", syntax.PrioritySimple, noop, "one"))
	require.NoError(t, reg.RegisterExpression("property", "number", syntax.PriorityProperty, noop, "size of %string%"))
	require.NoError(t, reg.RegisterExpression("second simple", "number", syntax.PrioritySimple, noop, "two"))
	reg.Close()

	infos, err := reg.Candidates(types.CategoryExpression)
	require.NoError(t, err)
	var names []string
	for _, in := range infos {
		names = append(names, in.Name)
	}
	assert.Equal(t, []string{"first simple", "second simple", "property", "greedy"}, names)

	assert.Contains(t, reg.Describe(), "expression first simple: one")
}
