package loader

import (
	"fmt"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/questscript/engine/function"
	"github.com/nathoo/questscript/engine/lang"
	"github.com/nathoo/questscript/engine/pattern"
	"github.com/nathoo/questscript/engine/syntax"
	"github.com/nathoo/questscript/types"
)

// rawElement holds an Effect, Condition or Expression table before
// compilation.
type rawElement struct {
	category types.Category
	table    *lua.LTable
	order    int
}

// rawFunction holds a Function table before compilation.
type rawFunction struct {
	table *lua.LTable
	order int
}

// compiledElement is a registration ready to be validated.
type compiledElement struct {
	info syntax.Info
	fn   *lua.LFunction
}

// getString returns a string field from a Lua table, or "" if missing.
func getString(tbl *lua.LTable, key string) string {
	v := tbl.RawGetString(key)
	if s, ok := v.(lua.LString); ok {
		return string(s)
	}
	return ""
}

// getBool returns a bool field from a Lua table, or the default if missing.
func getBool(tbl *lua.LTable, key string, def bool) bool {
	v := tbl.RawGetString(key)
	if b, ok := v.(lua.LBool); ok {
		return bool(b)
	}
	return def
}

// getFunction returns a function field from a Lua table, or nil if missing.
func getFunction(tbl *lua.LTable, key string) *lua.LFunction {
	if fn, ok := tbl.RawGetString(key).(*lua.LFunction); ok {
		return fn
	}
	return nil
}

// getStrings returns a field that is either one string or an array of
// strings.
func getStrings(tbl *lua.LTable, key string) []string {
	switch v := tbl.RawGetString(key).(type) {
	case lua.LString:
		return []string{string(v)}
	case *lua.LTable:
		var out []string
		for i := 1; i <= v.MaxN(); i++ {
			if s, ok := v.RawGetInt(i).(lua.LString); ok {
				out = append(out, string(s))
			}
		}
		return out
	}
	return nil
}

// fromLua converts a Lua value to a Go value recursively. Numbers are
// float64, arrays become []any and engine values are unwrapped.
func fromLua(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		return float64(val)
	case *lua.LNilType:
		return nil
	case lua.LString:
		return string(val)
	case *lua.LUserData:
		return val.Value
	case *lua.LTable:
		// Check if it's an array (sequential integer keys starting at 1).
		if maxN := val.MaxN(); maxN > 0 {
			arr := make([]any, 0, maxN)
			for i := 1; i <= maxN; i++ {
				arr = append(arr, fromLua(val.RawGetInt(i)))
			}
			return arr
		}
		// Otherwise treat as map.
		m := map[string]any{}
		val.ForEach(func(k, v lua.LValue) {
			if ks, ok := k.(lua.LString); ok {
				m[string(ks)] = fromLua(v)
			}
		})
		return m
	default:
		return nil
	}
}

// toLua converts a Go value for an addon. Values without a Lua
// counterpart are wrapped as userdata of valueType.
func (a *Addon) toLua(v any) lua.LValue {
	L := a.L
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case string:
		return lua.LString(val)
	case float64:
		return lua.LNumber(val)
	case int:
		return lua.LNumber(val)
	case bool:
		return lua.LBool(val)
	case []any:
		tbl := L.NewTable()
		for _, x := range val {
			tbl.Append(a.toLua(x))
		}
		return tbl
	case map[string]any:
		tbl := L.NewTable()
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			tbl.RawSetString(k, a.toLua(val[k]))
		}
		return tbl
	default:
		ud := L.NewUserData()
		ud.Value = v
		L.SetMetatable(ud, L.GetTypeMetatable(valueType))
		return ud
	}
}

// values flattens what a callback returned: a table is a list of
// values, nil is no value.
func values(v any) []any {
	switch x := v.(type) {
	case nil:
		return nil
	case []any:
		return x
	default:
		return []any{x}
	}
}

// compile turns the collected tables into registrations and functions,
// in source order. Tables that cannot be compiled are reported to ve.
func compile(a *Addon, coll *collector, ns *function.Namespace, ve *ValidationError) ([]compiledElement, []*function.Function) {
	var elems []compiledElement
	for _, raw := range coll.elements {
		el, err := compileElement(a, raw)
		if err != nil {
			ve.Errors = append(ve.Errors, fmt.Sprintf("%s: %s #%d: %s", a.Name, raw.category, raw.order, err))
			continue
		}
		elems = append(elems, el)
	}

	var fns []*function.Function
	for _, raw := range coll.functions {
		f, err := compileFunction(a, raw)
		if err != nil {
			ve.Errors = append(ve.Errors, fmt.Sprintf("%s: function #%d: %s", a.Name, raw.order, err))
			continue
		}
		fns = append(fns, f)
	}
	return elems, fns
}

func compileElement(a *Addon, raw rawElement) (compiledElement, error) {
	tbl := raw.table
	patterns := getStrings(tbl, "patterns")
	name := getString(tbl, "name")
	if name == "" && len(patterns) > 0 {
		name = patterns[0]
	}
	info := syntax.Info{
		Category: raw.category,
		Name:     name,
		Patterns: patterns,
		Source:   a.Name,
	}

	var fn *lua.LFunction
	plural := slotPlurality(a.classes, patterns)
	base := func() luaElement { return luaElement{addon: a, fn: fn, plural: plural} }
	switch raw.category {
	case types.CategoryEffect:
		fn = getFunction(tbl, "run")
		info.Factory = func() lang.Element { return &luaEffect{base()} }
	case types.CategoryCondition:
		fn = getFunction(tbl, "check")
		info.Factory = func() lang.Element { return &luaCondition{base()} }
	case types.CategoryExpression:
		fn = getFunction(tbl, "get")
		ci, many, ok := a.classes.Lookup(getString(tbl, "returns"))
		if !ok {
			return compiledElement{}, fmt.Errorf("unknown return type %q", getString(tbl, "returns"))
		}
		single := getBool(tbl, "single", !many)
		info.ReturnType = ci.CodeName
		info.Priority = syntax.PriorityCombined
		info.Factory = func() lang.Element {
			return &luaExpression{luaElement: base(), returns: ci.CodeName, single: single}
		}
	default:
		return compiledElement{}, fmt.Errorf("unsupported category %q", raw.category)
	}
	if fn == nil {
		return compiledElement{}, fmt.Errorf("%s %q has no callback", raw.category, name)
	}
	return compiledElement{info: info, fn: fn}, nil
}

// slotPlurality records, per pattern, which type slots accept several
// values. Patterns that do not compile are left empty; validate reports
// them.
func slotPlurality(classes *lang.Classes, patterns []string) [][]bool {
	out := make([][]bool, len(patterns))
	for i, src := range patterns {
		p, err := pattern.Compile(src)
		if err != nil {
			continue
		}
		for _, slot := range p.Slots() {
			many := false
			for _, name := range slot.Types {
				if _, pl, ok := classes.Lookup(name); ok && pl {
					many = true
				}
			}
			out[i] = append(out[i], many)
		}
	}
	return out
}

func compileFunction(a *Addon, raw rawFunction) (*function.Function, error) {
	tbl := raw.table
	header := fmt.Sprintf("function %s(%s)", getString(tbl, "name"), getString(tbl, "params"))
	if ret := getString(tbl, "returns"); ret != "" {
		header += " :: " + ret
	}
	sig, err := function.ParseSignature(a.Name, header, a.classes, literalDefault(a.classes))
	if err != nil {
		return nil, err
	}
	fn := getFunction(tbl, "run")
	if fn == nil {
		return nil, fmt.Errorf("function %q has no run callback", sig.Name)
	}
	return &function.Function{Sig: sig, Body: func(env *lang.Env, args [][]any) []any {
		in := make([]any, len(args))
		for i, vals := range args {
			if sig.Params[i].Single {
				if len(vals) > 0 {
					in[i] = vals[0]
				}
				continue
			}
			in[i] = vals
		}
		out, err := a.call(env, fn, 1, in...)
		if err != nil {
			a.logger.Errorw("addon function failed", "function", sig.Name, "error", err)
			return nil
		}
		return a.convert(values(out[0]), sig.ReturnType)
	}}, nil
}

// literalDefault parses parameter defaults of addon functions. Only
// literals are possible since no script is being parsed.
func literalDefault(classes *lang.Classes) function.DefaultParser {
	return func(text, typ string) lang.Expression {
		text = strings.TrimSpace(text)
		if typ == syntax.StringType && len(text) >= 2 && strings.HasPrefix(text, `"`) && strings.HasSuffix(text, `"`) {
			s := strings.ReplaceAll(text[1:len(text)-1], `""`, `"`)
			return lang.NewLiteral(syntax.StringType, text, s)
		}
		v, code, ok := classes.ParseLiteral(text, typ)
		if !ok {
			return nil
		}
		return lang.NewLiteral(code, text, v)
	}
}

// convert keeps the values that are, or convert to, typ.
func (a *Addon) convert(vals []any, typ string) []any {
	if typ == "" {
		return nil
	}
	out := make([]any, 0, len(vals))
	for _, v := range vals {
		if cv, ok := a.classes.Convert(v, typ); ok {
			out = append(out, cv)
		}
	}
	return out
}

// luaElement is the part shared by every addon element. The callback
// gets a context table followed by one argument per type slot: a table
// for plural slots, a value for single ones, nil when omitted.
type luaElement struct {
	addon  *Addon
	fn     *lua.LFunction
	plural [][]bool

	exprs   []lang.Expression
	text    string
	mark    int
	pattern int
}

func (e *luaElement) Init(exprs []lang.Expression, matchedPattern int, _ lang.Kleenean, res *lang.ParseResult) bool {
	e.exprs, e.pattern = exprs, matchedPattern
	e.text, e.mark = res.Expr, res.Mark
	return true
}

func (e *luaElement) String() string { return e.text }

func (e *luaElement) invoke(env *lang.Env, what string) (any, bool) {
	args := []any{map[string]any{"mark": e.mark, "pattern": e.pattern + 1}}
	for i, x := range e.exprs {
		switch {
		case x == nil:
			args = append(args, nil)
		case e.pluralSlot(i):
			args = append(args, x.All(env))
		default:
			args = append(args, lang.Single(x, env))
		}
	}
	out, err := e.addon.call(env, e.fn, 1, args...)
	if err != nil {
		e.addon.logger.Errorw("addon "+what+" failed", "element", e.text, "error", err)
		return nil, false
	}
	return out[0], true
}

func (e *luaElement) pluralSlot(i int) bool {
	return e.pattern < len(e.plural) && i < len(e.plural[e.pattern]) && e.plural[e.pattern][i]
}

type luaEffect struct{ luaElement }

func (e *luaEffect) Run(env *lang.Env) { e.invoke(env, "effect") }

type luaCondition struct{ luaElement }

func (c *luaCondition) Check(env *lang.Env) bool {
	v, ok := c.invoke(env, "condition")
	b, _ := v.(bool)
	return ok && b
}

type luaExpression struct {
	luaElement
	returns string
	single  bool
}

func (x *luaExpression) ReturnType() string { return x.returns }
func (x *luaExpression) IsSingle() bool     { return x.single }

func (x *luaExpression) All(env *lang.Env) []any {
	v, ok := x.invoke(env, "expression")
	if !ok {
		return nil
	}
	out := x.addon.convert(values(v), x.returns)
	if x.single && len(out) > 1 {
		out = out[:1]
	}
	return out
}
