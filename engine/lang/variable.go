package lang

import (
	"strings"

	"github.com/nathoo/questscript/engine/state"
)

// StringPart is either plain text or an interpolated expression.
type StringPart struct {
	Text string
	Expr Expression
}

// VariableString is a quoted string containing %expressions%, formatted
// when evaluated.
type VariableString struct {
	parts   []StringPart
	classes *Classes
	source  string
}

// NewVariableString creates a string from parts. Source is the text as
// written, used for printing.
func NewVariableString(parts []StringPart, c *Classes, source string) *VariableString {
	return &VariableString{parts: parts, classes: c, source: source}
}

func (s *VariableString) ReturnType() string { return "string" }
func (s *VariableString) IsSingle() bool     { return true }
func (s *VariableString) String() string     { return s.source }

func (s *VariableString) All(env *Env) []any {
	return []any{s.Eval(env)}
}

// Eval formats the string for env.
func (s *VariableString) Eval(env *Env) string {
	var b strings.Builder
	for _, p := range s.parts {
		if p.Expr == nil {
			b.WriteString(p.Text)
			continue
		}
		and := true
		if l, ok := p.Expr.(List); ok {
			and = l.IsAnd()
		}
		b.WriteString(s.classes.Join(p.Expr.All(env), and))
	}
	return b.String()
}

// Variable is {name}, {_local} or the list {name::*}. The name may
// contain %expressions%.
type Variable struct {
	name  *VariableString
	local bool
	list  bool
}

// NewVariable creates a variable reference from its name as written
// between the braces.
func NewVariable(name *VariableString) *Variable {
	src := name.String()
	return &Variable{
		name:  name,
		local: strings.HasPrefix(src, "_"),
		list:  strings.HasSuffix(src, "::*"),
	}
}

func (v *Variable) ReturnType() string { return ObjectType }
func (v *Variable) IsSingle() bool     { return !v.list }
func (v *Variable) String() string     { return "{" + v.name.String() + "}" }

// IsList reports whether this is a list variable.
func (v *Variable) IsList() bool { return v.list }

func (v *Variable) key(env *Env) string {
	k := strings.ToLower(v.name.Eval(env))
	if v.list {
		k = strings.TrimSuffix(k, "::*")
	}
	return k
}

func (v *Variable) All(env *Env) []any {
	k := v.key(env)
	if v.list {
		if v.local {
			return state.ListValues(env.Locals, k)
		}
		return env.World.ListVar(k)
	}
	var val any
	var ok bool
	if v.local {
		val, ok = env.Locals[k]
	} else {
		val, ok = env.World.Var(k)
	}
	if !ok {
		return nil
	}
	return []any{val}
}

// Set stores values. A single variable keeps the first value; setting
// nothing deletes it.
func (v *Variable) Set(env *Env, values []any) {
	k := v.key(env)
	if v.list {
		if v.local {
			state.SetList(env.Locals, k, values)
		} else {
			env.World.SetListVar(k, values)
		}
		return
	}
	var val any
	if len(values) > 0 {
		val = values[0]
	}
	if v.local {
		if val == nil {
			delete(env.Locals, k)
		} else {
			env.Locals[k] = val
		}
		return
	}
	env.World.SetVar(k, val)
}
