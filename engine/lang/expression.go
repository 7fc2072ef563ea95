package lang

import "strings"

// Expression produces values when a script runs.
type Expression interface {
	// ReturnType is the code name of the type of every value.
	ReturnType() string
	// IsSingle reports whether the expression yields at most one value.
	IsSingle() bool
	// All evaluates the expression.
	All(env *Env) []any
	String() string
}

// Literal is an expression whose values are known while parsing.
type Literal interface {
	Expression
	Values() []any
}

// Settable is an expression scripts can assign to.
type Settable interface {
	Expression
	Set(env *Env, values []any)
}

// List is an expression made of several member expressions joined by
// "and" or "or".
type List interface {
	Expression
	Members() []Expression
	IsAnd() bool
}

// Single evaluates e and returns its first value, or nil.
func Single(e Expression, env *Env) any {
	if e == nil {
		return nil
	}
	vals := e.All(env)
	if len(vals) == 0 {
		return nil
	}
	return vals[0]
}

// Check evaluates a predicate over an expression's values. And-lists and
// plain expressions need every value to pass; or-lists need one member
// to pass. An expression without values fails.
func Check(e Expression, env *Env, pred func(any) bool) bool {
	if l, ok := e.(List); ok && !l.IsAnd() {
		for _, m := range l.Members() {
			if Check(m, env, pred) {
				return true
			}
		}
		return false
	}
	vals := e.All(env)
	if len(vals) == 0 {
		return false
	}
	for _, v := range vals {
		if !pred(v) {
			return false
		}
	}
	return true
}

// IsLiteral reports whether e's values are fixed at parse time.
func IsLiteral(e Expression) bool {
	_, ok := e.(Literal)
	return ok
}

// SimpleLiteral is a literal of one or more parsed values.
type SimpleLiteral struct {
	values []any
	typ    string
	text   string
}

// NewLiteral creates a literal from parsed values.
func NewLiteral(typ, text string, values ...any) *SimpleLiteral {
	return &SimpleLiteral{values: values, typ: typ, text: text}
}

func (l *SimpleLiteral) ReturnType() string { return l.typ }
func (l *SimpleLiteral) IsSingle() bool     { return len(l.values) <= 1 }
func (l *SimpleLiteral) All(*Env) []any     { return l.values }
func (l *SimpleLiteral) Values() []any      { return l.values }
func (l *SimpleLiteral) String() string     { return l.text }

// UnparsedLiteral is text accepted by an object slot before its real
// type is known. Converting it to a concrete type parses it.
type UnparsedLiteral struct {
	Text string
}

func (u *UnparsedLiteral) ReturnType() string { return ObjectType }
func (u *UnparsedLiteral) IsSingle() bool     { return true }
func (u *UnparsedLiteral) All(*Env) []any     { return []any{u.Text} }
func (u *UnparsedLiteral) Values() []any      { return []any{u.Text} }
func (u *UnparsedLiteral) String() string     { return u.Text }

// Reparse parses the text as the first of types that accepts it. For
// object every type with literals is tried, and text no type accepts is
// kept as it is.
func (u *UnparsedLiteral) Reparse(c *Classes, types ...string) Literal {
	for _, t := range types {
		if v, code, ok := c.ParseLiteral(u.Text, t); ok {
			return NewLiteral(code, u.Text, v)
		}
		if t == ObjectType {
			return u
		}
	}
	return nil
}

// ExpressionList is "a, b and c" or "a or b" where at least one member
// is not a literal.
type ExpressionList struct {
	members []Expression
	and     bool
	typ     string
}

// NewList creates a list. The list is a literal if every member is.
func NewList(members []Expression, and bool, typ string) List {
	l := &ExpressionList{members: members, and: and, typ: typ}
	for _, m := range members {
		if !IsLiteral(m) {
			return l
		}
	}
	return &LiteralList{ExpressionList: l}
}

func (l *ExpressionList) ReturnType() string    { return l.typ }
func (l *ExpressionList) Members() []Expression { return l.members }
func (l *ExpressionList) IsAnd() bool           { return l.and }

// IsSingle is true for or-lists of single members: they evaluate to one
// member.
func (l *ExpressionList) IsSingle() bool {
	if l.and {
		return len(l.members) == 1 && l.members[0].IsSingle()
	}
	for _, m := range l.members {
		if !m.IsSingle() {
			return false
		}
	}
	return true
}

// All returns every member's values for an and-list, and the values of
// one randomly chosen member for an or-list.
func (l *ExpressionList) All(env *Env) []any {
	if len(l.members) == 0 {
		return nil
	}
	if !l.and {
		return l.members[env.World.RNG.IntN(len(l.members))].All(env)
	}
	var out []any
	for _, m := range l.members {
		out = append(out, m.All(env)...)
	}
	return out
}

func (l *ExpressionList) String() string {
	parts := make([]string, len(l.members))
	for i, m := range l.members {
		parts[i] = m.String()
	}
	if len(parts) == 1 {
		return parts[0]
	}
	conj := " and "
	if !l.and {
		conj = " or "
	}
	return strings.Join(parts[:len(parts)-1], ", ") + conj + parts[len(parts)-1]
}

// LiteralList is a list whose members are all literals.
type LiteralList struct {
	*ExpressionList
}

// Values returns the members' values in order.
func (l *LiteralList) Values() []any {
	var out []any
	for _, m := range l.members {
		out = append(out, m.(Literal).Values()...)
	}
	return out
}

// TimeSensitive is implemented by expressions that can refer to the
// state before or after the event, requested with %type@-1% or
// %type@1%.
type TimeSensitive interface {
	Expression
	SetTime(time int) bool
}
