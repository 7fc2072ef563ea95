package lang

// Converted wraps an expression whose values are converted to another
// type when evaluated. Values that fail to convert are dropped.
type Converted struct {
	Source  Expression
	To      string
	classes *Classes
}

func (c *Converted) ReturnType() string { return c.To }
func (c *Converted) IsSingle() bool     { return c.Source.IsSingle() }
func (c *Converted) String() string     { return c.Source.String() }

func (c *Converted) All(env *Env) []any {
	vals := c.Source.All(env)
	out := make([]any, 0, len(vals))
	for _, v := range vals {
		if cv, ok := c.classes.Convert(v, c.To); ok {
			out = append(out, cv)
		}
	}
	return out
}

// Set passes assignments through to a settable source.
func (c *Converted) Set(env *Env, values []any) {
	if s, ok := c.Source.(Settable); ok {
		s.Set(env, values)
	}
}

// ConvertExpression returns an expression yielding values of one of
// types. Unparsed literals are parsed; lists are converted member by
// member; an expression that already returns a subtype is returned as
// is; one returning a supertype is wrapped so that values of the wrong
// type are dropped; anything else is wrapped if a converter chain
// exists. Returns nil when no conversion is possible.
func (c *Classes) ConvertExpression(e Expression, types ...string) Expression {
	switch x := e.(type) {
	case *UnparsedLiteral:
		if l := x.Reparse(c, types...); l != nil {
			return l
		}
		return nil
	case List:
		if !hasUnparsed(x) && c.subtypeOfAny(x.ReturnType(), types) {
			return e
		}
		members := make([]Expression, len(x.Members()))
		rts := make([]string, len(members))
		for i, m := range x.Members() {
			cm := c.ConvertExpression(m, types...)
			if cm == nil {
				return nil
			}
			members[i] = cm
			rts[i] = cm.ReturnType()
		}
		return NewList(members, x.IsAnd(), c.Supertype(rts...))
	}
	if c.subtypeOfAny(e.ReturnType(), types) {
		return e
	}
	for _, t := range types {
		// Object-typed expressions such as variables, and expressions of
		// a supertype such as an entity where a living entity is wanted,
		// are only known at run time.
		if e.ReturnType() == ObjectType || c.IsSubtype(t, e.ReturnType()) || c.CanConvert(e.ReturnType(), t) {
			return &Converted{Source: e, To: t, classes: c}
		}
	}
	return nil
}

func (c *Classes) subtypeOfAny(typ string, types []string) bool {
	for _, t := range types {
		if c.IsSubtype(typ, t) {
			return true
		}
	}
	return false
}

func hasUnparsed(l List) bool {
	for _, m := range l.Members() {
		switch x := m.(type) {
		case *UnparsedLiteral:
			return true
		case List:
			if hasUnparsed(x) {
				return true
			}
		}
	}
	return false
}
