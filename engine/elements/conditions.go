package elements

import (
	"strings"

	"github.com/nathoo/questscript/engine/lang"
	"github.com/nathoo/questscript/engine/state"
	"github.com/nathoo/questscript/engine/syntax"
)

// negatable is embedded by conditions whose second pattern is the
// negated form of the first.
type negatable struct {
	negated bool
}

func (n *negatable) setNegated(matchedPattern int) { n.negated = matchedPattern == 1 }

func (n *negatable) check(e lang.Expression, env *lang.Env, pred func(any) bool) bool {
	return lang.Check(e, env, func(v any) bool { return pred(v) != n.negated })
}

func (n *negatable) verb(pos, neg string) string {
	if n.negated {
		return neg
	}
	return pos
}

type isLeashed struct {
	negatable
	entities lang.Expression
	holder   lang.Expression
}

func (c *isLeashed) Init(exprs []lang.Expression, matchedPattern int, _ lang.Kleenean, _ *lang.ParseResult) bool {
	c.entities, c.holder = exprs[0], exprs[1]
	c.setNegated(matchedPattern)
	return true
}

func (c *isLeashed) Check(env *lang.Env) bool {
	var want *state.Entity
	if c.holder != nil {
		h, ok := lang.Single(c.holder, env).(*state.Entity)
		if !ok {
			return c.negated
		}
		want = h
	}
	return c.check(c.entities, env, func(v any) bool {
		holder, ok := env.World.Holder(v.(*state.Entity))
		return ok && (want == nil || holder == want)
	})
}

func (c *isLeashed) String() string {
	s := c.entities.String() + c.verb(" is leashed", " is not leashed")
	if c.holder != nil {
		s += " by " + c.holder.String()
	}
	return s
}

type isSet struct {
	negatable
	expr lang.Expression
}

func (c *isSet) Init(exprs []lang.Expression, matchedPattern int, _ lang.Kleenean, _ *lang.ParseResult) bool {
	c.expr = exprs[0]
	c.setNegated(matchedPattern)
	return true
}

func (c *isSet) Check(env *lang.Env) bool {
	return (len(c.expr.All(env)) > 0) != c.negated
}

func (c *isSet) String() string { return c.expr.String() + c.verb(" is set", " is not set") }

type contains struct {
	negatable
	haystacks lang.Expression
	needles   lang.Expression
}

func (c *contains) Init(exprs []lang.Expression, matchedPattern int, _ lang.Kleenean, _ *lang.ParseResult) bool {
	c.haystacks, c.needles = exprs[0], exprs[1]
	c.setNegated(matchedPattern)
	return true
}

func (c *contains) Check(env *lang.Env) bool {
	return c.check(c.haystacks, env, func(h any) bool {
		hay := strings.ToLower(h.(string))
		return lang.Check(c.needles, env, func(n any) bool {
			return strings.Contains(hay, strings.ToLower(n.(string)))
		})
	})
}

func (c *contains) String() string {
	return c.haystacks.String() + c.verb(" contains ", " does not contain ") + c.needles.String()
}

// Comparison marks.
const (
	cmpGreater = 1
	cmpLess    = 2
	cmpOrEqual = 4
)

type compare struct {
	left, right lang.Expression
	mark        int
}

func (c *compare) Init(exprs []lang.Expression, _ int, _ lang.Kleenean, res *lang.ParseResult) bool {
	c.left, c.right = exprs[0], exprs[1]
	c.mark = res.Mark
	return true
}

func (c *compare) Check(env *lang.Env) bool {
	r, ok := lang.Single(c.right, env).(float64)
	if !ok {
		return false
	}
	return lang.Check(c.left, env, func(v any) bool {
		l := v.(float64)
		switch {
		case c.mark&cmpOrEqual != 0 && l == r:
			return true
		case c.mark&cmpGreater != 0:
			return l > r
		default:
			return l < r
		}
	})
}

func (c *compare) String() string {
	op := " is less than "
	if c.mark&cmpGreater != 0 {
		op = " is greater than "
	}
	if c.mark&cmpOrEqual != 0 {
		op += "or equal to "
	}
	return c.left.String() + op + c.right.String()
}

type equals struct {
	negatable
	classes     *lang.Classes
	left, right lang.Expression
}

func (c *equals) Init(exprs []lang.Expression, matchedPattern int, _ lang.Kleenean, _ *lang.ParseResult) bool {
	c.left, c.right = exprs[0], exprs[1]
	c.setNegated(matchedPattern)
	return true
}

func (c *equals) Check(env *lang.Env) bool {
	return c.check(c.left, env, func(a any) bool {
		return lang.Check(c.right, env, func(b any) bool { return c.equal(a, b) })
	})
}

func (c *equals) equal(a, b any) bool {
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.EqualFold(x, y)
		}
	case *state.Entity:
		if y, ok := b.(*state.Entity); ok {
			return x == y
		}
		// "player is "Steve"" compares by name.
		if y, ok := b.(string); ok {
			return strings.EqualFold(x.Name, y)
		}
		return false
	case *state.World:
		if y, ok := b.(*state.World); ok {
			return strings.EqualFold(x.Name, y.Name)
		}
	}
	if a == b {
		return true
	}
	return c.classes.ToString(a) == c.classes.ToString(b) && c.classes.ClassOf(a) == c.classes.ClassOf(b)
}

func (c *equals) String() string {
	return c.left.String() + c.verb(" is ", " is not ") + c.right.String()
}

func registerConditions(reg *syntax.Registry) error {
	classes := reg.Classes()
	regs := []struct {
		name     string
		f        syntax.Factory
		patterns []string
	}{
		{"leashed", func() lang.Element { return &isLeashed{} }, []string{
			"%livingentities% (is|are) leashed [(from|by) %-entity%]",
			"%livingentities% (isn't|is not|aren't|are not) leashed [(from|by) %-entity%]",
		}},
		{"is set", func() lang.Element { return &isSet{} }, []string{
			"%~objects% (is|are) set",
			"%~objects% (isn't|is not|aren't|are not) set",
		}},
		{"contains", func() lang.Element { return &contains{} }, []string{
			"%strings% contain[s] %strings%",
			"%strings% (doesn't|does not|do not|don't) contain %strings%",
		}},
		{"compare", func() lang.Element { return &compare{} }, []string{
			"%numbers% (is|are) (1¦greater|2¦less) than [4¦or equal to] %number%",
		}},
		// Tried last: both sides accept anything.
		{"equals", func() lang.Element { return &equals{classes: classes} }, []string{
			"%objects% (is|are|=) [equal to] %objects%",
			"%objects% (isn't|is not|aren't|are not|!=) [equal to] %objects%",
		}},
	}
	for _, r := range regs {
		if err := reg.RegisterCondition(r.name, r.f, r.patterns...); err != nil {
			return err
		}
	}
	return nil
}
