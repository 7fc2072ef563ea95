package syntax

import (
	"fmt"

	"github.com/nathoo/questscript/engine/function"
	"github.com/nathoo/questscript/engine/lang"
	"github.com/nathoo/questscript/engine/lex"
	"github.com/nathoo/questscript/engine/parselog"
	"github.com/nathoo/questscript/engine/pattern"
	"github.com/nathoo/questscript/types"
)

// DefaultMaxDepth bounds how deeply expressions may nest.
const DefaultMaxDepth = 64

// Limits bound the work done for one line.
type Limits struct {
	// MaxSteps is the step budget of one line, shared by every pattern
	// match made for it and for the expressions nested in it.
	MaxSteps int
	// MaxDepth is the deepest expression nesting accepted.
	MaxDepth int
}

func (l Limits) withDefaults() Limits {
	if l.MaxSteps <= 0 {
		l.MaxSteps = pattern.DefaultMaxSteps
	}
	if l.MaxDepth <= 0 {
		l.MaxDepth = DefaultMaxDepth
	}
	return l
}

// Match is an accepted parse of a line.
type Match struct {
	Element lang.Element
	// Info is the registered element that matched, nil for a function
	// call used as an effect.
	Info *Info
	// Pattern is the index of the matching pattern within Info.
	Pattern int
	Mark    int
	Exprs   []lang.Expression
	Regexes []types.RegexMatch
}

// Parser matches script text against a closed registry. A Parser keeps
// per-script state and is not safe for concurrent use; create one per
// goroutine.
type Parser struct {
	reg     *Registry
	classes *lang.Classes
	funcs   *function.Namespace
	log     *parselog.Log
	limits  Limits

	budget     *pattern.Budget
	calls      []*function.Reference
	depth      int
	quietAndOr int
	delayed    lang.Kleenean
	script     string
	fn         *function.Signature
}

// NewParser creates a parser. Diagnostics go to log; funcs may be nil
// when function calls are not needed.
func NewParser(reg *Registry, funcs *function.Namespace, log *parselog.Log, limits Limits) *Parser {
	if log == nil {
		log = parselog.New(nil)
	}
	return &Parser{
		reg:     reg,
		classes: reg.classes,
		funcs:   funcs,
		log:     log,
		limits:  limits.withDefaults(),
		delayed: lang.False,
	}
}

// Log returns the parse log.
func (p *Parser) Log() *parselog.Log { return p.log }

// SetScript names the script being parsed. Function calls remember it
// so they can be dropped when the script is unloaded.
func (p *Parser) SetScript(name string) { p.script = name }

// Script returns the name set with SetScript.
func (p *Parser) Script() string { return p.script }

// TakeCalls returns the function calls of the parses that succeeded
// since the last TakeCalls and forgets them. Calls made by attempts that
// were rejected are not included.
func (p *Parser) TakeCalls() []*function.Reference {
	calls := p.calls
	p.calls = nil
	return calls
}

// SetFunction marks the lines parsed next as the body of sig. Nil ends
// the function body.
func (p *Parser) SetFunction(sig *function.Signature) { p.fn = sig }

// SetDelayed records whether a delay may have run before the next line.
// It is passed to Init of every element parsed.
func (p *Parser) SetDelayed(k lang.Kleenean) { p.delayed = k }

// Delayed returns the current delay state.
func (p *Parser) Delayed() lang.Kleenean { return p.delayed }

// Parse parses a line as an element of the given category. Nil with a
// nil error means the line did not parse; the reason is in the log.
func (p *Parser) Parse(text string, cat types.Category) (lang.Element, error) {
	m, err := p.Explain(text, cat)
	if m == nil {
		return nil, err
	}
	return m.Element, nil
}

// ParseEffect parses a statement. Function calls are accepted as
// effects.
func (p *Parser) ParseEffect(text string) (lang.Effect, error) {
	el, err := p.Parse(text, types.CategoryEffect)
	if el == nil {
		return nil, err
	}
	return el.(lang.Effect), nil
}

// ParseCondition parses a condition.
func (p *Parser) ParseCondition(text string) (lang.Condition, error) {
	el, err := p.Parse(text, types.CategoryCondition)
	if el == nil {
		return nil, err
	}
	return el.(lang.Condition), nil
}

// ParseSection parses a section header without its trailing colon.
func (p *Parser) ParseSection(text string) (lang.Section, error) {
	el, err := p.Parse(text, types.CategorySection)
	if el == nil {
		return nil, err
	}
	return el.(lang.Section), nil
}

// ParseEvent parses a trigger header such as "on join". Only literals
// are accepted in event slots.
func (p *Parser) ParseEvent(text string) (lang.EventElement, *Info, error) {
	m, err := p.Explain(text, types.CategoryEvent)
	if m == nil {
		return nil, nil, err
	}
	return m.Element.(lang.EventElement), m.Info, nil
}

// Explain parses a line and reports how it matched.
func (p *Parser) Explain(text string, cat types.Category) (*Match, error) {
	var m *Match
	var err error
	ok := p.withBudget(text, func() bool {
		m, err = p.explain(text, cat)
		return m != nil
	})
	if !ok {
		return nil, err
	}
	return m, nil
}

// withBudget runs parse with a step budget shared by every match it
// makes. Nested calls draw on the budget already running. A line that
// runs out is rejected with a single "too complex" error, whatever else
// failed on the way.
func (p *Parser) withBudget(text string, parse func() bool) bool {
	if p.budget != nil {
		return parse()
	}
	p.budget = pattern.NewBudget(p.limits.MaxSteps)
	defer func() { p.budget = nil }()

	h := p.log.Start()
	ok := parse()
	switch {
	case p.budget.Exceeded():
		h.Stop()
		p.log.Error(fmt.Sprintf("'%s' is too complex to parse", lex.Collapse(text)), types.QualitySemanticError)
		return false
	case ok:
		h.PrintLog()
	default:
		h.PrintError("", types.QualityNone)
	}
	return ok
}

func (p *Parser) explain(text string, cat types.Category) (*Match, error) {
	if !p.reg.Closed() {
		return nil, ErrRegistryOpen
	}
	text = lex.Collapse(text)
	def := fmt.Sprintf("can't understand this %s: '%s'", cat, text)
	if text == "" {
		p.log.Error(def, types.QualityNotAnExpression)
		return nil, nil
	}
	if err := lex.ValidateLine(text); err != nil {
		p.log.Error(err.Error(), types.QualitySemanticError)
		return nil, nil
	}

	h := p.log.Start()
	if cat == types.CategoryEffect {
		if call := p.parseCall(text, types.ParseAll, nil); call != nil {
			h.PrintLog()
			return &Match{Element: &CallEffect{Call: call}, Exprs: []lang.Expression{call}}, nil
		}
		if h.HasError() {
			h.PrintError("", types.QualityNone)
			return nil, nil
		}
	}

	infos, err := p.reg.Candidates(cat)
	if err != nil {
		h.Stop()
		return nil, err
	}
	flags := types.ParseAll
	if cat == types.CategoryEvent {
		flags = types.ParseLiterals
	}
	m := p.dispatch(text, infos, flags, cat == types.CategoryEvent)
	if m != nil {
		h.PrintLog()
		return m, nil
	}
	h.PrintError(def, types.QualityNone)
	return nil, nil
}

// dispatch tries every pattern of every candidate in order. The first
// match whose element accepts it in Init wins. With initFailStops an
// Init rejection ends the search, which is how event headers behave.
func (p *Parser) dispatch(text string, infos []*Info, flags types.ParseFlags, initFailStops bool) *Match {
	h := p.log.Start()
	res := resolver{p: p, flags: flags}
	mark := len(p.calls)
	for _, info := range infos {
		for i, pat := range info.compiled {
			h.Clear()
			p.calls = p.calls[:mark]
			m, err := pat.Match(text, pattern.Options{Resolver: res, MaxSteps: p.limits.MaxSteps, Budget: p.budget})
			if err != nil {
				// Out of steps; withBudget reports it.
				h.Stop()
				p.calls = p.calls[:mark]
				return nil
			}
			if m == nil || !p.fillDefaults(pat, m) {
				continue
			}
			el := info.Factory()
			pr := &lang.ParseResult{
				Expr:    text,
				Mark:    m.Mark,
				Regexes: m.Regexes,
				Exprs:   m.Exprs,
				Log:     p.log,
			}
			if p.fn != nil {
				pr.InFunction = true
				pr.ReturnType, pr.ReturnSingle = p.fn.ReturnType, p.fn.Single
			}
			if !el.Init(m.Exprs, i, p.delayed, pr) {
				if initFailStops {
					h.PrintError("", types.QualityNone)
					p.calls = p.calls[:mark]
					return nil
				}
				continue
			}
			h.PrintLog()
			return &Match{Element: el, Info: info, Pattern: i, Mark: m.Mark, Exprs: m.Exprs, Regexes: m.Regexes}
		}
	}
	h.PrintError("", types.QualityNone)
	p.calls = p.calls[:mark]
	return nil
}

// fillDefaults gives every omitted slot that does not allow nothing the
// default expression of its first type.
func (p *Parser) fillDefaults(pat *pattern.Pattern, m *pattern.MatchResult) bool {
	for i, s := range pat.Slots() {
		if m.Exprs[i] != nil || s.Nullable {
			continue
		}
		ci, plural, ok := p.classes.Lookup(s.Types[0])
		if !ok || ci.Default == nil {
			return false
		}
		e := ci.Default()
		if e == nil || (!plural && !e.IsSingle()) {
			return false
		}
		m.Exprs[i] = e
	}
	return true
}

// resolver parses the text covered by a type slot.
type resolver struct {
	p     *Parser
	flags types.ParseFlags
}

func (r resolver) ResolveSlot(text string, slot *pattern.TypeSlot) lang.Expression {
	p := r.p
	flags := r.flags
	if slot.Flags != 0 {
		flags &= slot.Flags
	}
	if flags == 0 {
		return nil
	}

	codes := make([]string, len(slot.Types))
	plural := make([]bool, len(slot.Types))
	for i, name := range slot.Types {
		ci, pl, ok := p.classes.Lookup(name)
		if !ok {
			return nil
		}
		codes[i], plural[i] = ci.CodeName, pl
	}

	e := p.parseExpression(text, flags, codes)
	if e == nil {
		return nil
	}
	if c := p.classes.ConvertExpression(e, codes...); c != nil {
		e = c
	}

	// Plurality follows the first listed type the result belongs to.
	idx := 0
	for i, c := range codes {
		if p.classes.IsSubtype(e.ReturnType(), c) {
			idx = i
			break
		}
	}
	if !plural[idx] && !e.IsSingle() {
		ci, _ := p.classes.Get(codes[idx])
		p.log.Error(fmt.Sprintf("this can only accept a single %s, but '%s' is plural", ci.Name, text), types.QualitySemanticError)
		return nil
	}

	if slot.Time != 0 {
		if lang.IsLiteral(e) {
			return nil
		}
		ts, ok := e.(lang.TimeSensitive)
		if !ok || !ts.SetTime(slot.Time) {
			state := "past"
			if slot.Time > 0 {
				state = "future"
			}
			p.log.Error(fmt.Sprintf("'%s' does not have a %s state", text, state), types.QualitySemanticError)
			return nil
		}
	}
	return e
}

// CallEffect is a function call used as a statement.
type CallEffect struct {
	Call lang.Expression
}

func (c *CallEffect) Init([]lang.Expression, int, lang.Kleenean, *lang.ParseResult) bool {
	return true
}

func (c *CallEffect) Run(env *lang.Env) { c.Call.All(env) }
func (c *CallEffect) String() string     { return c.Call.String() }

// compatible reports whether an expression returning rt might satisfy
// one of want, directly or through a converter.
func (p *Parser) compatible(rt string, want []string) bool {
	for _, t := range want {
		if rt == lang.ObjectType || t == lang.ObjectType ||
			p.classes.IsSubtype(rt, t) || p.classes.IsSubtype(t, rt) ||
			p.classes.CanConvert(rt, t) {
			return true
		}
	}
	return false
}

func (p *Parser) expressionCandidates(want []string) []*Info {
	infos, _ := p.reg.Candidates(types.CategoryExpression)
	out := make([]*Info, 0, len(infos))
	for _, in := range infos {
		if p.compatible(in.ReturnType, want) {
			out = append(out, in)
		}
	}
	return out
}
