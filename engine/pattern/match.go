package pattern

import (
	"errors"
	"strings"

	"github.com/nathoo/questscript/engine/lang"
	"github.com/nathoo/questscript/engine/lex"
	"github.com/nathoo/questscript/types"
)

// DefaultMaxSteps bounds the work a budget allows before giving up.
// Nested optional groups and choices backtrack, and some patterns would
// otherwise take exponential time on long input.
const DefaultMaxSteps = 200_000

// ErrStepLimit is returned when a match exceeds its step budget.
var ErrStepLimit = errors.New("pattern match exceeded its step limit")

// MatchResult is the state of a match in progress and, once complete,
// its outcome. Branches work on copies so that a failed alternative
// never affects its siblings.
type MatchResult struct {
	// Offset is the byte offset into the input reached so far.
	Offset int
	// Exprs holds one parsed expression per type slot, nil for slots
	// that were left out.
	Exprs []lang.Expression
	// Mark is the XOR of the parse marks of the chosen alternatives.
	Mark int
	// Regexes are the captures of <regex> elements, in match order.
	Regexes []types.RegexMatch

	ctx *matchContext
}

// matchContext is shared by every copy made during one match.
type matchContext struct {
	resolver Resolver
	budget   *Budget
}

// Budget is a step allowance. A budget may be shared by several
// matches, such as all those made while parsing one line including the
// matches of the expressions nested in its slots.
type Budget struct {
	max, used int
}

// NewBudget returns a budget of max steps, or of DefaultMaxSteps when
// max is not positive.
func NewBudget(max int) *Budget {
	if max <= 0 {
		max = DefaultMaxSteps
	}
	return &Budget{max: max}
}

// Used returns the number of steps taken, capped at one past the limit.
func (b *Budget) Used() int { return b.used }

// Exceeded reports whether the budget has run out.
func (b *Budget) Exceeded() bool { return b.used > b.max }

func (b *Budget) take() bool {
	if b.used > b.max {
		return false
	}
	b.used++
	return b.used <= b.max
}

func (r *MatchResult) copy() *MatchResult {
	c := *r
	c.Exprs = append([]lang.Expression(nil), r.Exprs...)
	c.Regexes = append([]types.RegexMatch(nil), r.Regexes...)
	return &c
}

func (r *MatchResult) step() bool { return r.ctx.budget.take() }

// Options configure a match.
type Options struct {
	// Resolver parses type slots. Without one, patterns with slots never
	// match.
	Resolver Resolver
	// MaxSteps overrides DefaultMaxSteps when positive. It is ignored
	// when Budget is set.
	MaxSteps int
	// Budget, when set, is drawn on instead of a fresh budget of
	// MaxSteps.
	Budget *Budget
}

// Pattern is a compiled syntax pattern. It is immutable and safe to
// share.
type Pattern struct {
	source string
	first  Element
	slots  []*TypeSlot
}

// Source returns the pattern text it was compiled from.
func (p *Pattern) Source() string { return p.source }

// Slots returns the type slots in source order.
func (p *Pattern) Slots() []*TypeSlot { return p.slots }

// SlotCount is the number of %type% slots.
func (p *Pattern) SlotCount() int { return len(p.slots) }

// String rebuilds pattern text from the compiled tree. Compiling it
// again yields a pattern accepting the same inputs.
func (p *Pattern) String() string {
	var b strings.Builder
	writeChain(&b, p.first)
	return b.String()
}

// Match matches input against the whole pattern. The input is trimmed
// and runs of whitespace outside quoted strings are collapsed first.
// It returns nil when the input does not match, and ErrStepLimit when
// the match was abandoned.
func (p *Pattern) Match(input string, opts Options) (*MatchResult, error) {
	in := lex.Collapse(input)
	budget := opts.Budget
	if budget == nil {
		budget = NewBudget(opts.MaxSteps)
	}
	r := &MatchResult{
		Exprs: make([]lang.Expression, len(p.slots)),
		ctx:   &matchContext{resolver: opts.Resolver, budget: budget},
	}
	m := p.first.match(in, r)
	if budget.Exceeded() {
		return nil, ErrStepLimit
	}
	return m, nil
}
