// Package lang defines the building blocks parsed scripts are made of:
// types and converters, expressions, and the effect, condition, event and
// section elements that registered syntax produces.
package lang

import (
	"fmt"

	"github.com/nathoo/questscript/engine/state"
	"github.com/nathoo/questscript/types"
)

// Env is what a parsed script sees while it runs: the event being
// handled, the world and the local variables of the current trigger or
// function call.
type Env struct {
	Event  types.Event
	World  *state.State
	Locals map[string]any

	// Halted stops the current trigger after the running item.
	Halted bool
	// Return holds a function's return value once set.
	Return   []any
	Returned bool
}

// NewEnv creates an environment for one event.
func NewEnv(ev types.Event, world *state.State) *Env {
	return &Env{Event: ev, World: world, Locals: map[string]any{}}
}

// Data returns an event value such as "player" or "message".
func (e *Env) Data(key string) (any, bool) {
	if e.Event.Data == nil {
		return nil, false
	}
	v, ok := e.Event.Data[key]
	return v, ok
}

// Logger receives parse diagnostics from syntax elements.
type Logger interface {
	Error(msg string, q types.Quality)
	Warning(msg string)
}

// ParseResult describes how a line matched one of a syntax element's
// patterns.
type ParseResult struct {
	Expr    string // the matched text
	Mark    int    // XOR of the parse marks of the chosen alternatives
	Regexes []types.RegexMatch
	Exprs   []Expression
	Log     Logger

	// InFunction is set while parsing a function body. ReturnType and
	// ReturnSingle then describe what the function returns; ReturnType
	// is empty for functions without a return value.
	InFunction   bool
	ReturnType   string
	ReturnSingle bool
}

// Error reports a semantic problem found while initializing an element.
func (r *ParseResult) Error(format string, args ...any) {
	if r.Log != nil {
		r.Log.Error(fmt.Sprintf(format, args...), types.QualitySemanticError)
	}
}

// Warning reports a non-fatal problem.
func (r *ParseResult) Warning(format string, args ...any) {
	if r.Log != nil {
		r.Log.Warning(fmt.Sprintf(format, args...))
	}
}

// Element is the common part of every registered syntax element.
//
// Init receives one expression per type slot of the matched pattern, in
// pattern order (nil for omitted nullable slots), the index of the
// pattern that matched, whether a delay may have happened before this
// line, and the match details. Returning false rejects the match and the
// parser moves on to the next candidate.
type Element interface {
	Init(exprs []Expression, matchedPattern int, isDelayed Kleenean, res *ParseResult) bool
	String() string
}

// Effect is a statement that changes the world.
type Effect interface {
	Element
	Run(env *Env)
}

// Delay is an effect that suspends the running trigger for a number of
// ticks.
type Delay interface {
	Effect
	Ticks(env *Env) int
}

// Condition is a statement that stops the trigger when false.
type Condition interface {
	Element
	Check(env *Env) bool
}

// EventElement is the parsed header of a trigger. Check filters events
// of the registered types further, e.g. "on chat containing x".
type EventElement interface {
	Element
	Check(env *Env) bool
}

// Section is a statement that owns an indented block of items.
type Section interface {
	Element
	// Iterations returns how many times the block runs.
	Iterations(env *Env) int
}

// ExpressionElement is a registered expression.
type ExpressionElement interface {
	Element
	Expression
}
