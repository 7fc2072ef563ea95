// Package trigger holds the runnable form of a loaded script: triggers,
// the items of their bodies, and the walker that runs them with support
// for suspending on delays.
package trigger

import (
	"fmt"
	"strings"

	"github.com/nathoo/questscript/engine/lang"
)

// MaxIterations caps how often a single loop section may repeat.
const MaxIterations = 10000

// Item is one line of a trigger or function body.
type Item interface {
	Line() int
	String() string
}

// Statement runs an effect.
type Statement struct {
	Effect lang.Effect
	At     int
}

func (s *Statement) Line() int      { return s.At }
func (s *Statement) String() string { return s.Effect.String() }

// Check is a condition used as a statement. When it fails the trigger
// stops.
type Check struct {
	Cond lang.Condition
	At   int
}

func (c *Check) Line() int      { return c.At }
func (c *Check) String() string { return c.Cond.String() }

// Branch is one arm of a conditional. A nil Cond is the else arm.
type Branch struct {
	Cond lang.Condition
	Body []Item
}

// Conditional is an if / else if / else chain. The first arm whose
// condition holds runs.
type Conditional struct {
	Branches []Branch
	At       int
}

func (c *Conditional) Line() int { return c.At }

func (c *Conditional) String() string {
	parts := make([]string, len(c.Branches))
	for i, b := range c.Branches {
		switch {
		case b.Cond == nil:
			parts[i] = "else"
		case i == 0:
			parts[i] = "if " + b.Cond.String()
		default:
			parts[i] = "else if " + b.Cond.String()
		}
	}
	return strings.Join(parts, " / ")
}

// Loop is a section owning a block that runs Section.Iterations times.
type Loop struct {
	Section lang.Section
	Body    []Item
	At      int
}

func (l *Loop) Line() int      { return l.At }
func (l *Loop) String() string { return l.Section.String() }

// Trigger is a parsed "on <event>:" block.
type Trigger struct {
	Script string
	Name   string // the header as written
	Line   int
	Event  lang.EventElement
	// Events are the event types the header was registered for.
	Events []string
	Body   []Item
}

// Handles reports whether the trigger listens for events of type typ.
func (t *Trigger) Handles(typ string) bool {
	for _, e := range t.Events {
		if e == typ {
			return true
		}
	}
	return false
}

func (t *Trigger) String() string {
	return fmt.Sprintf("%s:%d on %s", t.Script, t.Line, t.Name)
}

// Start begins running the trigger in env. Call Resume to run it.
func (t *Trigger) Start(env *lang.Env) *Run {
	return NewRun(t, t.Body, env)
}

type frame struct {
	items     []Item
	pc        int
	remaining int
}

// Run is a trigger or function body in progress.
type Run struct {
	Trigger *Trigger // nil for function bodies
	Env     *lang.Env
	// WakeAt is the tick a suspended run continues at.
	WakeAt int

	frames []frame
	done   bool
}

// NewRun prepares items for running in env.
func NewRun(t *Trigger, items []Item, env *lang.Env) *Run {
	return &Run{Trigger: t, Env: env, frames: []frame{{items: items}}}
}

// Done reports whether the run has finished.
func (r *Run) Done() bool { return r.done }

// Resume runs items until the body ends, a condition fails, the script
// stops or returns, or a delay is reached. It returns the number of
// ticks to wait before resuming, 0 once the run is done.
func (r *Run) Resume() int {
	env := r.Env
	for !r.done {
		if len(r.frames) == 0 {
			r.done = true
			break
		}
		f := &r.frames[len(r.frames)-1]
		if f.pc >= len(f.items) {
			if f.remaining > 0 {
				f.remaining--
				f.pc = 0
				continue
			}
			r.frames = r.frames[:len(r.frames)-1]
			continue
		}
		item := f.items[f.pc]
		f.pc++

		switch it := item.(type) {
		case *Statement:
			if d, ok := it.Effect.(lang.Delay); ok {
				if ticks := d.Ticks(env); ticks > 0 {
					return ticks
				}
				continue
			}
			it.Effect.Run(env)
			if env.Halted || env.Returned {
				r.done = true
			}
		case *Check:
			if !it.Cond.Check(env) {
				r.done = true
			}
		case *Conditional:
			for _, b := range it.Branches {
				if b.Cond == nil || b.Cond.Check(env) {
					r.push(b.Body, 0)
					break
				}
			}
		case *Loop:
			n := it.Section.Iterations(env)
			if n > MaxIterations {
				n = MaxIterations
			}
			if n > 0 {
				r.push(it.Body, n-1)
			}
		}
	}
	return 0
}

func (r *Run) push(items []Item, repeats int) {
	if len(items) == 0 {
		return
	}
	r.frames = append(r.frames, frame{items: items, remaining: repeats})
}

// Exec runs items to completion, ignoring delays. Function bodies are
// run this way; the loader rejects delays inside them.
func Exec(items []Item, env *lang.Env) {
	run := NewRun(nil, items, env)
	for !run.Done() {
		run.Resume()
	}
}

// Walk calls fn for every item in items, depth first.
func Walk(items []Item, fn func(Item)) {
	for _, it := range items {
		fn(it)
		switch x := it.(type) {
		case *Conditional:
			for _, b := range x.Branches {
				Walk(b.Body, fn)
			}
		case *Loop:
			Walk(x.Body, fn)
		}
	}
}
