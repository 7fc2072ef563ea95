// Package events runs loaded triggers for game events. Handlers run in a
// single pass: a trigger reacting to an event does not fire further
// events. Runs suspended by a delay are kept by a Scheduler until the
// clock reaches their wake-up tick.
package events

import (
	"sort"

	"github.com/nathoo/questscript/engine/lang"
	"github.com/nathoo/questscript/engine/state"
	"github.com/nathoo/questscript/engine/trigger"
	"github.com/nathoo/questscript/types"
)

// Periodic is implemented by event headers that fire on a timer rather
// than on a game event.
type Periodic interface {
	Interval() int
}

// Dispatch starts a run of every trigger that handles ev's type and
// whose header accepts the event, in the order given.
func Dispatch(ev types.Event, triggers []*trigger.Trigger, world *state.State) []*trigger.Run {
	var runs []*trigger.Run
	for _, t := range triggers {
		if !t.Handles(ev.Type) {
			continue
		}
		env := lang.NewEnv(ev, world)
		if t.Event != nil && !t.Event.Check(env) {
			continue
		}
		runs = append(runs, t.Start(env))
	}
	return runs
}

// Due returns the periodic triggers whose interval divides tick.
func Due(triggers []*trigger.Trigger, tick int) []*trigger.Trigger {
	var out []*trigger.Trigger
	for _, t := range triggers {
		p, ok := t.Event.(Periodic)
		if !ok || p.Interval() <= 0 {
			continue
		}
		if tick%p.Interval() == 0 {
			out = append(out, t)
		}
	}
	return out
}

// Scheduler holds runs waiting on a delay.
type Scheduler struct {
	waiting []*trigger.Run
}

// Run resumes each run at tick now and keeps those that suspend.
func (s *Scheduler) Run(runs []*trigger.Run, now int) {
	for _, r := range runs {
		if ticks := r.Resume(); ticks > 0 {
			r.WakeAt = now + ticks
			s.waiting = append(s.waiting, r)
		}
	}
}

// Advance resumes every waiting run due at or before now, earliest
// first. It returns the number of runs resumed.
func (s *Scheduler) Advance(now int) int {
	var due, rest []*trigger.Run
	for _, r := range s.waiting {
		if r.WakeAt <= now {
			due = append(due, r)
		} else {
			rest = append(rest, r)
		}
	}
	s.waiting = rest
	sort.SliceStable(due, func(i, j int) bool { return due[i].WakeAt < due[j].WakeAt })
	s.Run(due, now)
	return len(due)
}

// Pending returns the number of suspended runs.
func (s *Scheduler) Pending() int { return len(s.waiting) }

// Drop forgets the suspended runs of a script's triggers.
func (s *Scheduler) Drop(script string) int {
	kept := s.waiting[:0]
	dropped := 0
	for _, r := range s.waiting {
		if r.Trigger != nil && r.Trigger.Script == script {
			dropped++
			continue
		}
		kept = append(kept, r)
	}
	s.waiting = kept
	return dropped
}
