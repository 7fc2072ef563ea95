// Package syntax holds the registry of syntax elements and the parser
// that matches script text against their patterns.
package syntax

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"go.uber.org/zap"

	"github.com/nathoo/questscript/engine/lang"
	"github.com/nathoo/questscript/engine/pattern"
	"github.com/nathoo/questscript/types"
)

// Priority orders expressions. Lower priorities are tried first, so
// patterns that would swallow almost anything go last.
type Priority int

const (
	PrioritySimple Priority = iota
	PriorityEventValue
	PriorityCombined
	PriorityProperty
	PriorityPatternMatchesEverything
)

var (
	// ErrRegistryClosed is returned by Register after Close.
	ErrRegistryClosed = errors.New("syntax registry is closed")
	// ErrRegistryOpen is returned when parsing before Close.
	ErrRegistryOpen = errors.New("syntax registry is still open")
)

// Factory creates a fresh, uninitialized element.
type Factory func() lang.Element

// Info is a registered syntax element.
type Info struct {
	Category types.Category
	Name     string
	Patterns []string
	Priority Priority
	// ReturnType is the code name of the values an expression yields.
	ReturnType string
	// Events lists the event types a trigger with this event header
	// handles.
	Events  []string
	Factory Factory
	// Source names where the element came from, e.g. an addon file.
	Source string

	compiled []*pattern.Pattern
	order    int
}

// Compiled returns the compiled patterns, in declaration order.
func (i *Info) Compiled() []*pattern.Pattern { return i.compiled }

// Registry collects syntax elements while open and serves them, sorted,
// once closed. A closed registry is read-only and safe for concurrent
// use.
type Registry struct {
	classes *lang.Classes
	cache   *pattern.Cache
	logger  *zap.SugaredLogger

	mu     sync.RWMutex
	closed bool
	byCat  map[types.Category][]*Info
	count  int
}

// NewRegistry creates an open registry. A nil cache gets a private one;
// a nil logger logs nothing.
func NewRegistry(classes *lang.Classes, cache *pattern.Cache, logger *zap.SugaredLogger) *Registry {
	if cache == nil {
		cache = pattern.NewCache(0)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Registry{
		classes: classes,
		cache:   cache,
		logger:  logger,
		byCat:   map[types.Category][]*Info{},
	}
}

// Classes returns the type registry patterns are checked against.
func (r *Registry) Classes() *lang.Classes { return r.classes }

// Register adds an element. Every pattern is compiled and checked; any
// problem rejects the whole element, leaving other registrations
// unaffected.
func (r *Registry) Register(info Info) (*Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}
	in := info
	if err := r.check(&in); err != nil {
		r.logger.Errorw("syntax registration rejected", "name", info.Name, "category", info.Category, "source", info.Source, "error", err)
		return nil, err
	}
	r.count++
	in.order = r.count
	r.byCat[in.Category] = append(r.byCat[in.Category], &in)
	r.logger.Debugw("syntax registered", "name", in.Name, "category", in.Category, "patterns", len(in.compiled))
	return &in, nil
}

func (r *Registry) check(in *Info) error {
	switch in.Category {
	case types.CategoryEffect, types.CategoryCondition, types.CategoryEvent, types.CategorySection:
	case types.CategoryExpression:
		if _, ok := r.classes.Get(in.ReturnType); !ok {
			return fmt.Errorf("%s: unknown return type %q", in.Name, in.ReturnType)
		}
	default:
		return fmt.Errorf("%s: unknown category %q", in.Name, in.Category)
	}
	if in.Factory == nil {
		return fmt.Errorf("%s: missing factory", in.Name)
	}
	if len(in.Patterns) == 0 {
		return fmt.Errorf("%s: no patterns", in.Name)
	}
	in.compiled = make([]*pattern.Pattern, len(in.Patterns))
	for i, src := range in.Patterns {
		p, err := r.cache.Compile(src)
		if err != nil {
			return fmt.Errorf("%s: %w", in.Name, err)
		}
		if err := r.checkSlots(p); err != nil {
			return fmt.Errorf("%s: pattern %q: %w", in.Name, src, err)
		}
		in.compiled[i] = p
	}
	return nil
}

// checkSlots resolves every slot's type names and makes sure a slot that
// can be left out either allows nothing or has a default.
func (r *Registry) checkSlots(p *pattern.Pattern) error {
	for _, s := range p.Slots() {
		var first *lang.ClassInfo
		for _, name := range s.Types {
			ci, _, ok := r.classes.Lookup(name)
			if !ok {
				return r.unknownType(name)
			}
			if first == nil {
				first = ci
			}
		}
		if s.MayBeAbsent && !s.Nullable && first.Default == nil {
			return fmt.Errorf("the type %q has no default value; allow nothing with %%-%s%% or make the slot mandatory", first.CodeName, first.CodeName)
		}
	}
	return nil
}

func (r *Registry) unknownType(name string) error {
	ranks := fuzzy.RankFindFold(name, r.classes.Names())
	if len(ranks) == 0 {
		return fmt.Errorf("unknown type %q", name)
	}
	sort.Sort(ranks)
	return fmt.Errorf("unknown type %q, did you mean %q?", name, ranks[0].Target)
}

// ValidatePattern compiles src and checks its slot types without
// registering anything.
func (r *Registry) ValidatePattern(src string) error {
	p, err := r.cache.Compile(src)
	if err != nil {
		return err
	}
	return r.checkSlots(p)
}

// RegisterEffect registers an effect.
func (r *Registry) RegisterEffect(name string, f Factory, patterns ...string) error {
	_, err := r.Register(Info{Category: types.CategoryEffect, Name: name, Factory: f, Patterns: patterns})
	return err
}

// RegisterCondition registers a condition.
func (r *Registry) RegisterCondition(name string, f Factory, patterns ...string) error {
	_, err := r.Register(Info{Category: types.CategoryCondition, Name: name, Factory: f, Patterns: patterns})
	return err
}

// RegisterExpression registers an expression returning values of
// returnType.
func (r *Registry) RegisterExpression(name, returnType string, prio Priority, f Factory, patterns ...string) error {
	_, err := r.Register(Info{Category: types.CategoryExpression, Name: name, ReturnType: returnType, Priority: prio, Factory: f, Patterns: patterns})
	return err
}

// RegisterEvent registers a trigger header for the given event types.
func (r *Registry) RegisterEvent(name string, events []string, f Factory, patterns ...string) error {
	_, err := r.Register(Info{Category: types.CategoryEvent, Name: name, Events: events, Factory: f, Patterns: patterns})
	return err
}

// RegisterSection registers a section.
func (r *Registry) RegisterSection(name string, f Factory, patterns ...string) error {
	_, err := r.Register(Info{Category: types.CategorySection, Name: name, Factory: f, Patterns: patterns})
	return err
}

// Close freezes the registry. Expressions are ordered by priority and
// then by registration order; other categories keep registration order.
// Closing twice is a no-op.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	for _, infos := range r.byCat {
		sort.SliceStable(infos, func(i, j int) bool {
			if infos[i].Priority != infos[j].Priority {
				return infos[i].Priority < infos[j].Priority
			}
			return infos[i].order < infos[j].order
		})
	}
	r.closed = true
	r.logger.Infow("syntax registry closed", "elements", r.count)
}

// Closed reports whether Close has been called.
func (r *Registry) Closed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// Candidates returns the elements of a category in the order they are
// tried.
func (r *Registry) Candidates(cat types.Category) ([]*Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.closed {
		return nil, ErrRegistryOpen
	}
	return r.byCat[cat], nil
}

// Len returns the number of registered elements.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Describe lists registered elements as "category name: pattern" lines,
// sorted, for help output.
func (r *Registry) Describe() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for cat, infos := range r.byCat {
		for _, in := range infos {
			out = append(out, fmt.Sprintf("%s %s: %s", cat, in.Name, strings.Join(in.Patterns, " | ")))
		}
	}
	sort.Strings(out)
	return out
}
