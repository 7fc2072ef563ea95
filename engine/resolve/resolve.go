// Package resolve maps entity names used in scripts to world entities.
package resolve

import (
	"fmt"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/nathoo/questscript/engine/state"
)

// AmbiguityError indicates multiple entities matched a name.
type AmbiguityError struct {
	Name       string
	Candidates []string
}

func (e *AmbiguityError) Error() string {
	names := strings.Join(e.Candidates, ", ")
	return fmt.Sprintf("which %s? (%s)", e.Name, names)
}

// NotFoundError indicates no entity matched a name.
type NotFoundError struct {
	Name       string
	Suggestion string // closest known name, may be empty
}

func (e *NotFoundError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("there is no entity named %q (did you mean %q?)", e.Name, e.Suggestion)
	}
	return fmt.Sprintf("there is no entity named %q", e.Name)
}

// Filter restricts which entities a lookup considers.
type Filter func(*state.Entity) bool

// Players only accepts players.
func Players(e *state.Entity) bool { return e.IsPlayer() }

// Entity resolves name to a single entity. Exact ID matches win, then
// case-insensitive name matches, then matches on a single word of the
// name ("cow" finds "Brown Cow").
func Entity(s *state.State, name string, filter Filter) (*state.Entity, error) {
	if e, ok := s.Entity(name); ok && (filter == nil || filter(e)) {
		return e, nil
	}

	nameLower := strings.ToLower(strings.TrimSpace(name))
	var exact, partial []*state.Entity
	for _, e := range s.All() {
		if filter != nil && !filter(e) {
			continue
		}
		switch matchesName(e, nameLower) {
		case matchExact:
			exact = append(exact, e)
		case matchWord:
			partial = append(partial, e)
		}
	}

	matches := exact
	if len(matches) == 0 {
		matches = partial
	}
	switch len(matches) {
	case 0:
		return nil, &NotFoundError{Name: name, Suggestion: suggest(s, name, filter)}
	case 1:
		return matches[0], nil
	default:
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = m.ID
		}
		return nil, &AmbiguityError{Name: name, Candidates: ids}
	}
}

type match int

const (
	matchNone match = iota
	matchWord
	matchExact
)

func matchesName(e *state.Entity, nameLower string) match {
	if strings.ToLower(e.Name) == nameLower || strings.ToLower(e.ID) == nameLower {
		return matchExact
	}
	// Underscore normalization: "brown cow" matches ID "brown_cow".
	if strings.ReplaceAll(nameLower, " ", "_") == strings.ToLower(e.ID) {
		return matchExact
	}
	for _, word := range strings.Fields(strings.ToLower(e.Name)) {
		if word == nameLower {
			return matchWord
		}
	}
	return matchNone
}

func suggest(s *state.State, name string, filter Filter) string {
	var names []string
	for _, e := range s.All() {
		if filter == nil || filter(e) {
			names = append(names, e.String())
		}
	}
	ranks := fuzzy.RankFindFold(name, names)
	if len(ranks) == 0 {
		return ""
	}
	best := ranks[0]
	for _, r := range ranks[1:] {
		if r.Distance < best.Distance {
			best = r
		}
	}
	return best.Target
}
