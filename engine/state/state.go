// Package state holds the mutable game world that scripts run against:
// worlds, players and other entities, global variables and pending output.
package state

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kinds of entity with special meaning to the engine.
const (
	KindPlayer = "player"
)

// World is a named dimension entities live in.
type World struct {
	Name string
}

// Entity is anything living in a world. Players are entities of
// KindPlayer.
type Entity struct {
	ID          string
	Name        string
	Kind        string // "player", "cow", "zombie", "boat", ...
	Living      bool
	World       string
	LeashHolder string // entity ID of the holder, empty when not leashed
	Props       map[string]any
}

// IsPlayer reports whether e is a player.
func (e *Entity) IsPlayer() bool {
	return e.Kind == KindPlayer
}

func (e *Entity) String() string {
	if e.Name != "" {
		return e.Name
	}
	return e.ID
}

// Message is one line of output produced by a script.
type Message struct {
	To   string // player ID, empty for a broadcast
	Text string
}

// State is the complete mutable game world.
type State struct {
	Worlds   map[string]*World
	Entities map[string]*Entity
	Vars     map[string]any
	Ticks    int
	RNG      *RNG

	order  []string // entity IDs in creation order
	outbox []Message
}

// NewState creates an empty world with a single default world named
// "world".
func NewState() *State {
	s := &State{
		Worlds:   map[string]*World{},
		Entities: map[string]*Entity{},
		Vars:     map[string]any{},
		RNG:      NewRNG(1),
	}
	s.AddWorld("world")
	return s
}

// AddWorld creates a world if it does not exist yet and returns it.
func (s *State) AddWorld(name string) *World {
	key := strings.ToLower(name)
	if w, ok := s.Worlds[key]; ok {
		return w
	}
	w := &World{Name: name}
	s.Worlds[key] = w
	return w
}

// World returns the world with the given name (case-insensitive).
func (s *State) World(name string) (*World, bool) {
	w, ok := s.Worlds[strings.ToLower(name)]
	return w, ok
}

// AddEntity adds a new entity. The ID must be unique.
func (s *State) AddEntity(e *Entity) error {
	if e.ID == "" {
		return fmt.Errorf("entity without id")
	}
	if _, ok := s.Entities[e.ID]; ok {
		return fmt.Errorf("entity %q already exists", e.ID)
	}
	if e.World == "" {
		e.World = "world"
	}
	if _, ok := s.World(e.World); !ok {
		return fmt.Errorf("entity %q: unknown world %q", e.ID, e.World)
	}
	if e.Props == nil {
		e.Props = map[string]any{}
	}
	s.Entities[e.ID] = e
	s.order = append(s.order, e.ID)
	return nil
}

// AddPlayer is a shortcut for adding a living entity of KindPlayer whose
// ID is its name.
func (s *State) AddPlayer(name, world string) (*Entity, error) {
	p := &Entity{ID: name, Name: name, Kind: KindPlayer, Living: true, World: world}
	if err := s.AddEntity(p); err != nil {
		return nil, err
	}
	return p, nil
}

// RemoveEntity deletes an entity and releases anything it was holding.
func (s *State) RemoveEntity(id string) {
	if _, ok := s.Entities[id]; !ok {
		return
	}
	delete(s.Entities, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	for _, e := range s.Entities {
		if e.LeashHolder == id {
			e.LeashHolder = ""
		}
	}
}

// Entity returns the entity with the given ID.
func (s *State) Entity(id string) (*Entity, bool) {
	e, ok := s.Entities[id]
	return e, ok
}

// All returns every entity in creation order.
func (s *State) All() []*Entity {
	out := make([]*Entity, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.Entities[id])
	}
	return out
}

// Players returns all players in creation order.
func (s *State) Players() []*Entity {
	var out []*Entity
	for _, e := range s.All() {
		if e.IsPlayer() {
			out = append(out, e)
		}
	}
	return out
}

// EntitiesIn returns the entities in a world, in creation order.
func (s *State) EntitiesIn(world string) []*Entity {
	var out []*Entity
	for _, e := range s.All() {
		if strings.EqualFold(e.World, world) {
			out = append(out, e)
		}
	}
	return out
}

// Leash attaches e to holder. Only living entities can be leashed.
func (s *State) Leash(e, holder *Entity) bool {
	if !e.Living || e == holder {
		return false
	}
	e.LeashHolder = holder.ID
	return true
}

// Unleash detaches e from whatever is holding it.
func (s *State) Unleash(e *Entity) {
	e.LeashHolder = ""
}

// Holder returns the entity holding e's leash.
func (s *State) Holder(e *Entity) (*Entity, bool) {
	if e.LeashHolder == "" {
		return nil, false
	}
	return s.Entity(e.LeashHolder)
}

// Send queues a message for a single player.
func (s *State) Send(to *Entity, text string) {
	s.outbox = append(s.outbox, Message{To: to.ID, Text: text})
}

// Broadcast queues a message for every player, or for the players in
// the given worlds when worlds is not empty.
func (s *State) Broadcast(text string, worlds ...string) {
	if len(worlds) == 0 {
		s.outbox = append(s.outbox, Message{Text: text})
		return
	}
	for _, p := range s.Players() {
		for _, w := range worlds {
			if strings.EqualFold(p.World, w) {
				s.Send(p, text)
				break
			}
		}
	}
}

// Drain returns the queued messages as display lines and empties the
// queue.
func (s *State) Drain() []string {
	lines := make([]string, 0, len(s.outbox))
	for _, m := range s.outbox {
		if m.To == "" {
			lines = append(lines, "[broadcast] "+m.Text)
		} else {
			lines = append(lines, "[to "+m.To+"] "+m.Text)
		}
	}
	s.outbox = nil
	return lines
}

// Var returns a global variable. Names are case-insensitive.
func (s *State) Var(name string) (any, bool) {
	v, ok := s.Vars[strings.ToLower(name)]
	return v, ok
}

// SetVar sets a global variable. A nil value deletes it.
func (s *State) SetVar(name string, v any) {
	key := strings.ToLower(name)
	if v == nil {
		delete(s.Vars, key)
		return
	}
	s.Vars[key] = v
}

// ListVar returns the values of the list variable prefix::*, ordered by
// index.
func (s *State) ListVar(prefix string) []any {
	return ListValues(s.Vars, prefix)
}

// SetListVar replaces the list variable prefix::* with values indexed
// from 1.
func (s *State) SetListVar(prefix string, values []any) {
	SetList(s.Vars, prefix, values)
}

// ListValues returns the direct elements of prefix::* stored in vars.
// Numeric indexes sort numerically, others lexically.
func ListValues(vars map[string]any, prefix string) []any {
	p := strings.ToLower(prefix) + "::"
	var keys []string
	for k := range vars {
		if strings.HasPrefix(k, p) && !strings.Contains(k[len(p):], "::") {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		a, aerr := strconv.Atoi(keys[i][len(p):])
		b, berr := strconv.Atoi(keys[j][len(p):])
		if aerr == nil && berr == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		out = append(out, vars[k])
	}
	return out
}

// SetList replaces every element of prefix::* in vars with values
// indexed from 1.
func SetList(vars map[string]any, prefix string, values []any) {
	p := strings.ToLower(prefix) + "::"
	for k := range vars {
		if strings.HasPrefix(k, p) {
			delete(vars, k)
		}
	}
	for i, v := range values {
		vars[fmt.Sprintf("%s%d", p, i+1)] = v
	}
}
