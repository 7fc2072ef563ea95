package lang

import (
	"fmt"
	"sort"
	"strings"
)

// ObjectType is the root of the type hierarchy. Every value is an object.
const ObjectType = "object"

// maxConverterHops bounds converter chains.
const maxConverterHops = 3

// ClassInfo describes a script-visible type.
type ClassInfo struct {
	CodeName string // identifier used in patterns, e.g. "livingentity"
	Name     string // user-facing singular name, defaults to CodeName
	Plural   string // user-facing plural, defaults to Name + "s"
	Parent   string // code name of the supertype, empty for object

	// Is reports whether a run-time value belongs to the type.
	Is func(v any) bool
	// Parse turns literal text into a value. Nil for types without
	// literals.
	Parse func(s string) (any, bool)
	// ToString formats a value for output. Nil falls back to fmt.
	ToString func(v any) string
	// Default builds the expression used when a slot of this type is
	// left out of a line, e.g. the event's player. Nil when the type
	// has no default.
	Default func() Expression
}

// Converter turns values of one type into another.
type Converter struct {
	From, To string
	Convert  func(v any) (any, bool)
}

type nameRef struct {
	class  *ClassInfo
	plural bool
}

// Classes is the registry of types and converters.
type Classes struct {
	byCode     map[string]*ClassInfo
	byName     map[string]nameRef
	order      []*ClassInfo
	converters []Converter
}

// NewClasses returns a registry holding only the object type.
func NewClasses() *Classes {
	c := &Classes{
		byCode: map[string]*ClassInfo{},
		byName: map[string]nameRef{},
	}
	_ = c.Register(ClassInfo{
		CodeName: ObjectType,
		Is:       func(any) bool { return true },
	})
	return c
}

// Register adds a type. The parent must already be registered.
func (c *Classes) Register(ci ClassInfo) error {
	code := strings.ToLower(ci.CodeName)
	if code == "" {
		return fmt.Errorf("class without code name")
	}
	if _, ok := c.byCode[code]; ok {
		return fmt.Errorf("class %q already registered", code)
	}
	ci.CodeName = code
	if ci.Name == "" {
		ci.Name = code
	}
	if ci.Plural == "" {
		ci.Plural = ci.Name + "s"
	}
	if code != ObjectType {
		if ci.Parent == "" {
			ci.Parent = ObjectType
		}
		if _, ok := c.byCode[ci.Parent]; !ok {
			return fmt.Errorf("class %q: unknown parent %q", code, ci.Parent)
		}
	}
	if ci.Is == nil {
		return fmt.Errorf("class %q: missing instance check", code)
	}
	info := &ci
	c.byCode[code] = info
	c.order = append(c.order, info)
	for _, n := range []string{code, strings.ToLower(ci.Name)} {
		if _, ok := c.byName[n]; !ok {
			c.byName[n] = nameRef{class: info}
		}
	}
	// "living entities" may be written as "livingentities" in patterns.
	pl := strings.ToLower(ci.Plural)
	for _, n := range []string{code + "s", pl, strings.ReplaceAll(pl, " ", "")} {
		if _, ok := c.byName[n]; !ok {
			c.byName[n] = nameRef{class: info, plural: true}
		}
	}
	return nil
}

// Get returns a class by code name.
func (c *Classes) Get(code string) (*ClassInfo, bool) {
	ci, ok := c.byCode[strings.ToLower(code)]
	return ci, ok
}

// Lookup resolves a type name as written in a pattern or a function
// signature, singular or plural.
func (c *Classes) Lookup(name string) (ci *ClassInfo, plural bool, ok bool) {
	ref, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false, false
	}
	return ref.class, ref.plural, true
}

// Names returns every singular and plural type name, sorted.
func (c *Classes) Names() []string {
	names := make([]string, 0, len(c.byName))
	for n := range c.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// IsSubtype reports whether sub is super or derives from it.
func (c *Classes) IsSubtype(sub, super string) bool {
	if super == ObjectType {
		return true
	}
	for t := sub; t != ""; {
		if t == super {
			return true
		}
		ci, ok := c.byCode[t]
		if !ok {
			return false
		}
		t = ci.Parent
	}
	return false
}

// Supertype returns the most specific type all of types derive from.
func (c *Classes) Supertype(types ...string) string {
	if len(types) == 0 {
		return ObjectType
	}
	common := types[0]
	for _, t := range types[1:] {
		for !c.IsSubtype(t, common) {
			ci, ok := c.byCode[common]
			if !ok || ci.Parent == "" {
				return ObjectType
			}
			common = ci.Parent
		}
	}
	return common
}

// AddConverter registers a conversion between two types.
func (c *Classes) AddConverter(from, to string, fn func(any) (any, bool)) {
	c.converters = append(c.converters, Converter{From: from, To: to, Convert: fn})
}

// CanConvert reports whether a chain of at most three converters leads
// from values of type from to values of type to. Converters registered
// for a supertype of from apply too.
func (c *Classes) CanConvert(from, to string) bool {
	if c.IsSubtype(from, to) {
		return true
	}
	seen := map[string]bool{from: true}
	frontier := []string{from}
	for hop := 0; hop < maxConverterHops && len(frontier) > 0; hop++ {
		var next []string
		for _, t := range frontier {
			for _, conv := range c.converters {
				if !c.IsSubtype(t, conv.From) || seen[conv.To] {
					continue
				}
				if c.IsSubtype(conv.To, to) {
					return true
				}
				seen[conv.To] = true
				next = append(next, conv.To)
			}
		}
		frontier = next
	}
	return false
}

// Convert converts a run-time value to type to, following converters
// from the value's own types.
func (c *Classes) Convert(v any, to string) (any, bool) {
	target, ok := c.byCode[to]
	if !ok {
		return nil, false
	}
	if target.Is(v) {
		return v, true
	}
	type step struct {
		v    any
		hops int
	}
	queue := []step{{v: v}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.hops == maxConverterHops {
			continue
		}
		for _, conv := range c.converters {
			from, ok := c.byCode[conv.From]
			if !ok || !from.Is(cur.v) {
				continue
			}
			out, ok := conv.Convert(cur.v)
			if !ok {
				continue
			}
			if target.Is(out) {
				return out, true
			}
			queue = append(queue, step{v: out, hops: cur.hops + 1})
		}
	}
	return nil, false
}

// ClassOf returns the most specific registered type of a value.
func (c *Classes) ClassOf(v any) *ClassInfo {
	best := c.byCode[ObjectType]
	depth := 0
	for _, ci := range c.order {
		if !ci.Is(v) {
			continue
		}
		if d := c.depth(ci); d > depth {
			best, depth = ci, d
		}
	}
	return best
}

func (c *Classes) depth(ci *ClassInfo) int {
	d := 0
	for ci.Parent != "" {
		d++
		ci = c.byCode[ci.Parent]
	}
	return d
}

// ToString formats a value using its type's formatter.
func (c *Classes) ToString(v any) string {
	if v == nil {
		return "<none>"
	}
	for ci := c.ClassOf(v); ci != nil; ci = c.byCode[ci.Parent] {
		if ci.ToString != nil {
			return ci.ToString(v)
		}
	}
	return fmt.Sprint(v)
}

// Join formats values as an English list: "a, b and c".
func (c *Classes) Join(values []any, and bool) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = c.ToString(v)
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	conj := " and "
	if !and {
		conj = " or "
	}
	return strings.Join(parts[:len(parts)-1], ", ") + conj + parts[len(parts)-1]
}

// ParseLiteral parses text as a literal of type code, trying the type's
// own parser first and then those of its subtypes in registration order.
func (c *Classes) ParseLiteral(s, code string) (any, string, bool) {
	if ci, ok := c.byCode[code]; ok && ci.Parse != nil {
		if v, ok := ci.Parse(s); ok {
			return v, ci.CodeName, true
		}
	}
	for _, ci := range c.order {
		if ci.CodeName == code || ci.Parse == nil || !c.IsSubtype(ci.CodeName, code) {
			continue
		}
		if v, ok := ci.Parse(s); ok {
			return v, ci.CodeName, true
		}
	}
	return nil, "", false
}

// Describe returns "a player", "a player or an entity" and so on, for
// error messages.
func (c *Classes) Describe(codes ...string) string {
	parts := make([]string, 0, len(codes))
	for _, code := range codes {
		name := code
		if ci, ok := c.byCode[code]; ok {
			name = ci.Name
		}
		article := "a "
		if name != "" && strings.ContainsRune("aeiou", rune(name[0])) {
			article = "an "
		}
		parts = append(parts, article+name)
	}
	switch len(parts) {
	case 0:
		return "nothing"
	case 1:
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + " or " + parts[len(parts)-1]
}

// NotOfType returns "not a number" or "neither a number, a text nor a
// player", for messages about expressions of the wrong type.
func (c *Classes) NotOfType(codes ...string) string {
	if len(codes) <= 1 {
		return "not " + c.Describe(codes...)
	}
	parts := make([]string, len(codes))
	for i, code := range codes {
		parts[i] = c.Describe(code)
	}
	return "neither " + strings.Join(parts[:len(parts)-1], ", ") + " nor " + parts[len(parts)-1]
}
