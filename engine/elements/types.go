// Package elements provides the built-in types, expressions, effects,
// conditions, events, sections and functions every script can use.
package elements

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nathoo/questscript/engine/lang"
	"github.com/nathoo/questscript/engine/lex"
	"github.com/nathoo/questscript/engine/state"
)

// Type code names.
const (
	TypeString       = "string"
	TypeNumber       = "number"
	TypeBoolean      = "boolean"
	TypeTimespan     = "timespan"
	TypeWorld        = "world"
	TypeEntity       = "entity"
	TypeLivingEntity = "livingentity"
	TypePlayer       = "player"
)

// TicksPerSecond is the length of a second in game ticks.
const TicksPerSecond = 20

// Timespan is a duration measured in ticks.
type Timespan struct {
	Ticks int
}

func (t Timespan) String() string {
	switch {
	case t.Ticks == 0:
		return "0 seconds"
	case t.Ticks%(60*TicksPerSecond) == 0:
		return plural(t.Ticks/(60*TicksPerSecond), "minute")
	case t.Ticks%TicksPerSecond == 0:
		return plural(t.Ticks/TicksPerSecond, "second")
	}
	return plural(t.Ticks, "tick")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

var timespanRe = lex.MustCompile(`(?i)^(\d+(?:\.\d+)?|an?|one) (tick|second|minute|hour)s?$`)

var unitTicks = map[string]float64{
	"tick":   1,
	"second": TicksPerSecond,
	"minute": 60 * TicksPerSecond,
	"hour":   3600 * TicksPerSecond,
}

// ParseTimespan parses "3 seconds", "a minute" or "10 ticks". Several
// parts may be joined with "and": "1 minute and 30 seconds".
func ParseTimespan(s string) (Timespan, bool) {
	var total float64
	for _, part := range strings.Split(strings.ToLower(strings.TrimSpace(s)), " and ") {
		m := lex.Submatch(timespanRe, strings.TrimSpace(part))
		if m == nil {
			return Timespan{}, false
		}
		n := 1.0
		if m[1] != "a" && m[1] != "an" && m[1] != "one" {
			v, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				return Timespan{}, false
			}
			n = v
		}
		total += n * unitTicks[m[2]]
	}
	return Timespan{Ticks: int(math.Round(total))}, true
}

func formatNumber(v any) string {
	return strconv.FormatFloat(v.(float64), 'f', -1, 64)
}

func parseBoolean(s string) (any, bool) {
	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true, true
	case "false", "no", "off":
		return false, true
	}
	return nil, false
}

func isEntity(v any) bool {
	_, ok := v.(*state.Entity)
	return ok
}

// RegisterTypes adds the built-in types and converters to c.
func RegisterTypes(c *lang.Classes) error {
	infos := []lang.ClassInfo{
		{
			CodeName: TypeString,
			Name:     "text",
			Is:       func(v any) bool { _, ok := v.(string); return ok },
			ToString: func(v any) string { return v.(string) },
		},
		{
			CodeName: TypeNumber,
			Is:       func(v any) bool { _, ok := v.(float64); return ok },
			Parse: func(s string) (any, bool) {
				f, err := strconv.ParseFloat(s, 64)
				return f, err == nil && !math.IsInf(f, 0) && !math.IsNaN(f)
			},
			ToString: formatNumber,
		},
		{
			CodeName: TypeBoolean,
			Is:       func(v any) bool { _, ok := v.(bool); return ok },
			Parse:    parseBoolean,
			ToString: func(v any) string { return strconv.FormatBool(v.(bool)) },
		},
		{
			CodeName: TypeTimespan,
			Name:     "time span",
			Is:       func(v any) bool { _, ok := v.(Timespan); return ok },
			Parse: func(s string) (any, bool) {
				t, ok := ParseTimespan(s)
				return t, ok
			},
			ToString: func(v any) string { return v.(Timespan).String() },
		},
		{
			CodeName: TypeWorld,
			Is:       func(v any) bool { _, ok := v.(*state.World); return ok },
			ToString: func(v any) string { return v.(*state.World).Name },
			Default:  func() lang.Expression { return &eventValue{key: "world", typ: TypeWorld} },
		},
		{
			CodeName: TypeEntity,
			Plural:   "entities",
			Is:       isEntity,
			ToString: func(v any) string { return v.(*state.Entity).String() },
			Default:  func() lang.Expression { return &eventValue{key: "target", fallback: "player", typ: TypeEntity} },
		},
		{
			CodeName: TypeLivingEntity,
			Name:     "living entity",
			Plural:   "living entities",
			Parent:   TypeEntity,
			Is: func(v any) bool {
				e, ok := v.(*state.Entity)
				return ok && e.Living
			},
			ToString: func(v any) string { return v.(*state.Entity).String() },
			Default:  func() lang.Expression { return &eventValue{key: "target", fallback: "player", typ: TypeLivingEntity} },
		},
		{
			CodeName: TypePlayer,
			Parent:   TypeLivingEntity,
			Is: func(v any) bool {
				e, ok := v.(*state.Entity)
				return ok && e.IsPlayer()
			},
			ToString: func(v any) string { return v.(*state.Entity).Name },
			Default:  func() lang.Expression { return &eventValue{key: "player", typ: TypePlayer} },
		},
	}
	for _, ci := range infos {
		if err := c.Register(ci); err != nil {
			return fmt.Errorf("registering type %s: %w", ci.CodeName, err)
		}
	}

	// An entity stands for the world it is in.
	c.AddConverter(TypeEntity, TypeWorld, func(v any) (any, bool) {
		return &state.World{Name: v.(*state.Entity).World}, true
	})
	return nil
}
