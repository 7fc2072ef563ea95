package elements

import (
	"fmt"
	"math"
	"strings"

	"github.com/nathoo/questscript/engine/function"
	"github.com/nathoo/questscript/engine/lang"
	"github.com/nathoo/questscript/engine/syntax"
)

type repeat struct {
	times lang.Expression
}

func (r *repeat) Init(exprs []lang.Expression, _ int, _ lang.Kleenean, _ *lang.ParseResult) bool {
	r.times = exprs[0]
	return true
}

func (r *repeat) Iterations(env *lang.Env) int {
	n, ok := lang.Single(r.times, env).(float64)
	if !ok || n < 1 {
		return 0
	}
	return int(math.Min(n, math.MaxInt32))
}

func (r *repeat) String() string { return "repeat " + r.times.String() + " times" }

func registerSections(reg *syntax.Registry) error {
	return reg.RegisterSection("repeat", func() lang.Element { return &repeat{} },
		"(repeat|loop) %number% time[s]")
}

func nums(vals []any) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if f, ok := v.(float64); ok {
			out = append(out, f)
		}
	}
	return out
}

func registerFunctions(ns *function.Namespace) error {
	number := func(name string) function.Parameter {
		return function.Parameter{Name: name, Type: TypeNumber, Single: true}
	}
	natives := []struct {
		sig  *function.Signature
		body function.Body
	}{
		{
			&function.Signature{Name: "abs", Params: []function.Parameter{number("n")}, ReturnType: TypeNumber, Single: true},
			func(_ *lang.Env, args [][]any) []any {
				if n := nums(args[0]); len(n) == 1 {
					return []any{math.Abs(n[0])}
				}
				return nil
			},
		},
		{
			&function.Signature{Name: "round", Params: []function.Parameter{number("n")}, ReturnType: TypeNumber, Single: true},
			func(_ *lang.Env, args [][]any) []any {
				if n := nums(args[0]); len(n) == 1 {
					return []any{math.Round(n[0])}
				}
				return nil
			},
		},
		{
			&function.Signature{Name: "max", Params: []function.Parameter{{Name: "ns", Type: TypeNumber}}, ReturnType: TypeNumber, Single: true},
			func(_ *lang.Env, args [][]any) []any {
				n := nums(args[0])
				if len(n) == 0 {
					return nil
				}
				best := n[0]
				for _, v := range n[1:] {
					best = math.Max(best, v)
				}
				return []any{best}
			},
		},
		{
			&function.Signature{Name: "min", Params: []function.Parameter{{Name: "ns", Type: TypeNumber}}, ReturnType: TypeNumber, Single: true},
			func(_ *lang.Env, args [][]any) []any {
				n := nums(args[0])
				if len(n) == 0 {
					return nil
				}
				best := n[0]
				for _, v := range n[1:] {
					best = math.Min(best, v)
				}
				return []any{best}
			},
		},
		{
			&function.Signature{Name: "concat", Params: []function.Parameter{{Name: "texts", Type: TypeString}}, ReturnType: TypeString, Single: true},
			func(_ *lang.Env, args [][]any) []any {
				return []any{strings.Join(strs(args[0]), "")}
			},
		},
	}
	for _, n := range natives {
		if err := ns.RegisterNative(n.sig, n.body); err != nil {
			return fmt.Errorf("native function %s: %w", n.sig.Name, err)
		}
	}
	return nil
}

// Register adds every built-in element to reg and every native function
// to ns. The types must have been added to reg's classes with
// RegisterTypes first.
func Register(reg *syntax.Registry, ns *function.Namespace) error {
	steps := []struct {
		what string
		fn   func(*syntax.Registry) error
	}{
		{"expressions", registerExpressions},
		{"effects", registerEffects},
		{"conditions", registerConditions},
		{"events", registerEvents},
		{"sections", registerSections},
	}
	for _, s := range steps {
		if err := s.fn(reg); err != nil {
			return fmt.Errorf("registering built-in %s: %w", s.what, err)
		}
	}
	if ns != nil {
		return registerFunctions(ns)
	}
	return nil
}
