package function

import (
	"fmt"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/nathoo/questscript/engine/lang"
	"github.com/nathoo/questscript/types"
)

// Reference is a parsed call such as "greet(player)". It is an
// expression yielding the function's return values. The function itself
// is looked up on every call, so a reference survives its target being
// reloaded.
type Reference struct {
	Name   string
	Script string
	Args   []lang.Expression
	// Line and Source locate the call once its line is accepted.
	Line   int
	Source string

	ns      *Namespace
	classes *lang.Classes
	// want is the set of types the caller accepts; empty for calls used
	// as effects.
	want []string

	params     []lang.Expression
	returnType string
	single     bool
}

// NewReference creates an unvalidated reference.
func NewReference(ns *Namespace, classes *lang.Classes, script, name string, args []lang.Expression, want ...string) *Reference {
	return &Reference{Name: name, Script: script, Args: args, ns: ns, classes: classes, want: want}
}

// Validate checks the call against the function's signature and
// converts the arguments. Problems are reported to log. Validate does
// not register the call; see Namespace.Track.
func (r *Reference) Validate(log lang.Logger) bool {
	fail := func(format string, args ...any) bool {
		if log != nil {
			log.Error(fmt.Sprintf(format, args...), types.QualitySemanticError)
		}
		return false
	}

	sig, ok := r.ns.Signature(r.Name)
	if !ok {
		msg := fmt.Sprintf("the function '%s' does not exist", r.Name)
		if ranks := fuzzy.RankFindFold(r.Name, r.ns.Names()); len(ranks) > 0 {
			best := ranks[0]
			for _, rk := range ranks[1:] {
				if rk.Distance < best.Distance {
					best = rk
				}
			}
			msg += fmt.Sprintf(", did you mean '%s'?", best.Target)
		}
		return fail("%s", msg)
	}

	// 1. Return type.
	r.returnType, r.single = sig.ReturnType, sig.Single
	if len(r.want) > 0 {
		if sig.ReturnType == "" {
			return fail("the function '%s' doesn't return any value", r.Name)
		}
		rt := ""
		for _, t := range r.want {
			if r.classes.IsSubtype(sig.ReturnType, t) {
				rt = sig.ReturnType
				break
			}
		}
		if rt == "" {
			for _, t := range r.want {
				if r.classes.CanConvert(sig.ReturnType, t) {
					rt = t
					break
				}
			}
		}
		if rt == "" {
			return fail("the returned value of the function '%s', %s, is %s", r.Name, sig.ReturnType, r.classes.NotOfType(r.want...))
		}
		r.returnType = rt
	}

	// 2. Argument count. A sole plural parameter takes every argument.
	args := r.Args
	if len(sig.Params) == 1 && !sig.Params[0].Single && len(args) > 1 {
		rts := make([]string, len(args))
		for i, a := range args {
			rts[i] = a.ReturnType()
		}
		args = []lang.Expression{lang.NewList(args, true, r.classes.Supertype(rts...))}
	}
	if len(args) > len(sig.Params) {
		if len(sig.Params) == 0 {
			return fail("the function '%s' has no parameters, but %d were given", r.Name, len(args))
		}
		return fail("the function '%s' has only %d parameter(s), but %d were given", r.Name, len(sig.Params), len(args))
	}
	if required := sig.MinArgs(); len(args) < required {
		return fail("the function '%s' requires at least %d argument(s), but only %d were given", r.Name, required, len(args))
	}

	// 3. Argument types and plurality.
	params := make([]lang.Expression, len(args))
	for i, a := range args {
		p := sig.Params[i]
		c := r.classes.ConvertExpression(a, p.Type)
		if c == nil {
			return fail("the %s argument given to the function '%s' is not of the required type %s", Ordinal(i+1), r.Name, p.Type)
		}
		if p.Single && !c.IsSingle() {
			return fail("the %s argument given to the function '%s' is plural, but a single argument was expected", Ordinal(i+1), r.Name)
		}
		params[i] = c
	}
	r.params = params
	return true
}

// ReturnType implements lang.Expression.
func (r *Reference) ReturnType() string {
	if r.returnType == "" {
		return lang.ObjectType
	}
	return r.returnType
}

func (r *Reference) IsSingle() bool { return r.single }

// All calls the function. A function that has since been unloaded
// yields nothing.
func (r *Reference) All(env *lang.Env) []any {
	f, ok := r.ns.Function(r.Name)
	if !ok {
		return nil
	}
	args := make([][]any, len(r.params))
	for i, p := range r.params {
		args[i] = p.All(env)
	}
	out := f.Call(env, args)
	if r.returnType != "" && f.Sig.ReturnType != r.returnType {
		conv := make([]any, 0, len(out))
		for _, v := range out {
			if cv, ok := r.classes.Convert(v, r.returnType); ok {
				conv = append(conv, cv)
			}
		}
		out = conv
	}
	return out
}

func (r *Reference) String() string {
	s := r.Name + "("
	for i, a := range r.Args {
		if i > 0 {
			s += ", "
		}
		s += a.String()
	}
	return s + ")"
}
