// Package function implements script and native functions: signatures,
// the namespace they live in, and the references that call them.
package function

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/nathoo/questscript/engine/lang"
	"github.com/nathoo/questscript/engine/state"
)

// Origin tells where a function was defined.
type Origin int

const (
	OriginNative Origin = iota
	OriginScript
)

func (o Origin) String() string {
	if o == OriginScript {
		return "script"
	}
	return "native"
}

// Parameter is one declared function parameter.
type Parameter struct {
	Name   string
	Type   string // class code name
	Single bool
	// Default is used when the argument is omitted. Nil makes the
	// parameter required.
	Default lang.Expression
}

func (p Parameter) String() string {
	s := p.Name + ": " + p.Type
	if !p.Single {
		s += "s"
	}
	if p.Default != nil {
		s += " = " + p.Default.String()
	}
	return s
}

// Signature is the declared shape of a function.
type Signature struct {
	// Script is the file that declares the function, empty for natives.
	Script string
	Name   string
	Params []Parameter
	// ReturnType is empty for functions that return nothing.
	ReturnType string
	Single     bool
	Origin     Origin
}

// MinArgs is the number of leading parameters without a default.
func (s *Signature) MinArgs() int {
	n := 0
	for i, p := range s.Params {
		if p.Default == nil {
			n = i + 1
		}
	}
	return n
}

func (s *Signature) String() string {
	params := make([]string, len(s.Params))
	for i, p := range s.Params {
		params[i] = p.String()
	}
	out := s.Name + "(" + strings.Join(params, ", ") + ")"
	if s.ReturnType != "" {
		out += " :: " + s.ReturnType
		if !s.Single {
			out += "s"
		}
	}
	return out
}

// Body runs a function. Arguments are available both as args, one slice
// per parameter, and as local variables of env.
type Body func(env *lang.Env, args [][]any) []any

// Function is a signature with a body.
type Function struct {
	Sig  *Signature
	Body Body
}

// Call runs the function in a fresh environment that shares the caller's
// event and world. Omitted arguments take their defaults. Each argument
// is bound to the local variable named after its parameter, so the
// body reads parameter p as {_p}.
func (f *Function) Call(caller *lang.Env, args [][]any) []any {
	env := lang.NewEnv(caller.Event, caller.World)
	full := make([][]any, len(f.Sig.Params))
	for i, p := range f.Sig.Params {
		var vals []any
		if i < len(args) && args[i] != nil {
			vals = args[i]
		} else if p.Default != nil {
			vals = p.Default.All(caller)
		}
		full[i] = vals
		name := "_" + strings.ToLower(p.Name)
		if p.Single {
			if len(vals) > 0 {
				env.Locals[name] = vals[0]
			}
			continue
		}
		state.SetList(env.Locals, name, vals)
	}
	out := f.Body(env, full)
	if env.Returned {
		out = env.Return
	}
	if f.Sig.ReturnType == "" {
		return nil
	}
	if f.Sig.Single && len(out) > 1 {
		out = out[:1]
	}
	return out
}

// Namespace holds function signatures and bodies. A signature is
// registered first; the body may follow later, which lets scripts call
// functions declared further down or in another file.
type Namespace struct {
	mu         sync.RWMutex
	signatures map[string]*Signature
	functions  map[string]*Function
	callers    map[string][]*Reference
	revalidate []*Reference
}

// NewNamespace creates an empty namespace.
func NewNamespace() *Namespace {
	return &Namespace{
		signatures: map[string]*Signature{},
		functions:  map[string]*Function{},
		callers:    map[string][]*Reference{},
	}
}

// AddSignature declares a function. Names are unique per namespace.
func (ns *Namespace) AddSignature(sig *Signature) error {
	if !nameRe.MatchString(sig.Name) {
		return fmt.Errorf("invalid function name %q", sig.Name)
	}
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if old, ok := ns.signatures[sig.Name]; ok {
		if old.Script != "" {
			return fmt.Errorf("function %q is already defined in %s", sig.Name, old.Script)
		}
		return fmt.Errorf("function %q is already defined", sig.Name)
	}
	ns.signatures[sig.Name] = sig
	return nil
}

// AddFunction attaches a body to a declared signature.
func (ns *Namespace) AddFunction(f *Function) error {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if sig, ok := ns.signatures[f.Sig.Name]; !ok || sig != f.Sig {
		return fmt.Errorf("function %q has no signature", f.Sig.Name)
	}
	ns.functions[f.Sig.Name] = f
	return nil
}

// RegisterNative declares and defines a native function in one step.
func (ns *Namespace) RegisterNative(sig *Signature, body Body) error {
	sig.Origin = OriginNative
	sig.Script = ""
	if err := ns.AddSignature(sig); err != nil {
		return err
	}
	return ns.AddFunction(&Function{Sig: sig, Body: body})
}

// Signature looks up a declared function.
func (ns *Namespace) Signature(name string) (*Signature, bool) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	s, ok := ns.signatures[name]
	return s, ok
}

// Function looks up a defined function.
func (ns *Namespace) Function(name string) (*Function, bool) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	f, ok := ns.functions[name]
	return f, ok
}

// Signatures returns every declared signature sorted by name.
func (ns *Namespace) Signatures() []*Signature {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	out := make([]*Signature, 0, len(ns.signatures))
	for _, s := range ns.signatures {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the declared function names, sorted.
func (ns *Namespace) Names() []string {
	sigs := ns.Signatures()
	out := make([]string, len(sigs))
	for i, s := range sigs {
		out[i] = s.Name
	}
	return out
}

// Track remembers a validated call so it is rechecked when the script
// declaring its function is unloaded. A call already tracked at the same
// script and line is ignored.
func (ns *Namespace) Track(r *Reference) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	for _, c := range ns.callers[r.Name] {
		if c == r || c.Script == r.Script && c.Line == r.Line && c.String() == r.String() {
			return
		}
	}
	ns.callers[r.Name] = append(ns.callers[r.Name], r)
}

// ClearScript removes the functions a script declared and forgets the
// calls it made. Calls from other scripts to the removed functions are
// queued for Revalidate. It returns the number of functions removed.
func (ns *Namespace) ClearScript(script string) int {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	removed := 0
	for name, sig := range ns.signatures {
		if sig.Origin != OriginScript || sig.Script != script {
			continue
		}
		delete(ns.signatures, name)
		delete(ns.functions, name)
		removed++
		for _, c := range ns.callers[name] {
			if c.Script != script {
				ns.revalidate = append(ns.revalidate, c)
			}
		}
		delete(ns.callers, name)
	}
	for name, refs := range ns.callers {
		kept := refs[:0]
		for _, c := range refs {
			if c.Script != script {
				kept = append(kept, c)
			}
		}
		if len(kept) == 0 {
			delete(ns.callers, name)
		} else {
			ns.callers[name] = kept
		}
	}
	return removed
}

// Revalidate rechecks the calls queued by ClearScript, reporting those
// that no longer resolve to log. at, when non-nil, is called before each
// call is checked so the logger can point at the caller's line. Calls
// that still resolve stay tracked. It returns the number of broken calls.
func (ns *Namespace) Revalidate(log lang.Logger, at func(*Reference)) int {
	ns.mu.Lock()
	queued := ns.revalidate
	ns.revalidate = nil
	ns.mu.Unlock()

	broken := 0
	for _, r := range queued {
		if at != nil {
			at(r)
		}
		if !r.Validate(log) {
			broken++
			continue
		}
		ns.Track(r)
	}
	return broken
}
