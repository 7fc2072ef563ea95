package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/nathoo/questscript/engine/function"
	"github.com/nathoo/questscript/engine/lang"
	"github.com/nathoo/questscript/engine/parselog"
	"github.com/nathoo/questscript/engine/syntax"
	"github.com/nathoo/questscript/engine/trigger"
	"github.com/nathoo/questscript/types"
)

// ScriptExt is the extension of script files.
const ScriptExt = ".sk"

// Script is the loaded form of one script file.
type Script struct {
	Name        string
	Triggers    []*trigger.Trigger
	Functions   []*function.Signature
	Diagnostics []types.Diagnostic
}

// Errors counts the error diagnostics of the script.
func (s *Script) Errors() int {
	n := 0
	for _, d := range s.Diagnostics {
		if d.Severity == types.SeverityError {
			n++
		}
	}
	return n
}

// Loader turns script text into triggers and functions. Parsing needs a
// closed registry; function signatures go to the namespace as soon as a
// script is read so that scripts loaded together can call each other.
type Loader struct {
	reg    *syntax.Registry
	funcs  *function.Namespace
	limits syntax.Limits
	logger *zap.SugaredLogger
}

// New creates a loader. A nil logger logs nothing.
func New(reg *syntax.Registry, funcs *function.Namespace, limits syntax.Limits, logger *zap.SugaredLogger) *Loader {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Loader{reg: reg, funcs: funcs, limits: limits, logger: logger}
}

// pending is a script between the signature pass and the body pass.
type pending struct {
	name   string
	roots  []*node
	sigs   map[*node]*function.Signature
	coll   *parselog.Collector
	parser *syntax.Parser
	funcs  *function.Namespace
	chains map[*trigger.Conditional]*chainState
}

// LoadScript loads a single script. Problems in the script are returned
// as diagnostics; the error is only set when the registry is not ready.
func (l *Loader) LoadScript(name, src string) (*Script, error) {
	scripts, err := l.LoadScripts(map[string]string{name: src})
	if err != nil {
		return nil, err
	}
	return scripts[0], nil
}

// LoadScripts loads several scripts together, in name order. Every
// function signature is declared before any body is parsed.
func (l *Loader) LoadScripts(sources map[string]string) ([]*Script, error) {
	if !l.reg.Closed() {
		return nil, syntax.ErrRegistryOpen
	}
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)

	// 1. Read every file and declare its functions.
	all := make([]*pending, len(names))
	for i, name := range names {
		all[i] = l.prepare(name, sources[name])
	}

	// 2. Parse the bodies.
	out := make([]*Script, len(all))
	for i, p := range all {
		out[i] = l.build(p)
		l.logger.Infow("script loaded", "script", p.name,
			"triggers", len(out[i].Triggers), "functions", len(out[i].Functions), "errors", out[i].Errors())
	}
	return out, nil
}

// LoadDir loads every script file in dir. Names are relative to dir.
func (l *Loader) LoadDir(dir string) ([]*Script, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading script directory %s: %w", dir, err)
	}
	sources := map[string]string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ScriptExt) || strings.HasPrefix(e.Name(), "-") {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading script %s: %w", e.Name(), err)
		}
		sources[e.Name()] = string(b)
	}
	return l.LoadScripts(sources)
}

func (l *Loader) prepare(name, src string) *pending {
	coll := parselog.NewCollector(l.logger)
	parser := syntax.NewParser(l.reg, l.funcs, parselog.New(coll), l.limits)
	parser.SetScript(name)
	p := &pending{
		name:   name,
		sigs:   map[*node]*function.Signature{},
		coll:   coll,
		parser: parser,
		funcs:  l.funcs,
		chains: map[*trigger.Conditional]*chainState{},
	}

	roots, errs := readTree(src)
	opts := map[string]string{}
	for _, n := range roots {
		if strings.EqualFold(n.text, "options:") {
			o, oerrs := readOptions(n)
			for k, v := range o {
				opts[k] = v
			}
			errs = append(errs, oerrs...)
			continue
		}
		p.roots = append(p.roots, n)
	}
	errs = append(errs, applyOptions(p.roots, opts)...)
	for _, e := range errs {
		p.error(e.line, e.text, e.msg)
	}

	for _, n := range p.roots {
		if !function.IsDefinition(n.text) {
			continue
		}
		coll.At(name, n.line, n.text)
		if !n.section() {
			p.error(n.line, n.text, "a function definition must end with a colon")
			continue
		}
		parser.TakeCalls()
		sig, err := function.ParseSignature(name, n.header(), l.reg.Classes(), parser.ParseDefault)
		if err != nil {
			p.error(n.line, n.text, err.Error())
			continue
		}
		if err := l.funcs.AddSignature(sig); err != nil {
			p.error(n.line, n.text, err.Error())
			continue
		}
		p.track(n)
		p.sigs[n] = sig
	}
	return p
}

// track registers the calls made by the accepted line n so they are
// rechecked when the functions they call are unloaded.
func (p *pending) track(n *node) {
	for _, r := range p.parser.TakeCalls() {
		r.Line, r.Source = n.line, n.text
		p.funcs.Track(r)
	}
}

func (p *pending) error(line int, text, msg string) {
	p.coll.At(p.name, line, text)
	p.coll.Emit(parselog.Entry{Severity: types.SeverityError, Quality: types.QualitySemanticError, Message: msg})
}

func (p *pending) warning(line int, text, msg string) {
	p.coll.At(p.name, line, text)
	p.coll.Emit(parselog.Entry{Severity: types.SeverityWarning, Message: msg})
}

func (l *Loader) build(p *pending) *Script {
	s := &Script{Name: p.name}
	for _, n := range p.roots {
		switch {
		case function.IsDefinition(n.text):
			sig, ok := p.sigs[n]
			if !ok {
				continue
			}
			if f := p.function(n, sig); f != nil {
				if err := l.funcs.AddFunction(f); err != nil {
					p.error(n.line, n.text, err.Error())
					continue
				}
				s.Functions = append(s.Functions, sig)
			}
		case n.section():
			if t := p.trigger(n); t != nil {
				s.Triggers = append(s.Triggers, t)
			}
		default:
			p.error(n.line, n.text, "can't understand this line: it is neither a trigger, a function nor options")
		}
	}
	s.Diagnostics = p.coll.Diagnostics
	return s
}

func (p *pending) trigger(n *node) *trigger.Trigger {
	header := n.header()
	if len(header) > 3 && strings.EqualFold(header[:3], "on ") {
		header = strings.TrimSpace(header[3:])
	}
	p.coll.At(p.name, n.line, n.text)
	p.parser.TakeCalls()
	ev, info, err := p.parser.ParseEvent(header)
	if err != nil || ev == nil {
		return nil
	}
	p.track(n)
	if len(n.children) == 0 {
		p.warning(n.line, n.text, "empty trigger")
	}
	p.parser.SetFunction(nil)
	p.parser.SetDelayed(lang.False)
	return &trigger.Trigger{
		Script: p.name,
		Name:   header,
		Line:   n.line,
		Event:  ev,
		Events: info.Events,
		Body:   p.items(n.children, false),
	}
}

func (p *pending) function(n *node, sig *function.Signature) *function.Function {
	p.parser.SetFunction(sig)
	p.parser.SetDelayed(lang.False)
	body := p.items(n.children, true)
	p.parser.SetFunction(nil)
	return &function.Function{Sig: sig, Body: func(env *lang.Env, _ [][]any) []any {
		trigger.Exec(body, env)
		return env.Return
	}}
}

// items parses a block. Lines that fail to parse are reported and left
// out; the rest of the block still loads.
func (p *pending) items(nodes []*node, inFunction bool) []trigger.Item {
	var out []trigger.Item
	for _, n := range nodes {
		p.coll.At(p.name, n.line, n.text)
		p.parser.TakeCalls()
		if !n.section() {
			if len(n.children) > 0 {
				p.error(n.children[0].line, n.children[0].text, "unexpected indentation: the line above is not a section")
			}
			if it := p.statement(n, inFunction); it != nil {
				out = append(out, it)
			}
			continue
		}
		if len(n.children) == 0 {
			p.error(n.line, n.text, "empty section")
			continue
		}
		header := n.header()
		lower := strings.ToLower(header)
		switch {
		case strings.HasPrefix(lower, "else if "), lower == "else":
			c, ok := lastConditional(out)
			if !ok || c.Branches[len(c.Branches)-1].Cond == nil {
				p.error(n.line, n.text, "'else' has to be placed just after an 'if' or 'else if' section")
				continue
			}
			var cond lang.Condition
			if lower != "else" {
				if cond = p.condition(header[len("else if "):]); cond == nil {
					continue
				}
			}
			p.track(n)
			p.branch(c, cond, n.children, inFunction)
		case strings.HasPrefix(lower, "if "):
			cond := p.condition(header[len("if "):])
			if cond == nil {
				continue
			}
			p.track(n)
			c := &trigger.Conditional{At: n.line}
			p.branch(c, cond, n.children, inFunction)
			out = append(out, c)
		default:
			sec, _ := p.parser.ParseSection(header)
			if sec == nil {
				continue
			}
			p.track(n)
			before := p.parser.Delayed()
			body := p.items(n.children, inFunction)
			// The block may run zero times.
			p.parser.SetDelayed(before.Merge(p.parser.Delayed()))
			out = append(out, &trigger.Loop{Section: sec, Body: body, At: n.line})
		}
	}
	return out
}

// branch parses one arm of c. Every arm starts from the delay state
// before the chain; after it the state is known only if every path
// agrees, and a chain without an else arm may run no arm at all.
func (p *pending) branch(c *trigger.Conditional, cond lang.Condition, nodes []*node, inFunction bool) {
	st, ok := p.chains[c]
	if !ok {
		st = &chainState{start: p.parser.Delayed()}
		p.chains[c] = st
	}
	p.parser.SetDelayed(st.start)
	body := p.items(nodes, inFunction)
	after := p.parser.Delayed()
	if len(c.Branches) == 0 {
		st.merged = after
	} else {
		st.merged = st.merged.Merge(after)
	}
	c.Branches = append(c.Branches, trigger.Branch{Cond: cond, Body: body})

	end := st.merged
	if cond != nil {
		end = end.Merge(st.start)
	}
	p.parser.SetDelayed(end)
}

type chainState struct {
	start, merged lang.Kleenean
}

func lastConditional(items []trigger.Item) (*trigger.Conditional, bool) {
	if len(items) == 0 {
		return nil, false
	}
	c, ok := items[len(items)-1].(*trigger.Conditional)
	return c, ok
}

func (p *pending) condition(text string) lang.Condition {
	c, _ := p.parser.ParseCondition(strings.TrimSpace(text))
	return c
}

// statement parses a line as a condition or else as an effect. Only the
// better of the two failures is reported.
func (p *pending) statement(n *node, inFunction bool) trigger.Item {
	h := p.parser.Log().Start()
	if c, _ := p.parser.ParseCondition(n.text); c != nil {
		h.PrintLog()
		p.track(n)
		return &trigger.Check{Cond: c, At: n.line}
	}
	eff, _ := p.parser.ParseEffect(n.text)
	if eff == nil {
		h.PrintError(fmt.Sprintf("can't understand this condition/effect: '%s'", n.text), types.QualityNotAnExpression)
		return nil
	}
	if _, ok := eff.(lang.Delay); ok {
		if inFunction {
			h.Stop()
			p.error(n.line, n.text, "delays can't be used within functions")
			return nil
		}
		p.parser.SetDelayed(lang.True)
	}
	h.PrintLog()
	p.track(n)
	return &trigger.Statement{Effect: eff, At: n.line}
}
