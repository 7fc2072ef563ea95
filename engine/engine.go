// Package engine provides the Engine that wires the syntax registry,
// the script loader and event dispatch into a running script host.
//
// An Engine goes through two phases. While open, built-in elements and
// addons register syntax. Start closes the registry; from then on
// scripts can be loaded, unloaded and reloaded, and events fired.
package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nathoo/questscript/engine/elements"
	"github.com/nathoo/questscript/engine/events"
	"github.com/nathoo/questscript/engine/function"
	"github.com/nathoo/questscript/engine/lang"
	"github.com/nathoo/questscript/engine/parselog"
	"github.com/nathoo/questscript/engine/pattern"
	"github.com/nathoo/questscript/engine/state"
	"github.com/nathoo/questscript/engine/syntax"
	"github.com/nathoo/questscript/engine/trigger"
	"github.com/nathoo/questscript/loader"
	"github.com/nathoo/questscript/types"
)

var (
	// ErrNotStarted is returned when scripts are loaded before Start.
	ErrNotStarted = errors.New("engine not started")
	// ErrStarted is returned when addons are loaded after Start.
	ErrStarted = errors.New("engine already started")
)

// Options configure an Engine. The zero value is usable.
type Options struct {
	Limits syntax.Limits
	// CacheSize bounds the compiled pattern cache; 0 picks the default.
	CacheSize int
	// Seed seeds the world's random source; 0 seeds from the clock.
	Seed   uint64
	Logger *zap.SugaredLogger
}

// source remembers where a loaded script came from so it can be
// reloaded.
type source struct {
	path string // empty for scripts loaded from memory
	text string
}

// Engine holds the registry, the loaded scripts and the game world.
// All methods are safe for concurrent use; script loading and event
// handling are serialized.
type Engine struct {
	mu sync.Mutex

	classes *lang.Classes
	reg     *syntax.Registry
	funcs   *function.Namespace
	loader  *loader.Loader
	addons  []*loader.Addon
	limits  syntax.Limits
	logger  *zap.SugaredLogger

	world   *state.State
	sched   events.Scheduler
	scripts map[string]*loader.Script
	sources map[string]source
	order   []string // script names in load order
}

// New creates an engine with the built-in types and elements
// registered. The registry stays open until Start.
func New(opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	classes := lang.NewClasses()
	if err := elements.RegisterTypes(classes); err != nil {
		return nil, fmt.Errorf("registering built-in types: %w", err)
	}
	reg := syntax.NewRegistry(classes, pattern.NewCache(opts.CacheSize), logger.Named("syntax"))
	funcs := function.NewNamespace()
	if err := elements.Register(reg, funcs); err != nil {
		return nil, err
	}
	world := state.NewState()
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	world.RNG = state.NewRNG(seed)
	return &Engine{
		classes: classes,
		reg:     reg,
		funcs:   funcs,
		limits:  opts.Limits,
		logger:  logger,
		world:   world,
		scripts: map[string]*loader.Script{},
		sources: map[string]source{},
	}, nil
}

// LoadAddons runs the addons in dir. It must be called before Start.
// Elements an addon failed to register are reported in a
// *loader.ValidationError; the rest stay registered.
func (e *Engine) LoadAddons(dir string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.reg.Closed() {
		return ErrStarted
	}
	addons, err := loader.LoadAddons(dir, e.reg, e.funcs, e.logger.Named("addon"))
	e.addons = append(e.addons, addons...)
	return err
}

// LoadAddon runs a single addon given as source text.
func (e *Engine) LoadAddon(name, src string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.reg.Closed() {
		return ErrStarted
	}
	a, err := loader.LoadAddon(name, src, e.reg, e.funcs, e.logger.Named("addon"))
	if a != nil {
		e.addons = append(e.addons, a)
	}
	return err
}

// Start closes the registry. Calling it twice is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.reg.Closed() {
		return
	}
	e.reg.Close()
	e.loader = loader.New(e.reg, e.funcs, e.limits, e.logger.Named("loader"))
}

// Close shuts down the addon VMs.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, a := range e.addons {
		a.Close()
	}
	e.addons = nil
}

// LoadScript loads a script from source text, replacing a loaded
// script of the same name.
func (e *Engine) LoadScript(name, src string) ([]types.Diagnostic, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.load(map[string]source{name: {text: src}})
}

// LoadDir loads every script file in dir.
func (e *Engine) LoadDir(dir string) ([]types.Diagnostic, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading script directory %s: %w", dir, err)
	}
	srcs := map[string]source{}
	for _, ent := range entries {
		name := ent.Name()
		if ent.IsDir() || !strings.HasSuffix(name, loader.ScriptExt) || strings.HasPrefix(name, "-") {
			continue
		}
		path := filepath.Join(dir, name)
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading script %s: %w", name, err)
		}
		srcs[name] = source{path: path, text: string(b)}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.load(srcs)
}

// LoadFile loads one script file. The script is named after the file.
func (e *Engine) LoadFile(path string) ([]types.Diagnostic, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script %s: %w", path, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.load(map[string]source{filepath.Base(path): {path: path, text: string(b)}})
}

func (e *Engine) load(srcs map[string]source) ([]types.Diagnostic, error) {
	if e.loader == nil {
		return nil, ErrNotStarted
	}

	// 1. Drop the old versions first so their functions can be redefined.
	var diags []types.Diagnostic
	for name := range srcs {
		if _, ok := e.scripts[name]; ok {
			diags = append(diags, e.unload(name)...)
		}
	}

	// 2. Load the new versions together.
	texts := make(map[string]string, len(srcs))
	for name, s := range srcs {
		texts[name] = s.text
	}
	scripts, err := e.loader.LoadScripts(texts)
	if err != nil {
		return diags, err
	}

	// 3. Keep them in load order.
	for _, s := range scripts {
		e.scripts[s.Name] = s
		e.sources[s.Name] = srcs[s.Name]
		e.order = append(e.order, s.Name)
		diags = append(diags, s.Diagnostics...)
	}
	return diags, nil
}

// Unload removes a script, its triggers, its functions and any of its
// runs waiting on a delay. Calls from other scripts to its functions are
// rechecked; the diagnostics report the calls that broke.
func (e *Engine) Unload(name string) ([]types.Diagnostic, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.scripts[name]; !ok {
		return nil, false
	}
	return e.unload(name), true
}

func (e *Engine) unload(name string) []types.Diagnostic {
	delete(e.scripts, name)
	delete(e.sources, name)
	for i, n := range e.order {
		if n == name {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	dropped := e.sched.Drop(name)
	removed := e.funcs.ClearScript(name)

	coll := parselog.NewCollector(e.logger.Named("loader"))
	broken := e.funcs.Revalidate(parselog.New(coll), func(r *function.Reference) {
		coll.At(r.Script, r.Line, r.Source)
	})
	e.logger.Infow("script unloaded", "script", name, "functions", removed, "dropped_runs", dropped, "broken_calls", broken)
	return coll.Diagnostics
}

// Reload loads a script again from where it came from: its file, or the
// text it was last loaded with.
func (e *Engine) Reload(name string) ([]types.Diagnostic, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	src, ok := e.sources[name]
	if !ok {
		return nil, fmt.Errorf("script %q is not loaded", name)
	}
	if src.path != "" {
		b, err := os.ReadFile(src.path)
		if err != nil {
			return nil, fmt.Errorf("reading script %s: %w", src.path, err)
		}
		src.text = string(b)
	}
	return e.load(map[string]source{name: src})
}

// Scripts returns the names of the loaded scripts in load order.
func (e *Engine) Scripts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.order...)
}

// Script returns a loaded script.
func (e *Engine) Script(name string) (*loader.Script, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.scripts[name]
	return s, ok
}

// triggers returns every loaded trigger, scripts in load order.
func (e *Engine) triggers() []*trigger.Trigger {
	var out []*trigger.Trigger
	for _, name := range e.order {
		out = append(out, e.scripts[name].Triggers...)
	}
	return out
}

// Fire runs the triggers handling ev and returns what they produced.
// Triggers that wait keep running on later ticks.
func (e *Engine) Fire(ev types.Event) types.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fire(ev)
}

func (e *Engine) fire(ev types.Event) types.Result {
	var result types.Result

	// 1. Start a run of every matching trigger.
	runs := events.Dispatch(ev, e.triggers(), e.world)

	// 2. Run each until it finishes or waits.
	e.sched.Run(runs, e.world.Ticks)

	// 3. Collect output.
	result.Events = append(result.Events, ev)
	result.Output = append(result.Output, e.world.Drain()...)
	e.logger.Debugw("event fired", "type", ev.Type, "runs", len(runs), "waiting", e.sched.Pending())
	return result
}

// Tick advances the clock by n ticks. Each tick resumes the runs whose
// delay has passed and then runs the periodic triggers that are due.
func (e *Engine) Tick(n int) types.Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	var result types.Result
	for i := 0; i < n; i++ {
		e.world.Ticks++
		now := e.world.Ticks

		// 1. Resume delayed runs.
		e.sched.Advance(now)

		// 2. Periodic triggers.
		if due := events.Due(e.triggers(), now); len(due) > 0 {
			ev := types.Event{Type: elements.EventTick, Data: map[string]any{"tick": float64(now)}}
			e.sched.Run(events.Dispatch(ev, due, e.world), now)
			result.Events = append(result.Events, ev)
		}
	}
	result.Output = append(result.Output, e.world.Drain()...)
	return result
}

// Pending returns the number of runs waiting on a delay.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sched.Pending()
}

// Join adds a player to a world and fires the join event.
func (e *Engine) Join(name, world string) (types.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if world == "" {
		world = "world"
	}
	w := e.world.AddWorld(world)
	p, err := e.world.AddPlayer(name, w.Name)
	if err != nil {
		return types.Result{}, err
	}
	return e.fire(types.Event{Type: elements.EventJoin, Data: map[string]any{"player": p, "world": w}}), nil
}

// Quit fires the quit event and removes the player.
func (e *Engine) Quit(name string) (types.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.player(name)
	if err != nil {
		return types.Result{}, err
	}
	res := e.fire(types.Event{Type: elements.EventQuit, Data: e.eventData(p)})
	e.world.RemoveEntity(p.ID)
	return res, nil
}

// Chat fires the chat event for a message sent by a player.
func (e *Engine) Chat(name, message string) (types.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.player(name)
	if err != nil {
		return types.Result{}, err
	}
	data := e.eventData(p)
	data["message"] = message
	return e.fire(types.Event{Type: elements.EventChat, Data: data}), nil
}

// Spawn adds a non-player entity, e.g. a cow to leash.
func (e *Engine) Spawn(id, kind, world string, living bool) (*state.Entity, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if world == "" {
		world = "world"
	}
	e.world.AddWorld(world)
	ent := &state.Entity{ID: id, Name: id, Kind: kind, Living: living, World: world}
	if err := e.world.AddEntity(ent); err != nil {
		return nil, err
	}
	return ent, nil
}

func (e *Engine) player(name string) (*state.Entity, error) {
	ent, ok := e.world.Entity(name)
	if !ok || !ent.IsPlayer() {
		return nil, fmt.Errorf("no player named %q", name)
	}
	return ent, nil
}

func (e *Engine) eventData(p *state.Entity) map[string]any {
	data := map[string]any{"player": p}
	if w, ok := e.world.World(p.World); ok {
		data["world"] = w
	}
	return data
}

// Explain parses one line as an element of the given category without
// loading it, and reports how it matched and what went wrong.
func (e *Engine) Explain(text string, cat types.Category) (*syntax.Match, []types.Diagnostic, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loader == nil {
		return nil, nil, ErrNotStarted
	}
	coll := parselog.NewCollector(nil)
	coll.At("explain", 1, text)
	p := syntax.NewParser(e.reg, e.funcs, parselog.New(coll), e.limits)
	m, err := p.Explain(text, cat)
	return m, coll.Diagnostics, err
}

// Syntax lists the registered elements for help output.
func (e *Engine) Syntax() []string { return e.reg.Describe() }

// Functions lists the declared functions, sorted by name.
func (e *Engine) Functions() []string {
	sigs := e.funcs.Signatures()
	out := make([]string, len(sigs))
	for i, s := range sigs {
		out[i] = s.String()
	}
	sort.Strings(out)
	return out
}

// Classes returns the type registry, e.g. to print values.
func (e *Engine) Classes() *lang.Classes { return e.classes }

// World returns the game world. Callers must not use it concurrently
// with Fire or Tick.
func (e *Engine) World() *state.State { return e.world }
