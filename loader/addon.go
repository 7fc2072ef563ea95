// Package loader reads scripts and addons. Scripts (*.sk) are parsed
// into triggers and functions against a closed syntax registry. Addons
// (*.lua) run in a sandboxed Lua VM before the registry closes and add
// their own syntax elements and functions; each addon's VM stays alive
// to run those elements.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/nathoo/questscript/engine/function"
	"github.com/nathoo/questscript/engine/lang"
	"github.com/nathoo/questscript/engine/syntax"
)

// AddonExt is the extension of addon files.
const AddonExt = ".lua"

// collector accumulates the definitions of one addon file while it runs.
type collector struct {
	elements  []rawElement
	functions []rawFunction
	order     int
}

func (c *collector) nextSourceOrder() int {
	c.order++
	return c.order
}

// Addon is a loaded Lua file. Its elements call back into the VM, one
// call at a time.
type Addon struct {
	Name string

	mu      sync.Mutex
	L       *lua.LState
	classes *lang.Classes
	logger  *zap.SugaredLogger
	// env is the environment of the callback in progress.
	env *lang.Env

	// Registered lists the names of the elements and functions the
	// addon added.
	Registered []string
}

// Close shuts the VM down.
func (a *Addon) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.L.Close()
}

// LoadAddons runs every addon file in dir, in name order. reg must still
// be open. Problems with single elements are collected in a
// *ValidationError returned alongside the addons that did load.
func LoadAddons(dir string, reg *syntax.Registry, ns *function.Namespace, logger *zap.SugaredLogger) ([]*Addon, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading addon directory %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), AddonExt) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	var addons []*Addon
	ve := &ValidationError{}
	for _, f := range files {
		src, err := os.ReadFile(filepath.Join(dir, f))
		if err != nil {
			return addons, fmt.Errorf("reading addon %s: %w", f, err)
		}
		a, err := LoadAddon(f, string(src), reg, ns, logger)
		if ae, ok := err.(*ValidationError); ok {
			ve.merge(ae)
		} else if err != nil {
			return addons, err
		}
		if a != nil {
			addons = append(addons, a)
		}
	}
	if ve.empty() {
		return addons, nil
	}
	return addons, ve
}

// LoadAddon runs one addon and registers what it defines.
func LoadAddon(name, src string, reg *syntax.Registry, ns *function.Namespace, logger *zap.SugaredLogger) (*Addon, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if reg.Closed() {
		return nil, syntax.ErrRegistryClosed
	}

	// Create sandboxed VM.
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibs(L)
	sandbox(L)

	a := &Addon{Name: name, L: L, classes: reg.Classes(), logger: logger.With("addon", name)}
	coll := &collector{}
	registerAPI(L, a, coll)

	if err := L.DoString(src); err != nil {
		L.Close()
		return nil, fmt.Errorf("executing %s: %w", name, err)
	}

	// Compile, validate, register.
	ve := &ValidationError{}
	elems, fns := compile(a, coll, ns, ve)
	for _, el := range elems {
		if !validate(el, reg, ve) {
			continue
		}
		if _, err := reg.Register(el.info); err != nil {
			ve.Errors = append(ve.Errors, fmt.Sprintf("%s: %s", name, err))
			continue
		}
		a.Registered = append(a.Registered, el.info.Name)
	}
	for _, f := range fns {
		if err := ns.RegisterNative(f.Sig, f.Body); err != nil {
			ve.Errors = append(ve.Errors, fmt.Sprintf("%s: %s", name, err))
			continue
		}
		a.Registered = append(a.Registered, f.Sig.Name+"()")
	}
	a.logger.Infow("addon loaded", "registered", len(a.Registered), "errors", len(ve.Errors))
	for _, w := range ve.Warnings {
		a.logger.Warnw(w)
	}
	if len(ve.Errors) > 0 {
		return a, ve
	}
	return a, nil
}

// openSafeLibs opens only the safe subset of Lua standard libraries.
func openSafeLibs(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// sandbox removes dangerous globals and functions.
func sandbox(L *lua.LState) {
	dangerous := []string{
		"dofile", "loadfile", "load", "loadstring",
		"rawset", "rawget", "rawequal",
		"collectgarbage", "require", "module",
	}
	for _, name := range dangerous {
		L.SetGlobal(name, lua.LNil)
	}

	// Addons share the engine's random source.
	if tbl, ok := L.GetGlobal("math").(*lua.LTable); ok {
		tbl.RawSetString("randomseed", lua.LNil)
	}
}

// call runs fn in env with args converted to Lua and returns nret
// results converted back.
func (a *Addon) call(env *lang.Env, fn *lua.LFunction, nret int, args ...any) ([]any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.env = env
	defer func() { a.env = nil }()

	largs := make([]lua.LValue, len(args))
	for i, v := range args {
		largs[i] = a.toLua(v)
	}
	if err := a.L.CallByParam(lua.P{Fn: fn, NRet: nret, Protect: true}, largs...); err != nil {
		return nil, err
	}
	out := make([]any, nret)
	for i := nret - 1; i >= 0; i-- {
		out[i] = fromLua(a.L.Get(-1))
		a.L.Pop(1)
	}
	return out, nil
}
