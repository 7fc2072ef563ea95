package loader

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/questscript/engine/state"
	"github.com/nathoo/questscript/types"
)

// valueType is the Lua type name of engine values passed to addons.
const valueType = "questscript.value"

// registerAPI registers all Lua constructors and helpers as globals.
func registerAPI(L *lua.LState, a *Addon, coll *collector) {
	registerValueType(L, a)
	registerConstructors(L, coll)
	registerWorldHelpers(L, a)
}

func registerConstructors(L *lua.LState, coll *collector) {
	element := func(cat types.Category) *lua.LFunction {
		return L.NewFunction(func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			coll.elements = append(coll.elements, rawElement{
				category: cat,
				table:    tbl,
				order:    coll.nextSourceOrder(),
			})
			return 0
		})
	}

	// Effect { name = "...", patterns = {...}, run = function(ctx, ...) end }
	L.SetGlobal("Effect", element(types.CategoryEffect))

	// Condition { patterns = {...}, check = function(ctx, ...) return bool end }
	L.SetGlobal("Condition", element(types.CategoryCondition))

	// Expression { patterns = {...}, returns = "type", single = true,
	//              get = function(ctx, ...) return value end }
	L.SetGlobal("Expression", element(types.CategoryExpression))

	// Function { name = "...", params = "a: number, b: text", returns = "number",
	//            run = function(a, b) return value end }
	L.SetGlobal("Function", L.NewFunction(func(L *lua.LState) int {
		tbl := L.CheckTable(1)
		coll.functions = append(coll.functions, rawFunction{table: tbl, order: coll.nextSourceOrder()})
		return 0
	}))
}

// running returns the environment of the callback in progress, raising
// a Lua error when called while the addon file itself runs.
func (a *Addon) running(L *lua.LState) bool {
	if a.env == nil {
		L.RaiseError("world access is only possible while an element runs")
		return false
	}
	return true
}

func registerWorldHelpers(L *lua.LState, a *Addon) {
	// broadcast("text")
	L.SetGlobal("broadcast", L.NewFunction(func(L *lua.LState) int {
		text := L.CheckString(1)
		if a.running(L) {
			a.env.World.Broadcast(text)
		}
		return 0
	}))

	// send(player, "text")
	L.SetGlobal("send", L.NewFunction(func(L *lua.LState) int {
		ud := L.CheckUserData(1)
		text := L.CheckString(2)
		e, ok := ud.Value.(*state.Entity)
		if !ok {
			L.ArgError(1, "entity expected")
			return 0
		}
		if a.running(L) {
			a.env.World.Send(e, text)
		}
		return 0
	}))

	// event("player") returns an event value or nil.
	L.SetGlobal("event", L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(1)
		if !a.running(L) {
			return 0
		}
		v, _ := a.env.Data(key)
		L.Push(a.toLua(v))
		return 1
	}))

	// players() returns every online player.
	L.SetGlobal("players", L.NewFunction(func(L *lua.LState) int {
		if !a.running(L) {
			return 0
		}
		ps := a.env.World.Players()
		vals := make([]any, len(ps))
		for i, p := range ps {
			vals[i] = p
		}
		L.Push(a.toLua(vals))
		return 1
	}))

	// var("name") reads a global variable; setvar("name", value) writes it.
	L.SetGlobal("var", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		if !a.running(L) {
			return 0
		}
		v, _ := a.env.World.Var(name)
		L.Push(a.toLua(v))
		return 1
	}))
	L.SetGlobal("setvar", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		if a.running(L) {
			a.env.World.SetVar(name, fromLua(L.Get(2)))
		}
		return 0
	}))
}

// registerValueType lets addons read the fields of entities and worlds
// and print any engine value.
func registerValueType(L *lua.LState, a *Addon) {
	mt := L.NewTypeMetatable(valueType)
	L.SetField(mt, "__index", L.NewFunction(func(L *lua.LState) int {
		ud := L.CheckUserData(1)
		key := L.CheckString(2)
		switch v := ud.Value.(type) {
		case *state.Entity:
			switch key {
			case "id":
				L.Push(lua.LString(v.ID))
			case "name":
				L.Push(lua.LString(v.String()))
			case "kind":
				L.Push(lua.LString(v.Kind))
			case "world":
				L.Push(lua.LString(v.World))
			case "player":
				L.Push(lua.LBool(v.IsPlayer()))
			default:
				L.Push(a.toLua(v.Props[key]))
			}
		case *state.World:
			if key == "name" {
				L.Push(lua.LString(v.Name))
			} else {
				L.Push(lua.LNil)
			}
		default:
			L.Push(lua.LNil)
		}
		return 1
	}))
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		ud := L.CheckUserData(1)
		L.Push(lua.LString(a.classes.ToString(ud.Value)))
		return 1
	}))
	L.SetField(mt, "__eq", L.NewFunction(func(L *lua.LState) int {
		x, y := L.CheckUserData(1), L.CheckUserData(2)
		L.Push(lua.LBool(x.Value == y.Value))
		return 1
	}))
}
