package recipe

import (
	"fmt"
	"strconv"

	lua "github.com/yuin/gopher-lua"
)

// registerScenarioModule registers the `scenario` global table in a Lua state.
func registerScenarioModule(L *lua.LState, r *run) {
	mod := L.NewTable()

	mod.RawSetString("name", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(r.sc.Name()))
		return 1
	}))

	mod.RawSetString("script", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(r.sc.Script()))
		return 1
	}))

	mod.RawSetString("get", L.NewFunction(r.get))
	mod.RawSetString("set", L.NewFunction(r.set))
	mod.RawSetString("defaults", L.NewFunction(r.defaults))
	mod.RawSetString("select", L.NewFunction(r.selectScript))
	mod.RawSetString("arguments", L.NewFunction(r.arguments))

	mod.RawSetString("rocks", L.NewFunction(func(L *lua.LState) int {
		L.Push(goToLua(L, r.sc.Rocks()))
		return 1
	}))

	mod.RawSetString("qs", L.NewFunction(r.qs))
	mod.RawSetString("capture", L.NewFunction(r.capture))

	L.SetGlobal("scenario", mod)
}

// scenario.get(attr): current value, or nil if unset
func (r *run) get(L *lua.LState) int {
	attr := L.CheckString(1)
	v, ok := r.sc.Argument(attr)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	if f, ok := v.Float(); ok {
		L.Push(lua.LNumber(f))
		return 1
	}
	L.Push(lua.LString(v.Raw))
	return 1
}

// scenario.set(attr, value)
func (r *run) set(L *lua.LState) int {
	attr := L.CheckString(1)
	value := luaToString(L.CheckAny(2))
	if err := r.sc.Update(attr, value); err != nil {
		L.RaiseError("%v", err)
	}
	return 0
}

// scenario.defaults([overrides])
func (r *run) defaults(L *lua.LState) int {
	overrides := tableToStrings(L.OptTable(1, nil))
	if err := r.sc.DefaultArgs(overrides); err != nil {
		L.RaiseError("%v", err)
	}
	return 0
}

// scenario.select(script[, overrides])
func (r *run) selectScript(L *lua.LState) int {
	script := L.CheckString(1)
	overrides := tableToStrings(L.OptTable(2, nil))
	if r.src == nil {
		L.RaiseError("select %s: no plotting server configured", script)
		return 0
	}
	if err := r.sc.SelectScript(r.ctx, r.src, script, overrides); err != nil {
		L.RaiseError("%v", err)
	}
	return 0
}

// scenario.arguments(): table of name -> value
func (r *run) arguments(L *lua.LState) int {
	args := r.sc.Arguments()
	m := make(map[string]any, len(args))
	for k, v := range args {
		m[k] = v.Raw
	}
	L.Push(goToLua(L, m))
	return 1
}

// scenario.qs()
func (r *run) qs(L *lua.LState) int {
	q, err := r.sc.QueryString()
	if err != nil {
		L.RaiseError("%v", err)
		return 0
	}
	L.Push(lua.LString(q))
	return 1
}

// scenario.capture([label]): records and returns the current query string
func (r *run) capture(L *lua.LState) int {
	label := L.OptString(1, "")
	q, err := r.sc.QueryString()
	if err != nil {
		L.RaiseError("%v", err)
		return 0
	}
	r.mu.Lock()
	r.captures = append(r.captures, Capture{Label: label, Query: q})
	r.mu.Unlock()
	L.Push(lua.LString(q))
	return 1
}

func tableToStrings(t *lua.LTable) map[string]string {
	if t == nil {
		return nil
	}
	out := make(map[string]string)
	t.ForEach(func(k, v lua.LValue) {
		out[luaToString(k)] = luaToString(v)
	})
	return out
}

// luaToString converts a Lua scalar into argument text.
func luaToString(v lua.LValue) string {
	switch val := v.(type) {
	case lua.LString:
		return string(val)
	case lua.LNumber:
		return strconv.FormatFloat(float64(val), 'f', -1, 64)
	case lua.LBool:
		return strconv.FormatBool(bool(val))
	default:
		if v == lua.LNil {
			return ""
		}
		return v.String()
	}
}

// goToLua converts a Go value to a Lua value.
func goToLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case int:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case map[string]string:
		t := L.NewTable()
		for k, vv := range val {
			t.RawSetString(k, lua.LString(vv))
		}
		return t
	case map[string]any:
		t := L.NewTable()
		for k, vv := range val {
			t.RawSetString(k, goToLua(L, vv))
		}
		return t
	case []any:
		t := L.NewTable()
		for i, vv := range val {
			t.RawSetInt(i+1, goToLua(L, vv))
		}
		return t
	default:
		return lua.LString(fmt.Sprintf("%v", val))
	}
}
