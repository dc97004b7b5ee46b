package script

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"scriptmud.dev/internal/world"
)

// ToLua converts a host value into its Lua representation. Tables and dicts
// both become Lua tables.
func ToLua(L *lua.LState, v world.Value) lua.LValue {
	switch v.Type {
	case world.TypeNil:
		return lua.LNil
	case world.TypeBool:
		return lua.LBool(v.Bool)
	case world.TypeInt:
		return lua.LNumber(v.Int)
	case world.TypeFloat:
		return lua.LNumber(v.Float)
	case world.TypeString:
		return lua.LString(v.Str)
	case world.TypeTable:
		t := L.NewTable()
		for _, p := range v.Table {
			k := ToLua(L, p.Key)
			if k == lua.LNil {
				continue
			}
			t.RawSet(k, ToLua(L, p.Val))
		}
		return t
	case world.TypeDict:
		t := L.NewTable()
		for k, el := range v.Dict {
			t.RawSetString(k, ToLua(L, el))
		}
		return t
	}
	return lua.LNil
}

// FromLua converts a Lua value into the closed host union. Functions,
// userdata, threads and channels do not cross the boundary.
func FromLua(lv lua.LValue) (world.Value, error) {
	switch t := lv.(type) {
	case *lua.LNilType:
		return world.Nil(), nil
	case lua.LBool:
		return world.Boolean(bool(t)), nil
	case lua.LNumber:
		f := float64(t)
		if world.IsIntegral(f) {
			return world.Integer(int64(f)), nil
		}
		return world.Number(f), nil
	case lua.LString:
		return world.Str(string(t)), nil
	case *lua.LTable:
		var pairs []world.Pair
		var convErr error
		key := lua.LValue(lua.LNil)
		for {
			var val lua.LValue
			key, val = t.Next(key)
			if key == lua.LNil {
				break
			}
			k, err := FromLua(key)
			if err != nil {
				convErr = err
				break
			}
			v, err := FromLua(val)
			if err != nil {
				convErr = err
				break
			}
			pairs = append(pairs, world.Pair{Key: k, Val: v})
		}
		if convErr != nil {
			return world.Nil(), convErr
		}
		return world.TableOf(pairs), nil
	}
	return world.Nil(), fmt.Errorf("cannot convert %s to a world value", lv.Type())
}
