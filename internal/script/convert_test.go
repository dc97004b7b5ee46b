package script

import (
	"testing"

	lua "github.com/yuin/gopher-lua"

	"scriptmud.dev/internal/world"
)

func TestFromLua_Scalars(t *testing.T) {
	cases := []struct {
		in   lua.LValue
		want world.Value
	}{
		{lua.LNil, world.Nil()},
		{lua.LTrue, world.Boolean(true)},
		{lua.LNumber(7), world.Integer(7)},
		{lua.LNumber(2.5), world.Number(2.5)},
		{lua.LString("hi"), world.Str("hi")},
	}
	for _, c := range cases {
		got, err := FromLua(c.in)
		if err != nil {
			t.Fatalf("FromLua(%v): %v", c.in, err)
		}
		if !got.Equal(c.want) {
			t.Fatalf("FromLua(%v) = %+v, want %+v", c.in, got, c.want)
		}
	}
}

func TestFromLua_RejectsFunctions(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	fn := L.NewFunction(func(L *lua.LState) int { return 0 })
	if _, err := FromLua(fn); err == nil {
		t.Fatalf("functions should not cross the boundary")
	}
}

func TestConvert_TableRoundTrip(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	want := world.TableOf([]world.Pair{
		{Key: world.Integer(1), Val: world.Str("sword")},
		{Key: world.Integer(2), Val: world.Str("shield")},
	})
	got, err := FromLua(ToLua(L, want))
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if !got.Equal(want) {
		t.Fatalf("round trip = %+v, want %+v", got, want)
	}
}

func TestConvert_DictBecomesTable(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	in := world.DictOf(map[string]world.Value{"name": world.Str("lamp")})
	lv := ToLua(L, in)
	tbl, ok := lv.(*lua.LTable)
	if !ok {
		t.Fatalf("dict converted to %T", lv)
	}
	if s := tbl.RawGetString("name"); s != lua.LString("lamp") {
		t.Fatalf("name = %v", s)
	}

	got, err := FromLua(lv)
	if err != nil {
		t.Fatalf("FromLua: %v", err)
	}
	// Lua tables come back as ordered pairs, not dicts.
	if got.Type != world.TypeTable {
		t.Fatalf("type = %d, want table", got.Type)
	}
	if !got.Get("name").Equal(world.Str("lamp")) {
		t.Fatalf("name = %+v", got.Get("name"))
	}
}
