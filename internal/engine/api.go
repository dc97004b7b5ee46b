package engine

import (
	"strings"

	lua "github.com/yuin/gopher-lua"

	"scriptmud.dev/internal/protocol"
	"scriptmud.dev/internal/script"
	"scriptmud.dev/internal/world"
)

// apiGlobal is the name of the table holding the scripting API inside every
// sandbox.
const apiGlobal = "world"

func (a *Actor) requireContext(L *lua.LState) *ExecContext {
	if a.ctx == nil {
		L.RaiseError("no message is being executed")
	}
	return a.ctx
}

// requireMutable guards every world-mutating and outward-facing API call:
// inside a query they fail fast instead of producing side effects.
func (a *Actor) requireMutable(L *lua.LState) *ExecContext {
	ctx := a.requireContext(L)
	if ctx.InQuery {
		L.RaiseError("cannot mutate the world during a query")
	}
	return ctx
}

func checkId(L *lua.LState, n int) world.Id {
	id, err := world.ParseId(L.CheckString(n))
	if err != nil {
		L.ArgError(n, err.Error())
	}
	return id
}

func checkKind(L *lua.LState, n int) world.Kind {
	kind, err := world.ParseKind(L.CheckString(n))
	if err != nil {
		L.ArgError(n, err.Error())
	}
	return kind
}

func optValue(L *lua.LState, n int) world.Value {
	if L.GetTop() < n {
		return world.Nil()
	}
	v, err := script.FromLua(L.Get(n))
	if err != nil {
		L.ArgError(n, err.Error())
	}
	return v
}

func raise(L *lua.LState, err error) {
	if err != nil {
		L.RaiseError("%s", err.Error())
	}
}

func pushIdList(L *lua.LState, ids []world.Id) int {
	t := L.NewTable()
	for _, id := range ids {
		t.Append(lua.LString(id.String()))
	}
	L.Push(t)
	return 1
}

// registerAPI installs the scripting surface into a fresh sandbox. The API
// closures reach the actor directly; the actor's single context slot tells
// them which object is running and whether the turn is a query.
func registerAPI(L *lua.LState, a *Actor, ex *Executor) {
	t := L.NewTable()
	reg := func(name string, fn lua.LGFunction) {
		t.RawSetString(name, L.NewFunction(fn))
	}

	reg("send", func(L *lua.LState) int {
		ctx := a.requireMutable(L)
		target := checkId(L, 1)
		name := L.CheckString(2)
		a.enqueue(world.Message{
			Target:          target,
			ImmediateSender: ctx.Self,
			OriginalUser:    ctx.Message.OriginalUser,
			Name:            name,
			Payload:         optValue(L, 3),
		})
		return 0
	})

	reg("query", func(L *lua.LState) int {
		ctx := a.requireContext(L)
		if ctx.InQuery {
			L.RaiseError("cannot start a query inside a query")
		}
		target := checkId(L, 1)
		name := L.CheckString(2)
		val, err := a.executeQuery(world.Message{
			Target:          target,
			ImmediateSender: ctx.Self,
			OriginalUser:    ctx.Message.OriginalUser,
			Name:            name,
			Payload:         optValue(L, 3),
		})
		if err != nil {
			L.RaiseError("query %q on %s failed: %s", name, target, err.Error())
		}
		L.Push(script.ToLua(L, val))
		return 1
	})

	reg("send_user_tell", func(L *lua.LState) int {
		ctx := a.requireMutable(L)
		switch v := L.CheckAny(1).(type) {
		case lua.LString:
			a.notify(ctx.Self, protocol.Tell(string(v)))
		case *lua.LTable:
			if html, ok := v.RawGetString("html").(lua.LString); ok {
				a.notify(ctx.Self, protocol.TellHTML(string(html)))
			} else if text, ok := v.RawGetString("text").(lua.LString); ok {
				a.notify(ctx.Self, protocol.Tell(string(text)))
			} else {
				L.ArgError(1, "expected a text or html field")
			}
		default:
			L.ArgError(1, "expected a string or a table")
		}
		return 0
	})

	reg("send_user_backlog", func(L *lua.LState) int {
		ctx := a.requireMutable(L)
		tbl := L.CheckTable(1)
		var history []string
		for i := 1; ; i++ {
			v := tbl.RawGetInt(i)
			if v == lua.LNil {
				break
			}
			s, ok := v.(lua.LString)
			if !ok {
				L.ArgError(1, "backlog entries must be strings")
			}
			history = append(history, string(s))
		}
		a.notify(ctx.Self, protocol.Backlog(history))
		return 0
	})

	reg("send_user_edit_file", func(L *lua.LState) int {
		ctx := a.requireMutable(L)
		a.notify(ctx.Self, protocol.EditFile(L.CheckString(1), L.CheckString(2)))
		return 0
	})

	reg("get_children", func(L *lua.LState) int {
		a.requireContext(L)
		return pushIdList(L, a.st.Children(checkId(L, 1)))
	})

	reg("get_parent", func(L *lua.LState) int {
		a.requireContext(L)
		p, err := a.st.Parent(checkId(L, 1))
		raise(L, err)
		if p == nil {
			L.Push(lua.LNil)
		} else {
			L.Push(lua.LString(p.String()))
		}
		return 1
	})

	reg("get_username", func(L *lua.LState) int {
		a.requireContext(L)
		if name, ok := a.st.Username(checkId(L, 1)); ok {
			L.Push(lua.LString(name))
		} else {
			L.Push(lua.LNil)
		}
		return 1
	})

	reg("get_kind", func(L *lua.LState) int {
		a.requireContext(L)
		kind, err := a.st.KindOf(checkId(L, 1))
		raise(L, err)
		L.Push(lua.LString(kind.String()))
		return 1
	})

	reg("get_state", func(L *lua.LState) int {
		ctx := a.requireContext(L)
		id := checkId(L, 1)
		if id != ctx.Self {
			L.RaiseError("can only get your own state")
		}
		v, err := a.st.GetState(id, L.CheckString(2))
		raise(L, err)
		L.Push(script.ToLua(L, v))
		return 1
	})

	reg("set_state", func(L *lua.LState) int {
		ctx := a.requireMutable(L)
		id := checkId(L, 1)
		if id != ctx.Self {
			L.RaiseError("can only set your own state")
		}
		raise(L, a.st.SetState(id, L.CheckString(2), optValue(L, 3)))
		return 0
	})

	reg("get_attr", func(L *lua.LState) int {
		a.requireContext(L)
		v, err := a.st.GetAttr(checkId(L, 1), L.CheckString(2))
		raise(L, err)
		L.Push(script.ToLua(L, v))
		return 1
	})

	reg("set_attr", func(L *lua.LState) int {
		ctx := a.requireMutable(L)
		id := checkId(L, 1)
		if id != ctx.Self {
			L.RaiseError("can only set your own attrs")
		}
		raise(L, a.st.SetAttr(id, L.CheckString(2), optValue(L, 3)))
		return 0
	})

	reg("list_attrs", func(L *lua.LState) int {
		a.requireContext(L)
		names, err := a.st.ListAttrs(checkId(L, 1))
		raise(L, err)
		t := L.NewTable()
		for _, n := range names {
			t.Append(lua.LString(n))
		}
		L.Push(t)
		return 1
	})

	reg("get_all_users", func(L *lua.LState) int {
		a.requireContext(L)
		t := L.NewTable()
		for name, id := range a.st.AllUsers() {
			t.RawSetString(name, lua.LString(id.String()))
		}
		L.Push(t)
		return 1
	})

	reg("get_package_content", func(L *lua.LState) int {
		a.requireContext(L)
		kind := checkKind(L, 1)
		if kind.IsLive() {
			if content, ok := a.st.LivePackageContent(kind); ok {
				L.Push(lua.LString(content))
			} else {
				L.Push(lua.LNil)
			}
			return 1
		}
		src, err := a.host.Resolve(kind)
		raise(L, err)
		L.Push(lua.LString(src))
		return 1
	})

	reg("save_package_content", func(L *lua.LState) int {
		ctx := a.requireMutable(L)
		kind := checkKind(L, 1)
		content := L.CheckString(2)
		if !kind.IsLive() {
			L.RaiseError("can only save live packages")
		}
		username, ok := a.st.Username(ctx.Self)
		if !ok || username != kind.User {
			L.RaiseError("can only save packages owned by your user")
		}
		raise(L, a.st.SetLivePackageContent(kind, content))
		a.reloadRequested = true
		return 0
	})

	reg("create_object", func(L *lua.LState) int {
		ctx := a.requireMutable(L)
		var parent *world.Id
		if L.Get(1) != lua.LNil {
			p := checkId(L, 1)
			if _, err := a.st.KindOf(p); err != nil {
				raise(L, err)
			}
			parent = &p
		}
		kind := checkKind(L, 2)
		payload := optValue(L, 3)

		id := a.st.CreateObject(kind)
		if parent != nil {
			// A brand-new leaf cannot form a cycle.
			raise(L, a.st.MoveObject(id, parent))
		}
		a.enqueue(world.Message{
			Target:          id,
			ImmediateSender: ctx.Self,
			OriginalUser:    ctx.Message.OriginalUser,
			Name:            "created",
			Payload:         payload,
		})
		L.Push(lua.LString(id.String()))
		return 1
	})

	reg("move_object", func(L *lua.LState) int {
		ctx := a.requireMutable(L)
		child := checkId(L, 1)
		var newParent *world.Id
		if L.Get(2) != lua.LNil {
			p := checkId(L, 2)
			newParent = &p
		}

		if child != ctx.Self {
			callerRoom, err := a.st.Topmost(ctx.Self)
			raise(L, err)
			childRoom, err := a.st.Topmost(child)
			raise(L, err)
			if callerRoom != childRoom {
				L.RaiseError("can only move yourself or objects in your room")
			}
		}

		raise(L, a.st.MoveObject(child, newParent))

		parentVal := world.Nil()
		if newParent != nil {
			parentVal = world.Str(newParent.String())
		}
		a.enqueue(world.Message{
			Target:          child,
			ImmediateSender: ctx.Self,
			OriginalUser:    ctx.Message.OriginalUser,
			Name:            "parent_changed",
			Payload:         world.DictOf(map[string]world.Value{"new_parent": parentVal}),
		})
		if newParent != nil {
			a.enqueue(world.Message{
				Target:          *newParent,
				ImmediateSender: ctx.Self,
				OriginalUser:    ctx.Message.OriginalUser,
				Name:            "child_added",
				Payload:         world.DictOf(map[string]world.Value{"child": world.Str(child.String())}),
			})
		}
		return 0
	})

	reg("set_delay", func(L *lua.LState) int {
		ctx := a.requireMutable(L)
		var name string
		if s, ok := L.Get(1).(lua.LString); ok {
			name = string(s)
		} else {
			name = a.st.NextTimerName()
		}
		seconds := int64(L.CheckNumber(2))
		if seconds < 1 {
			L.RaiseError("delay must be at least one second")
		}
		raise(L, a.st.SetTimer(ctx.Self, name, world.Timer{
			TargetTime:   a.st.CurrentTime() + world.GameTime(seconds),
			OriginalUser: ctx.Message.OriginalUser,
			MessageName:  L.CheckString(3),
			Payload:      optValue(L, 4),
		}))
		L.Push(lua.LString(name))
		return 1
	})

	reg("clear_delay", func(L *lua.LState) int {
		ctx := a.requireMutable(L)
		raise(L, a.st.ClearTimer(ctx.Self, L.CheckString(1)))
		return 0
	})

	L.SetGlobal(apiGlobal, t)

	// print always server-logs and additionally reaches the user behind the
	// current causal chain.
	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		top := L.GetTop()
		parts := make([]string, 0, top)
		for i := 1; i <= top; i++ {
			parts = append(parts, L.Get(i).String())
		}
		line := strings.Join(parts, "\t")
		a.log.Printf("[%s] %s", ex.kind, line)
		if a.ctx != nil && a.ctx.Message.OriginalUser != nil {
			a.notify(*a.ctx.Message.OriginalUser, protocol.Log("debug", line))
		}
		return 0
	}))

	L.SetGlobal("require", L.NewFunction(func(L *lua.LState) int {
		kind := checkKind(L, 1)
		v, err := ex.loadModule(a, kind)
		raise(L, err)
		L.Push(v)
		return 1
	}))
}
