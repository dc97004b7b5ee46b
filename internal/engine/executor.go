package engine

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"scriptmud.dev/internal/script"
	"scriptmud.dev/internal/world"
)

// ExecContext is the explicit execution context for one in-flight handler
// call. The actor holds a single mutable slot; a query swaps it for the
// duration of the nested call and restores it afterwards, which is also what
// makes nested queries detectable.
type ExecContext struct {
	Self    world.Id
	Message world.Message
	InQuery bool
}

// Executor owns one interpreter per kind. The entry package is loaded on
// first use; evaluated modules are cached per interpreter so repeated
// require calls return the same value. A code reload discards executors
// wholesale via the actor's generation counter.
type Executor struct {
	kind       world.Kind
	generation int

	L       *lua.LState
	initErr error

	entryLoaded bool
	modules     map[string]lua.LValue
}

func newExecutor(a *Actor, kind world.Kind, generation int) *Executor {
	ex := &Executor{
		kind:       kind,
		generation: generation,
		modules:    map[string]lua.LValue{},
	}
	ex.L = a.host.NewSandbox()
	registerAPI(ex.L, a, ex)
	return ex
}

func (ex *Executor) Close() {
	if ex.L != nil {
		ex.L.Close()
	}
}

// RunMain invokes the kind's main(name, payload) entry point with msg as the
// execution context. The context is installed before the entry package loads
// so its top-level code runs under the same rules as main: in a query, a
// top-level mutation fails fast. A failed entry-package load is recorded and
// re-raised on every use until a reload rebuilds the executor.
func (ex *Executor) RunMain(a *Actor, msg world.Message, inQuery bool) (world.Value, error) {
	if ex.initErr != nil {
		return world.Nil(), ex.initErr
	}

	L := ex.L
	prev := a.ctx
	a.ctx = &ExecContext{Self: msg.Target, Message: msg, InQuery: inQuery}
	var prevSelf lua.LValue = lua.LNil
	wt, _ := L.GetGlobal(apiGlobal).(*lua.LTable)
	if wt != nil {
		prevSelf = wt.RawGetString("self")
		wt.RawSetString("self", lua.LString(msg.Target.String()))
	}
	// A same-kind query shares this interpreter; the caller's identity must
	// survive the nested call.
	defer func() {
		a.ctx = prev
		if wt != nil {
			wt.RawSetString("self", prevSelf)
		}
	}()

	if !ex.entryLoaded {
		if _, err := ex.loadModule(a, ex.kind); err != nil {
			ex.initErr = fmt.Errorf("loading entry package %s: %w", ex.kind, err)
			return world.Nil(), ex.initErr
		}
		ex.entryLoaded = true
	}

	fn, ok := L.GetGlobal("main").(*lua.LFunction)
	if !ok {
		return world.Nil(), fmt.Errorf("package %s does not define main", ex.kind)
	}
	L.Push(fn)
	L.Push(lua.LString(msg.Name))
	L.Push(script.ToLua(L, msg.Payload))
	if err := L.PCall(2, 1, nil); err != nil {
		return world.Nil(), err
	}
	ret := L.Get(-1)
	L.Pop(1)
	return script.FromLua(ret)
}

// loadModule resolves, compiles and evaluates a package, caching the result
// under its canonical name. The cache is idempotent under re-entrant loads:
// the first stored value wins.
func (ex *Executor) loadModule(a *Actor, kind world.Kind) (lua.LValue, error) {
	key := kind.String()
	if v, ok := ex.modules[key]; ok {
		return v, nil
	}
	src, err := a.host.Resolve(kind)
	if err != nil {
		return lua.LNil, err
	}
	L := ex.L
	fn, err := L.Load(strings.NewReader(src), "@"+key)
	if err != nil {
		return lua.LNil, fmt.Errorf("compiling package %s: %w", key, err)
	}
	L.Push(fn)
	if err := L.PCall(0, 1, nil); err != nil {
		return lua.LNil, fmt.Errorf("evaluating package %s: %w", key, err)
	}
	v := L.Get(-1)
	L.Pop(1)
	if prior, ok := ex.modules[key]; ok {
		return prior, nil
	}
	ex.modules[key] = v
	return v, nil
}
