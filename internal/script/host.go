package script

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"scriptmud.dev/internal/world"
)

// LiveSource resolves live package references to their in-world source text.
// *world.State satisfies it.
type LiveSource interface {
	LivePackageContent(kind world.Kind) (string, bool)
}

// Host builds sandboxed interpreters and resolves package references to
// source text: system packages come from files under the code root, live
// packages from the world's live-package store.
type Host struct {
	root string
	live LiveSource
	log  *log.Logger
}

// NewHost canonicalizes the code root up front so later path checks compare
// against the real directory.
func NewHost(root string, live LiveSource, logger *log.Logger) (*Host, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("code root %s: %w", root, err)
	}
	return &Host{root: canonical, live: live, log: logger}, nil
}

// NewSandbox returns a fresh interpreter with a reduced capability set:
// base, table, string, math and coroutine libraries only. File, process and
// GC-control built-ins are removed, and load is replaced with a variant that
// only compiles from source text or a source-producing function.
func (h *Host) NewSandbox() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.LoadLibName, lua.OpenPackage}, // must come first
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
		{lua.CoroutineLibName, lua.OpenCoroutine},
	} {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}

	// The unrestricted loaders and anything reaching the OS go away.
	for _, name := range []string{"dofile", "loadfile", "loadstring", "collectgarbage", "package", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
	L.SetGlobal("load", L.NewFunction(loadFromSource))
	return L
}

// loadFromSource is the restricted replacement for load: the chunk may be a
// string or a function returning successive source fragments, never a file.
func loadFromSource(L *lua.LState) int {
	var text string
	switch src := L.CheckAny(1).(type) {
	case lua.LString:
		text = string(src)
	case *lua.LFunction:
		var sb strings.Builder
		for {
			L.Push(src)
			if err := L.PCall(0, 1, nil); err != nil {
				L.Push(lua.LNil)
				L.Push(lua.LString(err.Error()))
				return 2
			}
			piece := L.Get(-1)
			L.Pop(1)
			s, ok := piece.(lua.LString)
			if !ok || len(s) == 0 {
				break
			}
			sb.WriteString(string(s))
		}
		text = sb.String()
	default:
		L.RaiseError("load expects a string or a source-producing function")
		return 0
	}

	name := L.OptString(2, "=(load)")
	fn, err := L.Load(strings.NewReader(text), name)
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	if env, ok := L.Get(4).(*lua.LTable); ok {
		L.SetFEnv(fn, env)
	}
	L.Push(fn)
	return 1
}

// Resolve maps a package reference to its source text.
func (h *Host) Resolve(kind world.Kind) (string, error) {
	switch {
	case kind.IsSystem():
		return h.readSystemPackage(kind.Package)
	case kind.IsLive():
		content, ok := h.live.LivePackageContent(kind)
		if !ok {
			return "", fmt.Errorf("package %s not found", kind)
		}
		return content, nil
	default:
		return "", fmt.Errorf("package %s is neither a system nor a live package", kind)
	}
}

func (h *Host) readSystemPackage(name string) (string, error) {
	path := filepath.Join(h.root, name+".lua")
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", fmt.Errorf("loading package system.%s: %w", name, err)
	}
	if resolved != h.root && !strings.HasPrefix(resolved, h.root+string(filepath.Separator)) {
		h.log.Printf("refusing to read %s: outside code root %s", resolved, h.root)
		return "", fmt.Errorf("package system.%s resolves outside the code root", name)
	}
	b, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("loading package system.%s: %w", name, err)
	}
	return string(b), nil
}
