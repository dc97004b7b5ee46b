package script

import (
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	lua "github.com/yuin/gopher-lua"

	"scriptmud.dev/internal/world"
)

type liveMap map[world.Kind]string

func (m liveMap) LivePackageContent(kind world.Kind) (string, bool) {
	c, ok := m[kind]
	return c, ok
}

func testLogger(t *testing.T) *log.Logger {
	t.Helper()
	return log.New(os.Stderr, "[test] ", 0)
}

func newTestHost(t *testing.T, live liveMap) (*Host, string) {
	t.Helper()
	root := t.TempDir()
	h, err := NewHost(root, live, testLogger(t))
	if err != nil {
		t.Fatalf("NewHost: %v", err)
	}
	return h, root
}

func TestNewSandbox_RemovesFileAndGCBuiltins(t *testing.T) {
	h, _ := newTestHost(t, nil)
	L := h.NewSandbox()
	defer L.Close()

	for _, name := range []string{"dofile", "loadfile", "loadstring", "collectgarbage", "package", "require"} {
		if got := L.GetGlobal(name); got != lua.LNil {
			t.Fatalf("global %s should be removed, got %v", name, got)
		}
	}
	// The libraries we do open stay available.
	for _, name := range []string{"pairs", "table", "string", "math", "coroutine", "load"} {
		if got := L.GetGlobal(name); got == lua.LNil {
			t.Fatalf("global %s should be available", name)
		}
	}
}

func TestSandboxLoad_CompilesFromString(t *testing.T) {
	h, _ := newTestHost(t, nil)
	L := h.NewSandbox()
	defer L.Close()

	if err := L.DoString(`f = load("return 1 + 2")`); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := L.DoString(`result = f()`); err != nil {
		t.Fatalf("call: %v", err)
	}
	if got := L.GetGlobal("result"); got != lua.LNumber(3) {
		t.Fatalf("result = %v, want 3", got)
	}
}

func TestSandboxLoad_CompilesFromSourceFunction(t *testing.T) {
	h, _ := newTestHost(t, nil)
	L := h.NewSandbox()
	defer L.Close()

	src := `
		local pieces = {"return ", "40", " + 2"}
		local i = 0
		local f = load(function()
			i = i + 1
			return pieces[i]
		end)
		result = f()
	`
	if err := L.DoString(src); err != nil {
		t.Fatalf("load from function: %v", err)
	}
	if got := L.GetGlobal("result"); got != lua.LNumber(42) {
		t.Fatalf("result = %v, want 42", got)
	}
}

func TestSandboxLoad_RejectsOtherSources(t *testing.T) {
	h, _ := newTestHost(t, nil)
	L := h.NewSandbox()
	defer L.Close()

	if err := L.DoString(`load(42)`); err == nil {
		t.Fatalf("load(42) should fail")
	}
}

func TestResolve_SystemPackageFromDisk(t *testing.T) {
	h, root := newTestHost(t, nil)
	src := "function main(name, payload) return nil end\n"
	if err := os.WriteFile(filepath.Join(root, "room.lua"), []byte(src), 0o644); err != nil {
		t.Fatalf("write room.lua: %v", err)
	}
	got, err := h.Resolve(world.RoomKind())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != src {
		t.Fatalf("content = %q", got)
	}
}

func TestResolve_MissingPackages(t *testing.T) {
	h, _ := newTestHost(t, liveMap{})
	if _, err := h.Resolve(world.SystemKind("nope")); err == nil {
		t.Fatalf("missing system package should fail")
	}
	_, err := h.Resolve(world.UserKind("alice"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("missing live package error = %v", err)
	}
	if _, err := h.Resolve(world.Kind{User: "bob", Repo: "tools", Package: "wand"}); err == nil {
		t.Fatalf("non-system non-live package should fail")
	}
}

func TestResolve_LivePackageFromStore(t *testing.T) {
	kind := world.UserKind("alice")
	h, _ := newTestHost(t, liveMap{kind: "function main() end"})
	got, err := h.Resolve(kind)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "function main() end" {
		t.Fatalf("content = %q", got)
	}
}

func TestResolve_RefusesSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks")
	}
	h, root := newTestHost(t, nil)

	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.lua")
	if err := os.WriteFile(secret, []byte("return 1"), 0o644); err != nil {
		t.Fatalf("write secret: %v", err)
	}
	if err := os.Symlink(secret, filepath.Join(root, "escape.lua")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	_, err := h.Resolve(world.SystemKind("escape"))
	if err == nil || !strings.Contains(err.Error(), "outside the code root") {
		t.Fatalf("symlink escape should be refused, got %v", err)
	}
}
