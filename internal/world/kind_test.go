package world

import "testing"

func TestParseKind_Forms(t *testing.T) {
	cases := []struct {
		in   string
		want Kind
	}{
		{"system.room", Kind{User: "system", Package: "room"}},
		{"alice/live.user", Kind{User: "alice", Repo: "live", Package: "user"}},
		{"bob/tools.wand", Kind{User: "bob", Repo: "tools", Package: "wand"}},
	}
	for _, c := range cases {
		got, err := ParseKind(c.in)
		if err != nil {
			t.Fatalf("ParseKind(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ParseKind(%q) = %+v, want %+v", c.in, got, c.want)
		}
		if got.String() != c.in {
			t.Fatalf("String() = %q, want %q", got.String(), c.in)
		}
	}
}

func TestParseKind_RejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "system", "system.", ".room", "a/b/c.d", "a.b.c", "a b.c"} {
		if _, err := ParseKind(in); err == nil {
			t.Fatalf("ParseKind(%q): expected error", in)
		}
	}
}

func TestKind_SystemAndLive(t *testing.T) {
	if !RoomKind().IsSystem() {
		t.Fatalf("system.room should be a system kind")
	}
	if RoomKind().IsLive() {
		t.Fatalf("system.room should not be live")
	}
	uk := UserKind("alice")
	if uk.String() != "alice/live.user" {
		t.Fatalf("UserKind = %q", uk.String())
	}
	if !uk.IsLive() || uk.IsSystem() {
		t.Fatalf("alice/live.user should be live and not system")
	}
	if got := uk.PackageRoot(); got != "alice/live" {
		t.Fatalf("PackageRoot = %q", got)
	}
}
