package world

import "testing"

func TestSnapshot_RoundTripPreservesGraph(t *testing.T) {
	s := NewState()
	alice := s.GetOrCreateUser("alice")
	lamp := s.CreateObject(SystemKind("item"))
	if err := s.MoveObject(lamp, &alice); err != nil {
		t.Fatalf("move lamp: %v", err)
	}
	if err := s.SetAttr(lamp, "name", Str("lamp")); err != nil {
		t.Fatalf("SetAttr: %v", err)
	}
	if err := s.SetState(lamp, "lit", Boolean(true)); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	if err := s.SetState(alice, "inventory", TableOf([]Pair{
		{Key: Integer(1), Val: Str("lamp")},
	})); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	if err := s.SetLivePackageContent(UserKind("alice"), "function main() end"); err != nil {
		t.Fatalf("SetLivePackageContent: %v", err)
	}
	s.SetCurrentTime(42)
	user := alice
	if err := s.SetTimer(lamp, "flicker", Timer{
		TargetTime:   50,
		OriginalUser: &user,
		MessageName:  "flicker",
		Payload:      DictOf(map[string]Value{"times": Integer(3)}),
	}); err != nil {
		t.Fatalf("SetTimer: %v", err)
	}

	restored, err := ImportSnapshot(s.ExportSnapshot())
	if err != nil {
		t.Fatalf("ImportSnapshot: %v", err)
	}

	if restored.CurrentTime() != 42 {
		t.Fatalf("time = %d, want 42", restored.CurrentTime())
	}
	if restored.ObjectCount() != s.ObjectCount() {
		t.Fatalf("objects = %d, want %d", restored.ObjectCount(), s.ObjectCount())
	}
	if restored.Entrance() != s.Entrance() {
		t.Fatalf("entrance = %s, want %s", restored.Entrance(), s.Entrance())
	}
	if id := restored.GetOrCreateUser("alice"); id != alice {
		t.Fatalf("alice = %s after restore, want %s", id, alice)
	}
	p, err := restored.Parent(lamp)
	if err != nil {
		t.Fatalf("Parent: %v", err)
	}
	if p == nil || *p != alice {
		t.Fatalf("lamp parent = %v, want %s", p, alice)
	}
	if v, _ := restored.GetAttr(lamp, "name"); !v.Equal(Str("lamp")) {
		t.Fatalf("attr = %+v", v)
	}
	if v, _ := restored.GetState(lamp, "lit"); !v.Equal(Boolean(true)) {
		t.Fatalf("state = %+v", v)
	}
	if v, _ := restored.GetState(alice, "inventory"); !v.Equal(TableOf([]Pair{
		{Key: Integer(1), Val: Str("lamp")},
	})) {
		t.Fatalf("inventory = %+v", v)
	}
	if c, ok := restored.LivePackageContent(UserKind("alice")); !ok || c != "function main() end" {
		t.Fatalf("live package = %q, %v", c, ok)
	}

	// The pending timer survived with its payload.
	ready := restored.ExtractReadyTimers(60)
	if len(ready) != 1 {
		t.Fatalf("timers = %d, want 1", len(ready))
	}
	r := ready[0]
	if r.Owner != lamp || r.Timer.MessageName != "flicker" || r.Timer.TargetTime != 50 {
		t.Fatalf("timer = %+v", r)
	}
	if r.Timer.OriginalUser == nil || *r.Timer.OriginalUser != alice {
		t.Fatalf("timer user = %v, want %s", r.Timer.OriginalUser, alice)
	}
	if !r.Timer.Payload.Equal(DictOf(map[string]Value{"times": Integer(3)})) {
		t.Fatalf("timer payload = %+v", r.Timer.Payload)
	}
}

func TestImportSnapshot_RejectsBadReferences(t *testing.T) {
	s := NewState()
	snap := s.ExportSnapshot()
	snap.Header.Version = 99
	if _, err := ImportSnapshot(snap); err == nil {
		t.Fatalf("expected version error")
	}

	snap = s.ExportSnapshot()
	snap.Users["ghost"] = 42
	if _, err := ImportSnapshot(snap); err == nil {
		t.Fatalf("expected out-of-range user error")
	}

	snap = s.ExportSnapshot()
	snap.LivePackages["system.room"] = "x"
	if _, err := ImportSnapshot(snap); err == nil {
		t.Fatalf("expected non-live package error")
	}
}
