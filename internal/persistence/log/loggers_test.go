package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"scriptmud.dev/internal/engine"
)

func TestAuditLogger_WritesCompressedJSONL(t *testing.T) {
	dir := t.TempDir()
	l := NewAuditLogger(dir)

	entries := []engine.AuditEntry{
		{GameTime: 1, Target: "#1", Sender: "#1", User: "#1", Name: "command"},
		{GameTime: 2, Target: "#0", Sender: "#1", Name: "say", Error: "boom"},
	}
	for _, e := range entries {
		if err := l.WriteAudit(e); err != nil {
			t.Fatalf("WriteAudit: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "audit", "messages-*.jsonl.zst"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("audit files = %v, %v", matches, err)
	}
	f, err := os.Open(matches[0])
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()

	var got []engine.AuditEntry
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var e engine.AuditEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("unmarshal %q: %v", sc.Text(), err)
		}
		got = append(got, e)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 2 || got[0] != entries[0] || got[1] != entries[1] {
		t.Fatalf("entries = %+v, want %+v", got, entries)
	}
}
