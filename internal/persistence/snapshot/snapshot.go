package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
)

type Header struct {
	Version  int    `json:"version"`
	GameTime uint64 `json:"game_time"`
	SavedAt  string `json:"saved_at"`
}

// SnapshotV1 is the whole-graph persistence form of the world: object list,
// user index, live packages and game clock, written and restored as a single
// unit.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Entrance     int               `json:"entrance"`
	GameTime     uint64            `json:"game_time"`
	TimerSeq     uint64            `json:"timer_seq"`
	Objects      []ObjectV1        `json:"objects"`
	Users        map[string]int    `json:"users"`
	LivePackages map[string]string `json:"live_packages"`
}

type ObjectV1 struct {
	Parent *int               `json:"parent,omitempty"`
	Kind   string             `json:"kind"`
	Attrs  map[string]ValueV1 `json:"attrs"`
	State  map[string]ValueV1 `json:"state"`
	Timers map[string]TimerV1 `json:"timers,omitempty"`
}

type TimerV1 struct {
	TargetTime   uint64  `json:"target_time"`
	OriginalUser *int    `json:"original_user,omitempty"`
	MessageName  string  `json:"message_name"`
	Payload      ValueV1 `json:"payload"`
}

// ValueV1 mirrors the world's tagged-union Value in a gob-stable shape.
type ValueV1 struct {
	Type  uint8              `json:"type"`
	Bool  bool               `json:"bool,omitempty"`
	Int   int64              `json:"int,omitempty"`
	Float float64            `json:"float,omitempty"`
	Str   string             `json:"str,omitempty"`
	Table []PairV1           `json:"table,omitempty"`
	Dict  map[string]ValueV1 `json:"dict,omitempty"`
}

type PairV1 struct {
	Key ValueV1 `json:"key"`
	Val ValueV1 `json:"val"`
}

// Write stores a snapshot atomically: temp file in the same directory, then
// rename over the target. Any previous snapshot at path is kept as path+".bak".
func Write(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := writeFile(tmp, snap); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if _, err := os.Stat(path); err == nil {
		_ = copyFile(path, path+".bak")
	}
	return os.Rename(tmp, path)
}

func writeFile(path string, snap SnapshotV1) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func Read(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Skip the header line; the gob body carries the header too.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// Latest returns the newest snapshot file under dir, or "" when none exist.
func Latest(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n := e.Name()
		if strings.HasPrefix(n, "world-") && strings.HasSuffix(n, ".snap.zst") {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1])
}

// FileName builds the snapshot file name for a given game time. Zero padding
// keeps lexical order equal to game-time order for Latest.
func FileName(gameTime uint64) string {
	return fmt.Sprintf("world-%020d.snap.zst", gameTime)
}

func copyFile(src, dst string) error {
	b, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, b, 0o644)
}
