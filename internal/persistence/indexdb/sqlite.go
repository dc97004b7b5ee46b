// Package indexdb maintains a small SQLite index of written snapshots so
// operators can query snapshot history without scanning the data directory.
package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"scriptmud.dev/internal/engine"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan engine.SnapshotInfo
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan engine.SnapshotInfo, 64),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	// NORMAL is a decent durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			game_time INTEGER PRIMARY KEY,
			path      TEXT NOT NULL,
			objects   INTEGER NOT NULL,
			users     INTEGER NOT NULL,
			saved_at  TEXT NOT NULL
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, st := range stmts {
		if _, err := db.Exec(st); err != nil {
			return err
		}
	}
	return nil
}

// RecordSnapshot queues a snapshot row for the writer goroutine. It never
// blocks the caller; when the queue is full the row is dropped, which is
// acceptable for a secondary index the next snapshot will refresh.
func (s *SQLiteIndex) RecordSnapshot(info engine.SnapshotInfo) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- info:
	default:
	}
	return nil
}

// Latest returns the most recently indexed snapshot, or ok=false when the
// index is empty.
func (s *SQLiteIndex) Latest() (engine.SnapshotInfo, bool, error) {
	var info engine.SnapshotInfo
	row := s.db.QueryRowContext(context.Background(),
		`SELECT game_time, path, objects, users, saved_at FROM snapshots ORDER BY game_time DESC LIMIT 1`)
	err := row.Scan(&info.GameTime, &info.Path, &info.Objects, &info.Users, &info.SavedAt)
	if err == sql.ErrNoRows {
		return info, false, nil
	}
	if err != nil {
		return info, false, err
	}
	return info, true, nil
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()
	stmt, err := s.db.PrepareContext(ctx,
		`INSERT OR REPLACE INTO snapshots(game_time,path,objects,users,saved_at) VALUES(?,?,?,?,?)`)
	if err != nil {
		// Drain so senders never observe a stuck queue.
		for range s.ch {
		}
		return
	}
	defer stmt.Close()

	for info := range s.ch {
		if _, err := stmt.ExecContext(ctx,
			int64(info.GameTime), info.Path, info.Objects, info.Users, info.SavedAt); err != nil {
			// Transient write failures (locked db etc.) are not fatal for an
			// index; back off briefly and keep draining.
			time.Sleep(50 * time.Millisecond)
		}
	}
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}
