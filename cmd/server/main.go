package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"scriptmud.dev/internal/config"
	"scriptmud.dev/internal/engine"
	"scriptmud.dev/internal/persistence/indexdb"
	persistlog "scriptmud.dev/internal/persistence/log"
	"scriptmud.dev/internal/persistence/snapshot"
	"scriptmud.dev/internal/script"
	"scriptmud.dev/internal/transport/ws"
	"scriptmud.dev/internal/world"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to server.yaml (optional)")
		addr       = flag.String("addr", "", "http listen address (overrides config)")
		dataDir    = flag.String("data", "", "runtime data directory (overrides config)")
		codeDir    = flag.String("code", "", "system package root (overrides config)")
		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if strings.TrimSpace(*addr) != "" {
		cfg.Addr = *addr
	}
	if strings.TrimSpace(*dataDir) != "" {
		cfg.DataDir = *dataDir
	}
	if strings.TrimSpace(*codeDir) != "" {
		cfg.CodeDir = *codeDir
	}

	snapshotDir := filepath.Join(cfg.DataDir, "snapshots")
	_ = os.MkdirAll(snapshotDir, 0o755)

	// World state: resume from a snapshot when one exists, else fresh.
	var st *world.State
	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = snapshot.Latest(snapshotDir)
	}
	if snapshotToLoad != "" {
		snap, err := snapshot.Read(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		st, err = world.ImportSnapshot(snap)
		if err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s game_time=%d objects=%d",
			filepath.Base(snapshotToLoad), st.CurrentTime(), st.ObjectCount())
	} else {
		st = world.NewState()
		logger.Printf("starting fresh world (entrance %s)", st.Entrance())
	}

	host, err := script.NewHost(cfg.CodeDir, st, logger)
	if err != nil {
		logger.Fatalf("script host: %v", err)
	}

	var idx *indexdb.SQLiteIndex
	if !cfg.DisableIndex {
		idx, err = indexdb.OpenSQLite(filepath.Join(cfg.DataDir, "index", "snapshots.sqlite"))
		if err != nil {
			logger.Fatalf("open snapshot index: %v", err)
		}
		defer idx.Close()
	}

	var audit engine.AuditSink
	if !cfg.DisableAudit {
		auditLog := persistlog.NewAuditLogger(cfg.DataDir)
		defer auditLog.Close()
		audit = auditLog
	}

	actor := engine.NewActor(engine.Config{
		AdvanceEvery:         cfg.AdvanceEvery(),
		SnapshotEverySeconds: cfg.SnapshotEverySeconds,
		SnapshotDir:          snapshotDir,
	}, st, host, nil, audit, recorderOrNil(idx), logger)

	wsSrv := ws.NewServer(actor, logger)
	actor.SetNotifier(wsSrv)

	ctx, cancel := signalContext()
	defer cancel()

	actorDone := make(chan struct{})
	go func() {
		defer close(actorDone)
		if err := actor.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("actor stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/ws", wsSrv.Handler())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	// The actor writes a final snapshot on its way out.
	cancel()
	<-actorDone
}

// recorderOrNil avoids handing the actor a typed-nil interface value.
func recorderOrNil(idx *indexdb.SQLiteIndex) engine.SnapshotRecorder {
	if idx == nil {
		return nil
	}
	return idx
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
