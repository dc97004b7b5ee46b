package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"time"

	"scriptmud.dev/internal/persistence/snapshot"
	"scriptmud.dev/internal/protocol"
	"scriptmud.dev/internal/script"
	"scriptmud.dev/internal/world"
)

// ControlMessage is the actor's second mailbox kind, for out-of-band
// operations.
type ControlMessage int

const (
	// ReloadCode drops every cached executor; the next message to any kind
	// pays the one-time reload cost.
	ReloadCode ControlMessage = iota
)

// ClientNotifier delivers a client-directed event to whatever connections
// are attached to an object id. Implementations log and drop when none are.
type ClientNotifier interface {
	Notify(target world.Id, event any)
}

// JoinRequest asks the actor to resolve a username to its user object
// between turns. Resp receives exactly one response.
type JoinRequest struct {
	Username string
	Resp     chan JoinResponse
}

type JoinResponse struct {
	UserID world.Id
}

// SaveFileRequest asks the actor to write a user's live package between
// turns. It is handled by the actor itself, not dispatched to a script: a
// fresh user's first package must be installable before any of their code
// exists.
type SaveFileRequest struct {
	UserID  world.Id
	Name    string
	Content string
}

// AuditEntry is one line of the message audit log.
type AuditEntry struct {
	GameTime uint64 `json:"game_time"`
	Target   string `json:"target"`
	Sender   string `json:"sender"`
	User     string `json:"user,omitempty"`
	Name     string `json:"name"`
	Error    string `json:"error,omitempty"`
}

// AuditSink records dispatched messages; nil disables auditing.
type AuditSink interface {
	WriteAudit(e AuditEntry) error
}

// SnapshotInfo describes a snapshot that was just written.
type SnapshotInfo struct {
	Path     string
	GameTime uint64
	Objects  int
	Users    int
	SavedAt  string
}

// SnapshotRecorder indexes written snapshots; nil disables indexing.
type SnapshotRecorder interface {
	RecordSnapshot(info SnapshotInfo) error
}

type Config struct {
	// AdvanceEvery is the wall-clock interval at which game time catches up
	// and due timers are redelivered.
	AdvanceEvery time.Duration
	// SnapshotEverySeconds is the in-world period between periodic
	// snapshots; 0 disables them.
	SnapshotEverySeconds uint64
	// SnapshotDir receives snapshot files.
	SnapshotDir string
}

func (c *Config) applyDefaults() {
	if c.AdvanceEvery <= 0 {
		c.AdvanceEvery = 100 * time.Millisecond
	}
}

// Actor is the single serialized dispatcher. It is the sole owner of mutable
// world state and all executors: every handler runs synchronously on the
// actor goroutine, so a turn's mutations are immediately visible to the next
// turn and no interleaving can occur.
type Actor struct {
	cfg  Config
	st   *world.State
	host *script.Host
	log  *log.Logger

	executors  map[world.Kind]*Executor
	generation int

	inbox    chan world.Message
	control  chan ControlMessage
	join     chan JoinRequest
	saveFile chan SaveFileRequest
	saveReq  chan chan error

	// queue is the logical mailbox: drained external messages plus
	// script-generated sends appended at the end of the sending turn.
	queue []world.Message

	notifier ClientNotifier
	audit    AuditSink
	index    SnapshotRecorder

	startGameTime world.GameTime
	startWall     time.Time
	lastSnapshot  world.GameTime

	reloadRequested bool

	// ctx is the single mutable execution-context slot for the in-flight
	// turn; see ExecContext.
	ctx *ExecContext
}

func NewActor(cfg Config, st *world.State, host *script.Host, notifier ClientNotifier, audit AuditSink, index SnapshotRecorder, logger *log.Logger) *Actor {
	cfg.applyDefaults()
	return &Actor{
		cfg:       cfg,
		st:        st,
		host:      host,
		log:       logger,
		executors: map[world.Kind]*Executor{},
		inbox:     make(chan world.Message, 256),
		control:   make(chan ControlMessage, 16),
		join:      make(chan JoinRequest, 16),
		saveFile:  make(chan SaveFileRequest, 16),
		saveReq:   make(chan chan error, 1),
		notifier:  notifier,
		audit:     audit,
		index:     index,
	}
}

// SetNotifier attaches the client event sink. Must be called before Run;
// the transport needs the actor first, so construction happens in two steps.
func (a *Actor) SetNotifier(n ClientNotifier) { a.notifier = n }

// Inbox is the channel external producers (transport) submit messages on.
func (a *Actor) Inbox() chan<- world.Message { return a.inbox }

// Control accepts out-of-band control messages.
func (a *Actor) Control() chan<- ControlMessage { return a.control }

// Join accepts login requests from the transport.
func (a *Actor) Join() chan<- JoinRequest { return a.join }

// SaveFiles accepts live-package writes from the transport.
func (a *Actor) SaveFiles() chan<- SaveFileRequest { return a.saveFile }

// RequestSave asks the actor to write a snapshot between turns and waits
// for the result.
func (a *Actor) RequestSave() error {
	resp := make(chan error, 1)
	a.saveReq <- resp
	return <-resp
}

// Run owns the mailbox until ctx is canceled. Messages are processed
// strictly in arrival order; a handler's sends append to the end of the
// same mailbox, making cascades breadth-first.
func (a *Actor) Run(ctx context.Context) error {
	a.startGameTime = a.st.CurrentTime()
	a.startWall = time.Now()
	a.lastSnapshot = a.startGameTime

	ticker := time.NewTicker(a.cfg.AdvanceEvery)
	defer ticker.Stop()

	for {
		if len(a.queue) == 0 {
			select {
			case <-ctx.Done():
				return a.shutdown(ctx)
			case m := <-a.inbox:
				a.queue = append(a.queue, m)
			case cm := <-a.control:
				a.handleControl(cm)
			case jr := <-a.join:
				a.handleJoin(jr)
			case sf := <-a.saveFile:
				a.handleSaveFile(sf)
			case resp := <-a.saveReq:
				resp <- a.writeSnapshot()
			case <-ticker.C:
				a.advanceTime()
			}
			continue
		}

		m := a.queue[0]
		a.queue = a.queue[1:]
		a.dispatch(m)

		// Service externally arrived work between turns without letting a
		// long cascade starve it.
		select {
		case <-ctx.Done():
			return a.shutdown(ctx)
		case ext := <-a.inbox:
			a.queue = append(a.queue, ext)
		case cm := <-a.control:
			a.handleControl(cm)
		case jr := <-a.join:
			a.handleJoin(jr)
		case sf := <-a.saveFile:
			a.handleSaveFile(sf)
		case resp := <-a.saveReq:
			resp <- a.writeSnapshot()
		case <-ticker.C:
			a.advanceTime()
		default:
		}
	}
}

// shutdown writes a final snapshot so a restart resumes where we stopped.
func (a *Actor) shutdown(ctx context.Context) error {
	if err := a.writeSnapshot(); err != nil {
		a.log.Printf("shutdown snapshot failed: %v", err)
	}
	for _, ex := range a.executors {
		ex.Close()
	}
	return ctx.Err()
}

func (a *Actor) handleControl(cm ControlMessage) {
	switch cm {
	case ReloadCode:
		a.reloadExecutors()
	}
}

func (a *Actor) handleJoin(jr JoinRequest) {
	id := a.st.GetOrCreateUser(jr.Username)
	jr.Resp <- JoinResponse{UserID: id}
}

func (a *Actor) handleSaveFile(req SaveFileRequest) {
	if err := a.writeLivePackage(req); err != nil {
		a.log.Printf("save_file %q from %s failed: %v", req.Name, req.UserID, err)
		a.notify(req.UserID, protocol.Log("error", err.Error()))
		return
	}
	a.reloadExecutors()
	a.notify(req.UserID, protocol.Log("info", fmt.Sprintf("saved %s", req.Name)))
}

func (a *Actor) writeLivePackage(req SaveFileRequest) error {
	kind, err := world.ParseKind(req.Name)
	if err != nil {
		return err
	}
	if !kind.IsLive() {
		return errors.New("can only save live packages")
	}
	username, ok := a.st.Username(req.UserID)
	if !ok || username != kind.User {
		return errors.New("can only save packages owned by your user")
	}
	return a.st.SetLivePackageContent(kind, req.Content)
}

func (a *Actor) reloadExecutors() {
	a.log.Printf("clearing executor cache for code reload")
	for _, ex := range a.executors {
		ex.Close()
	}
	a.generation++
	a.executors = map[world.Kind]*Executor{}
	a.reloadRequested = false
}

// executor returns the cached executor for kind, discarding entries from a
// previous generation.
func (a *Actor) executor(kind world.Kind) *Executor {
	if ex, ok := a.executors[kind]; ok && ex.generation == a.generation {
		return ex
	}
	ex := newExecutor(a, kind, a.generation)
	a.executors[kind] = ex
	return ex
}

// dispatch runs one complete turn for msg. A failing handler never halts
// dispatch of subsequent messages.
func (a *Actor) dispatch(msg world.Message) {
	kind, err := a.st.KindOf(msg.Target)
	if err == nil {
		_, err = a.executor(kind).RunMain(a, msg, false)
	}
	if err != nil {
		a.reportError(msg, err)
	}
	a.writeAudit(msg, err)
	if a.reloadRequested {
		a.reloadExecutors()
	}
}

// executeQuery runs a synchronous, mutation-forbidden nested call and
// returns its result value. The caller's context is restored by RunMain.
func (a *Actor) executeQuery(msg world.Message) (world.Value, error) {
	kind, err := a.st.KindOf(msg.Target)
	if err != nil {
		return world.Nil(), err
	}
	return a.executor(kind).RunMain(a, msg, true)
}

// enqueue appends a script-generated message to the end of the mailbox.
func (a *Actor) enqueue(msg world.Message) {
	a.queue = append(a.queue, msg)
}

func (a *Actor) reportError(msg world.Message, err error) {
	a.log.Printf("message %q to %s failed: %v", msg.Name, msg.Target, err)
	if msg.OriginalUser != nil {
		a.notify(*msg.OriginalUser, protocol.Log("error", err.Error()))
	}
}

func (a *Actor) notify(target world.Id, event any) {
	if a.notifier != nil {
		a.notifier.Notify(target, event)
	}
}

func (a *Actor) writeAudit(msg world.Message, dispatchErr error) {
	if a.audit == nil {
		return
	}
	e := AuditEntry{
		GameTime: uint64(a.st.CurrentTime()),
		Target:   msg.Target.String(),
		Sender:   msg.ImmediateSender.String(),
		Name:     msg.Name,
	}
	if msg.OriginalUser != nil {
		e.User = msg.OriginalUser.String()
	}
	if dispatchErr != nil {
		e.Error = dispatchErr.Error()
	}
	if err := a.audit.WriteAudit(e); err != nil {
		a.log.Printf("audit write failed: %v", err)
	}
}

// advanceTime derives game time from wall time, redelivers due timers as
// synthetic messages and triggers periodic snapshots. Deriving from the
// persisted start time keeps scheduled delivery replayable from a snapshot.
func (a *Actor) advanceTime() {
	now := a.startGameTime + world.GameTime(time.Since(a.startWall)/time.Second)
	if now <= a.st.CurrentTime() {
		return
	}
	ready := a.st.ExtractReadyTimers(now)
	sort.Slice(ready, func(i, j int) bool {
		return ready[i].Timer.TargetTime < ready[j].Timer.TargetTime
	})
	a.st.SetCurrentTime(now)
	for _, r := range ready {
		a.enqueue(world.Message{
			Target:          r.Owner,
			ImmediateSender: r.Owner,
			OriginalUser:    r.Timer.OriginalUser,
			Name:            r.Timer.MessageName,
			Payload:         r.Timer.Payload,
		})
	}
	if a.cfg.SnapshotEverySeconds > 0 && uint64(now-a.lastSnapshot) >= a.cfg.SnapshotEverySeconds {
		if err := a.writeSnapshot(); err != nil {
			a.log.Printf("periodic snapshot failed: %v", err)
		}
	}
}

// writeSnapshot persists the whole graph between turns.
func (a *Actor) writeSnapshot() error {
	snap := a.st.ExportSnapshot()
	path := filepath.Join(a.cfg.SnapshotDir, snapshot.FileName(snap.GameTime))
	if err := snapshot.Write(path, snap); err != nil {
		return err
	}
	a.lastSnapshot = a.st.CurrentTime()
	a.log.Printf("snapshot written: %s (%d objects)", path, len(snap.Objects))
	if a.index != nil {
		info := SnapshotInfo{
			Path:     path,
			GameTime: snap.GameTime,
			Objects:  len(snap.Objects),
			Users:    len(snap.Users),
			SavedAt:  snap.Header.SavedAt,
		}
		if err := a.index.RecordSnapshot(info); err != nil {
			a.log.Printf("snapshot index failed: %v", err)
		}
	}
	return nil
}
