package world

import "fmt"

// Object is one node of the world graph. Attrs are world-readable and
// self-writable; State is private to the object itself.
type Object struct {
	Parent *Id
	Kind   Kind
	Attrs  map[string]Value
	State  map[string]Value
	Timers map[string]Timer
}

func newObject(kind Kind) *Object {
	return &Object{
		Kind:   kind,
		Attrs:  map[string]Value{},
		State:  map[string]Value{},
		Timers: map[string]Timer{},
	}
}

// State is the authoritative object graph. All methods are synchronous and
// free of I/O; the only side effects are in-memory. The actor goroutine is
// the sole writer during normal operation.
type State struct {
	objects      []*Object
	entrance     Id
	users        map[string]Id
	livePackages map[Kind]string
	currentTime  GameTime
	timerSeq     uint64
}

// NewState builds a fresh world containing only the entrance room at #0.
func NewState() *State {
	return &State{
		objects:      []*Object{newObject(RoomKind())},
		entrance:     0,
		users:        map[string]Id{},
		livePackages: map[Kind]string{},
	}
}

func (s *State) object(id Id) (*Object, error) {
	if int(id) < 0 || int(id) >= len(s.objects) {
		return nil, &InvalidObjectIdError{Id: id}
	}
	return s.objects[id], nil
}

func (s *State) Entrance() Id { return s.entrance }

func (s *State) ObjectCount() int { return len(s.objects) }

// CreateObject appends a new object with no parent. Ids are never reused.
func (s *State) CreateObject(kind Kind) Id {
	id := Id(len(s.objects))
	s.objects = append(s.objects, newObject(kind))
	return id
}

// KindOf resolves the script package driving an object's behavior.
func (s *State) KindOf(id Id) (Kind, error) {
	o, err := s.object(id)
	if err != nil {
		return Kind{}, err
	}
	return o.Kind, nil
}

func (s *State) Parent(id Id) (*Id, error) {
	o, err := s.object(id)
	if err != nil {
		return nil, err
	}
	return o.Parent, nil
}

// Children scans the graph in creation order for objects parented at id.
func (s *State) Children(id Id) []Id {
	var out []Id
	for i, o := range s.objects {
		if o.Parent != nil && *o.Parent == id {
			out = append(out, Id(i))
		}
	}
	return out
}

// Topmost walks the parent chain to the root ancestor (the "room" an object
// is ultimately inside).
func (s *State) Topmost(id Id) (Id, error) {
	cur := id
	for {
		p, err := s.Parent(cur)
		if err != nil {
			return 0, err
		}
		if p == nil {
			return cur, nil
		}
		cur = *p
	}
}

func (s *State) causesCycle(child, newParent Id) (bool, error) {
	if child == newParent {
		return true, nil
	}
	o, err := s.object(newParent)
	if err != nil {
		return false, err
	}
	if o.Parent == nil {
		return false, nil
	}
	return s.causesCycle(child, *o.Parent)
}

// MoveObject reparents child. Passing nil detaches it. A move that would
// make child its own ancestor fails with CyclicHierarchyError and leaves
// the graph unchanged.
func (s *State) MoveObject(child Id, newParent *Id) error {
	if newParent != nil {
		cyclic, err := s.causesCycle(child, *newParent)
		if err != nil {
			return err
		}
		if cyclic {
			return &CyclicHierarchyError{Child: child, Parent: *newParent}
		}
	}
	o, err := s.object(child)
	if err != nil {
		return err
	}
	o.Parent = newParent
	return nil
}

func (s *State) SetAttr(id Id, key string, value Value) error {
	o, err := s.object(id)
	if err != nil {
		return err
	}
	o.Attrs[key] = value
	return nil
}

func (s *State) GetAttr(id Id, key string) (Value, error) {
	o, err := s.object(id)
	if err != nil {
		return Nil(), err
	}
	if v, ok := o.Attrs[key]; ok {
		return v, nil
	}
	return Nil(), nil
}

func (s *State) ListAttrs(id Id) ([]string, error) {
	o, err := s.object(id)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(o.Attrs))
	for k := range o.Attrs {
		out = append(out, k)
	}
	return out, nil
}

func (s *State) SetState(id Id, key string, value Value) error {
	o, err := s.object(id)
	if err != nil {
		return err
	}
	o.State[key] = value
	return nil
}

func (s *State) GetState(id Id, key string) (Value, error) {
	o, err := s.object(id)
	if err != nil {
		return Nil(), err
	}
	if v, ok := o.State[key]; ok {
		return v, nil
	}
	return Nil(), nil
}

// GetOrCreateUser is idempotent: a known username returns its existing id,
// otherwise a new object of the user's live kind is created, parented at the
// entrance and registered in the user index.
func (s *State) GetOrCreateUser(username string) Id {
	if id, ok := s.users[username]; ok {
		return id
	}
	id := s.CreateObject(UserKind(username))
	entrance := s.entrance
	s.objects[id].Parent = &entrance
	s.users[username] = id
	return id
}

// Username reverse-looks-up the user index.
func (s *State) Username(id Id) (string, bool) {
	for name, uid := range s.users {
		if uid == id {
			return name, true
		}
	}
	return "", false
}

func (s *State) AllUsers() map[string]Id {
	out := make(map[string]Id, len(s.users))
	for k, v := range s.users {
		out[k] = v
	}
	return out
}

func (s *State) LivePackageContent(kind Kind) (string, bool) {
	if !kind.IsLive() {
		return "", false
	}
	c, ok := s.livePackages[kind]
	return c, ok
}

// SetLivePackageContent stores runtime-editable script source. Only live
// package keys are accepted.
func (s *State) SetLivePackageContent(kind Kind, content string) error {
	if !kind.IsLive() {
		return &NotLivePackageError{Kind: kind}
	}
	s.livePackages[kind] = content
	return nil
}

func (s *State) CurrentTime() GameTime { return s.currentTime }

func (s *State) SetCurrentTime(t GameTime) {
	if t > s.currentTime {
		s.currentTime = t
	}
}

// NextTimerName mints a unique auto-generated timer name. The sequence is
// part of the persisted state: names must not repeat across restarts, or a
// new timer could silently replace a pending one restored from a snapshot.
func (s *State) NextTimerName() string {
	s.timerSeq++
	return fmt.Sprintf("timer-%d", s.timerSeq)
}

func (s *State) SetTimer(id Id, name string, t Timer) error {
	o, err := s.object(id)
	if err != nil {
		return err
	}
	o.Timers[name] = t
	return nil
}

func (s *State) ClearTimer(id Id, name string) error {
	o, err := s.object(id)
	if err != nil {
		return err
	}
	delete(o.Timers, name)
	return nil
}

// ExtractReadyTimers removes and returns every timer whose target time has
// elapsed since currentTime, up to and including newTime. It does not advance
// the clock; the caller sets the new current time after enqueueing the
// returned messages, which keeps timer delivery replayable from a snapshot.
func (s *State) ExtractReadyTimers(newTime GameTime) []ReadyTimer {
	var ready []ReadyTimer
	for i, o := range s.objects {
		for name, t := range o.Timers {
			if t.TargetTime <= newTime && t.TargetTime > s.currentTime {
				ready = append(ready, ReadyTimer{Owner: Id(i), Timer: t})
				delete(o.Timers, name)
			}
		}
	}
	return ready
}
