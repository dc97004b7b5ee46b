package world

// GameTime counts in-world seconds. It is persisted, monotonic and advanced
// from wall-clock ticks by the actor; it never decreases.
type GameTime uint64

// Message is one object-addressed event. OriginalUser threads the human
// responsible for the causal chain across hops of send, for error reporting
// and permission checks.
type Message struct {
	Target          Id
	ImmediateSender Id
	OriginalUser    *Id
	Name            string
	Payload         Value
}

// Timer is a pending future message owned by one object. Timers are keyed by
// name in the owner's timer set, so re-arming under the same name replaces
// rather than duplicates.
type Timer struct {
	TargetTime   GameTime
	OriginalUser *Id
	MessageName  string
	Payload      Value
}

// ReadyTimer pairs an elapsed timer with the object that owned it.
type ReadyTimer struct {
	Owner Id
	Timer Timer
}
