package world

import (
	"fmt"

	"scriptmud.dev/internal/persistence/snapshot"
)

// ImportSnapshot rebuilds a complete State from its persistence form,
// replacing whatever was there before.
func ImportSnapshot(snap snapshot.SnapshotV1) (*State, error) {
	if snap.Header.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	s := &State{
		entrance:     Id(snap.Entrance),
		users:        make(map[string]Id, len(snap.Users)),
		livePackages: make(map[Kind]string, len(snap.LivePackages)),
		currentTime:  GameTime(snap.GameTime),
		timerSeq:     snap.TimerSeq,
	}
	s.objects = make([]*Object, 0, len(snap.Objects))
	for i, ov := range snap.Objects {
		o, err := importObject(ov)
		if err != nil {
			return nil, fmt.Errorf("object #%d: %w", i, err)
		}
		s.objects = append(s.objects, o)
	}
	if int(s.entrance) >= len(s.objects) {
		return nil, fmt.Errorf("entrance %d out of range", snap.Entrance)
	}
	for name, id := range snap.Users {
		if id < 0 || id >= len(s.objects) {
			return nil, fmt.Errorf("user %q maps to missing object #%d", name, id)
		}
		s.users[name] = Id(id)
	}
	for ref, content := range snap.LivePackages {
		kind, err := ParseKind(ref)
		if err != nil {
			return nil, fmt.Errorf("live package %q: %w", ref, err)
		}
		if !kind.IsLive() {
			return nil, fmt.Errorf("live package %q: not a live reference", ref)
		}
		s.livePackages[kind] = content
	}
	return s, nil
}

func importObject(ov snapshot.ObjectV1) (*Object, error) {
	kind, err := ParseKind(ov.Kind)
	if err != nil {
		return nil, err
	}
	o := newObject(kind)
	if ov.Parent != nil {
		p := Id(*ov.Parent)
		o.Parent = &p
	}
	for k, v := range ov.Attrs {
		o.Attrs[k] = importValue(v)
	}
	for k, v := range ov.State {
		o.State[k] = importValue(v)
	}
	for name, tv := range ov.Timers {
		o.Timers[name] = Timer{
			TargetTime:   GameTime(tv.TargetTime),
			OriginalUser: importOptId(tv.OriginalUser),
			MessageName:  tv.MessageName,
			Payload:      importValue(tv.Payload),
		}
	}
	return o, nil
}

func importOptId(n *int) *Id {
	if n == nil {
		return nil
	}
	id := Id(*n)
	return &id
}

func importValue(v snapshot.ValueV1) Value {
	out := Value{Type: ValueType(v.Type)}
	switch out.Type {
	case TypeBool:
		out.Bool = v.Bool
	case TypeInt:
		out.Int = v.Int
	case TypeFloat:
		out.Float = v.Float
	case TypeString:
		out.Str = v.Str
	case TypeTable:
		out.Table = make([]Pair, len(v.Table))
		for i, p := range v.Table {
			out.Table[i] = Pair{Key: importValue(p.Key), Val: importValue(p.Val)}
		}
	case TypeDict:
		out.Dict = make(map[string]Value, len(v.Dict))
		for k, el := range v.Dict {
			out.Dict[k] = importValue(el)
		}
	}
	return out
}
