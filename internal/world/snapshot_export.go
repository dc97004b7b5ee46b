package world

import (
	"time"

	"scriptmud.dev/internal/persistence/snapshot"
)

const snapshotVersion = 1

// ExportSnapshot converts the full state into its persistence form.
func (s *State) ExportSnapshot() snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version:  snapshotVersion,
			GameTime: uint64(s.currentTime),
			SavedAt:  time.Now().UTC().Format(time.RFC3339),
		},
		Entrance:     int(s.entrance),
		GameTime:     uint64(s.currentTime),
		TimerSeq:     s.timerSeq,
		Objects:      make([]snapshot.ObjectV1, 0, len(s.objects)),
		Users:        make(map[string]int, len(s.users)),
		LivePackages: make(map[string]string, len(s.livePackages)),
	}
	for _, o := range s.objects {
		snap.Objects = append(snap.Objects, exportObject(o))
	}
	for name, id := range s.users {
		snap.Users[name] = int(id)
	}
	for kind, content := range s.livePackages {
		snap.LivePackages[kind.String()] = content
	}
	return snap
}

func exportObject(o *Object) snapshot.ObjectV1 {
	out := snapshot.ObjectV1{
		Kind:   o.Kind.String(),
		Attrs:  exportValueMap(o.Attrs),
		State:  exportValueMap(o.State),
		Timers: make(map[string]snapshot.TimerV1, len(o.Timers)),
	}
	if o.Parent != nil {
		p := int(*o.Parent)
		out.Parent = &p
	}
	for name, t := range o.Timers {
		out.Timers[name] = snapshot.TimerV1{
			TargetTime:   uint64(t.TargetTime),
			OriginalUser: exportOptId(t.OriginalUser),
			MessageName:  t.MessageName,
			Payload:      exportValue(t.Payload),
		}
	}
	return out
}

func exportOptId(id *Id) *int {
	if id == nil {
		return nil
	}
	n := int(*id)
	return &n
}

func exportValueMap(m map[string]Value) map[string]snapshot.ValueV1 {
	out := make(map[string]snapshot.ValueV1, len(m))
	for k, v := range m {
		out[k] = exportValue(v)
	}
	return out
}

func exportValue(v Value) snapshot.ValueV1 {
	out := snapshot.ValueV1{Type: uint8(v.Type)}
	switch v.Type {
	case TypeBool:
		out.Bool = v.Bool
	case TypeInt:
		out.Int = v.Int
	case TypeFloat:
		out.Float = v.Float
	case TypeString:
		out.Str = v.Str
	case TypeTable:
		out.Table = make([]snapshot.PairV1, len(v.Table))
		for i, p := range v.Table {
			out.Table[i] = snapshot.PairV1{Key: exportValue(p.Key), Val: exportValue(p.Val)}
		}
	case TypeDict:
		out.Dict = make(map[string]snapshot.ValueV1, len(v.Dict))
		for k, el := range v.Dict {
			out.Dict[k] = exportValue(el)
		}
	}
	return out
}
