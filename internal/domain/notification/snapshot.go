package notification

import "time"

// Snapshot is a read-only view of the synchronized notification list.
// Notifications are sorted newest first and never contain Dismissed records.
type Snapshot struct {
	Notifications []Record
	UnreadCount   int
	Version       uint64
}

// SnapshotFilter narrows a snapshot for display
type SnapshotFilter struct {
	Kinds      []Kind
	From       *time.Time
	To         *time.Time
	UnreadOnly bool
}

// Find returns the record with the given id
func (s Snapshot) Find(id string) (Record, bool) {
	for _, r := range s.Notifications {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

// IDs returns record ids in display order
func (s Snapshot) IDs() []string {
	ids := make([]string, len(s.Notifications))
	for i, r := range s.Notifications {
		ids[i] = r.ID
	}
	return ids
}

// Filter returns the records matching f, preserving order.
// From is inclusive, To is exclusive.
func (s Snapshot) Filter(f SnapshotFilter) []Record {
	kinds := make(map[Kind]struct{}, len(f.Kinds))
	for _, k := range f.Kinds {
		kinds[k] = struct{}{}
	}

	out := make([]Record, 0, len(s.Notifications))
	for _, r := range s.Notifications {
		if len(kinds) > 0 {
			if _, ok := kinds[r.Kind]; !ok {
				continue
			}
		}
		if f.From != nil && r.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && !r.CreatedAt.Before(*f.To) {
			continue
		}
		if f.UnreadOnly && !r.IsUnread() {
			continue
		}
		out = append(out, r)
	}
	return out
}
