package notification

import (
	"sort"
	"sync"

	"github.com/friendpicks/notifsync/internal/domain/notification"
	"github.com/friendpicks/notifsync/internal/pkg/sse"
)

const (
	topicNotifications = "notifications"
	eventSnapshot      = "snapshot"
)

// Store owns the synchronized notification collection and its unread counter.
// Seed, MergeOne, MarkAllRead, DismissAll and Reset are the only mutators; each
// runs to completion under the lock without I/O, so concurrent writers are serialized.
// The session additionally rebases the store when it resyncs.
type Store struct {
	mu      sync.Mutex
	records []notification.Record
	unread  int
	version uint64
	hub     *sse.Hub
}

// NewStore creates an empty store. Snapshots are published to hub after every change.
func NewStore(hub *sse.Hub) *Store {
	if hub == nil {
		hub = sse.NewHub()
	}
	return &Store{hub: hub}
}

// before reports whether a sorts ahead of b: newest first, ties by id descending.
func before(a, b notification.Record) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// Seed replaces the whole collection. Duplicate ids keep the last occurrence and
// Dismissed records are dropped.
func (s *Store) Seed(records []notification.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seedLocked(records)
	s.changed()
}

// Reset discards all state, as on logout.
func (s *Store) Reset() {
	s.Seed(nil)
}

// MergeOne reconciles a single incoming record from any source.
// Applying the same (id, status) twice leaves the store as applying it once.
func (s *Store) MergeOne(incoming notification.Record) {
	s.apply(mergeMutation(incoming))
}

// MarkAllRead flips every Unread record to Read.
func (s *Store) MarkAllRead() {
	s.apply(mutation{kind: mutMarkAllRead})
}

// DismissAll empties the collection.
func (s *Store) DismissAll() {
	s.apply(mutation{kind: mutDismissAll})
}

type mutationKind int

const (
	mutMerge mutationKind = iota
	mutMarkAllRead
	mutDismissAll
)

// mutation is a store write that can be recorded and applied again later
type mutation struct {
	kind   mutationKind
	record notification.Record
}

func mergeMutation(r notification.Record) mutation {
	return mutation{kind: mutMerge, record: r.Clone()}
}

func (s *Store) apply(m mutation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.applyLocked(m) {
		s.changed()
	}
}

// rebase replaces the collection with records, then applies replay in order.
// Watchers see a single change.
func (s *Store) rebase(records []notification.Record, replay []mutation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seedLocked(records)
	for _, m := range replay {
		s.applyLocked(m)
	}
	s.changed()
}

// applyLocked reports whether m changed the store. Caller holds mu.
func (s *Store) applyLocked(m mutation) bool {
	switch m.kind {
	case mutMarkAllRead:
		for i := range s.records {
			if s.records[i].IsUnread() {
				s.records[i].Status = notification.StatusRead
			}
		}
		s.unread = 0
		return true
	case mutDismissAll:
		s.records = nil
		s.unread = 0
		return true
	}
	return s.mergeLocked(m.record)
}

func (s *Store) seedLocked(records []notification.Record) {
	byID := make(map[string]int, len(records))
	next := make([]notification.Record, 0, len(records))
	for _, r := range records {
		if i, ok := byID[r.ID]; ok {
			next[i] = r.Clone()
			continue
		}
		byID[r.ID] = len(next)
		next = append(next, r.Clone())
	}

	kept := next[:0]
	unread := 0
	for _, r := range next {
		if r.Status == notification.StatusDismissed {
			continue
		}
		if r.IsUnread() {
			unread++
		}
		kept = append(kept, r)
	}
	sort.SliceStable(kept, func(i, j int) bool { return before(kept[i], kept[j]) })

	s.records = kept
	s.unread = unread
}

func (s *Store) mergeLocked(incoming notification.Record) bool {
	idx := s.indexOf(incoming.ID)

	if incoming.Status == notification.StatusDismissed {
		if idx < 0 {
			return false
		}
		prior := s.records[idx]
		s.records = append(s.records[:idx], s.records[idx+1:]...)
		if prior.IsUnread() {
			s.decrement()
		}
		return true
	}

	incoming = incoming.Clone()

	if idx >= 0 {
		prior := s.records[idx]
		if prior.CreatedAt.Equal(incoming.CreatedAt) {
			s.records[idx] = incoming
		} else {
			s.records = append(s.records[:idx], s.records[idx+1:]...)
			s.insert(incoming)
		}
		switch {
		case prior.IsUnread() && !incoming.IsUnread():
			s.decrement()
		case !prior.IsUnread() && incoming.IsUnread():
			s.unread++
		}
		return true
	}

	s.insert(incoming)
	if incoming.IsUnread() {
		s.unread++
	}
	return true
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() notification.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// UnreadCount returns the cached unread counter.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// Len returns the number of visible records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Watch returns a channel that first yields the current snapshot and then one
// snapshot per change. Slow readers skip intermediate versions. Call the returned
// function to stop watching.
func (s *Store) Watch() (<-chan notification.Snapshot, func()) {
	s.mu.Lock()
	events, cleanup := s.hub.Subscribe(topicNotifications)
	initial := s.snapshotLocked()
	s.mu.Unlock()

	out := make(chan notification.Snapshot, 1)
	out <- initial
	done := make(chan struct{})

	go func() {
		defer close(out)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				snap, ok := ev.Data.(notification.Snapshot)
				if !ok {
					continue
				}
				select {
				case out <- snap:
				case <-done:
					return
				}
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			cleanup()
		})
	}
	return out, stop
}

func (s *Store) indexOf(id string) int {
	for i := range s.records {
		if s.records[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) insert(r notification.Record) {
	pos := sort.Search(len(s.records), func(i int) bool {
		return !before(s.records[i], r)
	})
	s.records = append(s.records, notification.Record{})
	copy(s.records[pos+1:], s.records[pos:])
	s.records[pos] = r
}

func (s *Store) decrement() {
	if s.unread > 0 {
		s.unread--
	}
}

func (s *Store) snapshotLocked() notification.Snapshot {
	records := make([]notification.Record, len(s.records))
	for i, r := range s.records {
		records[i] = r.Clone()
	}
	return notification.Snapshot{
		Notifications: records,
		UnreadCount:   s.unread,
		Version:       s.version,
	}
}

// changed bumps the version and publishes the new snapshot. Caller holds mu.
func (s *Store) changed() {
	s.version++
	s.hub.Publish(topicNotifications, sse.Event{
		Event: eventSnapshot,
		Data:  s.snapshotLocked(),
	})
}
