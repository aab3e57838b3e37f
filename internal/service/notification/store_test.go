package notification

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/friendpicks/notifsync/internal/domain/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countUnread(s notification.Snapshot) int {
	n := 0
	for _, r := range s.Notifications {
		if r.IsUnread() {
			n++
		}
	}
	return n
}

func assertCounterInvariant(t *testing.T, store *Store) {
	t.Helper()
	snap := store.Snapshot()
	assert.Equal(t, countUnread(snap), snap.UnreadCount, "unread counter drifted")
	assert.Equal(t, snap.UnreadCount, store.UnreadCount())

	seen := make(map[string]struct{}, len(snap.Notifications))
	for i, r := range snap.Notifications {
		_, dup := seen[r.ID]
		assert.False(t, dup, "duplicate id %s", r.ID)
		seen[r.ID] = struct{}{}
		assert.NotEqual(t, notification.StatusDismissed, r.Status)
		if i > 0 {
			assert.False(t, snap.Notifications[i].CreatedAt.After(snap.Notifications[i-1].CreatedAt), "not sorted newest first")
		}
	}
}

// scenarioA seeds the store with n1 (Unread, older) and n2 (Read, newer)
func scenarioA(t *testing.T) *Store {
	t.Helper()
	store := NewStore(nil)
	store.Seed([]notification.Record{
		rec("n1", notification.StatusUnread, "2024-01-01T00:00:00Z"),
		rec("n2", notification.StatusRead, "2024-01-02T00:00:00Z"),
	})
	return store
}

func TestStore_ScenarioA_Seed(t *testing.T) {
	store := scenarioA(t)

	snap := store.Snapshot()
	assert.Equal(t, 1, snap.UnreadCount)
	assert.Equal(t, []string{"n2", "n1"}, snap.IDs())
	assertCounterInvariant(t, store)
}

func TestStore_ScenarioB_DismissUnread(t *testing.T) {
	store := scenarioA(t)

	store.MergeOne(notification.Dismissal("n1"))

	snap := store.Snapshot()
	assert.Equal(t, []string{"n2"}, snap.IDs())
	assert.Equal(t, 0, snap.UnreadCount)
}

func TestStore_ScenarioC_MarkAllRead(t *testing.T) {
	store := scenarioA(t)

	store.MarkAllRead()

	snap := store.Snapshot()
	assert.Equal(t, 0, snap.UnreadCount)
	n1, ok := snap.Find("n1")
	require.True(t, ok)
	assert.Equal(t, notification.StatusRead, n1.Status)
	n2, ok := snap.Find("n2")
	require.True(t, ok)
	assert.Equal(t, notification.StatusRead, n2.Status)
}

func TestStore_ScenarioD_PushNewRecord(t *testing.T) {
	store := scenarioA(t)

	store.MergeOne(rec("n3", notification.StatusUnread, "2024-01-03T00:00:00Z"))

	snap := store.Snapshot()
	assert.Equal(t, []string{"n3", "n2", "n1"}, snap.IDs())
	assert.Equal(t, 2, snap.UnreadCount)
}

func TestStore_DismissNeverDoubleDecrements(t *testing.T) {
	store := NewStore(nil)
	store.MergeOne(rec("a", notification.StatusUnread, "2024-01-01T00:00:00Z"))
	store.MergeOne(rec("b", notification.StatusUnread, "2024-01-02T00:00:00Z"))
	require.Equal(t, 2, store.UnreadCount())

	store.MergeOne(notification.Dismissal("a"))
	assert.Equal(t, 1, store.UnreadCount())
	assert.Equal(t, 1, store.Len())

	store.MergeOne(notification.Dismissal("a"))
	assert.Equal(t, 1, store.UnreadCount())
	assert.Equal(t, 1, store.Len())
}

func TestStore_DismissReadRecordKeepsCounter(t *testing.T) {
	store := scenarioA(t)

	store.MergeOne(notification.Dismissal("n2"))

	assert.Equal(t, 1, store.UnreadCount())
	assert.Equal(t, []string{"n1"}, store.Snapshot().IDs())
}

func TestStore_DismissUnknownIsNoop(t *testing.T) {
	store := NewStore(nil)
	before := store.Snapshot().Version

	store.MergeOne(notification.Dismissal("ghost"))

	snap := store.Snapshot()
	assert.Equal(t, 0, snap.UnreadCount)
	assert.Empty(t, snap.Notifications)
	assert.Equal(t, before, snap.Version, "no-op must not publish a change")
}

func TestStore_MergeIsIdempotent(t *testing.T) {
	statuses := []notification.Status{notification.StatusUnread, notification.StatusRead, notification.StatusDismissed}
	for _, status := range statuses {
		t.Run(string(status), func(t *testing.T) {
			once := scenarioA(t)
			twice := scenarioA(t)
			r := rec("n1", status, "2024-01-01T00:00:00Z")

			once.MergeOne(r)
			twice.MergeOne(r)
			twice.MergeOne(r)

			a, b := once.Snapshot(), twice.Snapshot()
			assert.Equal(t, a.Notifications, b.Notifications)
			assert.Equal(t, a.UnreadCount, b.UnreadCount)
		})
	}
}

func TestStore_UpdateAdjustsCounter(t *testing.T) {
	store := scenarioA(t)

	store.MergeOne(rec("n1", notification.StatusRead, "2024-01-01T00:00:00Z"))
	assert.Equal(t, 0, store.UnreadCount())

	store.MergeOne(rec("n2", notification.StatusUnread, "2024-01-02T00:00:00Z"))
	assert.Equal(t, 1, store.UnreadCount())

	store.MergeOne(rec("n2", notification.StatusUnread, "2024-01-02T00:00:00Z"))
	assert.Equal(t, 1, store.UnreadCount())
	assertCounterInvariant(t, store)
}

func TestStore_UpdateWithNewTimestampResorts(t *testing.T) {
	store := scenarioA(t)

	moved := rec("n1", notification.StatusUnread, "2024-01-05T00:00:00Z")
	moved.Message = "edited"
	store.MergeOne(moved)

	snap := store.Snapshot()
	assert.Equal(t, []string{"n1", "n2"}, snap.IDs())
	assert.Equal(t, "edited", snap.Notifications[0].Message)
	assert.Equal(t, 1, snap.UnreadCount)
}

func TestStore_UpdateWithSameTimestampKeepsPosition(t *testing.T) {
	store := scenarioA(t)

	upd := rec("n2", notification.StatusRead, "2024-01-02T00:00:00Z")
	upd.Message = "replaced"
	store.MergeOne(upd)

	snap := store.Snapshot()
	assert.Equal(t, []string{"n2", "n1"}, snap.IDs())
	assert.Equal(t, "replaced", snap.Notifications[0].Message)
}

// Interleaved sources: the last applied status wins, whatever the channel.
func TestStore_InterleavedSourcesLastAppliedWins(t *testing.T) {
	event := rec("1", notification.StatusUnread, "2024-01-01T00:00:00Z")
	confirmation := rec("1", notification.StatusRead, "2024-01-01T00:00:00Z")

	eventFirst := NewStore(nil)
	eventFirst.MergeOne(event)
	eventFirst.MergeOne(confirmation)
	snap := eventFirst.Snapshot()
	require.Len(t, snap.Notifications, 1)
	assert.Equal(t, notification.StatusRead, snap.Notifications[0].Status)
	assert.Equal(t, 0, snap.UnreadCount)

	confirmationFirst := NewStore(nil)
	confirmationFirst.MergeOne(confirmation)
	confirmationFirst.MergeOne(event)
	snap = confirmationFirst.Snapshot()
	require.Len(t, snap.Notifications, 1)
	assert.Equal(t, notification.StatusUnread, snap.Notifications[0].Status)
	assert.Equal(t, 1, snap.UnreadCount)
}

func TestStore_SortOrderPreserved(t *testing.T) {
	store := NewStore(nil)
	store.MergeOne(rec("t3", notification.StatusRead, "2024-03-01T00:00:00Z"))
	store.MergeOne(rec("t1", notification.StatusRead, "2024-01-01T00:00:00Z"))
	store.MergeOne(rec("t2", notification.StatusRead, "2024-02-01T00:00:00Z"))

	assert.Equal(t, []string{"t3", "t2", "t1"}, store.Snapshot().IDs())
}

func TestStore_SeedDeduplicatesAndDropsDismissed(t *testing.T) {
	store := NewStore(nil)
	store.Seed([]notification.Record{
		rec("a", notification.StatusUnread, "2024-01-01T00:00:00Z"),
		rec("b", notification.StatusDismissed, "2024-01-02T00:00:00Z"),
		rec("a", notification.StatusRead, "2024-01-01T00:00:00Z"),
		rec("c", notification.StatusUnread, "2024-01-03T00:00:00Z"),
	})

	snap := store.Snapshot()
	assert.Equal(t, []string{"c", "a"}, snap.IDs())
	assert.Equal(t, 1, snap.UnreadCount)
}

func TestStore_SeedReplacesEverything(t *testing.T) {
	store := scenarioA(t)

	store.Seed([]notification.Record{rec("x", notification.StatusRead, "2024-01-01T00:00:00Z")})
	assert.Equal(t, []string{"x"}, store.Snapshot().IDs())
	assert.Equal(t, 0, store.UnreadCount())

	store.Reset()
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 0, store.UnreadCount())
}

func TestStore_DismissAll(t *testing.T) {
	store := scenarioA(t)

	store.DismissAll()

	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 0, store.UnreadCount())
}

func TestStore_SnapshotIsDetached(t *testing.T) {
	store := NewStore(nil)
	r := rec("a", notification.StatusUnread, "2024-01-01T00:00:00Z")
	r.Metadata = map[string]interface{}{"follow_status": "pending"}
	store.MergeOne(r)

	snap := store.Snapshot()
	snap.Notifications[0].Status = notification.StatusRead
	snap.Notifications[0].Metadata["follow_status"] = "accepted"

	again := store.Snapshot()
	assert.Equal(t, notification.StatusUnread, again.Notifications[0].Status)
	assert.Equal(t, "pending", again.Notifications[0].Metadata["follow_status"])
	assert.Equal(t, "pending", r.Metadata["follow_status"])
}

func TestStore_CounterInvariantUnderRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	store := NewStore(nil)
	statuses := []notification.Status{notification.StatusUnread, notification.StatusRead, notification.StatusDismissed}
	base := ts("2024-01-01T00:00:00Z")

	for i := 0; i < 2000; i++ {
		switch op := rng.Intn(20); {
		case op == 0:
			store.MarkAllRead()
		case op == 1:
			store.DismissAll()
		case op == 2:
			seed := make([]notification.Record, rng.Intn(5))
			for j := range seed {
				seed[j] = notification.Record{
					ID:        fmt.Sprintf("s%d", rng.Intn(8)),
					Status:    statuses[rng.Intn(3)],
					CreatedAt: base.Add(time.Duration(rng.Intn(100)) * time.Hour),
				}
			}
			store.Seed(seed)
		default:
			store.MergeOne(notification.Record{
				ID:        fmt.Sprintf("r%d", rng.Intn(12)),
				Status:    statuses[rng.Intn(3)],
				CreatedAt: base.Add(time.Duration(rng.Intn(100)) * time.Hour),
			})
		}
		assertCounterInvariant(t, store)
	}
}

func TestStore_WatchDeliversInitialAndChanges(t *testing.T) {
	store := scenarioA(t)
	ch, stop := store.Watch()
	defer stop()

	initial := <-ch
	assert.Equal(t, []string{"n2", "n1"}, initial.IDs())

	store.MergeOne(rec("n3", notification.StatusUnread, "2024-01-03T00:00:00Z"))

	select {
	case snap := <-ch:
		assert.Equal(t, 2, snap.UnreadCount)
		assert.Greater(t, snap.Version, initial.Version)
	case <-time.After(time.Second):
		t.Fatal("no snapshot after change")
	}
}

func TestStore_WatchStopClosesChannel(t *testing.T) {
	store := NewStore(nil)
	ch, stop := store.Watch()
	<-ch

	stop()
	stop()

	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestStore_RebaseReplaysOnFetchedList(t *testing.T) {
	s := NewStore(nil)
	s.Seed(seedA())
	version := s.Snapshot().Version

	s.rebase(
		[]notification.Record{
			rec("n1", notification.StatusRead, "2024-01-01T00:00:00Z"),
			rec("n2", notification.StatusRead, "2024-01-02T00:00:00Z"),
		},
		[]mutation{
			mergeMutation(rec("n3", notification.StatusUnread, "2024-01-03T00:00:00Z")),
			mergeMutation(notification.Dismissal("n2")),
			mergeMutation(notification.Dismissal("missing")),
		},
	)

	snap := s.Snapshot()
	assert.Equal(t, []string{"n3", "n1"}, snap.IDs())
	assert.Equal(t, 1, snap.UnreadCount)
	assert.Equal(t, version+1, snap.Version, "rebase publishes a single change")
	assertCounterInvariant(t, s)
}
