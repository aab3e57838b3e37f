package notification

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/friendpicks/notifsync/internal/domain/notification"
	"github.com/friendpicks/notifsync/internal/pkg/cron"
)

// Config holds notification session configuration
type Config struct {
	EventName      string        // default: "notification"
	QueueSize      int           // default: 256
	FetchTimeout   time.Duration // default: 15 seconds
	ResyncOnJoin   bool          // refetch after every push channel join
	ResyncInterval time.Duration // 0 disables periodic resync
}

type sessionState int

const (
	stateIdle sessionState = iota
	stateActive
	stateClosed
)

// update is one unit of work for the reconciliation loop. It carries a store
// mutation, or opens (begin) or closes (rebase) the journal of a resync.
type update struct {
	mutation mutation
	done     chan struct{}

	begin  uint64
	rebase uint64
	seed   []notification.Record
	abort  bool
}

// Session sequences startup and teardown of notification sync for one
// authenticated user, and serves the synchronized view to consumers.
type Session struct {
	gateway notification.Gateway
	push    notification.PushChannel
	store   *Store
	coord   *Coordinator
	config  Config
	logger  *slog.Logger

	resyncSeq atomic.Uint64

	mu        sync.Mutex
	state     sessionState
	sub       notification.Subscription
	detach    func()
	updates   chan update
	stopCh    chan struct{}
	wg        sync.WaitGroup
	scheduler *cron.Scheduler
}

var _ notification.Service = (*Session)(nil)

// NewSession creates a session. The store should be fresh for every login.
func NewSession(gateway notification.Gateway, push notification.PushChannel, store *Store, logger *slog.Logger, cfg Config) *Session {
	if cfg.EventName == "" {
		cfg.EventName = notification.EventNotification
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		gateway: gateway,
		push:    push,
		store:   store,
		config:  cfg,
		logger:  logger.With(slog.String("component", "notification_session")),
	}
	s.coord = NewCoordinator(gateway, loopWriter{s}, logger)
	return s
}

// Start performs the initial fetch, seeds the store and attaches the push
// subscription. A failed fetch is logged and leaves the store empty; live
// events are still merged. If Stop runs while the fetch is in flight, Start
// attaches nothing and returns ErrSessionClosed.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case stateActive:
		s.mu.Unlock()
		return notification.ErrSessionActive
	case stateClosed:
		s.mu.Unlock()
		return notification.ErrSessionClosed
	}
	s.state = stateActive
	s.updates = make(chan update, s.config.QueueSize)
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	records, fetchErr := s.fetch(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateActive {
		return notification.ErrSessionClosed
	}

	if fetchErr != nil {
		s.logger.Error("initial fetch failed, starting empty", slog.Any("error", fetchErr))
	} else {
		s.store.Seed(records)
		s.logger.Info("notifications seeded",
			slog.Int("count", s.store.Len()),
			slog.Int("unread", s.store.UnreadCount()),
		)
	}

	s.wg.Add(1)
	go s.reconcile()

	s.sub = s.push.Subscribe(s.config.EventName, s.enqueueRecord)
	s.detach = s.push.OnJoin(s.onJoin)

	if s.config.ResyncInterval > 0 {
		s.scheduler = cron.NewScheduler(context.Background(), s.logger)
		s.scheduler.AddJob("notification-resync", s.config.ResyncInterval, s.Resync)
		s.scheduler.Start()
	}

	s.logger.Info("notification session started", slog.String("event", s.config.EventName))
	return nil
}

// Stop detaches the push subscription and discards all local state. No
// network calls are made. Calling Stop on a stopped session is a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state != stateActive {
		s.state = stateClosed
		s.mu.Unlock()
		return
	}
	s.state = stateClosed
	sub, detach, scheduler := s.sub, s.detach, s.scheduler
	s.mu.Unlock()

	// all three are unset when Stop overtook an in-flight Start
	if sub.ID != "" {
		s.push.Unsubscribe(sub)
	}
	if detach != nil {
		detach()
	}
	if scheduler != nil {
		scheduler.Stop()
	}
	close(s.stopCh)
	s.wg.Wait()
	s.store.Reset()

	s.logger.Info("notification session stopped")
}

// Resync refetches the full list and rebases the store on it. Every write
// applied while the fetch is in flight is replayed on top of the fetched list,
// so no pushed event or confirmed action is lost.
func (s *Session) Resync(ctx context.Context) error {
	if !s.active() {
		return notification.ErrSessionClosed
	}

	id := s.resyncSeq.Add(1)
	if err := s.send(ctx, update{begin: id}); err != nil {
		return err
	}

	records, err := s.fetch(ctx)
	if err != nil {
		_ = s.send(context.Background(), update{rebase: id, abort: true})
		return err
	}
	return s.send(context.Background(), update{rebase: id, seed: records})
}

func (s *Session) fetch(ctx context.Context) ([]notification.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.FetchTimeout)
	defer cancel()
	return s.gateway.FetchAll(ctx)
}

// send hands u to the reconciliation loop
func (s *Session) send(ctx context.Context, u update) error {
	select {
	case s.updates <- u:
		return nil
	case <-s.stopCh:
		return notification.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// submit applies m through the loop and waits until it is in the store.
// After Stop the write is dropped.
func (s *Session) submit(m mutation) {
	done := make(chan struct{})
	if err := s.send(context.Background(), update{mutation: m, done: done}); err != nil {
		return
	}
	select {
	case <-done:
	case <-s.stopCh:
	}
}

// enqueueRecord is the push handler. It blocks rather than drop an event so
// the unread counter never misses a transition.
func (s *Session) enqueueRecord(r notification.Record) {
	_ = s.send(context.Background(), update{mutation: mergeMutation(r)})
}

func (s *Session) onJoin() {
	if !s.config.ResyncOnJoin || !s.active() {
		return
	}

	s.logger.Info("push channel joined, resyncing")
	go func() {
		if err := s.Resync(context.Background()); err != nil {
			s.logger.Warn("resync after join failed", slog.Any("error", err))
		}
	}()
}

// reconcile is the single writer to the store while the session runs.
// Open resync journals collect every mutation applied after they begin.
func (s *Session) reconcile() {
	defer s.wg.Done()

	journals := make(map[uint64][]mutation)
	for {
		select {
		case u := <-s.updates:
			switch {
			case u.begin != 0:
				journals[u.begin] = []mutation{}
			case u.rebase != 0:
				replay, ok := journals[u.rebase]
				delete(journals, u.rebase)
				if ok && !u.abort {
					s.store.rebase(u.seed, replay)
				}
			default:
				s.store.apply(u.mutation)
				for id, j := range journals {
					journals[id] = append(j, u.mutation)
				}
			}
			if u.done != nil {
				close(u.done)
			}
		case <-s.stopCh:
			return
		}
	}
}

// loopWriter routes coordinator writes through the reconciliation loop
type loopWriter struct {
	s *Session
}

func (w loopWriter) MergeOne(r notification.Record) {
	w.s.submit(mergeMutation(r))
}

func (w loopWriter) MarkAllRead() {
	w.s.submit(mutation{kind: mutMarkAllRead})
}

func (w loopWriter) DismissAll() {
	w.s.submit(mutation{kind: mutDismissAll})
}

func (s *Session) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateActive
}

// Snapshot returns the current synchronized view
func (s *Session) Snapshot() notification.Snapshot {
	return s.store.Snapshot()
}

// UnreadCount returns the current unread counter
func (s *Session) UnreadCount() int {
	return s.store.UnreadCount()
}

// Watch streams snapshots, see Store.Watch
func (s *Session) Watch() (<-chan notification.Snapshot, func()) {
	return s.store.Watch()
}

// MarkAsRead marks one notification as read once the gateway confirms
func (s *Session) MarkAsRead(ctx context.Context, id string) error {
	if !s.active() {
		return notification.ErrSessionClosed
	}
	return s.coord.MarkAsRead(ctx, id)
}

// MarkAllAsRead marks every notification as read once the gateway confirms
func (s *Session) MarkAllAsRead(ctx context.Context) error {
	if !s.active() {
		return notification.ErrSessionClosed
	}
	return s.coord.MarkAllAsRead(ctx)
}

// Dismiss removes one notification once the gateway confirms
func (s *Session) Dismiss(ctx context.Context, id string) error {
	if !s.active() {
		return notification.ErrSessionClosed
	}
	return s.coord.Dismiss(ctx, id)
}

// DismissAll removes every notification once the gateway confirms
func (s *Session) DismissAll(ctx context.Context) error {
	if !s.active() {
		return notification.ErrSessionClosed
	}
	return s.coord.DismissAll(ctx)
}
