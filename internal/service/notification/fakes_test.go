package notification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/friendpicks/notifsync/internal/domain/notification"
	"github.com/google/uuid"
)

var errNetwork = errors.New("network unreachable")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func rec(id string, status notification.Status, createdAt string) notification.Record {
	return notification.Record{
		ID:        id,
		Kind:      notification.KindSuggestion,
		Status:    status,
		Message:   "message " + id,
		CreatedAt: ts(createdAt),
	}
}

// fakeGateway records calls and returns configured results
type fakeGateway struct {
	mu sync.Mutex

	records     []notification.Record
	fetchErr    error
	markRead    func(id string) (notification.Record, error)
	markAllErr  error
	dismissErr  error
	dismissAll  error
	calls       []string
	fetchCalled chan struct{}

	// when block is set, FetchAll signals started and waits for block to close
	block   chan struct{}
	started chan struct{}
}

func newFakeGateway(records ...notification.Record) *fakeGateway {
	return &fakeGateway{records: records, fetchCalled: make(chan struct{}, 16)}
}

func (g *fakeGateway) record(call string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call)
}

func (g *fakeGateway) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

func (g *fakeGateway) SetRecords(records ...notification.Record) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.records = records
}

// holdFetches makes the next fetches wait until the returned release is called
func (g *fakeGateway) holdFetches() (started <-chan struct{}, release func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.block = make(chan struct{})
	g.started = make(chan struct{}, 4)
	block := g.block
	return g.started, func() { close(block) }
}

func (g *fakeGateway) FetchAll(ctx context.Context) ([]notification.Record, error) {
	g.record("fetch")

	g.mu.Lock()
	block, started := g.block, g.started
	g.mu.Unlock()
	if block != nil {
		select {
		case started <- struct{}{}:
		default:
		}
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	defer func() {
		select {
		case g.fetchCalled <- struct{}{}:
		default:
		}
	}()
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	return append([]notification.Record(nil), g.records...), nil
}

func (g *fakeGateway) MarkRead(ctx context.Context, id string) (notification.Record, error) {
	g.record("mark_read:" + id)
	if g.markRead != nil {
		return g.markRead(id)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range g.records {
		if r.ID == id {
			r.Status = notification.StatusRead
			return r, nil
		}
	}
	return notification.Record{}, notification.ErrNotificationNotFound
}

func (g *fakeGateway) MarkAllRead(ctx context.Context) error {
	g.record("mark_all_read")
	return g.markAllErr
}

func (g *fakeGateway) DismissOne(ctx context.Context, id string) error {
	g.record("dismiss:" + id)
	return g.dismissErr
}

func (g *fakeGateway) DismissAll(ctx context.Context) error {
	g.record("dismiss_all")
	return g.dismissAll
}

// fakePush lets tests deliver events synchronously
type fakePush struct {
	mu          sync.Mutex
	handlers    map[string]notification.Subscription
	fns         map[string]notification.Handler
	joins       map[string]func()
	unsubscribe int
}

func newFakePush() *fakePush {
	return &fakePush{
		handlers: make(map[string]notification.Subscription),
		fns:      make(map[string]notification.Handler),
		joins:    make(map[string]func()),
	}
}

func (p *fakePush) Subscribe(event string, handler notification.Handler) notification.Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	sub := notification.Subscription{ID: uuid.NewString(), Event: event}
	p.handlers[sub.ID] = sub
	p.fns[sub.ID] = handler
	return sub
}

func (p *fakePush) Unsubscribe(sub notification.Subscription) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.handlers, sub.ID)
	delete(p.fns, sub.ID)
	p.unsubscribe++
}

func (p *fakePush) OnJoin(fn func()) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := uuid.NewString()
	p.joins[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.joins, id)
	}
}

func (p *fakePush) Emit(event string, r notification.Record) {
	p.mu.Lock()
	var targets []notification.Handler
	for id, sub := range p.handlers {
		if sub.Event == event {
			targets = append(targets, p.fns[id])
		}
	}
	p.mu.Unlock()

	for _, h := range targets {
		h(r)
	}
}

// Join runs the join hooks as a (re)connect would
func (p *fakePush) Join() {
	p.mu.Lock()
	var fns []func()
	for _, fn := range p.joins {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (p *fakePush) JoinHookCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.joins)
}

func (p *fakePush) SubscriberCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handlers)
}
