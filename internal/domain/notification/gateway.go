package notification

import (
	"context"
)

// Gateway is the remote request/response API for notification reads and mutations.
// Every method either succeeds with its payload or returns an error; no partial results.
type Gateway interface {
	FetchAll(ctx context.Context) ([]Record, error)
	MarkRead(ctx context.Context, id string) (Record, error)
	MarkAllRead(ctx context.Context) error
	DismissOne(ctx context.Context, id string) error
	DismissAll(ctx context.Context) error
}

// Handler receives records decoded from push events
type Handler func(record Record)

// Subscription identifies a registered push handler
type Subscription struct {
	ID    string
	Event string
}

// PushChannel delivers server-initiated events asynchronously
type PushChannel interface {
	Subscribe(event string, handler Handler) Subscription
	Unsubscribe(sub Subscription)
	// OnJoin registers fn to be called each time the channel (re)establishes
	// delivery. Call the returned function to detach fn.
	OnJoin(fn func()) func()
}
