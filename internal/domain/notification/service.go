package notification

import (
	"context"
)

// Service is what UI consumers use: a reactive read of the synchronized list
// plus the four user actions.
type Service interface {
	// Reads
	Snapshot() Snapshot
	UnreadCount() int
	Watch() (<-chan Snapshot, func())

	// Actions, each resolving when the gateway call completes
	MarkAsRead(ctx context.Context, id string) error
	MarkAllAsRead(ctx context.Context) error
	Dismiss(ctx context.Context, id string) error
	DismissAll(ctx context.Context) error
}
