package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/friendpicks/notifsync/internal/domain/notification"
	"github.com/friendpicks/notifsync/internal/pkg/validator"
)

// Writer receives server-confirmed outcomes. *Store is one; a running Session
// supplies another that orders writes with pushed events.
type Writer interface {
	MergeOne(record notification.Record)
	MarkAllRead()
	DismissAll()
}

// Coordinator turns user intents into gateway calls and applies the
// server-confirmed outcome to the store. The store is never touched before the
// gateway confirms, nor after it fails.
type Coordinator struct {
	gateway notification.Gateway
	store   Writer
	logger  *slog.Logger
}

// NewCoordinator creates a coordinator writing into store
func NewCoordinator(gateway notification.Gateway, store Writer, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		gateway: gateway,
		store:   store,
		logger:  logger.With(slog.String("component", "notification_coordinator")),
	}
}

// MarkAsRead marks one notification as read
func (c *Coordinator) MarkAsRead(ctx context.Context, id string) error {
	if validator.IsEmpty(id) {
		return notification.ErrNotificationNotFound
	}

	updated, err := c.gateway.MarkRead(ctx, id)
	if err != nil {
		c.logger.Warn("mark read failed", slog.String("notification_id", id), slog.Any("error", err))
		return fmt.Errorf("mark %s read: %w", id, err)
	}

	// The confirmed record must be the one we asked for, moved on from Unread.
	if updated.ID != id || !confirmsRead(updated.Status) {
		c.logger.Warn("mark read returned unexpected record",
			slog.String("notification_id", id),
			slog.String("returned_id", updated.ID),
			slog.String("returned_status", string(updated.Status)),
		)
		return fmt.Errorf("mark %s read: %w", id, notification.ErrMalformedPayload)
	}

	c.store.MergeOne(updated)
	return nil
}

// MarkAllAsRead marks every notification as read
func (c *Coordinator) MarkAllAsRead(ctx context.Context) error {
	if err := c.gateway.MarkAllRead(ctx); err != nil {
		c.logger.Warn("mark all read failed", slog.Any("error", err))
		return fmt.Errorf("mark all read: %w", err)
	}

	c.store.MarkAllRead()
	return nil
}

// Dismiss removes one notification
func (c *Coordinator) Dismiss(ctx context.Context, id string) error {
	if validator.IsEmpty(id) {
		return notification.ErrNotificationNotFound
	}

	if err := c.gateway.DismissOne(ctx, id); err != nil {
		c.logger.Warn("dismiss failed", slog.String("notification_id", id), slog.Any("error", err))
		return fmt.Errorf("dismiss %s: %w", id, err)
	}

	c.store.MergeOne(notification.Dismissal(id))
	return nil
}

// DismissAll removes every notification
func (c *Coordinator) DismissAll(ctx context.Context) error {
	if err := c.gateway.DismissAll(ctx); err != nil {
		c.logger.Warn("dismiss all failed", slog.Any("error", err))
		return fmt.Errorf("dismiss all: %w", err)
	}

	c.store.DismissAll()
	return nil
}

func confirmsRead(status notification.Status) bool {
	return status != notification.StatusUnread && notification.StatusUnread.CanTransitionTo(status)
}
