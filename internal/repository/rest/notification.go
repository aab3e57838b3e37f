package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/friendpicks/notifsync/internal/domain/notification"
	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
)

const (
	pathNotifications = "/api/v1/notifications"
	pathReadAll       = "/api/v1/notifications/read-all"
)

// NotificationGateway implements notification.Gateway over the platform REST API
type NotificationGateway struct {
	client *resty.Client
	logger *slog.Logger
}

var _ notification.Gateway = (*NotificationGateway)(nil)

// NewNotificationGateway creates a gateway client. Every request carries a
// bearer token from tokens.
func NewNotificationGateway(baseURL string, timeout time.Duration, tokens oauth2.TokenSource, logger *slog.Logger) *NotificationGateway {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := oauth2.NewClient(context.Background(), oauth2.ReuseTokenSource(nil, tokens))
	client := resty.NewWithClient(httpClient).
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &NotificationGateway{
		client: client,
		logger: logger.With(slog.String("component", "notification_gateway")),
	}
}

// FetchAll retrieves the full notification list
func (g *NotificationGateway) FetchAll(ctx context.Context) ([]notification.Record, error) {
	payloads, err := execute[[]notification.RecordPayload](ctx, g, http.MethodGet, pathNotifications)
	if err != nil {
		return nil, err
	}

	// A single bad entry must not hide the rest of the list.
	records := make([]notification.Record, 0, len(payloads))
	for _, p := range payloads {
		r, err := p.ToRecord()
		if err != nil {
			g.logger.Warn("skipping malformed record", slog.String("notification_id", p.ID), slog.Any("error", err))
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

// MarkRead marks one notification as read and returns the updated record
func (g *NotificationGateway) MarkRead(ctx context.Context, id string) (notification.Record, error) {
	payload, err := execute[notification.RecordPayload](ctx, g, http.MethodPatch, recordPath(id)+"/read")
	if err != nil {
		return notification.Record{}, err
	}
	return payload.ToRecord()
}

// MarkAllRead marks every notification as read
func (g *NotificationGateway) MarkAllRead(ctx context.Context) error {
	_, err := execute[struct{}](ctx, g, http.MethodPatch, pathReadAll)
	return err
}

// DismissOne dismisses one notification
func (g *NotificationGateway) DismissOne(ctx context.Context, id string) error {
	_, err := execute[struct{}](ctx, g, http.MethodDelete, recordPath(id))
	return err
}

// DismissAll dismisses every notification
func (g *NotificationGateway) DismissAll(ctx context.Context) error {
	_, err := execute[struct{}](ctx, g, http.MethodDelete, pathNotifications)
	return err
}

func recordPath(id string) string {
	return pathNotifications + "/" + url.PathEscape(id)
}

// execute performs one request and unwraps the response envelope.
func execute[T any](ctx context.Context, g *NotificationGateway, method, path string) (T, error) {
	var (
		zero   T
		result notification.Envelope[T]
		failed notification.Envelope[struct{}]
	)

	resp, err := g.client.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&failed).
		Execute(method, path)
	if err != nil {
		g.logger.Warn("gateway request failed", slog.String("method", method), slog.String("path", path), slog.Any("error", err))
		return zero, fmt.Errorf("%w: %s %s: %v", notification.ErrGatewayFailure, method, path, err)
	}

	if resp.IsError() {
		msg := resp.Status()
		if failed.Error != nil && failed.Error.Message != "" {
			msg = failed.Error.Message
		}
		g.logger.Warn("gateway returned error",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode()),
			slog.String("message", msg),
		)
		if resp.StatusCode() == http.StatusNotFound {
			return zero, fmt.Errorf("%w: %s", notification.ErrNotificationNotFound, msg)
		}
		return zero, fmt.Errorf("%w: %s", notification.ErrGatewayFailure, msg)
	}

	if !result.Success {
		msg := "request was not successful"
		if result.Error != nil && result.Error.Message != "" {
			msg = result.Error.Message
		}
		return zero, fmt.Errorf("%w: %s", notification.ErrGatewayFailure, msg)
	}

	return result.Data, nil
}
