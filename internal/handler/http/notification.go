package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/friendpicks/notifsync/internal/domain/notification"
	"github.com/friendpicks/notifsync/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

const keepaliveInterval = 30 * time.Second

// NotificationHandler defines the notification handler interface
type NotificationHandler interface {
	// Reads
	List(w http.ResponseWriter, r *http.Request)
	UnreadCount(w http.ResponseWriter, r *http.Request)

	// Actions
	MarkAsRead(w http.ResponseWriter, r *http.Request)
	MarkAllAsRead(w http.ResponseWriter, r *http.Request)
	Dismiss(w http.ResponseWriter, r *http.Request)
	DismissAll(w http.ResponseWriter, r *http.Request)

	// SSE
	Stream(w http.ResponseWriter, r *http.Request)
}

type notificationHandlerImpl struct {
	notifService notification.Service
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notifService notification.Service) NotificationHandler {
	return &notificationHandlerImpl{
		notifService: notifService,
	}
}

// getBoolQueryParam gets a bool query parameter with a default value
func getBoolQueryParam(r *http.Request, key string, defaultVal bool) bool {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	return val == "true" || val == "1"
}

// listQueryFromRequest accepts kind both repeated and comma separated
func listQueryFromRequest(r *http.Request) notification.ListQuery {
	q := r.URL.Query()
	var kinds []string
	for _, v := range q["kind"] {
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				kinds = append(kinds, k)
			}
		}
	}
	return notification.ListQuery{
		Kinds:      kinds,
		From:       q.Get("from"),
		To:         q.Get("to"),
		UnreadOnly: getBoolQueryParam(r, "unread_only", false),
	}
}

// List returns the synchronized notifications, optionally filtered
func (h *notificationHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	filter, err := listQueryFromRequest(r).Validate()
	if err != nil {
		response.HandleError(w, err)
		return
	}

	snapshot := h.notifService.Snapshot()
	response.Success(w, notification.NewListResponse(snapshot, snapshot.Filter(filter)))
}

// UnreadCount returns the count of unread notifications
func (h *notificationHandlerImpl) UnreadCount(w http.ResponseWriter, r *http.Request) {
	response.Success(w, notification.UnreadCountResponse{UnreadCount: h.notifService.UnreadCount()})
}

// MarkAsRead marks one notification as read
func (h *notificationHandlerImpl) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	notifID := chi.URLParam(r, "id")
	if notifID == "" {
		response.BadRequest(w, "Notification ID is required", nil)
		return
	}

	if err := h.notifService.MarkAsRead(r.Context(), notifID); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Notification marked as read", nil)
}

// MarkAllAsRead marks all notifications as read
func (h *notificationHandlerImpl) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	if err := h.notifService.MarkAllAsRead(r.Context()); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "All notifications marked as read", nil)
}

// Dismiss removes a notification
func (h *notificationHandlerImpl) Dismiss(w http.ResponseWriter, r *http.Request) {
	notifID := chi.URLParam(r, "id")
	if notifID == "" {
		response.BadRequest(w, "Notification ID is required", nil)
		return
	}

	if err := h.notifService.Dismiss(r.Context(), notifID); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Notification dismissed", nil)
}

// DismissAll removes every notification
func (h *notificationHandlerImpl) DismissAll(w http.ResponseWriter, r *http.Request) {
	if err := h.notifService.DismissAll(r.Context()); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "All notifications dismissed", nil)
}

// Stream pushes a snapshot event on connect and after every change.
// The list query filters apply to every event.
func (h *notificationHandlerImpl) Stream(w http.ResponseWriter, r *http.Request) {
	filter, err := listQueryFromRequest(r).Validate()
	if err != nil {
		response.HandleError(w, err)
		return
	}

	// Check if streaming is supported
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	snapshots, cleanup := h.notifService.Watch()
	defer cleanup()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case snapshot, ok := <-snapshots:
			if !ok {
				return
			}
			data, err := json.Marshal(notification.NewListResponse(snapshot, snapshot.Filter(filter)))
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data)
			flusher.Flush()

		case <-keepalive.C:
			fmt.Fprintf(w, "event: ping\ndata: {\"timestamp\":%d}\n\n", time.Now().Unix())
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
