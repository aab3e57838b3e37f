package notification

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/friendpicks/notifsync/internal/pkg/validator"
)

// ============= Wire DTOs =============

// SenderPayload is the optional actor object carried by a record in transit
type SenderPayload struct {
	ID          string `json:"id" validate:"required"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// RecordPayload is a notification as sent by the gateway and the push channel
type RecordPayload struct {
	ID        string                 `json:"id" validate:"required"`
	Kind      string                 `json:"type"`
	Status    string                 `json:"status" validate:"required,oneof=Unread Read Dismissed"`
	Message   string                 `json:"message"`
	CreatedAt string                 `json:"createdAt" validate:"required_unless=Status Dismissed,omitempty,datetime_iso"`
	Sender    *SenderPayload         `json:"sender,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// ToRecord validates the payload and converts it into a Record
func (p RecordPayload) ToRecord() (Record, error) {
	if err := validator.Struct(p); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	status, err := ParseStatus(p.Status)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	createdAt, _ := validator.IsValidDateTime(p.CreatedAt)

	r := Record{
		ID:        p.ID,
		Kind:      ParseKind(p.Kind),
		Status:    status,
		Message:   p.Message,
		CreatedAt: createdAt.UTC(),
		Metadata:  p.Metadata,
	}
	if p.Sender != nil {
		r.Sender = &Sender{
			ID:          p.Sender.ID,
			Username:    p.Sender.Username,
			DisplayName: p.Sender.DisplayName,
			AvatarURL:   p.Sender.AvatarURL,
		}
	}
	return r, nil
}

// ToPayload converts a Record into its wire form
func ToPayload(r Record) RecordPayload {
	p := RecordPayload{
		ID:        r.ID,
		Kind:      string(r.Kind),
		Status:    string(r.Status),
		Message:   r.Message,
		CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339Nano),
		Metadata:  r.Metadata,
	}
	if r.Sender != nil {
		p.Sender = &SenderPayload{
			ID:          r.Sender.ID,
			Username:    r.Sender.Username,
			DisplayName: r.Sender.DisplayName,
			AvatarURL:   r.Sender.AvatarURL,
		}
	}
	return p
}

// ============= Gateway envelope =============

// ErrorDetail is the error object of a failed gateway response
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Envelope wraps every gateway response
type Envelope[T any] struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    T            `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// ============= Push Channel =============

// EventNotification is the push event carrying notification changes
const EventNotification = "notification"

// PushEvent is a frame received from the push channel. Data is decoded
// according to Event.
type PushEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinMessage announces the session identity after every (re)connect
type JoinMessage struct {
	Event  string `json:"event"`
	UserID string `json:"userId"`
}

// NewJoinMessage builds the join handshake frame for userID
func NewJoinMessage(userID string) JoinMessage {
	return JoinMessage{Event: "join", UserID: userID}
}

// ============= Consumer DTOs =============

// ListQuery is the raw filter a local consumer sends with a list request
type ListQuery struct {
	Kinds      []string `json:"kind" validate:"omitempty,dive,oneof=Suggestion Like Comment System FollowRequest FollowAccepted FollowedYou NewContent Mention Other"`
	From       string   `json:"from" validate:"omitempty,datetime_iso"`
	To         string   `json:"to" validate:"omitempty,datetime_iso"`
	UnreadOnly bool     `json:"unread_only"`
}

// Validate checks the query and converts it into a SnapshotFilter
func (q ListQuery) Validate() (SnapshotFilter, error) {
	if err := validator.Struct(q); err != nil {
		return SnapshotFilter{}, err
	}

	f := SnapshotFilter{UnreadOnly: q.UnreadOnly}
	for _, k := range q.Kinds {
		f.Kinds = append(f.Kinds, Kind(k))
	}
	if t, ok := validator.IsValidDateTime(q.From); ok {
		f.From = &t
	}
	if t, ok := validator.IsValidDateTime(q.To); ok {
		f.To = &t
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return SnapshotFilter{}, validator.ValidationErrors{{Field: "to", Message: "must be after from"}}
	}
	return f, nil
}

// ListResponse is returned to local UI consumers
type ListResponse struct {
	Notifications []RecordPayload `json:"notifications"`
	UnreadCount   int             `json:"unread_count"`
	Total         int             `json:"total"`
	Version       uint64          `json:"version"`
}

// UnreadCountResponse represents unread count response
type UnreadCountResponse struct {
	UnreadCount int `json:"unread_count"`
}

// NewListResponse builds a consumer response from a filtered snapshot
func NewListResponse(s Snapshot, records []Record) ListResponse {
	payloads := make([]RecordPayload, len(records))
	for i, r := range records {
		payloads[i] = ToPayload(r)
	}
	return ListResponse{
		Notifications: payloads,
		UnreadCount:   s.UnreadCount,
		Total:         len(s.Notifications),
		Version:       s.Version,
	}
}
