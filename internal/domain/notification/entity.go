package notification

import (
	"time"
)

// Kind represents the category of a notification
type Kind string

const (
	KindSuggestion     Kind = "Suggestion"
	KindLike           Kind = "Like"
	KindComment        Kind = "Comment"
	KindSystem         Kind = "System"
	KindFollowRequest  Kind = "FollowRequest"
	KindFollowAccepted Kind = "FollowAccepted"
	KindFollowedYou    Kind = "FollowedYou"
	KindNewContent     Kind = "NewContent"
	KindMention        Kind = "Mention"
	KindOther          Kind = "Other"
)

// AllKinds returns all known notification kinds
func AllKinds() []Kind {
	return []Kind{
		KindSuggestion,
		KindLike,
		KindComment,
		KindSystem,
		KindFollowRequest,
		KindFollowAccepted,
		KindFollowedYou,
		KindNewContent,
		KindMention,
		KindOther,
	}
}

// ParseKind maps a wire value to a Kind. Unknown values become KindOther.
func ParseKind(s string) Kind {
	for _, k := range AllKinds() {
		if string(k) == s {
			return k
		}
	}
	return KindOther
}

// Status is the lifecycle state of a notification
type Status string

const (
	StatusUnread    Status = "Unread"
	StatusRead      Status = "Read"
	StatusDismissed Status = "Dismissed"
)

// ParseStatus validates a wire status value
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusUnread, StatusRead, StatusDismissed:
		return Status(s), nil
	}
	return "", ErrInvalidStatus
}

// CanTransitionTo reports whether next is reachable from s.
// Dismissed is terminal.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusUnread:
		return next == StatusRead || next == StatusDismissed
	case StatusRead:
		return next == StatusDismissed
	}
	return false
}

// Sender is the actor a notification originates from
type Sender struct {
	ID          string
	Username    string
	DisplayName string
	AvatarURL   string
}

// Record represents a notification as held client-side
type Record struct {
	ID        string
	Kind      Kind
	Status    Status
	Message   string
	CreatedAt time.Time
	Sender    *Sender
	Metadata  map[string]interface{}
}

// IsUnread reports whether the record counts toward the unread counter
func (r Record) IsUnread() bool {
	return r.Status == StatusUnread
}

// Dismissal builds the record used to remove id from a collection
func Dismissal(id string) Record {
	return Record{ID: id, Status: StatusDismissed}
}

// Clone returns a copy that shares no mutable state with r
func (r Record) Clone() Record {
	out := r
	if r.Sender != nil {
		s := *r.Sender
		out.Sender = &s
	}
	if r.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
