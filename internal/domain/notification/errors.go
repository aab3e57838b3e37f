package notification

import "errors"

// Notification domain errors
var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrInvalidStatus        = errors.New("invalid notification status")
	ErrMalformedPayload     = errors.New("malformed notification payload")
	ErrGatewayFailure       = errors.New("notification gateway request failed")
	ErrSessionActive        = errors.New("notification session already started")
	ErrSessionClosed        = errors.New("notification session is not active")
	ErrMissingIdentity      = errors.New("session user id is unknown")
)
