package response

import (
	"errors"
	"net/http"

	"github.com/friendpicks/notifsync/internal/domain/notification"
	"github.com/friendpicks/notifsync/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	case errors.Is(err, notification.ErrNotificationNotFound):
		NotFound(w, "Notification not found")
	case errors.Is(err, notification.ErrSessionClosed):
		ServiceUnavailable(w, "Notification session is not active")
	case errors.Is(err, notification.ErrSessionActive):
		Conflict(w, "Notification session already started")
	case errors.Is(err, notification.ErrMalformedPayload):
		BadGateway(w, "Gateway returned a malformed notification")
	case errors.Is(err, notification.ErrGatewayFailure):
		BadGateway(w, err.Error())
	case errors.Is(err, notification.ErrInvalidStatus):
		BadRequest(w, "Invalid notification status", nil)

	// Default
	default:
		InternalServerError(w, "An unexpected error occurred")
	}
}
