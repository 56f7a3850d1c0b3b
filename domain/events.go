package domain

import (
	"context"
	"time"
)

// SessionEventType defines the type of session event
type SessionEventType string

const (
	// User session events
	LoginEvent           SessionEventType = "USER_LOGIN"
	LoginFailureEvent    SessionEventType = "USER_LOGIN_FAILED"
	RegistrationEvent    SessionEventType = "USER_REGISTERED"
	LogoutEvent          SessionEventType = "USER_LOGOUT"
	PasswordChangedEvent SessionEventType = "PASSWORD_CHANGED"
	PasswordResetEvent   SessionEventType = "PASSWORD_RESET"

	// OTP events
	OTPIssuedEvent   SessionEventType = "OTP_ISSUED"
	OTPVerifiedEvent SessionEventType = "OTP_VERIFIED"
	OTPExpiredEvent  SessionEventType = "OTP_EXPIRED"

	// Admin events
	AdminLoginEvent        SessionEventType = "ADMIN_LOGIN"
	AdminLogoutEvent       SessionEventType = "ADMIN_LOGOUT"
	ApplicationReviewEvent SessionEventType = "APPLICATION_REVIEWED"

	// Dropped responses
	StaleResponseEvent SessionEventType = "STALE_RESPONSE_DROPPED"
)

// SessionEvent represents something that changed a session store
type SessionEvent struct {
	EventType SessionEventType       `json:"event_type"`
	Operation string                 `json:"operation,omitempty"`
	Email     string                 `json:"email,omitempty"`
	Phone     string                 `json:"phone,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	ErrorMsg  string                 `json:"error_msg,omitempty"`
	Success   bool                   `json:"success"`
}

// EventLogger records session events
type EventLogger interface {
	LogEvent(ctx context.Context, event *SessionEvent)
}

// NewSessionEvent creates a new event with common fields populated
func NewSessionEvent(eventType SessionEventType, operation string) *SessionEvent {
	return &SessionEvent{
		EventType: eventType,
		Operation: operation,
		Timestamp: time.Now().UTC(),
		Metadata:  make(map[string]interface{}),
		Success:   true,
	}
}

// WithError sets error information on the event
func (e *SessionEvent) WithError(err error) *SessionEvent {
	e.Success = false
	if err != nil {
		e.ErrorMsg = err.Error()
	}
	return e
}

// WithEmail sets the email field
func (e *SessionEvent) WithEmail(email string) *SessionEvent {
	e.Email = email
	return e
}

// WithPhone sets the phone field
func (e *SessionEvent) WithPhone(phone string) *SessionEvent {
	e.Phone = phone
	return e
}

// WithMetadata adds metadata to the event
func (e *SessionEvent) WithMetadata(key string, value interface{}) *SessionEvent {
	e.Metadata[key] = value
	return e
}
