package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Session errors
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrStaleResponse    = errors.New("stale response dropped")
	ErrNoToken          = errors.New("no access token persisted")
)

// OTP errors
var (
	ErrOTPExpired    = errors.New("otp has expired")
	ErrNoPendingOTP  = errors.New("no pending otp for this phone number")
	ErrOTPCorrupted  = errors.New("stored otp expiry is unreadable")
	ErrOTPNotPending = errors.New("otp challenge is not pending")
)

// Token errors
var (
	ErrTokenExpired   = errors.New("token has expired")
	ErrTokenMalformed = errors.New("malformed token")
)

// Password reset errors
var (
	ErrInvalidResetLink = errors.New("invalid reset link")
)

// Admin errors
var (
	ErrRejectionReasonRequired = errors.New("rejection reason is required")
	ErrUnknownStatus           = errors.New("unknown application status")
	ErrInsufficientRole        = errors.New("insufficient role permissions")
)

// Policy errors
var (
	ErrInvalidPolicy = errors.New("invalid policy rule")
	ErrPolicyExists  = errors.New("policy rule already exists")
)

// State store errors
var (
	ErrKeyNotFound = errors.New("key not found")
)

// ValidationError carries field-scoped messages produced before any network call
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError for a single field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// APIError is a request the remote API rejected with a readable message
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// UserMessage returns the message to surface for err, or fallback when err has
// no structured server message (transport failures, undecodable bodies).
func UserMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
