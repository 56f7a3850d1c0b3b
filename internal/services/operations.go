package services

import (
	"sync"
)

// OperationKind names an independently tracked operation
type OperationKind string

const (
	OpLogin          OperationKind = "login"
	OpRegister       OperationKind = "register"
	OpVerifyOTP      OperationKind = "verify_otp"
	OpResendOTP      OperationKind = "resend_otp"
	OpChangePassword OperationKind = "change_password"
	OpForgotPassword OperationKind = "forgot_password"
	OpResetPassword  OperationKind = "reset_password"

	OpAdminLogin            OperationKind = "admin_login"
	OpAdminListApplications OperationKind = "admin_list_applications"
	OpAdminGetApplication   OperationKind = "admin_get_application"
	OpAdminUpdateStatus     OperationKind = "admin_update_status"

	OpOrganizerSubmit OperationKind = "organizer_submit"
	OpOrganizerFetch  OperationKind = "organizer_fetch"
)

// OperationKinds lists every tracked kind
var OperationKinds = []OperationKind{
	OpLogin, OpRegister, OpVerifyOTP, OpResendOTP, OpChangePassword, OpForgotPassword, OpResetPassword,
	OpAdminLogin, OpAdminListApplications, OpAdminGetApplication, OpAdminUpdateStatus,
	OpOrganizerSubmit, OpOrganizerFetch,
}

// ParseOperationKind returns the kind named s
func ParseOperationKind(s string) (OperationKind, bool) {
	for _, k := range OperationKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// OperationStatus is Idle → Submitting → {Success, Failed}
type OperationStatus string

const (
	StatusIdle       OperationStatus = "idle"
	StatusSubmitting OperationStatus = "submitting"
	StatusSuccess    OperationStatus = "success"
	StatusFailed     OperationStatus = "failed"
)

// OperationState is the observable state of one operation kind
type OperationState struct {
	Status      OperationStatus   `json:"status"`
	Error       string            `json:"error,omitempty"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
	Success     bool              `json:"success"`
	Message     string            `json:"message,omitempty"`
	Terminal    bool              `json:"terminal"`
}

type trackedOperation struct {
	state   OperationState
	attempt uint64
}

// OperationTracker keeps one state per kind. Each submission gets a new attempt
// number and only the latest attempt may resolve its kind.
type OperationTracker struct {
	mu  sync.Mutex
	ops map[OperationKind]*trackedOperation
}

// NewOperationTracker creates a tracker with every kind Idle
func NewOperationTracker() *OperationTracker {
	return &OperationTracker{ops: make(map[OperationKind]*trackedOperation)}
}

func (t *OperationTracker) get(kind OperationKind) *trackedOperation {
	op, ok := t.ops[kind]
	if !ok {
		op = &trackedOperation{state: OperationState{Status: StatusIdle}}
		t.ops[kind] = op
	}
	return op
}

// Begin moves kind to Submitting and returns the new attempt number
func (t *OperationTracker) Begin(kind OperationKind) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	op := t.get(kind)
	op.attempt++
	op.state = OperationState{Status: StatusSubmitting}
	return op.attempt
}

// Reject records local validation errors. It supersedes any in-flight attempt
// and replaces prior server errors.
func (t *OperationTracker) Reject(kind OperationKind, fields map[string]string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	op := t.get(kind)
	op.attempt++
	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	op.state = OperationState{Status: StatusFailed, FieldErrors: copied}
}

// Terminate records a blocking, non-retryable failure that never reached the network
func (t *OperationTracker) Terminate(kind OperationKind, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	op := t.get(kind)
	op.attempt++
	op.state = OperationState{Status: StatusFailed, Error: message, Terminal: true}
}

// Succeed resolves attempt as successful. It reports false when attempt is no
// longer the latest one.
func (t *OperationTracker) Succeed(kind OperationKind, attempt uint64, message string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	op := t.get(kind)
	if op.attempt != attempt {
		return false
	}
	op.state = OperationState{Status: StatusSuccess, Success: true, Message: message}
	return true
}

// Fail resolves attempt with a server or transport error
func (t *OperationTracker) Fail(kind OperationKind, attempt uint64, message string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	op := t.get(kind)
	if op.attempt != attempt {
		return false
	}
	op.state = OperationState{Status: StatusFailed, Error: message}
	return true
}

// IsLatest reports whether attempt is still the newest submission of kind
func (t *OperationTracker) IsLatest(kind OperationKind, attempt uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.get(kind).attempt == attempt
}

// Drop abandons attempt without changing what is shown, other than ending
// Submitting.
func (t *OperationTracker) Drop(kind OperationKind, attempt uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	op := t.get(kind)
	if op.attempt == attempt && op.state.Status == StatusSubmitting {
		op.state = OperationState{Status: StatusIdle}
	}
}

// Edit clears the error of field. An empty field clears the operation error.
func (t *OperationTracker) Edit(kind OperationKind, field string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	op := t.get(kind)
	if op.state.Terminal {
		return
	}
	if field == "" {
		op.state.Error = ""
		return
	}
	delete(op.state.FieldErrors, field)
}

// ClearSuccess resets a success flag so a later submission never shows stale success
func (t *OperationTracker) ClearSuccess(kind OperationKind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	op := t.get(kind)
	if op.state.Status == StatusSuccess {
		op.state = OperationState{Status: StatusIdle}
	}
}

// Reset returns kinds to Idle and invalidates their in-flight attempts
func (t *OperationTracker) Reset(kinds ...OperationKind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, kind := range kinds {
		op := t.get(kind)
		op.attempt++
		op.state = OperationState{Status: StatusIdle}
	}
}

// State returns a copy of kind's state
func (t *OperationTracker) State(kind OperationKind) OperationState {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.get(kind).state
	if s.FieldErrors != nil {
		copied := make(map[string]string, len(s.FieldErrors))
		for k, v := range s.FieldErrors {
			copied[k] = v
		}
		s.FieldErrors = copied
	}
	return s
}
