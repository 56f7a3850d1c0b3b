package services

import (
	"testing"
)

func TestOperationTracker_Lifecycle(t *testing.T) {
	tracker := NewOperationTracker()

	if s := tracker.State(OpLogin); s.Status != StatusIdle {
		t.Fatalf("expected idle, got %s", s.Status)
	}

	attempt := tracker.Begin(OpLogin)
	if s := tracker.State(OpLogin); s.Status != StatusSubmitting {
		t.Fatalf("expected submitting, got %s", s.Status)
	}

	if !tracker.Fail(OpLogin, attempt, "Login failed") {
		t.Fatal("latest attempt must resolve")
	}
	s := tracker.State(OpLogin)
	if s.Status != StatusFailed || s.Error != "Login failed" {
		t.Errorf("unexpected state %+v", s)
	}

	attempt = tracker.Begin(OpLogin)
	if s := tracker.State(OpLogin); s.Error != "" {
		t.Errorf("resubmission must clear the previous error, got %q", s.Error)
	}
	tracker.Succeed(OpLogin, attempt, "")
	if s := tracker.State(OpLogin); s.Status != StatusSuccess || !s.Success {
		t.Errorf("unexpected state %+v", s)
	}
}

func TestOperationTracker_OnlyLatestAttemptResolves(t *testing.T) {
	tracker := NewOperationTracker()

	first := tracker.Begin(OpLogin)
	second := tracker.Begin(OpLogin)

	if tracker.Succeed(OpLogin, first, "") {
		t.Fatal("superseded attempt must not resolve")
	}
	if s := tracker.State(OpLogin); s.Status != StatusSubmitting {
		t.Fatalf("state must still be submitting, got %s", s.Status)
	}
	if !tracker.Fail(OpLogin, second, "Login failed") {
		t.Fatal("latest attempt must resolve")
	}
}

func TestOperationTracker_KindsAreIndependent(t *testing.T) {
	tracker := NewOperationTracker()

	login := tracker.Begin(OpLogin)
	register := tracker.Begin(OpRegister)

	tracker.Fail(OpRegister, register, "Registration failed")
	tracker.Succeed(OpLogin, login, "")

	if tracker.State(OpLogin).Status != StatusSuccess {
		t.Error("login should have succeeded")
	}
	if tracker.State(OpRegister).Status != StatusFailed {
		t.Error("register should have failed")
	}
}

func TestOperationTracker_RejectReplacesServerError(t *testing.T) {
	tracker := NewOperationTracker()

	attempt := tracker.Begin(OpRegister)
	tracker.Fail(OpRegister, attempt, "Email already registered")
	tracker.Reject(OpRegister, map[string]string{"name": "Must be at least 3 characters"})

	s := tracker.State(OpRegister)
	if s.Error != "" {
		t.Errorf("local validation must replace the server error, got %q", s.Error)
	}
	if s.FieldErrors["name"] == "" {
		t.Error("expected a name field error")
	}

	// an in-flight attempt is superseded by the rejection
	if tracker.Succeed(OpRegister, attempt, "") {
		t.Error("attempt before rejection must not resolve")
	}
}

func TestOperationTracker_EditClearsFieldError(t *testing.T) {
	tracker := NewOperationTracker()
	tracker.Reject(OpLogin, map[string]string{
		"email":    "Invalid email address",
		"password": "Password is required",
	})

	tracker.Edit(OpLogin, "email")

	s := tracker.State(OpLogin)
	if _, ok := s.FieldErrors["email"]; ok {
		t.Error("email error should be cleared on edit")
	}
	if s.FieldErrors["password"] == "" {
		t.Error("password error should remain")
	}
}

func TestOperationTracker_TerminalIgnoresEdit(t *testing.T) {
	tracker := NewOperationTracker()
	tracker.Terminate(OpResetPassword, "Invalid reset link")
	tracker.Edit(OpResetPassword, "")

	s := tracker.State(OpResetPassword)
	if !s.Terminal || s.Error != "Invalid reset link" {
		t.Errorf("terminal state must survive edits, got %+v", s)
	}
}

func TestOperationTracker_ClearSuccessAndReset(t *testing.T) {
	tracker := NewOperationTracker()
	attempt := tracker.Begin(OpChangePassword)
	tracker.Succeed(OpChangePassword, attempt, "Password changed successfully")

	tracker.ClearSuccess(OpChangePassword)
	if s := tracker.State(OpChangePassword); s.Success || s.Status != StatusIdle {
		t.Errorf("success flag should be cleared, got %+v", s)
	}

	attempt = tracker.Begin(OpLogin)
	tracker.Reset(OpLogin)
	if tracker.Succeed(OpLogin, attempt, "") {
		t.Error("reset must invalidate in-flight attempts")
	}
}

func TestOperationTracker_StateIsACopy(t *testing.T) {
	tracker := NewOperationTracker()
	tracker.Reject(OpLogin, map[string]string{"email": "Invalid email address"})

	s := tracker.State(OpLogin)
	s.FieldErrors["email"] = "mutated"

	if tracker.State(OpLogin).FieldErrors["email"] != "Invalid email address" {
		t.Error("callers must not be able to mutate tracked state")
	}
}

func TestParseOperationKind(t *testing.T) {
	if k, ok := ParseOperationKind("change_password"); !ok || k != OpChangePassword {
		t.Errorf("expected change_password, got %q %v", k, ok)
	}
	if _, ok := ParseOperationKind("refresh_token"); ok {
		t.Error("unknown kinds must not parse")
	}
}
