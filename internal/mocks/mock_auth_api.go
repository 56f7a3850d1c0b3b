package mocks

import (
	"context"

	"github.com/you/findmyseat/domain"
)

// MockAuthAPI implements domain.AuthAPI interface for testing
type MockAuthAPI struct {
	callRecorder

	LoginFunc          func(ctx context.Context, email, password string) (*domain.AuthResult, error)
	RegisterFunc       func(ctx context.Context, name, email, phone, password string) error
	VerifyOTPFunc      func(ctx context.Context, phone, code string) (*domain.AuthResult, error)
	ResendOTPFunc      func(ctx context.Context, phone string) error
	ChangePasswordFunc func(ctx context.Context, currentPassword, newPassword string) error
	ForgotPasswordFunc func(ctx context.Context, email string) error
	ResetPasswordFunc  func(ctx context.Context, token, newPassword string) error
}

// NewMockAuthAPI creates a new MockAuthAPI with default behaviors
func NewMockAuthAPI() *MockAuthAPI {
	return &MockAuthAPI{}
}

// Login authenticates with email and password
func (m *MockAuthAPI) Login(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	m.record("Login")
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password)
	}
	// Default behavior: accept anything
	return &domain.AuthResult{
		AccessToken: "access_token_123",
		User:        &domain.User{ID: 1, Name: "Test User", Email: email, Phone: "9123456789", Role: "user"},
	}, nil
}

// Register creates an account
func (m *MockAuthAPI) Register(ctx context.Context, name, email, phone, password string) error {
	m.record("Register")
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, name, email, phone, password)
	}
	return nil
}

// VerifyOTP verifies a phone number
func (m *MockAuthAPI) VerifyOTP(ctx context.Context, phone, code string) (*domain.AuthResult, error) {
	m.record("VerifyOTP")
	if m.VerifyOTPFunc != nil {
		return m.VerifyOTPFunc(ctx, phone, code)
	}
	// Default behavior: accept "123456" as valid OTP
	if code != "123456" {
		return nil, &domain.APIError{Status: 400, Message: "Invalid OTP"}
	}
	return &domain.AuthResult{
		AccessToken: "access_token_otp",
		User:        &domain.User{ID: 1, Name: "Test User", Email: "test@example.com", Phone: phone, Role: "user"},
	}, nil
}

// ResendOTP requests a new code
func (m *MockAuthAPI) ResendOTP(ctx context.Context, phone string) error {
	m.record("ResendOTP")
	if m.ResendOTPFunc != nil {
		return m.ResendOTPFunc(ctx, phone)
	}
	return nil
}

// ChangePassword changes the signed-in user's password
func (m *MockAuthAPI) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	m.record("ChangePassword")
	if m.ChangePasswordFunc != nil {
		return m.ChangePasswordFunc(ctx, currentPassword, newPassword)
	}
	return nil
}

// ForgotPassword requests a reset link
func (m *MockAuthAPI) ForgotPassword(ctx context.Context, email string) error {
	m.record("ForgotPassword")
	if m.ForgotPasswordFunc != nil {
		return m.ForgotPasswordFunc(ctx, email)
	}
	return nil
}

// ResetPassword sets a new password using a reset token
func (m *MockAuthAPI) ResetPassword(ctx context.Context, token, newPassword string) error {
	m.record("ResetPassword")
	if m.ResetPasswordFunc != nil {
		return m.ResetPasswordFunc(ctx, token, newPassword)
	}
	return nil
}

// Compile-time interface compliance verification
var _ domain.AuthAPI = (*MockAuthAPI)(nil)
