package mocks

import (
	"context"

	"github.com/you/findmyseat/domain"
)

// MockAdminAPI implements domain.AdminAPI interface for testing
type MockAdminAPI struct {
	callRecorder

	LoginFunc                   func(ctx context.Context, email, password string) (*domain.AuthResult, error)
	ListApplicationsFunc        func(ctx context.Context, status domain.ApplicationStatus) ([]domain.OrganizerApplication, error)
	GetApplicationFunc          func(ctx context.Context, id uint) (*domain.OrganizerApplication, error)
	UpdateApplicationStatusFunc func(ctx context.Context, id uint, update domain.StatusUpdate) (*domain.OrganizerApplication, error)
}

// NewMockAdminAPI creates a new MockAdminAPI with default behaviors
func NewMockAdminAPI() *MockAdminAPI {
	return &MockAdminAPI{}
}

// Login authenticates an administrator
func (m *MockAdminAPI) Login(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	m.record("Login")
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password)
	}
	return &domain.AuthResult{
		AccessToken: "admin_token_123",
		User:        &domain.User{ID: 100, Name: "Admin", Email: email, Role: "admin"},
	}, nil
}

// ListApplications lists organizer applications
func (m *MockAdminAPI) ListApplications(ctx context.Context, status domain.ApplicationStatus) ([]domain.OrganizerApplication, error) {
	m.record("ListApplications")
	if m.ListApplicationsFunc != nil {
		return m.ListApplicationsFunc(ctx, status)
	}
	return []domain.OrganizerApplication{}, nil
}

// GetApplication fetches one application
func (m *MockAdminAPI) GetApplication(ctx context.Context, id uint) (*domain.OrganizerApplication, error) {
	m.record("GetApplication")
	if m.GetApplicationFunc != nil {
		return m.GetApplicationFunc(ctx, id)
	}
	return &domain.OrganizerApplication{ID: id, Status: domain.ApplicationPending}, nil
}

// UpdateApplicationStatus records a review decision
func (m *MockAdminAPI) UpdateApplicationStatus(ctx context.Context, id uint, update domain.StatusUpdate) (*domain.OrganizerApplication, error) {
	m.record("UpdateApplicationStatus")
	if m.UpdateApplicationStatusFunc != nil {
		return m.UpdateApplicationStatusFunc(ctx, id, update)
	}
	return &domain.OrganizerApplication{ID: id, Status: update.Status, RejectionReason: update.Reason}, nil
}

// Compile-time interface compliance verification
var _ domain.AdminAPI = (*MockAdminAPI)(nil)
