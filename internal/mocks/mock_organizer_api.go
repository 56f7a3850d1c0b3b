package mocks

import (
	"context"

	"github.com/you/findmyseat/domain"
)

// MockOrganizerAPI implements domain.OrganizerAPI interface for testing
type MockOrganizerAPI struct {
	callRecorder

	ApplyFunc         func(ctx context.Context, form domain.OrganizerApplicationForm) (*domain.OrganizerApplication, error)
	MyApplicationFunc func(ctx context.Context) (*domain.OrganizerApplication, error)
}

// NewMockOrganizerAPI creates a new MockOrganizerAPI with default behaviors
func NewMockOrganizerAPI() *MockOrganizerAPI {
	return &MockOrganizerAPI{}
}

// Apply submits an organizer application
func (m *MockOrganizerAPI) Apply(ctx context.Context, form domain.OrganizerApplicationForm) (*domain.OrganizerApplication, error) {
	m.record("Apply")
	if m.ApplyFunc != nil {
		return m.ApplyFunc(ctx, form)
	}
	return &domain.OrganizerApplication{
		ID:               1,
		OrganizationName: form.OrganizationName,
		ContactEmail:     form.Email,
		IFSCCode:         form.IFSCCode,
		Status:           domain.ApplicationPending,
	}, nil
}

// MyApplication fetches the caller's application
func (m *MockOrganizerAPI) MyApplication(ctx context.Context) (*domain.OrganizerApplication, error) {
	m.record("MyApplication")
	if m.MyApplicationFunc != nil {
		return m.MyApplicationFunc(ctx)
	}
	return &domain.OrganizerApplication{ID: 1, Status: domain.ApplicationPending}, nil
}

// Compile-time interface compliance verification
var _ domain.OrganizerAPI = (*MockOrganizerAPI)(nil)
