package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/you/findmyseat/domain"
	"github.com/you/findmyseat/internal/infrastructure/auth"
	"github.com/you/findmyseat/internal/infrastructure/repositories"
	"github.com/you/findmyseat/internal/mocks"
	"github.com/you/findmyseat/internal/session"
)

func createOrganizerServiceForTest(t *testing.T, signedIn bool) (*OrganizerService, *mocks.MockOrganizerAPI) {
	t.Helper()

	state := repositories.NewMemoryStateStore()
	users := session.NewUserStore(state, auth.NewTokenInspector(func() time.Time { return testNow }))
	if signedIn {
		require.NoError(t, users.Authenticate(context.Background(), users.Begin(), "user-token", &domain.User{ID: 1, Email: "a@b.com"}))
	}
	api := mocks.NewMockOrganizerAPI()
	return NewOrganizerService(api, users, NewOperationTracker(), newTestValidator(t), nil), api
}

func validOrganizerForm() domain.OrganizerApplicationForm {
	return domain.OrganizerApplicationForm{
		OrganizationName: "Blue Tent Events",
		Address:          "12 MG Road, Bengaluru",
		ContactName:      "Asha Rao",
		Email:            "events@bluetent.in",
		Phone:            "9876543210",
		BeneficiaryName:  "Blue Tent Events",
		AccountType:      "Current",
		BankName:         "State Bank",
		AccountNumber:    "123456789012",
		IFSCCode:         " sbin0001234 ",
	}
}

func TestOrganizerService_Submit(t *testing.T) {
	svc, api := createOrganizerServiceForTest(t, true)
	ctx := createTestContext(t)

	var sent domain.OrganizerApplicationForm
	api.ApplyFunc = func(ctx context.Context, form domain.OrganizerApplicationForm) (*domain.OrganizerApplication, error) {
		sent = form
		return &domain.OrganizerApplication{ID: 9, Status: domain.ApplicationPending, ContactEmail: form.Email}, nil
	}

	app, err := svc.Submit(ctx, validOrganizerForm())
	require.NoError(t, err)
	assert.Equal(t, uint(9), app.ID)
	assert.Equal(t, "SBIN0001234", sent.IFSCCode, "IFSC is normalized before validation")

	state := svc.State(OpOrganizerSubmit)
	assert.True(t, state.Success)
	assert.Equal(t, MsgApplicationSubmitted, state.Message)

	svc.ClearState()
	assert.Equal(t, StatusIdle, svc.State(OpOrganizerSubmit).Status)
}

func TestOrganizerService_SubmitRejectsLocally(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(f *domain.OrganizerApplicationForm)
		expectedField string
		expectedMsg   string
	}{
		{
			name:          "short account number",
			mutate:        func(f *domain.OrganizerApplicationForm) { f.AccountNumber = "12345" },
			expectedField: "account_number",
			expectedMsg:   "Account number must be at least 9 digits",
		},
		{
			name:          "bad ifsc",
			mutate:        func(f *domain.OrganizerApplicationForm) { f.IFSCCode = "SBIN1234" },
			expectedField: "ifsc_code",
			expectedMsg:   "Invalid IFSC code format (e.g., SBIN0001234)",
		},
		{
			name:          "missing account type",
			mutate:        func(f *domain.OrganizerApplicationForm) { f.AccountType = "" },
			expectedField: "account_type",
			expectedMsg:   "Please select account type",
		},
		{
			name:          "short address",
			mutate:        func(f *domain.OrganizerApplicationForm) { f.Address = "MG Road" },
			expectedField: "address",
			expectedMsg:   "Must be at least 10 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, api := createOrganizerServiceForTest(t, true)
			ctx := createTestContext(t)

			form := validOrganizerForm()
			tt.mutate(&form)
			_, err := svc.Submit(ctx, form)

			var vErr *domain.ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.expectedMsg, vErr.Fields[tt.expectedField])
			assert.Equal(t, 0, api.TotalCalls())
		})
	}
}

func TestOrganizerService_RequiresSignedInUser(t *testing.T) {
	svc, api := createOrganizerServiceForTest(t, false)
	ctx := createTestContext(t)

	_, err := svc.Submit(ctx, validOrganizerForm())
	assert.True(t, errors.Is(err, domain.ErrNotAuthenticated))
	assert.True(t, svc.State(OpOrganizerSubmit).Terminal)

	_, err = svc.MyApplication(ctx)
	assert.True(t, errors.Is(err, domain.ErrNotAuthenticated))
	assert.Equal(t, 0, api.TotalCalls())
}

func TestOrganizerService_Fallbacks(t *testing.T) {
	svc, api := createOrganizerServiceForTest(t, true)
	ctx := createTestContext(t)

	api.ApplyFunc = func(ctx context.Context, form domain.OrganizerApplicationForm) (*domain.OrganizerApplication, error) {
		return nil, errors.New("EOF")
	}
	api.MyApplicationFunc = func(ctx context.Context) (*domain.OrganizerApplication, error) {
		return nil, &domain.APIError{Status: 404, Message: "No application found"}
	}

	_, err := svc.Submit(ctx, validOrganizerForm())
	require.Error(t, err)
	assert.Equal(t, MsgSubmitApplicationFailed, svc.State(OpOrganizerSubmit).Error)

	_, err = svc.MyApplication(ctx)
	require.Error(t, err)
	assert.Equal(t, "No application found", svc.State(OpOrganizerFetch).Error)
}
