package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
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

type adminFixture struct {
	svc    *AdminService
	api    *mocks.MockAdminAPI
	state  *repositories.MemoryStateStore
	users  *session.Store
	events *mocks.MockEventLogger
}

func createAdminServiceForTest(t *testing.T) *adminFixture {
	t.Helper()

	state := repositories.NewMemoryStateStore()
	tokens := auth.NewTokenInspector(func() time.Time { return testNow })
	api := mocks.NewMockAdminAPI()
	events := mocks.NewMockEventLogger()
	svc := NewAdminService(api, session.NewAdminStore(state, tokens), NewOperationTracker(), newTestValidator(t), events, nil)

	return &adminFixture{
		svc:    svc,
		api:    api,
		state:  state,
		users:  session.NewUserStore(state, tokens),
		events: events,
	}
}

func TestAdminService_LoginIsIsolatedFromUserSession(t *testing.T) {
	f := createAdminServiceForTest(t)
	ctx := createTestContext(t)

	require.NoError(t, f.svc.Login(ctx, domain.Credentials{Email: "admin@b.com", Password: "secret1"}))

	admin := f.svc.Session(ctx)
	assert.True(t, admin.IsAuthenticated)
	assert.Equal(t, "admin", admin.User.Role)
	assert.Equal(t, "admin_token_123", storedValue(t, f.state, domain.KeyAdminAccessToken))
	assert.Empty(t, storedValue(t, f.state, domain.KeyAccessToken))
	assert.False(t, f.users.Snapshot(ctx).IsAuthenticated, "admin login never authenticates the user session")
	assert.Equal(t, 1, f.events.Count(domain.AdminLoginEvent))
}

func TestAdminService_LoginFailure(t *testing.T) {
	tests := []struct {
		name          string
		apiErr        error
		expectedError string
	}{
		{
			name:          "server reason",
			apiErr:        &domain.APIError{Status: 403, Message: "Admin access required"},
			expectedError: "Admin access required",
		},
		{
			name:          "no readable reason",
			apiErr:        errors.New("connection reset"),
			expectedError: MsgAdminLoginFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := createAdminServiceForTest(t)
			ctx := createTestContext(t)
			f.api.LoginFunc = func(ctx context.Context, email, password string) (*domain.AuthResult, error) {
				return nil, tt.apiErr
			}

			err := f.svc.Login(ctx, domain.Credentials{Email: "admin@b.com", Password: "secret1"})
			require.Error(t, err)

			admin := f.svc.Session(ctx)
			assert.False(t, admin.IsAuthenticated)
			assert.Equal(t, tt.expectedError, admin.Error)
			assert.Equal(t, tt.expectedError, f.svc.State(OpAdminLogin).Error)
		})
	}
}

func TestAdminService_LogoutDeletesOnlyAdminToken(t *testing.T) {
	f := createAdminServiceForTest(t)
	ctx := createTestContext(t)

	require.NoError(t, f.state.Set(ctx, domain.KeyAccessToken, "user-token"))
	require.NoError(t, f.state.Set(ctx, domain.KeyOTPPhone, "9123456789"))
	require.NoError(t, f.svc.Login(ctx, domain.Credentials{Email: "admin@b.com", Password: "secret1"}))

	require.NoError(t, f.svc.Logout(ctx))

	assert.False(t, f.svc.Session(ctx).IsAuthenticated)
	assert.Empty(t, storedValue(t, f.state, domain.KeyAdminAccessToken))
	assert.Equal(t, "user-token", storedValue(t, f.state, domain.KeyAccessToken))
	assert.Equal(t, "9123456789", storedValue(t, f.state, domain.KeyOTPPhone))
}

func TestAdminService_UpdateStatus(t *testing.T) {
	tests := []struct {
		name           string
		update         domain.StatusUpdate
		expectedErr    error
		expectedReason string
		expectedCalls  int
	}{
		{
			name:          "rejection without reason",
			update:        domain.StatusUpdate{Status: domain.ApplicationRejected, Reason: "   "},
			expectedErr:   domain.ErrRejectionReasonRequired,
			expectedCalls: 0,
		},
		{
			name:           "rejection with reason",
			update:         domain.StatusUpdate{Status: domain.ApplicationRejected, Reason: "Incomplete bank details"},
			expectedReason: "Incomplete bank details",
			expectedCalls:  1,
		},
		{
			name:           "approval drops a supplied reason",
			update:         domain.StatusUpdate{Status: domain.ApplicationApproved, Reason: "looks fine"},
			expectedReason: "",
			expectedCalls:  1,
		},
		{
			name:          "unknown status",
			update:        domain.StatusUpdate{Status: "archived"},
			expectedErr:   domain.ErrUnknownStatus,
			expectedCalls: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := createAdminServiceForTest(t)
			ctx := createTestContext(t)

			var sent domain.StatusUpdate
			f.api.UpdateApplicationStatusFunc = func(ctx context.Context, id uint, update domain.StatusUpdate) (*domain.OrganizerApplication, error) {
				sent = update
				return &domain.OrganizerApplication{ID: id, Status: update.Status, RejectionReason: update.Reason}, nil
			}

			app, err := f.svc.UpdateStatus(ctx, 7, tt.update)
			assert.Equal(t, tt.expectedCalls, f.api.CallCount("UpdateApplicationStatus"))

			if tt.expectedErr != nil {
				assert.True(t, errors.Is(err, tt.expectedErr))
				var vErr *domain.ValidationError
				assert.True(t, errors.As(err, &vErr))
				assert.Equal(t, StatusFailed, f.svc.State(OpAdminUpdateStatus).Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedReason, sent.Reason)
			assert.Equal(t, tt.update.Status, app.Status)
			assert.Equal(t, MsgStatusUpdated, f.svc.State(OpAdminUpdateStatus).Message)
			assert.Equal(t, 1, f.events.Count(domain.ApplicationReviewEvent))
		})
	}
}

func TestAdminService_ListApplications(t *testing.T) {
	f := createAdminServiceForTest(t)
	ctx := createTestContext(t)

	var gotStatus domain.ApplicationStatus
	f.api.ListApplicationsFunc = func(ctx context.Context, status domain.ApplicationStatus) ([]domain.OrganizerApplication, error) {
		gotStatus = status
		return []domain.OrganizerApplication{{ID: 1, Status: domain.ApplicationPending}}, nil
	}

	apps, err := f.svc.ListApplications(ctx, domain.ApplicationPending)
	require.NoError(t, err)
	assert.Len(t, apps, 1)
	assert.Equal(t, domain.ApplicationPending, gotStatus)

	_, err = f.svc.ListApplications(ctx, "archived")
	assert.True(t, errors.Is(err, domain.ErrUnknownStatus))
	assert.Equal(t, 1, f.api.CallCount("ListApplications"))

	f.api.ListApplicationsFunc = func(ctx context.Context, status domain.ApplicationStatus) ([]domain.OrganizerApplication, error) {
		return nil, errors.New("timeout")
	}
	_, err = f.svc.ListApplications(ctx, "")
	require.Error(t, err)
	assert.Equal(t, MsgFetchAppsFailed, f.svc.State(OpAdminListApplications).Error)
}

func TestAdminService_ConcurrentListsShareOneRequest(t *testing.T) {
	f := createAdminServiceForTest(t)
	ctx := createTestContext(t)

	called := make(chan struct{}, 2)
	release := make(chan struct{})
	f.api.ListApplicationsFunc = func(ctx context.Context, status domain.ApplicationStatus) ([]domain.OrganizerApplication, error) {
		called <- struct{}{}
		<-release
		return []domain.OrganizerApplication{{ID: 3}}, nil
	}

	var wg sync.WaitGroup
	results := make([][]domain.OrganizerApplication, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			apps, err := f.svc.ListApplications(ctx, domain.ApplicationPending)
			assert.NoError(t, err)
			results[i] = apps
		}(i)
		if i == 0 {
			<-called
		}
	}

	// give the second caller time to join the in-flight fetch
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, f.api.CallCount("ListApplications"))
	for _, apps := range results {
		require.Len(t, apps, 1)
		assert.Equal(t, uint(3), apps[0].ID)
	}
	results[0][0].ID = 99
	assert.Equal(t, uint(3), results[1][0].ID, "each caller gets its own copy")
}

func TestAdminService_GetApplication(t *testing.T) {
	f := createAdminServiceForTest(t)
	ctx := createTestContext(t)

	app, err := f.svc.GetApplication(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, uint(42), app.ID)

	f.api.GetApplicationFunc = func(ctx context.Context, id uint) (*domain.OrganizerApplication, error) {
		return nil, &domain.APIError{Status: 404, Message: "Application not found"}
	}
	_, err = f.svc.GetApplication(ctx, 43)
	require.Error(t, err)
	assert.Equal(t, "Application not found", f.svc.State(OpAdminGetApplication).Error)
}

func TestAdminService_FetchAfterLogoutIsDropped(t *testing.T) {
	f := createAdminServiceForTest(t)
	ctx := createTestContext(t)
	require.NoError(t, f.svc.Login(ctx, domain.Credentials{Email: "admin@b.com", Password: "secret1"}))

	called := make(chan struct{})
	release := make(chan struct{})
	f.api.GetApplicationFunc = func(ctx context.Context, id uint) (*domain.OrganizerApplication, error) {
		close(called)
		<-release
		return &domain.OrganizerApplication{ID: id}, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.GetApplication(ctx, 5)
		done <- err
	}()
	<-called
	require.NoError(t, f.svc.Logout(ctx))
	close(release)

	assert.True(t, errors.Is(<-done, domain.ErrStaleResponse))
	assert.Equal(t, StatusIdle, f.svc.State(OpAdminGetApplication).Status)
}

func TestAdminService_FetchDoesNotJoinAcrossSessions(t *testing.T) {
	f := createAdminServiceForTest(t)
	ctx := createTestContext(t)
	require.NoError(t, f.svc.Login(ctx, domain.Credentials{Email: "old@b.com", Password: "secret1"}))

	var calls int32
	firstCalled := make(chan struct{})
	release := make(chan struct{})
	f.api.ListApplicationsFunc = func(ctx context.Context, status domain.ApplicationStatus) ([]domain.OrganizerApplication, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(firstCalled)
			<-release
			return []domain.OrganizerApplication{{ID: 42, OrganizationName: "previous admin"}}, nil
		}
		return []domain.OrganizerApplication{{ID: 7, OrganizationName: "current admin"}}, nil
	}

	oldDone := make(chan error, 1)
	go func() {
		_, err := f.svc.ListApplications(ctx, domain.ApplicationPending)
		oldDone <- err
	}()
	<-firstCalled

	require.NoError(t, f.svc.Logout(ctx))
	require.NoError(t, f.svc.Login(ctx, domain.Credentials{Email: "new@b.com", Password: "secret1"}))

	apps, err := f.svc.ListApplications(ctx, domain.ApplicationPending)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, uint(7), apps[0].ID)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	close(release)
	assert.True(t, errors.Is(<-oldDone, domain.ErrStaleResponse))
	assert.Equal(t, StatusSuccess, f.svc.State(OpAdminListApplications).Status)
}

func TestAdminService_CoalescedFetchSurvivesFirstCallerLeaving(t *testing.T) {
	f := createAdminServiceForTest(t)
	ctx := createTestContext(t)

	called := make(chan struct{})
	release := make(chan struct{})
	f.api.ListApplicationsFunc = func(ctx context.Context, status domain.ApplicationStatus) ([]domain.OrganizerApplication, error) {
		close(called)
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []domain.OrganizerApplication{{ID: 3}}, nil
	}

	firstCtx, cancelFirst := context.WithCancel(ctx)
	defer cancelFirst()
	firstDone := make(chan error, 1)
	go func() {
		_, err := f.svc.ListApplications(firstCtx, domain.ApplicationPending)
		firstDone <- err
	}()
	<-called

	type result struct {
		apps []domain.OrganizerApplication
		err  error
	}
	secondDone := make(chan result, 1)
	go func() {
		apps, err := f.svc.ListApplications(ctx, domain.ApplicationPending)
		secondDone <- result{apps, err}
	}()

	// give the second caller time to join the in-flight fetch
	time.Sleep(50 * time.Millisecond)
	cancelFirst()
	assert.Error(t, <-firstDone)

	close(release)
	second := <-secondDone
	require.NoError(t, second.err)
	require.Len(t, second.apps, 1)
	assert.Equal(t, uint(3), second.apps[0].ID)
	assert.Equal(t, 1, f.api.CallCount("ListApplications"))
	assert.Equal(t, StatusSuccess, f.svc.State(OpAdminListApplications).Status)
}
