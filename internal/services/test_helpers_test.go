package services

import (
	"context"
	"testing"
	"time"

	"github.com/you/findmyseat/domain"
	"github.com/you/findmyseat/internal/config"
	"github.com/you/findmyseat/internal/infrastructure/auth"
	"github.com/you/findmyseat/internal/infrastructure/repositories"
	"github.com/you/findmyseat/internal/mocks"
	"github.com/you/findmyseat/internal/session"
	"github.com/you/findmyseat/internal/validation"
)

// testNow is the frozen start time used across service tests
var testNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

// flowFixture bundles an AuthFlow with the mocks behind it
type flowFixture struct {
	flow       *AuthFlow
	api        *mocks.MockAuthAPI
	clock      *mocks.MockClock
	state      *repositories.MemoryStateStore
	users      *session.Store
	ops        *OperationTracker
	challenges *OTPChallenges
	events     *mocks.MockEventLogger
}

func newTestValidator(t *testing.T) *validation.Validator {
	t.Helper()

	rules := config.DefaultRules()
	if err := rules.Compile(); err != nil {
		t.Fatalf("failed to compile rules: %v", err)
	}
	return validation.New(rules, 6)
}

// createAuthFlowForTest creates an AuthFlow with mock dependencies for testing
func createAuthFlowForTest(t *testing.T) *flowFixture {
	t.Helper()

	clock := mocks.NewMockClock(testNow)
	state := repositories.NewMemoryStateStore()
	users := session.NewUserStore(state, auth.NewTokenInspector(clock.Now))
	ops := NewOperationTracker()
	challenges := NewOTPChallenges(state, clock, 120*time.Second)
	api := mocks.NewMockAuthAPI()
	events := mocks.NewMockEventLogger()

	flow := NewAuthFlow(api, users, ops, challenges, NewOTPTimer(challenges, clock), newTestValidator(t), events, nil, 5*time.Second)
	t.Cleanup(flow.Close)

	return &flowFixture{
		flow:       flow,
		api:        api,
		clock:      clock,
		state:      state,
		users:      users,
		ops:        ops,
		challenges: challenges,
		events:     events,
	}
}

// validRegistration returns a registration that passes every local rule
func validRegistration() domain.Registration {
	return domain.Registration{
		Name:            "Asha Rao",
		Email:           "a@b.com",
		Phone:           "9123456789",
		Password:        "Abcdef12",
		ConfirmPassword: "Abcdef12",
	}
}

// createTestContext creates a context for testing with timeout
func createTestContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// storedValue reads key from the state store, "" when absent
func storedValue(t *testing.T, state domain.StateStore, key string) string {
	t.Helper()

	v, err := state.Get(context.Background(), key)
	if err != nil {
		return ""
	}
	return v
}
