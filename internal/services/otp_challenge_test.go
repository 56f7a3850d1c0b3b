package services

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/you/findmyseat/domain"
	"github.com/you/findmyseat/internal/infrastructure/repositories"
	"github.com/you/findmyseat/internal/mocks"
)

func newTestChallenges(t *testing.T) (*OTPChallenges, *mocks.MockClock, *repositories.MemoryStateStore) {
	t.Helper()
	clock := mocks.NewMockClock(testNow)
	state := repositories.NewMemoryStateStore()
	return NewOTPChallenges(state, clock, 120*time.Second), clock, state
}

func TestOTPChallenges_IssuePersistsAbsoluteDeadline(t *testing.T) {
	ctx := createTestContext(t)
	challenges, _, state := newTestChallenges(t)

	ch, err := challenges.Issue(ctx, "9123456789")
	require.NoError(t, err)

	assert.Equal(t, domain.OTPPending, ch.Status)
	assert.Equal(t, testNow.Add(120*time.Second), ch.ExpiresAt)
	assert.Equal(t, "9123456789", storedValue(t, state, domain.KeyOTPPhone))
	assert.Equal(t, strconv.FormatInt(testNow.Add(120*time.Second).UnixMilli(), 10), storedValue(t, state, domain.KeyOTPExpiry))
}

func TestOTPChallenges_ExpiresAfter121Seconds(t *testing.T) {
	ctx := createTestContext(t)
	challenges, clock, _ := newTestChallenges(t)

	_, err := challenges.Issue(ctx, "9123456789")
	require.NoError(t, err)

	clock.Set(testNow.Add(121 * time.Second))
	ch, err := challenges.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.OTPExpired, ch.Status)
	assert.Equal(t, 0, ch.Remaining(clock.Now()))
}

func TestOTPChallenges_ResumeExactlyOnce(t *testing.T) {
	ctx := createTestContext(t)
	challenges, clock, state := newTestChallenges(t)

	// register recorded the phone but the deadline was never written
	require.NoError(t, state.Set(ctx, domain.KeyOTPPhone, "9123456789"))

	first, err := challenges.Resume(ctx, "9123456789")
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(120*time.Second), first.ExpiresAt)

	// later checks must not extend the deadline
	clock.Set(testNow.Add(30 * time.Second))
	second, err := challenges.Resume(ctx, "9123456789")
	require.NoError(t, err)
	assert.Equal(t, first.ExpiresAt, second.ExpiresAt)
	assert.Equal(t, 90, second.Remaining(clock.Now()))

	// an expired deadline is kept as well; only resend recovers
	clock.Set(testNow.Add(200 * time.Second))
	third, err := challenges.Resume(ctx, "9123456789")
	require.NoError(t, err)
	assert.Equal(t, first.ExpiresAt, third.ExpiresAt)
	assert.Equal(t, domain.OTPExpired, third.Status)
}

func TestOTPChallenges_OneChallengeAtATime(t *testing.T) {
	ctx := createTestContext(t)
	challenges, _, _ := newTestChallenges(t)

	_, err := challenges.Issue(ctx, "9123456789")
	require.NoError(t, err)
	_, err = challenges.Issue(ctx, "9876543210")
	require.NoError(t, err)

	_, err = challenges.For(ctx, "9123456789")
	assert.True(t, errors.Is(err, domain.ErrNoPendingOTP))

	ch, err := challenges.For(ctx, "9876543210")
	require.NoError(t, err)
	assert.Equal(t, "9876543210", ch.Phone)
}

func TestOTPChallenges_CorruptedExpiry(t *testing.T) {
	ctx := createTestContext(t)
	challenges, _, state := newTestChallenges(t)

	require.NoError(t, state.Set(ctx, domain.KeyOTPPhone, "9123456789"))
	require.NoError(t, state.Set(ctx, domain.KeyOTPExpiry, "not-a-number"))

	_, err := challenges.Active(ctx)
	assert.True(t, errors.Is(err, domain.ErrOTPCorrupted))

	// resume repairs it with a fresh deadline
	ch, err := challenges.Resume(ctx, "9123456789")
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(120*time.Second), ch.ExpiresAt)
}

func TestOTPChallenges_MarkVerifiedDiscards(t *testing.T) {
	ctx := createTestContext(t)
	challenges, _, state := newTestChallenges(t)

	_, err := challenges.Issue(ctx, "9123456789")
	require.NoError(t, err)
	require.NoError(t, challenges.MarkVerified(ctx, "9123456789"))

	assert.True(t, challenges.Verified("9123456789"))
	assert.Empty(t, storedValue(t, state, domain.KeyOTPPhone))
	assert.Empty(t, storedValue(t, state, domain.KeyOTPExpiry))

	_, err = challenges.Active(ctx)
	assert.True(t, errors.Is(err, domain.ErrNoPendingOTP))

	challenges.Forget()
	assert.False(t, challenges.Verified("9123456789"))
}

func TestOTPChallenges_ResumeNeverCreatesAChallenge(t *testing.T) {
	ctx := createTestContext(t)

	t.Run("nothing stored", func(t *testing.T) {
		challenges, _, state := newTestChallenges(t)

		_, err := challenges.Resume(ctx, "9123456789")
		assert.True(t, errors.Is(err, domain.ErrNoPendingOTP))
		assert.Empty(t, storedValue(t, state, domain.KeyOTPPhone))
		assert.Empty(t, storedValue(t, state, domain.KeyOTPExpiry))
	})

	t.Run("after verification", func(t *testing.T) {
		challenges, _, state := newTestChallenges(t)
		_, err := challenges.Issue(ctx, "9123456789")
		require.NoError(t, err)
		require.NoError(t, challenges.MarkVerified(ctx, "9123456789"))

		_, err = challenges.Resume(ctx, "9123456789")
		assert.True(t, errors.Is(err, domain.ErrNoPendingOTP))
		assert.Empty(t, storedValue(t, state, domain.KeyOTPPhone))
		assert.Empty(t, storedValue(t, state, domain.KeyOTPExpiry))
	})

	t.Run("different phone leaves the active challenge alone", func(t *testing.T) {
		challenges, clock, _ := newTestChallenges(t)
		issued, err := challenges.Issue(ctx, "9123456789")
		require.NoError(t, err)

		clock.Set(testNow.Add(60 * time.Second))
		_, err = challenges.Resume(ctx, "9876543210")
		assert.True(t, errors.Is(err, domain.ErrNoPendingOTP))

		ch, err := challenges.For(ctx, "9123456789")
		require.NoError(t, err)
		assert.Equal(t, issued.ExpiresAt, ch.ExpiresAt)
		assert.Equal(t, 60, ch.Remaining(clock.Now()))
	})
}
