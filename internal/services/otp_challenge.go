package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/you/findmyseat/domain"
)

// OTPChallenges keeps the single active OTP challenge in the state store as
// otp_phone plus an absolute otp_expiry in unix milliseconds, so a restarted
// client resumes the same countdown.
type OTPChallenges struct {
	state    domain.StateStore
	clock    domain.Clock
	duration time.Duration

	mu       sync.Mutex
	verified map[string]bool
}

// NewOTPChallenges creates the challenge keeper; duration is the OTP lifetime
func NewOTPChallenges(state domain.StateStore, clock domain.Clock, duration time.Duration) *OTPChallenges {
	return &OTPChallenges{
		state:    state,
		clock:    clock,
		duration: duration,
		verified: make(map[string]bool),
	}
}

// Duration is the lifetime of an issued challenge
func (o *OTPChallenges) Duration() time.Duration { return o.duration }

// Issue starts a fresh challenge for phone, replacing any previous deadline
func (o *OTPChallenges) Issue(ctx context.Context, phone string) (*domain.OTPChallenge, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	expiresAt := o.clock.Now().Add(o.duration)
	if err := o.persist(ctx, phone, expiresAt); err != nil {
		return nil, err
	}
	delete(o.verified, phone)
	return &domain.OTPChallenge{Phone: phone, ExpiresAt: expiresAt, Status: domain.OTPPending}, nil
}

// Resume returns the stored challenge for phone. Only the phone recorded by
// register or resend can be resumed; when its deadline is missing (or
// unreadable) one is computed and persisted, once. An existing deadline is never
// extended, and no challenge is ever created for another phone.
func (o *OTPChallenges) Resume(ctx context.Context, phone string) (*domain.OTPChallenge, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	stored, err := o.state.Get(ctx, domain.KeyOTPPhone)
	if errors.Is(err, domain.ErrKeyNotFound) || (err == nil && stored == "") {
		return nil, domain.ErrNoPendingOTP
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read otp phone: %w", err)
	}
	if stored != phone {
		return nil, domain.ErrNoPendingOTP
	}

	ch, err := o.active(ctx)
	switch {
	case err == nil:
		return ch, nil
	case !errors.Is(err, domain.ErrNoPendingOTP) && !errors.Is(err, domain.ErrOTPCorrupted):
		return nil, err
	}

	expiresAt := o.clock.Now().Add(o.duration)
	if err := o.state.Set(ctx, domain.KeyOTPExpiry, strconv.FormatInt(expiresAt.UnixMilli(), 10)); err != nil {
		return nil, fmt.Errorf("failed to persist otp expiry: %w", err)
	}
	return &domain.OTPChallenge{Phone: phone, ExpiresAt: expiresAt, Status: domain.OTPPending}, nil
}

// Active returns the current challenge with its status derived from the clock
func (o *OTPChallenges) Active(ctx context.Context) (*domain.OTPChallenge, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active(ctx)
}

// For returns the active challenge when it belongs to phone
func (o *OTPChallenges) For(ctx context.Context, phone string) (*domain.OTPChallenge, error) {
	ch, err := o.Active(ctx)
	if err != nil {
		return nil, err
	}
	if ch.Phone != phone {
		return nil, domain.ErrNoPendingOTP
	}
	return ch, nil
}

// MarkVerified discards the challenge for phone and remembers it was verified
func (o *OTPChallenges) MarkVerified(ctx context.Context, phone string) error {
	o.mu.Lock()
	o.verified[phone] = true
	o.mu.Unlock()
	return o.Discard(ctx)
}

// Verified reports whether the last challenge for phone ended in verification
func (o *OTPChallenges) Verified(phone string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.verified[phone]
}

// Discard deletes the persisted challenge
func (o *OTPChallenges) Discard(ctx context.Context) error {
	if err := o.state.Delete(ctx, domain.KeyOTPPhone, domain.KeyOTPExpiry); err != nil {
		return fmt.Errorf("failed to discard otp challenge: %w", err)
	}
	return nil
}

// Forget drops verification memory; used on logout
func (o *OTPChallenges) Forget() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.verified = make(map[string]bool)
}

func (o *OTPChallenges) active(ctx context.Context) (*domain.OTPChallenge, error) {
	phone, err := o.state.Get(ctx, domain.KeyOTPPhone)
	if errors.Is(err, domain.ErrKeyNotFound) || (err == nil && phone == "") {
		return nil, domain.ErrNoPendingOTP
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read otp phone: %w", err)
	}

	raw, err := o.state.Get(ctx, domain.KeyOTPExpiry)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return nil, domain.ErrNoPendingOTP
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read otp expiry: %w", err)
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, domain.ErrOTPCorrupted
	}

	ch := &domain.OTPChallenge{Phone: phone, ExpiresAt: time.UnixMilli(ms), Status: domain.OTPPending}
	ch.Status = ch.StatusAt(o.clock.Now())
	return ch, nil
}

func (o *OTPChallenges) persist(ctx context.Context, phone string, expiresAt time.Time) error {
	if err := o.state.Set(ctx, domain.KeyOTPPhone, phone); err != nil {
		return fmt.Errorf("failed to persist otp phone: %w", err)
	}
	if err := o.state.Set(ctx, domain.KeyOTPExpiry, strconv.FormatInt(expiresAt.UnixMilli(), 10)); err != nil {
		return fmt.Errorf("failed to persist otp expiry: %w", err)
	}
	return nil
}
