package services

import (
	"context"
	"errors"
	"time"

	"github.com/you/findmyseat/domain"
)

// OTPTick is one countdown observation
type OTPTick struct {
	Phone     string           `json:"phone_number"`
	Remaining int              `json:"remaining"`
	Status    domain.OTPStatus `json:"status"`
}

// OTPTimer re-derives the remaining time from the stored deadline once per second
type OTPTimer struct {
	challenges *OTPChallenges
	clock      domain.Clock
	interval   time.Duration
}

// NewOTPTimer creates a one-second countdown over challenges
func NewOTPTimer(challenges *OTPChallenges, clock domain.Clock) *OTPTimer {
	return &OTPTimer{challenges: challenges, clock: clock, interval: time.Second}
}

// Run resumes the challenge for phone and reports a tick immediately and then
// every interval. It returns the terminal status when the challenge expires or
// is verified, ErrNoPendingOTP when it is discarded otherwise, or ctx.Err().
// The ticker is always stopped on return.
func (t *OTPTimer) Run(ctx context.Context, phone string, onTick func(OTPTick)) (domain.OTPStatus, error) {
	ch, err := t.challenges.Resume(ctx, phone)
	if errors.Is(err, domain.ErrNoPendingOTP) && t.challenges.Verified(phone) {
		onTick(OTPTick{Phone: phone, Status: domain.OTPVerified})
		return domain.OTPVerified, nil
	}
	if err != nil {
		return "", err
	}
	if status, done := t.report(ch, onTick); done {
		return status, nil
	}

	ticker := t.clock.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C():
			ch, err := t.challenges.For(ctx, phone)
			if errors.Is(err, domain.ErrNoPendingOTP) {
				if t.challenges.Verified(phone) {
					onTick(OTPTick{Phone: phone, Status: domain.OTPVerified})
					return domain.OTPVerified, nil
				}
				return "", domain.ErrNoPendingOTP
			}
			if err != nil {
				return "", err
			}
			if status, done := t.report(ch, onTick); done {
				return status, nil
			}
		}
	}
}

func (t *OTPTimer) report(ch *domain.OTPChallenge, onTick func(OTPTick)) (domain.OTPStatus, bool) {
	now := t.clock.Now()
	tick := OTPTick{Phone: ch.Phone, Remaining: ch.Remaining(now), Status: ch.StatusAt(now)}
	onTick(tick)
	return tick.Status, tick.Status != domain.OTPPending
}
