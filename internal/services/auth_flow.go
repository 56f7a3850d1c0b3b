package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/you/findmyseat/domain"
	"github.com/you/findmyseat/internal/session"
	"github.com/you/findmyseat/internal/validation"
	"go.uber.org/zap"
)

// Messages shown when the server gives no readable reason
const (
	MsgLoginFailed          = "Login failed"
	MsgRegistrationFailed   = "Registration failed"
	MsgOTPFailed            = "OTP verification failed"
	MsgResendFailed         = "Failed to resend OTP"
	MsgChangePasswordFailed = "Failed to change password"
	MsgForgotPasswordFailed = "Failed to send reset link"
	MsgResetFailed          = "Invalid or expired token"
	MsgInvalidResetLink     = "Invalid reset link"

	MsgOTPSent           = "OTP sent to your phone number"
	MsgPasswordChanged   = "Password changed successfully"
	MsgResetLinkSent     = "If the email exists, a reset link has been sent."
	MsgPasswordResetOK   = "Password reset successfully"
	MsgOTPVerified       = "Phone number verified"
	msgOTPExpiredField   = "OTP has expired. Please request a new one"
	msgNoPendingOTPField = "No pending verification for this phone number"
)

// userKinds are reset on logout
var userKinds = []OperationKind{
	OpLogin, OpRegister, OpVerifyOTP, OpResendOTP, OpChangePassword, OpForgotPassword, OpResetPassword,
	OpOrganizerSubmit, OpOrganizerFetch,
}

// AuthFlow drives the user authentication operations against the user session
type AuthFlow struct {
	api            domain.AuthAPI
	users          *session.Store
	ops            *OperationTracker
	challenges     *OTPChallenges
	timer          *OTPTimer
	validate       *validation.Validator
	events         domain.EventLogger
	logger         *zap.Logger
	successDisplay time.Duration

	mu          sync.Mutex
	root        context.Context
	rootCancel  context.CancelFunc
	timerCancel context.CancelFunc
	timerDone   chan struct{}
}

// NewAuthFlow creates the auth state machine. Call Close to stop any countdown.
func NewAuthFlow(
	api domain.AuthAPI,
	users *session.Store,
	ops *OperationTracker,
	challenges *OTPChallenges,
	timer *OTPTimer,
	validate *validation.Validator,
	events domain.EventLogger,
	logger *zap.Logger,
	successDisplay time.Duration,
) *AuthFlow {
	if logger == nil {
		logger = zap.NewNop()
	}
	root, cancel := context.WithCancel(context.Background())
	return &AuthFlow{
		api:            api,
		users:          users,
		ops:            ops,
		challenges:     challenges,
		timer:          timer,
		validate:       validate,
		events:         events,
		logger:         logger,
		successDisplay: successDisplay,
		root:           root,
		rootCancel:     cancel,
	}
}

// Close stops the background countdown
func (f *AuthFlow) Close() {
	f.stopTimer()
	f.rootCancel()
}

// Session returns the user session snapshot
func (f *AuthFlow) Session(ctx context.Context) domain.Session {
	return f.users.Snapshot(ctx)
}

// State returns the state of one operation kind
func (f *AuthFlow) State(kind OperationKind) OperationState {
	return f.ops.State(kind)
}

// Edit clears the error of field on kind, as on any input change
func (f *AuthFlow) Edit(kind OperationKind, field string) {
	f.ops.Edit(kind, field)
}

// ClearSuccess resets the success flag of kind
func (f *AuthFlow) ClearSuccess(kind OperationKind) {
	f.ops.ClearSuccess(kind)
}

// SuccessDisplay is how long a caller should show a success flag before clearing it
func (f *AuthFlow) SuccessDisplay() time.Duration {
	return f.successDisplay
}

// Login authenticates with email and password
func (f *AuthFlow) Login(ctx context.Context, creds domain.Credentials) error {
	if err := f.validate.Login(creds); err != nil {
		return f.reject(OpLogin, err)
	}

	attempt := f.ops.Begin(OpLogin)
	epoch := f.users.Begin()

	result, err := f.api.Login(ctx, creds.Email, creds.Password)
	if err != nil {
		msg := domain.UserMessage(err, MsgLoginFailed)
		if !f.failSession(OpLogin, attempt, epoch, msg) {
			return f.dropStale(ctx, OpLogin, attempt)
		}
		f.emit(ctx, domain.NewSessionEvent(domain.LoginFailureEvent, string(OpLogin)).WithEmail(creds.Email).WithError(err))
		return fmt.Errorf("login: %w", err)
	}

	if err := f.authenticate(ctx, OpLogin, attempt, epoch, result); err != nil {
		return err
	}
	f.ops.Succeed(OpLogin, attempt, "")
	f.emit(ctx, domain.NewSessionEvent(domain.LoginEvent, string(OpLogin)).WithEmail(creds.Email))
	return nil
}

// Register creates an account. On success the session stays unauthenticated and
// an OTP challenge is issued for the registered phone number.
func (f *AuthFlow) Register(ctx context.Context, reg domain.Registration) (*domain.OTPChallenge, error) {
	if err := f.validate.Register(reg); err != nil {
		return nil, f.reject(OpRegister, err)
	}

	attempt := f.ops.Begin(OpRegister)
	epoch := f.users.Begin()

	if err := f.api.Register(ctx, reg.Name, reg.Email, reg.Phone, reg.Password); err != nil {
		msg := domain.UserMessage(err, MsgRegistrationFailed)
		if !f.failSession(OpRegister, attempt, epoch, msg) {
			return nil, f.dropStale(ctx, OpRegister, attempt)
		}
		f.emit(ctx, domain.NewSessionEvent(domain.RegistrationEvent, string(OpRegister)).WithEmail(reg.Email).WithError(err))
		return nil, fmt.Errorf("register: %w", err)
	}

	if !f.ops.IsLatest(OpRegister, attempt) {
		return nil, f.dropStale(ctx, OpRegister, attempt)
	}
	if err := f.users.Settle(epoch); err != nil {
		return nil, f.dropStale(ctx, OpRegister, attempt)
	}

	challenge, err := f.challenges.Issue(ctx, reg.Phone)
	if err != nil {
		f.ops.Fail(OpRegister, attempt, MsgRegistrationFailed)
		return nil, err
	}
	f.startTimer(reg.Phone)

	f.ops.Succeed(OpRegister, attempt, MsgOTPSent)
	f.emit(ctx, domain.NewSessionEvent(domain.RegistrationEvent, string(OpRegister)).WithEmail(reg.Email).WithPhone(reg.Phone))
	f.emit(ctx, domain.NewSessionEvent(domain.OTPIssuedEvent, string(OpRegister)).WithPhone(reg.Phone))
	return challenge, nil
}

// VerifyOTP submits the code for the active challenge. A failure leaves the
// challenge pending and the session untouched.
func (f *AuthFlow) VerifyOTP(ctx context.Context, v domain.OTPVerification) error {
	if err := f.validate.VerifyOTP(v); err != nil {
		return f.reject(OpVerifyOTP, err)
	}

	challenge, err := f.challenges.For(ctx, v.Phone)
	switch {
	case errors.Is(err, domain.ErrNoPendingOTP), errors.Is(err, domain.ErrOTPCorrupted):
		vErr := domain.NewValidationError("phone_number", msgNoPendingOTPField)
		f.ops.Reject(OpVerifyOTP, vErr.Fields)
		return errors.Join(domain.ErrNoPendingOTP, vErr)
	case err != nil:
		return err
	case challenge.Status == domain.OTPExpired:
		vErr := domain.NewValidationError("otp", msgOTPExpiredField)
		f.ops.Reject(OpVerifyOTP, vErr.Fields)
		return errors.Join(domain.ErrOTPExpired, vErr)
	}

	attempt := f.ops.Begin(OpVerifyOTP)
	epoch := f.users.Epoch()

	result, err := f.api.VerifyOTP(ctx, v.Phone, v.Code)
	if err != nil {
		if f.users.Epoch() != epoch {
			return f.dropStale(ctx, OpVerifyOTP, attempt)
		}
		f.ops.Fail(OpVerifyOTP, attempt, domain.UserMessage(err, MsgOTPFailed))
		f.emit(ctx, domain.NewSessionEvent(domain.OTPVerifiedEvent, string(OpVerifyOTP)).WithPhone(v.Phone).WithError(err))
		return fmt.Errorf("verify otp: %w", err)
	}

	if err := f.authenticate(ctx, OpVerifyOTP, attempt, epoch, result); err != nil {
		return err
	}
	f.stopTimer()
	if err := f.challenges.MarkVerified(ctx, v.Phone); err != nil {
		f.logger.Warn("failed to discard verified otp challenge", zap.Error(err))
	}
	f.ops.Succeed(OpVerifyOTP, attempt, MsgOTPVerified)
	f.emit(ctx, domain.NewSessionEvent(domain.OTPVerifiedEvent, string(OpVerifyOTP)).WithPhone(v.Phone))
	return nil
}

// ResendOTP asks for a new code. It is always permitted; on success the deadline
// is reset to a full OTP lifetime from now.
func (f *AuthFlow) ResendOTP(ctx context.Context, phone string) (*domain.OTPChallenge, error) {
	if err := f.validate.ResendOTP(phone); err != nil {
		return nil, f.reject(OpResendOTP, err)
	}

	attempt := f.ops.Begin(OpResendOTP)
	epoch := f.users.Epoch()

	if err := f.api.ResendOTP(ctx, phone); err != nil {
		if f.users.Epoch() != epoch {
			return nil, f.dropStale(ctx, OpResendOTP, attempt)
		}
		f.ops.Fail(OpResendOTP, attempt, domain.UserMessage(err, MsgResendFailed))
		return nil, fmt.Errorf("resend otp: %w", err)
	}

	if f.users.Epoch() != epoch || !f.ops.IsLatest(OpResendOTP, attempt) {
		return nil, f.dropStale(ctx, OpResendOTP, attempt)
	}

	challenge, err := f.challenges.Issue(ctx, phone)
	if err != nil {
		f.ops.Fail(OpResendOTP, attempt, MsgResendFailed)
		return nil, err
	}
	f.startTimer(phone)

	// a fresh challenge replaces whatever the verify form showed
	f.ops.Reset(OpVerifyOTP)
	f.ops.Succeed(OpResendOTP, attempt, MsgOTPSent)
	f.emit(ctx, domain.NewSessionEvent(domain.OTPIssuedEvent, string(OpResendOTP)).WithPhone(phone))
	return challenge, nil
}

// OTP returns the pending challenge for phone. It fails with ErrNoPendingOTP
// unless phone is the one register or resend recorded.
func (f *AuthFlow) OTP(ctx context.Context, phone string) (*OTPTick, error) {
	challenge, err := f.challenges.Resume(ctx, phone)
	if err != nil {
		return nil, err
	}
	now := f.timer.clock.Now()
	return &OTPTick{Phone: challenge.Phone, Remaining: challenge.Remaining(now), Status: challenge.StatusAt(now)}, nil
}

// ActiveOTP returns the persisted challenge without creating one
func (f *AuthFlow) ActiveOTP(ctx context.Context) (*OTPTick, error) {
	challenge, err := f.challenges.Active(ctx)
	if err != nil {
		return nil, err
	}
	return &OTPTick{Phone: challenge.Phone, Remaining: challenge.Remaining(f.timer.clock.Now()), Status: challenge.Status}, nil
}

// WatchOTP runs a countdown for phone until it ends or ctx is done
func (f *AuthFlow) WatchOTP(ctx context.Context, phone string, onTick func(OTPTick)) (domain.OTPStatus, error) {
	return f.timer.Run(ctx, phone, onTick)
}

// ChangePassword validates req in order and only then calls the API. The request
// is never retained.
func (f *AuthFlow) ChangePassword(ctx context.Context, req domain.PasswordChangeRequest) error {
	if err := f.validate.ChangePassword(req); err != nil {
		return f.reject(OpChangePassword, err)
	}

	attempt := f.ops.Begin(OpChangePassword)
	epoch := f.users.Epoch()

	if err := f.api.ChangePassword(ctx, req.CurrentPassword, req.NewPassword); err != nil {
		if f.users.Epoch() != epoch {
			return f.dropStale(ctx, OpChangePassword, attempt)
		}
		f.ops.Fail(OpChangePassword, attempt, domain.UserMessage(err, MsgChangePasswordFailed))
		return fmt.Errorf("change password: %w", err)
	}

	if f.users.Epoch() != epoch {
		return f.dropStale(ctx, OpChangePassword, attempt)
	}
	f.ops.Succeed(OpChangePassword, attempt, MsgPasswordChanged)
	f.emit(ctx, domain.NewSessionEvent(domain.PasswordChangedEvent, string(OpChangePassword)))
	return nil
}

// ForgotPassword requests a reset link
func (f *AuthFlow) ForgotPassword(ctx context.Context, req domain.ForgotPassword) error {
	if err := f.validate.ForgotPassword(req); err != nil {
		return f.reject(OpForgotPassword, err)
	}

	attempt := f.ops.Begin(OpForgotPassword)
	if err := f.api.ForgotPassword(ctx, req.Email); err != nil {
		f.ops.Fail(OpForgotPassword, attempt, domain.UserMessage(err, MsgForgotPasswordFailed))
		return fmt.Errorf("forgot password: %w", err)
	}
	f.ops.Succeed(OpForgotPassword, attempt, MsgResetLinkSent)
	return nil
}

// ResetPassword sets a new password with the token from a reset link. A
// missing token is terminal and nothing is submitted.
func (f *AuthFlow) ResetPassword(ctx context.Context, req domain.PasswordReset) error {
	if strings.TrimSpace(req.Token) == "" {
		f.ops.Terminate(OpResetPassword, MsgInvalidResetLink)
		return domain.ErrInvalidResetLink
	}
	if err := f.validate.ResetPassword(req); err != nil {
		return f.reject(OpResetPassword, err)
	}

	attempt := f.ops.Begin(OpResetPassword)
	if err := f.api.ResetPassword(ctx, req.Token, req.NewPassword); err != nil {
		f.ops.Fail(OpResetPassword, attempt, domain.UserMessage(err, MsgResetFailed))
		return fmt.Errorf("reset password: %w", err)
	}
	f.ops.Succeed(OpResetPassword, attempt, MsgPasswordResetOK)
	f.emit(ctx, domain.NewSessionEvent(domain.PasswordResetEvent, string(OpResetPassword)))
	return nil
}

// Logout clears the user session unconditionally. The OTP challenge is
// discarded and responses still in flight will be dropped.
func (f *AuthFlow) Logout(ctx context.Context) error {
	f.stopTimer()
	f.ops.Reset(userKinds...)
	f.challenges.Forget()
	err := f.users.Clear(ctx, domain.KeyOTPPhone, domain.KeyOTPExpiry)
	f.emit(ctx, domain.NewSessionEvent(domain.LogoutEvent, "logout"))
	return err
}

func (f *AuthFlow) authenticate(ctx context.Context, kind OperationKind, attempt, epoch uint64, result *domain.AuthResult) error {
	if !f.ops.IsLatest(kind, attempt) {
		return f.dropStale(ctx, kind, attempt)
	}
	if result == nil {
		result = &domain.AuthResult{}
	}
	err := f.users.Authenticate(ctx, epoch, result.AccessToken, result.User)
	if errors.Is(err, domain.ErrStaleResponse) {
		return f.dropStale(ctx, kind, attempt)
	}
	if err != nil {
		fallback := MsgLoginFailed
		if kind == OpVerifyOTP {
			fallback = MsgOTPFailed
		}
		f.failSession(kind, attempt, epoch, fallback)
		return fmt.Errorf("%s: %w", kind, err)
	}
	return nil
}

// failSession reports false when the attempt or the session has moved on
func (f *AuthFlow) failSession(kind OperationKind, attempt, epoch uint64, msg string) bool {
	if f.users.Epoch() != epoch || !f.ops.Fail(kind, attempt, msg) {
		return false
	}
	return f.users.Fail(epoch, msg) == nil
}

func (f *AuthFlow) reject(kind OperationKind, err error) error {
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		f.ops.Reject(kind, vErr.Fields)
	}
	return err
}

func (f *AuthFlow) dropStale(ctx context.Context, kind OperationKind, attempt uint64) error {
	f.ops.Drop(kind, attempt)
	f.logger.Debug("stale response dropped", zap.String("operation", string(kind)), zap.Uint64("attempt", attempt))
	f.emit(ctx, domain.NewSessionEvent(domain.StaleResponseEvent, string(kind)).WithMetadata("attempt", attempt))
	return domain.ErrStaleResponse
}

func (f *AuthFlow) emit(ctx context.Context, event *domain.SessionEvent) {
	if f.events != nil {
		f.events.LogEvent(ctx, event)
	}
}

// startTimer replaces the background countdown with one for phone
func (f *AuthFlow) startTimer(phone string) {
	f.stopTimer()

	f.mu.Lock()
	defer f.mu.Unlock()
	ctx, cancel := context.WithCancel(f.root)
	done := make(chan struct{})
	f.timerCancel = cancel
	f.timerDone = done

	go func() {
		defer close(done)
		status, err := f.timer.Run(ctx, phone, func(OTPTick) {})
		switch {
		case status == domain.OTPExpired:
			f.emit(ctx, domain.NewSessionEvent(domain.OTPExpiredEvent, "otp_timer").WithPhone(phone).WithError(domain.ErrOTPExpired))
		case err != nil && !errors.Is(err, context.Canceled):
			f.logger.Debug("otp countdown stopped", zap.String("reason", err.Error()))
		}
	}()
}

func (f *AuthFlow) stopTimer() {
	f.mu.Lock()
	cancel, done := f.timerCancel, f.timerDone
	f.timerCancel, f.timerDone = nil, nil
	f.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}
