package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/you/findmyseat/domain"
	"github.com/you/findmyseat/internal/session"
	"github.com/you/findmyseat/internal/validation"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	MsgAdminLoginFailed    = "Admin login failed"
	MsgFetchAppsFailed     = "Failed to fetch applications"
	MsgFetchAppFailed      = "Failed to fetch application"
	MsgUpdateStatusFailed  = "Failed to update application status"
	MsgStatusUpdated       = "Application status updated"
	msgUnknownStatusFilter = "Unknown status filter"
)

var adminKinds = []OperationKind{OpAdminLogin, OpAdminListApplications, OpAdminGetApplication, OpAdminUpdateStatus}

// AdminService drives the admin session and the organizer application review.
// It never touches the user session.
type AdminService struct {
	api      domain.AdminAPI
	admins   *session.Store
	ops      *OperationTracker
	validate *validation.Validator
	events   domain.EventLogger
	logger   *zap.Logger

	// identical concurrent fetches within one admin epoch share one request
	fetches singleflight.Group
}

// NewAdminService creates the admin service
func NewAdminService(api domain.AdminAPI, admins *session.Store, ops *OperationTracker, validate *validation.Validator, events domain.EventLogger, logger *zap.Logger) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminService{
		api:      api,
		admins:   admins,
		ops:      ops,
		validate: validate,
		events:   events,
		logger:   logger,
	}
}

// Session returns the admin session snapshot
func (s *AdminService) Session(ctx context.Context) domain.AdminSession {
	return domain.AdminSession(s.admins.Snapshot(ctx))
}

// Claims returns the claims of the persisted admin token
func (s *AdminService) Claims(ctx context.Context) (*domain.TokenClaims, error) {
	return s.admins.Claims(ctx)
}

// State returns the state of one admin operation kind
func (s *AdminService) State(kind OperationKind) OperationState {
	return s.ops.State(kind)
}

// Login authenticates the administrator
func (s *AdminService) Login(ctx context.Context, creds domain.Credentials) error {
	if err := s.validate.Login(creds); err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			s.ops.Reject(OpAdminLogin, vErr.Fields)
		}
		return err
	}

	attempt := s.ops.Begin(OpAdminLogin)
	epoch := s.admins.Begin()

	result, err := s.api.Login(ctx, creds.Email, creds.Password)
	if err != nil {
		msg := domain.UserMessage(err, MsgAdminLoginFailed)
		if s.admins.Epoch() != epoch || !s.ops.Fail(OpAdminLogin, attempt, msg) {
			return s.dropStale(ctx, OpAdminLogin, attempt)
		}
		_ = s.admins.Fail(epoch, msg)
		s.emit(ctx, domain.NewSessionEvent(domain.AdminLoginEvent, string(OpAdminLogin)).WithEmail(creds.Email).WithError(err))
		return fmt.Errorf("admin login: %w", err)
	}

	if !s.ops.IsLatest(OpAdminLogin, attempt) {
		return s.dropStale(ctx, OpAdminLogin, attempt)
	}
	if result == nil {
		result = &domain.AuthResult{}
	}
	err = s.admins.Authenticate(ctx, epoch, result.AccessToken, result.User)
	if errors.Is(err, domain.ErrStaleResponse) {
		return s.dropStale(ctx, OpAdminLogin, attempt)
	}
	if err != nil {
		s.ops.Fail(OpAdminLogin, attempt, MsgAdminLoginFailed)
		_ = s.admins.Fail(epoch, MsgAdminLoginFailed)
		return fmt.Errorf("admin login: %w", err)
	}

	s.ops.Succeed(OpAdminLogin, attempt, "")
	s.emit(ctx, domain.NewSessionEvent(domain.AdminLoginEvent, string(OpAdminLogin)).WithEmail(creds.Email))
	return nil
}

// Logout clears the admin session and deletes exactly the admin token
func (s *AdminService) Logout(ctx context.Context) error {
	s.ops.Reset(adminKinds...)
	err := s.admins.Clear(ctx)
	s.emit(ctx, domain.NewSessionEvent(domain.AdminLogoutEvent, "admin_logout"))
	return err
}

// ListApplications fetches organizer applications, optionally filtered by status
func (s *AdminService) ListApplications(ctx context.Context, status domain.ApplicationStatus) ([]domain.OrganizerApplication, error) {
	switch status {
	case "", domain.ApplicationPending, domain.ApplicationApproved, domain.ApplicationRejected:
	default:
		vErr := domain.NewValidationError("status", msgUnknownStatusFilter)
		s.ops.Reject(OpAdminListApplications, vErr.Fields)
		return nil, errors.Join(domain.ErrUnknownStatus, vErr)
	}

	attempt := s.ops.Begin(OpAdminListApplications)
	epoch := s.admins.Epoch()

	key := fmt.Sprintf("list:%d:%s", epoch, status)
	v, shared, err := s.fetch(ctx, key, func(ctx context.Context) (interface{}, error) {
		return s.api.ListApplications(ctx, status)
	})
	if shared {
		s.logger.Debug("application list fetch coalesced", zap.String("status", string(status)))
	}
	if err != nil {
		if s.admins.Epoch() != epoch || !s.ops.Fail(OpAdminListApplications, attempt, domain.UserMessage(err, MsgFetchAppsFailed)) {
			return nil, s.dropStale(ctx, OpAdminListApplications, attempt)
		}
		return nil, fmt.Errorf("list applications: %w", err)
	}
	if s.admins.Epoch() != epoch {
		return nil, s.dropStale(ctx, OpAdminListApplications, attempt)
	}
	s.ops.Succeed(OpAdminListApplications, attempt, "")

	apps, _ := v.([]domain.OrganizerApplication)
	out := make([]domain.OrganizerApplication, len(apps))
	copy(out, apps)
	return out, nil
}

// GetApplication fetches one organizer application
func (s *AdminService) GetApplication(ctx context.Context, id uint) (*domain.OrganizerApplication, error) {
	attempt := s.ops.Begin(OpAdminGetApplication)
	epoch := s.admins.Epoch()

	key := fmt.Sprintf("get:%d:%d", epoch, id)
	v, _, err := s.fetch(ctx, key, func(ctx context.Context) (interface{}, error) {
		return s.api.GetApplication(ctx, id)
	})
	if err != nil {
		if s.admins.Epoch() != epoch || !s.ops.Fail(OpAdminGetApplication, attempt, domain.UserMessage(err, MsgFetchAppFailed)) {
			return nil, s.dropStale(ctx, OpAdminGetApplication, attempt)
		}
		return nil, fmt.Errorf("get application %d: %w", id, err)
	}
	if s.admins.Epoch() != epoch {
		return nil, s.dropStale(ctx, OpAdminGetApplication, attempt)
	}
	s.ops.Succeed(OpAdminGetApplication, attempt, "")

	app, _ := v.(*domain.OrganizerApplication)
	if app == nil {
		return nil, nil
	}
	copied := *app
	return &copied, nil
}

// fetch coalesces identical requests made under the same admin epoch. The
// shared call does not inherit any one caller's cancellation (the API client
// timeout bounds it); each caller still stops waiting when its own ctx is done.
func (s *AdminService) fetch(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, bool, error) {
	shared := context.WithoutCancel(ctx)
	ch := s.fetches.DoChan(key, func() (interface{}, error) {
		return fn(shared)
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		return res.Val, res.Shared, res.Err
	}
}

// UpdateStatus records a review decision. A rejection must carry a reason; an
// approval never does.
func (s *AdminService) UpdateStatus(ctx context.Context, id uint, update domain.StatusUpdate) (*domain.OrganizerApplication, error) {
	if err := s.validate.StatusUpdate(update); err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			s.ops.Reject(OpAdminUpdateStatus, vErr.Fields)
			if _, ok := vErr.Fields["reason"]; ok {
				return nil, errors.Join(domain.ErrRejectionReasonRequired, vErr)
			}
			return nil, errors.Join(domain.ErrUnknownStatus, vErr)
		}
		return nil, err
	}
	if update.Status != domain.ApplicationRejected {
		update.Reason = ""
	}

	attempt := s.ops.Begin(OpAdminUpdateStatus)
	epoch := s.admins.Epoch()

	app, err := s.api.UpdateApplicationStatus(ctx, id, update)
	if err != nil {
		if s.admins.Epoch() != epoch || !s.ops.Fail(OpAdminUpdateStatus, attempt, domain.UserMessage(err, MsgUpdateStatusFailed)) {
			return nil, s.dropStale(ctx, OpAdminUpdateStatus, attempt)
		}
		s.emit(ctx, domain.NewSessionEvent(domain.ApplicationReviewEvent, string(OpAdminUpdateStatus)).
			WithMetadata("application_id", id).
			WithMetadata("status", string(update.Status)).
			WithError(err))
		return nil, fmt.Errorf("update application %d: %w", id, err)
	}
	if s.admins.Epoch() != epoch {
		return nil, s.dropStale(ctx, OpAdminUpdateStatus, attempt)
	}

	s.ops.Succeed(OpAdminUpdateStatus, attempt, MsgStatusUpdated)
	s.emit(ctx, domain.NewSessionEvent(domain.ApplicationReviewEvent, string(OpAdminUpdateStatus)).
		WithMetadata("application_id", id).
		WithMetadata("status", string(update.Status)))
	return app, nil
}

func (s *AdminService) dropStale(ctx context.Context, kind OperationKind, attempt uint64) error {
	s.ops.Drop(kind, attempt)
	s.logger.Debug("stale response dropped", zap.String("operation", string(kind)), zap.Uint64("attempt", attempt))
	s.emit(ctx, domain.NewSessionEvent(domain.StaleResponseEvent, string(kind)).WithMetadata("attempt", attempt))
	return domain.ErrStaleResponse
}

func (s *AdminService) emit(ctx context.Context, event *domain.SessionEvent) {
	if s.events != nil {
		s.events.LogEvent(ctx, event)
	}
}
