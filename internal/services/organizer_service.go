package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/you/findmyseat/domain"
	"github.com/you/findmyseat/internal/session"
	"github.com/you/findmyseat/internal/validation"
	"go.uber.org/zap"
)

const (
	MsgSubmitApplicationFailed = "Failed to submit organizer application"
	MsgFetchMyAppFailed        = "Failed to fetch organizer application"
	MsgApplicationSubmitted    = "Application submitted successfully"
)

// OrganizerService submits and fetches the signed-in user's organizer application
type OrganizerService struct {
	api      domain.OrganizerAPI
	users    *session.Store
	ops      *OperationTracker
	validate *validation.Validator
	logger   *zap.Logger
}

// NewOrganizerService creates the organizer service
func NewOrganizerService(api domain.OrganizerAPI, users *session.Store, ops *OperationTracker, validate *validation.Validator, logger *zap.Logger) *OrganizerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrganizerService{
		api:      api,
		users:    users,
		ops:      ops,
		validate: validate,
		logger:   logger,
	}
}

// State returns the state of one organizer operation kind
func (s *OrganizerService) State(kind OperationKind) OperationState {
	return s.ops.State(kind)
}

// ClearState resets the organizer operations after the caller has shown the outcome
func (s *OrganizerService) ClearState() {
	s.ops.Reset(OpOrganizerSubmit, OpOrganizerFetch)
}

// Submit validates and sends the organizer application form
func (s *OrganizerService) Submit(ctx context.Context, form domain.OrganizerApplicationForm) (*domain.OrganizerApplication, error) {
	form.IFSCCode = strings.ToUpper(strings.TrimSpace(form.IFSCCode))
	if err := s.validate.OrganizerApplication(form); err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			s.ops.Reject(OpOrganizerSubmit, vErr.Fields)
		}
		return nil, err
	}
	if !s.users.Snapshot(ctx).IsAuthenticated {
		s.ops.Terminate(OpOrganizerSubmit, "Please log in to apply as an organizer")
		return nil, domain.ErrNotAuthenticated
	}

	attempt := s.ops.Begin(OpOrganizerSubmit)
	epoch := s.users.Epoch()

	app, err := s.api.Apply(ctx, form)
	if err != nil {
		if s.users.Epoch() != epoch || !s.ops.Fail(OpOrganizerSubmit, attempt, domain.UserMessage(err, MsgSubmitApplicationFailed)) {
			return nil, s.drop(OpOrganizerSubmit, attempt)
		}
		return nil, fmt.Errorf("submit organizer application: %w", err)
	}
	if s.users.Epoch() != epoch || !s.ops.Succeed(OpOrganizerSubmit, attempt, MsgApplicationSubmitted) {
		return nil, s.drop(OpOrganizerSubmit, attempt)
	}
	return app, nil
}

// MyApplication fetches the signed-in user's application
func (s *OrganizerService) MyApplication(ctx context.Context) (*domain.OrganizerApplication, error) {
	if !s.users.Snapshot(ctx).IsAuthenticated {
		return nil, domain.ErrNotAuthenticated
	}

	attempt := s.ops.Begin(OpOrganizerFetch)
	epoch := s.users.Epoch()

	app, err := s.api.MyApplication(ctx)
	if err != nil {
		if s.users.Epoch() != epoch || !s.ops.Fail(OpOrganizerFetch, attempt, domain.UserMessage(err, MsgFetchMyAppFailed)) {
			return nil, s.drop(OpOrganizerFetch, attempt)
		}
		return nil, fmt.Errorf("fetch organizer application: %w", err)
	}
	if s.users.Epoch() != epoch || !s.ops.Succeed(OpOrganizerFetch, attempt, "") {
		return nil, s.drop(OpOrganizerFetch, attempt)
	}
	return app, nil
}

func (s *OrganizerService) drop(kind OperationKind, attempt uint64) error {
	s.ops.Drop(kind, attempt)
	s.logger.Debug("stale response dropped", zap.String("operation", string(kind)), zap.Uint64("attempt", attempt))
	return domain.ErrStaleResponse
}
