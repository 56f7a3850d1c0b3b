package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/you/findmyseat/domain"
)

// Store owns one session (user or admin). All mutation goes through its methods.
// Every logout bumps the epoch; resolutions carrying an older epoch are stale.
type Store struct {
	name     string
	tokenKey string
	state    domain.StateStore
	tokens   domain.TokenInspector

	mu      sync.RWMutex
	user    *domain.User
	loading bool
	err     string
	epoch   uint64
}

// NewStore creates an empty session bound to tokenKey
func NewStore(name, tokenKey string, state domain.StateStore, tokens domain.TokenInspector) *Store {
	return &Store{
		name:     name,
		tokenKey: tokenKey,
		state:    state,
		tokens:   tokens,
	}
}

// NewUserStore creates the ordinary-user session on access_token
func NewUserStore(state domain.StateStore, tokens domain.TokenInspector) *Store {
	return NewStore("user", domain.KeyAccessToken, state, tokens)
}

// NewAdminStore creates the admin session on admin_access_token
func NewAdminStore(state domain.StateStore, tokens domain.TokenInspector) *Store {
	return NewStore("admin", domain.KeyAdminAccessToken, state, tokens)
}

// Name identifies the store in logs
func (s *Store) Name() string { return s.name }

// TokenKey is the persisted key this store authenticates with
func (s *Store) TokenKey() string { return s.tokenKey }

// Epoch returns the current epoch; capture it before dispatching a request
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// Begin marks the session loading, clears the previous error and returns the
// epoch the eventual resolution must present.
func (s *Store) Begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = true
	s.err = ""
	return s.epoch
}

// Authenticate persists token and sets the user. It fails with
// domain.ErrStaleResponse when the session was cleared after epoch was taken.
func (s *Store) Authenticate(ctx context.Context, epoch uint64, token string, user *domain.User) error {
	if token == "" || user == nil {
		return fmt.Errorf("%s session: %w", s.name, domain.ErrNoToken)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return domain.ErrStaleResponse
	}
	if err := s.state.Set(ctx, s.tokenKey, token); err != nil {
		s.loading = false
		return fmt.Errorf("failed to persist %s: %w", s.tokenKey, err)
	}
	u := *user
	s.user = &u
	s.err = ""
	s.loading = false
	return nil
}

// Fail records a human-readable error and stops loading
func (s *Store) Fail(epoch uint64, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return domain.ErrStaleResponse
	}
	s.err = message
	s.loading = false
	return nil
}

// Settle stops loading without changing identity or error
func (s *Store) Settle(epoch uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return domain.ErrStaleResponse
	}
	s.loading = false
	return nil
}

// Clear resets the session to empty, bumps the epoch and deletes the token key
// plus extraKeys. It never fails on in-memory state; a storage error is returned
// after the in-memory reset has happened.
func (s *Store) Clear(ctx context.Context, extraKeys ...string) error {
	s.mu.Lock()
	s.epoch++
	s.user = nil
	s.err = ""
	s.loading = false
	s.mu.Unlock()

	keys := append([]string{s.tokenKey}, extraKeys...)
	if err := s.state.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("failed to clear %s session keys: %w", s.name, err)
	}
	return nil
}

// Snapshot returns the current session. IsAuthenticated holds only when a user
// is set and the persisted token is still accepted by the token inspector.
func (s *Store) Snapshot(ctx context.Context) domain.Session {
	s.mu.RLock()
	snap := domain.Session{
		Loading: s.loading,
		Error:   s.err,
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	s.mu.RUnlock()

	if snap.User != nil {
		snap.IsAuthenticated = s.tokenValid(ctx)
	}
	return snap
}

// Claims returns the claims of the persisted token, or an error when there is
// no usable token.
func (s *Store) Claims(ctx context.Context) (*domain.TokenClaims, error) {
	token, err := s.state.Get(ctx, s.tokenKey)
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			return nil, domain.ErrNoToken
		}
		return nil, err
	}
	return s.tokens.Inspect(token)
}

func (s *Store) tokenValid(ctx context.Context) bool {
	_, err := s.Claims(ctx)
	return err == nil
}
