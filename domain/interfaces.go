package domain

import (
	"context"
	"time"
)

// Persisted client-side keys. Each is written and cleared independently.
const (
	KeyAccessToken      = "access_token"
	KeyAdminAccessToken = "admin_access_token"
	KeyOTPPhone         = "otp_phone"
	KeyOTPExpiry        = "otp_expiry"
)

// AuthAPI is the remote authentication API
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Register(ctx context.Context, name, email, phone, password string) error
	VerifyOTP(ctx context.Context, phone, code string) (*AuthResult, error)
	ResendOTP(ctx context.Context, phone string) error
	ChangePassword(ctx context.Context, currentPassword, newPassword string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// AdminAPI is the remote admin API
type AdminAPI interface {
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	ListApplications(ctx context.Context, status ApplicationStatus) ([]OrganizerApplication, error)
	GetApplication(ctx context.Context, id uint) (*OrganizerApplication, error)
	UpdateApplicationStatus(ctx context.Context, id uint, update StatusUpdate) (*OrganizerApplication, error)
}

// OrganizerAPI is the remote organizer API
type OrganizerAPI interface {
	Apply(ctx context.Context, form OrganizerApplicationForm) (*OrganizerApplication, error)
	MyApplication(ctx context.Context) (*OrganizerApplication, error)
}

// StateStore persists the small set of client-side keys that must survive a reload
type StateStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// TokenInspector decides whether a persisted access token is still usable
type TokenInspector interface {
	Inspect(token string) (*TokenClaims, error)
}

// TokenClaims represents the claims the client can read from an access token
type TokenClaims struct {
	Subject   string `json:"sub,omitempty"`
	Role      string `json:"role,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
}

// Clock abstracts wall time and tickers
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker is the subset of time.Ticker the OTP timer needs
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// IntentPolicy decides whether a session role may dispatch an intent
type IntentPolicy interface {
	Allow(role, method, route string) (bool, error)
	Grant(rule PolicyRule) error
	Rules() []PolicyRule
}

// CasbinEnforcer interface defines the methods we need from Casbin enforcer
type CasbinEnforcer interface {
	AddPolicy(params ...interface{}) (bool, error)
	Enforce(rvals ...interface{}) (bool, error)
	GetPolicy() ([][]string, error)
	SavePolicy() error
}
