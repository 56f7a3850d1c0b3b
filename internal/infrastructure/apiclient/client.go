package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/you/findmyseat/domain"
	"github.com/you/findmyseat/internal/infrastructure/audit"
	"go.uber.org/zap"
)

// RequestIDHeader is sent with every call so server logs can be correlated
const RequestIDHeader = "X-Request-ID"

// Client is the REST client for the findmyseat API
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      domain.StateStore
	logger     *zap.Logger
}

// New creates a new API client. Bearer tokens are read from store on each call.
func New(baseURL string, timeout time.Duration, store domain.StateStore, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		store:  store,
		logger: logger,
	}
}

// Auth returns the user-facing API surface
func (c *Client) Auth() domain.AuthAPI { return &authAPI{c} }

// Admin returns the admin API surface, authorized with the admin token
func (c *Client) Admin() domain.AdminAPI { return &adminAPI{c} }

// Organizer returns the organizer API surface, authorized with the user token
func (c *Client) Organizer() domain.OrganizerAPI { return &organizerAPI{c} }

// errorResponse covers the error bodies the API produces. detail may be a
// string or a list of field errors.
type errorResponse struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

type fieldDetail struct {
	Msg string `json:"msg"`
}

func (e errorResponse) text() string {
	if len(e.Detail) > 0 {
		var s string
		if err := json.Unmarshal(e.Detail, &s); err == nil && s != "" {
			return s
		}
		var list []fieldDetail
		if err := json.Unmarshal(e.Detail, &list); err == nil && len(list) > 0 && list[0].Msg != "" {
			return list[0].Msg
		}
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// do performs a JSON request. tokenKey selects which persisted token, if any,
// authorizes the call. out may be nil.
func (c *Client) do(ctx context.Context, method, path, tokenKey string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	requestID, _ := ctx.Value(audit.RequestIDKey).(string)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tokenKey != "" {
		token, err := c.store.Get(ctx, tokenKey)
		if err != nil && !errors.Is(err, domain.ErrKeyNotFound) {
			return fmt.Errorf("failed to read %s: %w", tokenKey, err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.Canceled {
			return fmt.Errorf("request canceled: %w", ctx.Err())
		}
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("request timed out: %w", ctx.Err())
		}
		return fmt.Errorf("cannot connect to API at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("api call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", requestID),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
			return &domain.APIError{Status: resp.StatusCode}
		}
		return &domain.APIError{Status: resp.StatusCode, Message: errResp.text()}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid response from API: %w", err)
	}
	return nil
}

type authAPI struct{ c *Client }

var _ domain.AuthAPI = (*authAPI)(nil)

func (a *authAPI) Login(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	var result domain.AuthResult
	err := a.c.do(ctx, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (a *authAPI) Register(ctx context.Context, name, email, phone, password string) error {
	return a.c.do(ctx, http.MethodPost, "/auth/register", "", map[string]string{
		"name":         name,
		"email":        email,
		"phone_number": phone,
		"password":     password,
	}, nil)
}

func (a *authAPI) VerifyOTP(ctx context.Context, phone, code string) (*domain.AuthResult, error) {
	var result domain.AuthResult
	err := a.c.do(ctx, http.MethodPost, "/auth/verify-otp", "", map[string]string{
		"phone_number": phone,
		"otp":          code,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (a *authAPI) ResendOTP(ctx context.Context, phone string) error {
	return a.c.do(ctx, http.MethodPost, "/auth/resend-otp", "", map[string]string{
		"phone_number": phone,
	}, nil)
}

func (a *authAPI) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	return a.c.do(ctx, http.MethodPost, "/auth/change-password", domain.KeyAccessToken, map[string]string{
		"current_password": currentPassword,
		"new_password":     newPassword,
	}, nil)
}

func (a *authAPI) ForgotPassword(ctx context.Context, email string) error {
	return a.c.do(ctx, http.MethodPost, "/auth/forgot-password", "", map[string]string{
		"email": email,
	}, nil)
}

func (a *authAPI) ResetPassword(ctx context.Context, token, newPassword string) error {
	return a.c.do(ctx, http.MethodPost, "/auth/reset-password", "", map[string]string{
		"token":        token,
		"new_password": newPassword,
	}, nil)
}

type adminAPI struct{ c *Client }

var _ domain.AdminAPI = (*adminAPI)(nil)

func (a *adminAPI) Login(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	var result domain.AuthResult
	err := a.c.do(ctx, http.MethodPost, "/admin/login", "", map[string]string{
		"email":    email,
		"password": password,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (a *adminAPI) ListApplications(ctx context.Context, status domain.ApplicationStatus) ([]domain.OrganizerApplication, error) {
	path := "/admin/organizer-applications"
	if status != "" {
		path += "?" + url.Values{"status": {string(status)}}.Encode()
	}
	var apps []domain.OrganizerApplication
	if err := a.c.do(ctx, http.MethodGet, path, domain.KeyAdminAccessToken, nil, &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

func (a *adminAPI) GetApplication(ctx context.Context, id uint) (*domain.OrganizerApplication, error) {
	var app domain.OrganizerApplication
	path := "/admin/organizer-applications/" + strconv.FormatUint(uint64(id), 10)
	if err := a.c.do(ctx, http.MethodGet, path, domain.KeyAdminAccessToken, nil, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

func (a *adminAPI) UpdateApplicationStatus(ctx context.Context, id uint, update domain.StatusUpdate) (*domain.OrganizerApplication, error) {
	var app domain.OrganizerApplication
	path := "/admin/organizer-applications/" + strconv.FormatUint(uint64(id), 10) + "/status"
	if err := a.c.do(ctx, http.MethodPatch, path, domain.KeyAdminAccessToken, update, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

type organizerAPI struct{ c *Client }

var _ domain.OrganizerAPI = (*organizerAPI)(nil)

func (o *organizerAPI) Apply(ctx context.Context, form domain.OrganizerApplicationForm) (*domain.OrganizerApplication, error) {
	var app domain.OrganizerApplication
	if err := o.c.do(ctx, http.MethodPost, "/organizers/apply", domain.KeyAccessToken, form, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

func (o *organizerAPI) MyApplication(ctx context.Context) (*domain.OrganizerApplication, error) {
	var app domain.OrganizerApplication
	if err := o.c.do(ctx, http.MethodGet, "/organizers/me", domain.KeyAccessToken, nil, &app); err != nil {
		return nil, err
	}
	return &app, nil
}
