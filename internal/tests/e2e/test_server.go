package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/you/findmyseat/internal/app"
	"github.com/you/findmyseat/internal/config"
)

// TestServer runs the intent gateway over a real container, pointed at a FakeAPI
type TestServer struct {
	Server    *httptest.Server
	Container *app.Container
	API       *FakeAPI
	Config    *config.Config
	BaseURL   string
	Client    *http.Client
}

// ServerOption tweaks the gateway config before the container is built
type ServerOption func(t *testing.T, cfg *config.Config)

// WithSQLite stores client state in a throwaway sqlite file
func WithSQLite() ServerOption {
	return func(t *testing.T, cfg *config.Config) {
		cfg.StorageDriver = "sqlite"
		cfg.StorageDSN = filepath.Join(t.TempDir(), "findmyseat.db")
	}
}

// WithRedis stores client state in mr
func WithRedis(mr *miniredis.Miniredis) ServerOption {
	return func(t *testing.T, cfg *config.Config) {
		cfg.StorageDriver = "redis"
		cfg.RedisAddr = mr.Addr()
		cfg.StoragePrefix = "e2e:"
	}
}

// WithOTPDuration shortens the challenge lifetime
func WithOTPDuration(d time.Duration) ServerOption {
	return func(t *testing.T, cfg *config.Config) { cfg.OTPDuration = d }
}

// NewTestServer starts a FakeAPI and a gateway wired to it
func NewTestServer(t *testing.T, opts ...ServerOption) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	api := NewFakeAPI(t)

	rules := config.DefaultRules()
	if err := rules.Compile(); err != nil {
		t.Fatalf("Failed to compile rules: %v", err)
	}
	cfg := &config.Config{
		Env:            "test",
		Port:           "0",
		APIBaseURL:     api.BaseURL(),
		APITimeout:     5 * time.Second,
		StorageDriver:  "memory",
		OTPDuration:    120 * time.Second,
		OTPLength:      6,
		SuccessDisplay: 5 * time.Second,
		Rules:          rules,
	}
	for _, opt := range opts {
		opt(t, cfg)
	}

	c, err := app.NewContainer(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create container: %v", err)
	}
	router, err := app.Router(c)
	if err != nil {
		t.Fatalf("Failed to create router: %v", err)
	}

	server := httptest.NewUnstartedServer(router)
	server.Start()

	ts := &TestServer{
		Server:    server,
		Container: c,
		API:       api,
		Config:    cfg,
		BaseURL:   server.URL,
		Client:    &http.Client{Timeout: 10 * time.Second},
	}
	t.Cleanup(func() {
		server.Close()
		_ = c.Close()
	})
	return ts
}

// Do sends a JSON request to the gateway and decodes the JSON response, if any
func (ts *TestServer) Do(t *testing.T, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, ts.BaseURL+path, reader)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.Client.Do(req)
	if err != nil {
		t.Fatalf("Request %s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	var out map[string]interface{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("Response to %s %s is not JSON: %s", method, path, raw)
		}
	}
	return resp.StatusCode, out
}

// Data returns the "data" object of a success response
func Data(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	data, ok := body["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("Response has no data object: %v", body)
	}
	return data
}
