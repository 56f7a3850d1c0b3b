package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/you/findmyseat/internal/config"
	"github.com/you/findmyseat/internal/infrastructure/auth"
	"github.com/you/findmyseat/internal/infrastructure/repositories"
	"github.com/you/findmyseat/internal/mocks"
	"github.com/you/findmyseat/internal/services"
	"github.com/you/findmyseat/internal/session"
	"github.com/you/findmyseat/internal/validation"
)

var testNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type testGateway struct {
	router    *gin.Engine
	authAPI   *mocks.MockAuthAPI
	adminAPI  *mocks.MockAdminAPI
	orgAPI    *mocks.MockOrganizerAPI
	clock     *mocks.MockClock
	state     *repositories.MemoryStateStore
	users     *session.Store
	admins    *session.Store
	flow      *services.AuthFlow
	admin     *services.AdminService
	organizer *services.OrganizerService
}

// newTestGateway wires real services over mock APIs and registers the handlers
// on a bare gin engine
func newTestGateway(t *testing.T) *testGateway {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rules := config.DefaultRules()
	require.NoError(t, rules.Compile())
	validate := validation.New(rules, 6)

	clock := mocks.NewMockClock(testNow)
	state := repositories.NewMemoryStateStore()
	tokens := auth.NewTokenInspector(clock.Now)
	users := session.NewUserStore(state, tokens)
	admins := session.NewAdminStore(state, tokens)
	ops := services.NewOperationTracker()
	challenges := services.NewOTPChallenges(state, clock, 120*time.Second)

	g := &testGateway{
		authAPI:  mocks.NewMockAuthAPI(),
		adminAPI: mocks.NewMockAdminAPI(),
		orgAPI:   mocks.NewMockOrganizerAPI(),
		clock:    clock,
		state:    state,
		users:    users,
		admins:   admins,
	}
	g.flow = services.NewAuthFlow(g.authAPI, users, ops, challenges, services.NewOTPTimer(challenges, clock), validate, nil, nil, 5*time.Second)
	t.Cleanup(g.flow.Close)
	g.admin = services.NewAdminService(g.adminAPI, admins, ops, validate, nil, nil)
	g.organizer = services.NewOrganizerService(g.orgAPI, users, ops, validate, nil)

	ah := NewAuthHandlers(g.flow)
	sh := NewStateHandlers(g.flow, g.admin)
	adh := NewAdminHandlers(g.admin)
	oh := NewOrganizerHandlers(g.organizer)

	r := gin.New()
	r.POST("/intents/login", ah.Login)
	r.POST("/intents/register", ah.Register)
	r.POST("/intents/verify-otp", ah.VerifyOTP)
	r.POST("/intents/resend-otp", ah.ResendOTP)
	r.POST("/intents/change-password", ah.ChangePassword)
	r.POST("/intents/forgot-password", ah.ForgotPassword)
	r.POST("/intents/reset-password", ah.ResetPassword)
	r.POST("/intents/logout", ah.Logout)
	r.POST("/intents/edit", ah.Edit)
	r.DELETE("/intents/:kind/success", ah.ClearSuccess)
	r.GET("/state", sh.State)
	r.GET("/state/otp", sh.OTP)
	r.GET("/state/otp/stream", sh.OTPStream)
	r.POST("/admin/intents/login", adh.Login)
	r.GET("/admin/applications", adh.List)
	r.GET("/admin/applications/:id", adh.Get)
	r.PATCH("/admin/applications/:id/status", adh.UpdateStatus)
	r.POST("/organizer/apply", oh.Apply)
	r.GET("/organizer/application", oh.Application)
	g.router = r

	return g
}

func (g *testGateway) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "text/event-stream" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func dataOf(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %v", body)
	return data
}

func signIn(t *testing.T, g *testGateway) {
	t.Helper()
	w, _ := g.do(t, http.MethodPost, "/intents/login", map[string]string{"email": "a@b.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code)
}
