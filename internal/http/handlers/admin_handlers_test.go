package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/you/findmyseat/domain"
)

func TestAdminHandlers_UpdateStatus(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		body           map[string]string
		expectedStatus int
		expectedReason string
		expectedCalls  int
	}{
		{
			name:           "rejection needs a reason",
			path:           "/admin/applications/4/status",
			body:           map[string]string{"status": "rejected"},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "rejection with reason",
			path:           "/admin/applications/4/status",
			body:           map[string]string{"status": "rejected", "reason": "Bank details missing"},
			expectedStatus: http.StatusOK,
			expectedReason: "Bank details missing",
			expectedCalls:  1,
		},
		{
			name:           "approval drops reason",
			path:           "/admin/applications/4/status",
			body:           map[string]string{"status": "approved", "reason": "ok"},
			expectedStatus: http.StatusOK,
			expectedCalls:  1,
		},
		{
			name:           "bad id",
			path:           "/admin/applications/abc/status",
			body:           map[string]string{"status": "approved"},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGateway(t)

			w, body := g.do(t, http.MethodPatch, tt.path, tt.body)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedCalls, g.adminAPI.CallCount("UpdateApplicationStatus"))
			if tt.expectedStatus == http.StatusOK {
				app := dataOf(t, body)["application"].(map[string]interface{})
				if tt.expectedReason == "" {
					assert.NotContains(t, app, "rejection_reason")
				} else {
					assert.Equal(t, tt.expectedReason, app["rejection_reason"])
				}
			}
		})
	}
}

func TestAdminHandlers_ListAndGet(t *testing.T) {
	g := newTestGateway(t)
	g.adminAPI.ListApplicationsFunc = func(ctx context.Context, status domain.ApplicationStatus) ([]domain.OrganizerApplication, error) {
		return []domain.OrganizerApplication{{ID: 1, Status: status}}, nil
	}

	w, body := g.do(t, http.MethodGet, "/admin/applications?status=pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	apps := body["data"].([]interface{})
	require.Len(t, apps, 1)
	assert.Equal(t, "pending", apps[0].(map[string]interface{})["status"])

	w, body = g.do(t, http.MethodGet, "/admin/applications?status=archived", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, body["fields"], "status")

	w, body = g.do(t, http.MethodGet, "/admin/applications/8", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(8), dataOf(t, body)["id"])
}

func TestAdminHandlers_LoginLeavesUserSessionAlone(t *testing.T) {
	g := newTestGateway(t)

	w, _ := g.do(t, http.MethodPost, "/admin/intents/login", map[string]string{"email": "admin@b.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code)

	_, body := g.do(t, http.MethodGet, "/state", nil)
	data := dataOf(t, body)
	assert.Equal(t, true, data["admin_session"].(map[string]interface{})["is_authenticated"])
	assert.Equal(t, false, data["session"].(map[string]interface{})["is_authenticated"])
}

func TestOrganizerHandlers_Apply(t *testing.T) {
	g := newTestGateway(t)
	form := map[string]string{
		"organization_or_individual_name": "Blue Tent Events",
		"address":                         "12 MG Road, Bengaluru",
		"contact_name":                    "Asha Rao",
		"email":                           "events@bluetent.in",
		"phone_number":                    "9876543210",
		"beneficiary_name":                "Blue Tent Events",
		"account_type":                    "Savings",
		"bank_name":                       "State Bank",
		"account_number":                  "123456789012",
		"ifsc_code":                       "sbin0001234",
	}

	w, body := g.do(t, http.MethodPost, "/organizer/apply", form)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, true, body["terminal"])

	signIn(t, g)
	w, body = g.do(t, http.MethodPost, "/organizer/apply", form)
	require.Equal(t, http.StatusCreated, w.Code)
	app := dataOf(t, body)["application"].(map[string]interface{})
	assert.Equal(t, "SBIN0001234", app["ifsc_code"])
	assert.Equal(t, "events@bluetent.in", app["contact_email"])

	w, _ = g.do(t, http.MethodGet, "/organizer/application", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
