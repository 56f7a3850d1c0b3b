package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/you/findmyseat/domain"
	"github.com/you/findmyseat/internal/services"
)

// AdminHandlers dispatches admin intents. They only ever touch the admin session.
type AdminHandlers struct {
	admin *services.AdminService
}

// NewAdminHandlers creates new admin handlers
func NewAdminHandlers(admin *services.AdminService) *AdminHandlers {
	return &AdminHandlers{admin: admin}
}

// Login handles admin login
func (h *AdminHandlers) Login(c *gin.Context) {
	var req domain.Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.admin.Login(c.Request.Context(), req); err != nil {
		respondError(c, err, h.admin.State(services.OpAdminLogin))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"session": h.admin.Session(c.Request.Context()),
		},
	})
}

// Logout handles admin logout
func (h *AdminHandlers) Logout(c *gin.Context) {
	if err := h.admin.Logout(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Logout failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"message": "Logged out successfully",
		},
	})
}

// List returns organizer applications, filtered by ?status= when given
func (h *AdminHandlers) List(c *gin.Context) {
	status := domain.ApplicationStatus(c.Query("status"))

	apps, err := h.admin.ListApplications(c.Request.Context(), status)
	if err != nil {
		respondError(c, err, h.admin.State(services.OpAdminListApplications))
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": apps})
}

// Get returns one organizer application
func (h *AdminHandlers) Get(c *gin.Context) {
	id, ok := applicationID(c)
	if !ok {
		return
	}

	app, err := h.admin.GetApplication(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, h.admin.State(services.OpAdminGetApplication))
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": app})
}

// UpdateStatus records an approval or a rejection
func (h *AdminHandlers) UpdateStatus(c *gin.Context) {
	id, ok := applicationID(c)
	if !ok {
		return
	}
	var req domain.StatusUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	app, err := h.admin.UpdateStatus(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err, h.admin.State(services.OpAdminUpdateStatus))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"message":     services.MsgStatusUpdated,
			"application": app,
		},
	})
}

func applicationID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid application ID"})
		return 0, false
	}
	return uint(id), true
}
