package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/you/findmyseat/domain"
	"github.com/you/findmyseat/internal/services"
)

// OrganizerHandlers dispatches the signed-in user's organizer intents
type OrganizerHandlers struct {
	organizer *services.OrganizerService
}

// NewOrganizerHandlers creates new organizer handlers
func NewOrganizerHandlers(organizer *services.OrganizerService) *OrganizerHandlers {
	return &OrganizerHandlers{organizer: organizer}
}

// Apply submits the organizer application form
func (h *OrganizerHandlers) Apply(c *gin.Context) {
	var req domain.OrganizerApplicationForm
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	app, err := h.organizer.Submit(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, h.organizer.State(services.OpOrganizerSubmit))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"data": gin.H{
			"message":     services.MsgApplicationSubmitted,
			"application": app,
		},
	})
}

// Application returns the signed-in user's application
func (h *OrganizerHandlers) Application(c *gin.Context) {
	app, err := h.organizer.MyApplication(c.Request.Context())
	if err != nil {
		respondError(c, err, h.organizer.State(services.OpOrganizerFetch))
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": app})
}

// ClearState resets the organizer operation states
func (h *OrganizerHandlers) ClearState(c *gin.Context) {
	h.organizer.ClearState()
	c.Status(http.StatusNoContent)
}
