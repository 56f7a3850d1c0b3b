package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/you/findmyseat/domain"
	"github.com/you/findmyseat/internal/services"
)

// StateHandlers expose read-only snapshots of the session stores
type StateHandlers struct {
	flow  *services.AuthFlow
	admin *services.AdminService
}

// NewStateHandlers creates new state handlers
func NewStateHandlers(flow *services.AuthFlow, admin *services.AdminService) *StateHandlers {
	return &StateHandlers{flow: flow, admin: admin}
}

// State returns both sessions and every operation state
func (h *StateHandlers) State(c *gin.Context) {
	ctx := c.Request.Context()

	ops := make(map[services.OperationKind]services.OperationState, len(services.OperationKinds))
	for _, kind := range services.OperationKinds {
		ops[kind] = h.flow.State(kind)
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"session":            h.flow.Session(ctx),
			"admin_session":      h.admin.Session(ctx),
			"operations":         ops,
			"success_display_ms": h.flow.SuccessDisplay().Milliseconds(),
		},
	})
}

// OTP returns the countdown for the active challenge. With phone_number it
// resumes the challenge for that phone, creating the deadline once.
func (h *StateHandlers) OTP(c *gin.Context) {
	var (
		tick *services.OTPTick
		err  error
	)
	if phone := c.Query("phone_number"); phone != "" {
		tick, err = h.flow.OTP(c.Request.Context(), phone)
	} else {
		tick, err = h.flow.ActiveOTP(c.Request.Context())
	}
	if err != nil {
		respondError(c, err, services.OperationState{})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": tick})
}

// OTPStream sends a server-sent event per countdown tick until the challenge
// ends or the client goes away
func (h *StateHandlers) OTPStream(c *gin.Context) {
	ctx := c.Request.Context()

	phone := c.Query("phone_number")
	if phone == "" {
		tick, err := h.flow.ActiveOTP(ctx)
		if err != nil {
			respondError(c, err, services.OperationState{})
			return
		}
		phone = tick.Phone
	}

	ticks := make(chan services.OTPTick)
	done := make(chan struct{})
	var (
		status domain.OTPStatus
		runErr error
	)
	go func() {
		defer close(done)
		status, runErr = h.flow.WatchOTP(ctx, phone, func(t services.OTPTick) {
			select {
			case ticks <- t:
			case <-ctx.Done():
			}
		})
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	for {
		select {
		case t := <-ticks:
			c.SSEvent("tick", t)
			c.Writer.Flush()
		case <-done:
			end := gin.H{"phone_number": phone, "status": status}
			if runErr != nil && !errors.Is(runErr, ctx.Err()) {
				end["error"] = runErr.Error()
			}
			if ctx.Err() == nil {
				c.SSEvent("end", end)
				c.Writer.Flush()
			}
			return
		}
	}
}
