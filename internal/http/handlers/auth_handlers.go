package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/you/findmyseat/domain"
	"github.com/you/findmyseat/internal/services"
)

// AuthHandlers dispatches user intents to the auth state machine
type AuthHandlers struct {
	flow *services.AuthFlow
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(flow *services.AuthFlow) *AuthHandlers {
	return &AuthHandlers{flow: flow}
}

// PhoneRequest carries the phone number a resend is requested for
type PhoneRequest struct {
	Phone string `json:"phone_number"`
}

// EditRequest reports an input change on one field of an operation's form
type EditRequest struct {
	Kind  string `json:"kind"`
	Field string `json:"field"`
}

// Login handles the login intent
func (h *AuthHandlers) Login(c *gin.Context) {
	var req domain.Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.flow.Login(c.Request.Context(), req); err != nil {
		respondError(c, err, h.flow.State(services.OpLogin))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"session": h.flow.Session(c.Request.Context()),
		},
	})
}

// Register handles the register intent. The caller moves on to OTP verification.
func (h *AuthHandlers) Register(c *gin.Context) {
	var req domain.Registration
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	challenge, err := h.flow.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, h.flow.State(services.OpRegister))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"data": gin.H{
			"message": services.MsgOTPSent,
			"otp":     challenge,
			"next":    services.OpVerifyOTP,
		},
	})
}

// VerifyOTP handles the verify-otp intent
func (h *AuthHandlers) VerifyOTP(c *gin.Context) {
	var req domain.OTPVerification
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.flow.VerifyOTP(c.Request.Context(), req); err != nil {
		respondError(c, err, h.flow.State(services.OpVerifyOTP))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"message": services.MsgOTPVerified,
			"session": h.flow.Session(c.Request.Context()),
		},
	})
}

// ResendOTP handles the resend-otp intent
func (h *AuthHandlers) ResendOTP(c *gin.Context) {
	var req PhoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	challenge, err := h.flow.ResendOTP(c.Request.Context(), req.Phone)
	if err != nil {
		respondError(c, err, h.flow.State(services.OpResendOTP))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"message": services.MsgOTPSent,
			"otp":     challenge,
		},
	})
}

// ChangePassword handles the change-password intent
func (h *AuthHandlers) ChangePassword(c *gin.Context) {
	var req domain.PasswordChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.flow.ChangePassword(c.Request.Context(), req); err != nil {
		respondError(c, err, h.flow.State(services.OpChangePassword))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"message":            services.MsgPasswordChanged,
			"success_display_ms": h.flow.SuccessDisplay().Milliseconds(),
		},
	})
}

// ForgotPassword handles the forgot-password intent
func (h *AuthHandlers) ForgotPassword(c *gin.Context) {
	var req domain.ForgotPassword
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.flow.ForgotPassword(c.Request.Context(), req); err != nil {
		respondError(c, err, h.flow.State(services.OpForgotPassword))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"message": services.MsgResetLinkSent,
		},
	})
}

// ResetPassword handles the reset-password intent. The token may come in the
// body or, as in a reset link, in the query string.
func (h *AuthHandlers) ResetPassword(c *gin.Context) {
	var req domain.PasswordReset
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Token == "" {
		req.Token = c.Query("token")
	}

	if err := h.flow.ResetPassword(c.Request.Context(), req); err != nil {
		respondError(c, err, h.flow.State(services.OpResetPassword))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"message": services.MsgPasswordResetOK,
		},
	})
}

// Logout handles the logout intent; it always succeeds from the caller's view
func (h *AuthHandlers) Logout(c *gin.Context) {
	if err := h.flow.Logout(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Logout failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"message": "Logged out successfully",
		},
	})
}

// Edit clears a field error after an input change
func (h *AuthHandlers) Edit(c *gin.Context) {
	var req EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	kind, ok := services.ParseOperationKind(req.Kind)
	if !ok {
		badRequest(c, errors.New("unknown operation kind"))
		return
	}

	h.flow.Edit(kind, req.Field)
	c.JSON(http.StatusOK, gin.H{"data": h.flow.State(kind)})
}

// ClearSuccess resets the success flag of the kind in the path
func (h *AuthHandlers) ClearSuccess(c *gin.Context) {
	kind, ok := services.ParseOperationKind(c.Param("kind"))
	if !ok {
		badRequest(c, errors.New("unknown operation kind"))
		return
	}

	h.flow.ClearSuccess(kind)
	c.Status(http.StatusNoContent)
}
