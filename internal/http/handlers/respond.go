package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/you/findmyseat/domain"
	"github.com/you/findmyseat/internal/services"
)

// respondError maps an intent error to a status code. The message shown is the
// one the operation state carries, so callers see the same text as the store.
func respondError(c *gin.Context, err error, state services.OperationState) {
	var vErr *domain.ValidationError
	var apiErr *domain.APIError

	switch {
	case errors.Is(err, domain.ErrStaleResponse):
		c.JSON(http.StatusConflict, gin.H{"error": "Response arrived after the session changed", "stale": true})
	case errors.Is(err, domain.ErrInvalidResetLink):
		c.JSON(http.StatusBadRequest, gin.H{"error": state.Error, "terminal": true})
	case errors.Is(err, domain.ErrNotAuthenticated):
		msg := state.Error
		if msg == "" {
			msg = "Not authenticated"
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": msg, "terminal": state.Terminal})
	case errors.As(err, &vErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Validation failed", "fields": vErr.Fields})
	case errors.As(err, &apiErr):
		status := apiErr.Status
		if status < 400 || status >= 500 {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": state.Error})
	case errors.Is(err, domain.ErrNoPendingOTP), errors.Is(err, domain.ErrOTPCorrupted):
		c.JSON(http.StatusNotFound, gin.H{"error": "No pending verification"})
	default:
		msg := state.Error
		if msg == "" {
			msg = "Request failed"
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": msg})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
