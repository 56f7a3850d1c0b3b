package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/you/findmyseat/domain"
)

// PolicyHandlers list and extend the intent policy
type PolicyHandlers struct{ Policy domain.IntentPolicy }

func (h *PolicyHandlers) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.Policy.Rules()})
}

func (h *PolicyHandlers) Add(c *gin.Context) {
	var rule domain.PolicyRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		badRequest(c, err)
		return
	}
	err := h.Policy.Grant(rule)
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, domain.ErrInvalidPolicy):
		badRequest(c, err)
	case errors.Is(err, domain.ErrPolicyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "Policy already exists"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Policy not saved"})
	}
}
