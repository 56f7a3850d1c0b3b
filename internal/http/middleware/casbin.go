package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/you/findmyseat/domain"
	"go.uber.org/zap"
)

// CasbinMW checks the resolved role against the intent policy
type CasbinMW struct {
	policy domain.IntentPolicy
	logger *zap.Logger
}

// NewCasbinMW creates new casbin middleware wrapper
func NewCasbinMW(policy domain.IntentPolicy, logger *zap.Logger) *CasbinMW {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CasbinMW{policy: policy, logger: logger}
}

// Enforce returns the casbin authorization middleware. It must run after one
// of the AuthMW session middlewares.
func (mw *CasbinMW) Enforce() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := c.Get("user_role")
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			c.Abort()
			return
		}

		path := c.Request.URL.Path
		method := c.Request.Method

		allowed, err := mw.policy.Allow(role.(string), method, path)
		if err != nil {
			mw.logger.Error("authorization check failed", zap.String("path", path), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Authorization check failed"})
			c.Abort()
			return
		}
		if !allowed {
			mw.logger.Debug("intent denied",
				zap.String("role", role.(string)),
				zap.String("path", path),
				zap.String("method", method))
			c.JSON(http.StatusForbidden, gin.H{"error": "Access Denied"})
			c.Abort()
			return
		}

		c.Next()
	}
}
