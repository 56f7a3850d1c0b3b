package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/you/findmyseat/internal/session"
)

// AuthMW resolves the caller identity from the local session stores
type AuthMW struct {
	users  *session.Store
	admins *session.Store
}

// NewAuthMW creates new auth middleware wrapper
func NewAuthMW(users, admins *session.Store) *AuthMW {
	return &AuthMW{users: users, admins: admins}
}

// WithUser requires an authenticated user session
func (mw *AuthMW) WithUser() gin.HandlerFunc {
	return SessionMiddleware(mw.users)
}

// WithAdmin requires an authenticated admin session
func (mw *AuthMW) WithAdmin() gin.HandlerFunc {
	return SessionMiddleware(mw.admins)
}

// SessionMiddleware puts the identity of store's session into the gin context.
// The role comes from the session user, falling back to the token's role claim.
func SessionMiddleware(store *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := store.Snapshot(c.Request.Context())
		if !snap.IsAuthenticated {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			c.Abort()
			return
		}

		role := snap.User.Role
		if role == "" {
			if claims, err := store.Claims(c.Request.Context()); err == nil {
				role = claims.Role
			}
		}

		c.Set("user_id", fmt.Sprintf("%d", snap.User.ID))
		c.Set("user_role", role)
		c.Set("session", store.Name())
		c.Next()
	}
}
