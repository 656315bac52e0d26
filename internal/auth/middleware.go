package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"expertassist/internal/users"
	"expertassist/pkg/logger"

	"github.com/gin-gonic/gin"
)

const authorizationHeader = "Authorization"
const bearerPrefix = "Bearer "

// UserLookup confirms the token subject still exists.
type UserLookup interface {
	Get(ctx context.Context, id string) (users.User, error)
}

// RequireUser verifies an access token, resolves its user and injects the
// identity into the request context.
func RequireUser(m *Manager, lookup UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
		if raw == "" || !strings.HasPrefix(raw, bearerPrefix) {
			abort(c, http.StatusUnauthorized, "Authentication failed. No token provided.")
			return
		}
		tok := strings.TrimPrefix(raw, bearerPrefix)

		claims, err := m.Verify(tok, TokenTypeAccess, time.Now())
		if err != nil {
			logger.FromGin(c).Debug("token rejected", "err", err)
			abort(c, http.StatusUnauthorized, "Authentication failed. Invalid token.")
			return
		}

		email := claims.Email
		if lookup != nil {
			u, err := lookup.Get(c.Request.Context(), claims.UserID)
			switch {
			case errors.Is(err, users.ErrNotFound):
				abort(c, http.StatusNotFound, "User not found.")
				return
			case err != nil:
				logger.FromGin(c).Error("user lookup failed", "user_id", claims.UserID, "err", err)
				abort(c, http.StatusInternalServerError, "Server error")
				return
			}
			email = u.Email
		}

		ctx := WithIdentity(c.Request.Context(), claims.UserID, email)
		c.Request = c.Request.WithContext(ctx)

		// Also stored on the gin context for the request logger.
		c.Set("user_id", claims.UserID)

		c.Next()
	}
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": msg})
}
