package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/patchpilot/patchpilot/internal/utils"
)

const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
	ContextRole     = "role"
)

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}

// bearerToken extracts the token from an "Authorization: Bearer x" header.
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	return token, true
}

// AuthRequired validates the access token and stores its claims in the
// request context.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abortUnauthorized(c, "authorization header required")
			return
		}

		claims, err := utils.ParseToken(token)
		if err != nil {
			abortUnauthorized(c, "invalid or expired token")
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUsername, claims.Username)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// AdminRequired allows only users whose token carries the admin role. It
// must run after AuthRequired.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetRole(c) != "admin" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

func GetUserID(c *gin.Context) uint {
	if id, ok := c.Get(ContextUserID); ok {
		return id.(uint)
	}
	return 0
}

func GetUsername(c *gin.Context) string {
	if name, ok := c.Get(ContextUsername); ok {
		return name.(string)
	}
	return ""
}

func GetRole(c *gin.Context) string {
	if role, ok := c.Get(ContextRole); ok {
		return role.(string)
	}
	return ""
}
