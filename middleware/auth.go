package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yashrajoria/storefront/models"
	"github.com/yashrajoria/storefront/services"
)

const (
	// UserIDKey is the gin context key holding the authenticated user id.
	UserIDKey = "userID"
	// RoleKey is the gin context key holding the authenticated role.
	RoleKey = "role"
	// EmailKey is the gin context key holding the authenticated email.
	EmailKey = "email"
)

// Authenticate validates the Bearer access token and stores the caller's
// identity in the request context. Every protected route group mounts this
// before any permission check.
func Authenticate(tokens services.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing token"})
			return
		}
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format"})
			return
		}

		claims, err := tokens.ValidateToken(strings.TrimPrefix(header, "Bearer "), "access")
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		sub, _ := claims["sub"].(string)
		userID, err := uuid.Parse(sub)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
			return
		}

		roleStr, _ := claims["role"].(string)
		role := models.Role(roleStr)
		if !role.IsValid() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
			return
		}

		c.Set(UserIDKey, userID)
		c.Set(RoleKey, role)
		if email, ok := claims["email"].(string); ok {
			c.Set(EmailKey, email)
		}
		c.Next()
	}
}

// UserIDFromContext extracts the authenticated user id set by Authenticate.
func UserIDFromContext(c *gin.Context) (uuid.UUID, error) {
	if val, ok := c.Get(UserIDKey); ok {
		if id, ok := val.(uuid.UUID); ok && id != uuid.Nil {
			return id, nil
		}
	}
	return uuid.Nil, errors.New("user ID not found in context")
}

// RoleFromContext extracts the authenticated role set by Authenticate.
func RoleFromContext(c *gin.Context) models.Role {
	if val, ok := c.Get(RoleKey); ok {
		if role, ok := val.(models.Role); ok {
			return role
		}
	}
	return ""
}
