package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/recoverly/followup-agent/pkg/auth"
	"github.com/recoverly/followup-agent/pkg/errors"
)

// AuthMiddleware validates the bearer token and stores the tenant identity
// on the request context.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			errors.Unauthorized(c, "authorization header required")
			c.Abort()
			return
		}

		parts := strings.Split(header, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			errors.Unauthorized(c, "invalid authorization format")
			c.Abort()
			return
		}

		claims, err := auth.ParseToken(parts[1], jwtSecret)
		if err != nil {
			errors.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set("tenant_id", claims.TenantID)
		c.Set("tenant_email", claims.Email)
		c.Set("tenant_role", claims.Role)
		c.Next()
	}
}

// RoleMiddleware restricts a route group to the given roles. Runs after
// AuthMiddleware, which sets tenant_role.
func RoleMiddleware(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString("tenant_role")
		if role == "" {
			errors.Forbidden(c, "role not found in token")
			c.Abort()
			return
		}

		for _, allowed := range allowedRoles {
			if role == allowed {
				c.Next()
				return
			}
		}

		errors.Forbidden(c, "insufficient permissions")
		c.Abort()
	}
}
