package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"secure-ehr-gateway/internal/access"
	"secure-ehr-gateway/internal/config"
	"secure-ehr-gateway/internal/models"
	"secure-ehr-gateway/internal/utils"
)

const sessionKey = "session"

// AuthMiddleware creates a middleware for JWT authentication. On success it
// stores the resolved access.Session, mask included, in the request context.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.Unauthorized(c, "Authorization header required")
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			utils.Unauthorized(c, "Invalid authorization header format")
			c.Abort()
			return
		}

		tokenString := parts[1]
		claims, err := utils.ValidateToken(tokenString, cfg.JWTSecret)
		if err != nil {
			utils.Unauthorized(c, "Invalid token: "+err.Error())
			c.Abort()
			return
		}

		// Resolve the role's field mask once, at session creation.
		c.Set(sessionKey, access.NewSession(claims.Username, claims.Role))

		c.Next()
	}
}

// RoleAuthMiddleware creates a middleware for role-based authorization.
// It should be used *after* AuthMiddleware.
func RoleAuthMiddleware(allowedRoles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := GetSessionFromContext(c)
		if !ok {
			utils.InternalServerError(c, "Session not found in context. AuthMiddleware might be missing.")
			c.Abort()
			return
		}

		isAllowed := false
		for _, allowedRole := range allowedRoles {
			if sess.Role == allowedRole {
				isAllowed = true
				break
			}
		}

		if !isAllowed {
			utils.Forbidden(c, "You do not have permission to access this resource.")
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetSessionFromContext returns the authenticated session for a request.
func GetSessionFromContext(c *gin.Context) (access.Session, bool) {
	value, exists := c.Get(sessionKey)
	if !exists {
		return access.Session{}, false
	}
	sess, ok := value.(access.Session)
	return sess, ok
}
