package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
)

// Gin context keys set by RequireOperatorToken.
const (
	KeyOperatorID = "operator_id"
	KeyRole       = "role"
)

// RequireOperatorToken verifies the bearer token and injects the operator identity into the
// request context. Role checks belong to internal/rbac.
func RequireOperatorToken(m *Manager, now func() time.Time) gin.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
		if raw == "" || !strings.HasPrefix(raw, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := m.Verify(strings.TrimPrefix(raw, bearerPrefix), now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Request = c.Request.WithContext(WithOperator(c.Request.Context(), claims.OperatorID, claims.Role))
		c.Set(KeyOperatorID, claims.OperatorID)
		c.Set(KeyRole, claims.Role)

		c.Next()
	}
}
