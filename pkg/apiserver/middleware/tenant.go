package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const tenantKey = "tenant_id"

// Tenant resolves the acting tenant for the request. Resolution is
// explicit and fails closed: the X-Tenant-ID header wins, then the
// tenant query parameter, then the token claim. A request that
// resolves to nothing, or to a malformed ID, is rejected with 400
// rather than falling back to any default tenant.
func Tenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-Tenant-ID")
		if raw == "" {
			raw = c.Query("tenant")
		}
		if raw == "" {
			if claims, ok := ClaimsFrom(c); ok {
				raw = claims.TenantID
			}
		}
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "tenant not specified"})
			return
		}
		tenantID, err := uuid.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid tenant id"})
			return
		}
		c.Set(tenantKey, tenantID)
		c.Next()
	}
}

func TenantFrom(c *gin.Context) uuid.UUID {
	value, ok := c.Get(tenantKey)
	if !ok {
		return uuid.Nil
	}
	tenantID, ok := value.(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return tenantID
}
