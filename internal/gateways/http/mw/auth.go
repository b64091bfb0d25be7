package mw

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"funds_tracker/internal/usecase"
)

const customerIDKey = "customer_id"

// Authenticator resolves a bearer token into claims
type Authenticator interface {
	Authenticate(token string) (usecase.Claims, error)
}

// RequireBearer rejects requests without a valid "Authorization: Bearer <token>" header and stores the
// authenticated customer ID on the context.
func RequireBearer(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			c.Header("WWW-Authenticate", `Bearer realm="funds-tracker"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token", "code": "unauthorized"})
			return
		}
		claims, err := a.Authenticate(strings.TrimSpace(token))
		if err != nil {
			c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token", "code": "unauthorized"})
			return
		}
		c.Set(customerIDKey, claims.CustomerID)
		c.Next()
	}
}

// CustomerID returns the authenticated customer, or "" outside RequireBearer
func CustomerID(c *gin.Context) string {
	return c.GetString(customerIDKey)
}
