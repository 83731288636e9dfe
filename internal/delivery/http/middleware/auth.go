package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/duetapp/duet-sync/internal/usecase/identity"
)

type AuthMiddleware struct {
	resolver *identity.Resolver
}

func NewAuthMiddleware(resolver *identity.Resolver) *AuthMiddleware {
	return &AuthMiddleware{resolver: resolver}
}

// RequireAuth extracts the bearer principal, resolves its profile and
// places it on the context under "profile".
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		principalID, email, err := m.resolver.PrincipalFromToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		profile, err := m.resolver.Resolve(c.Request.Context(), principalID, email)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown principal"})
			return
		}

		c.Set("profile", profile)
		c.Next()
	}
}
