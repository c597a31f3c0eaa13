package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/faculty-reporting-api/internal/authz"
	"github.com/noah-isme/faculty-reporting-api/internal/models"
	"github.com/noah-isme/faculty-reporting-api/internal/service"
	appErrors "github.com/noah-isme/faculty-reporting-api/pkg/errors"
	"github.com/noah-isme/faculty-reporting-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

// ContextIdentityKey stores the derived policy identity. It is built once
// here so handlers and services all evaluate against the same tuple.
const ContextIdentityKey = "identity"

// JWT protects routes by requiring a valid access token. On success the
// verified claims and the policy identity derived from them are attached to
// the request context.
func JWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Set(ContextIdentityKey, authz.FromClaims(claims))
		c.Next()
	}
}

// CurrentClaims returns the verified claims attached by JWT.
func CurrentClaims(c *gin.Context) (*models.JWTClaims, bool) {
	value, ok := c.Get(ContextUserKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*models.JWTClaims)
	return claims, ok
}

// CurrentIdentity returns the policy identity attached by JWT.
func CurrentIdentity(c *gin.Context) (authz.Identity, bool) {
	value, ok := c.Get(ContextIdentityKey)
	if !ok {
		return authz.Identity{}, false
	}
	id, ok := value.(authz.Identity)
	return id, ok
}
