package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/faculty-reporting-api/internal/authz"
	"github.com/noah-isme/faculty-reporting-api/internal/middleware"
	"github.com/noah-isme/faculty-reporting-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		return nil
	}
	return claims
}

func identityFromContext(c *gin.Context) (authz.Identity, bool) {
	return middleware.CurrentIdentity(c)
}
