package testutil

import (
	"strings"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"

	"github.com/ErfanAalam/MyFootFirst2-sub000/middleware"
)

// MockValidatedClaims creates a mock ValidatedClaims for testing
func MockValidatedClaims(subject, issuer, retailerID string, scopes []string) *validator.ValidatedClaims {
	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{
			Issuer:  issuer,
			Subject: subject,
		},
		CustomClaims: &middleware.CustomClaims{
			Scope:      strings.Join(scopes, " "),
			RetailerID: retailerID,
		},
	}
}

// SetMockAuthContext sets up a mock authenticated context for testing,
// mirroring what the token middleware stores
func SetMockAuthContext(c *gin.Context, userID, retailerID string, scopes []string) {
	claims := MockValidatedClaims(userID, "https://test.auth0.com/", retailerID, scopes)
	c.Set("user_id", userID)
	c.Set("validated_claims", claims)
	c.Set("access_token", "mock-token")
	if retailerID != "" {
		c.Set("retailer_id", retailerID)
	}
}

// MockAuthMiddleware authenticates every request as userID
func MockAuthMiddleware(userID, retailerID string, scopes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		SetMockAuthContext(c, userID, retailerID, scopes)
		c.Next()
	}
}
