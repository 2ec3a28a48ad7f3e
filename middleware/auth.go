package middleware

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/ErfanAalam/MyFootFirst2-sub000/config"
)

// RetailerClaim is the namespaced Auth0 claim carrying the staff member's retailer
const RetailerClaim = "https://myfootfirst.com/retailer_id"

// Gin context keys
const (
	userIDKey          = "user_id"
	retailerIDKey      = "retailer_id"
	accessTokenKey     = "access_token"
	validatedClaimsKey = "validated_claims"
)

// CustomClaims contains custom data we want from the token.
type CustomClaims struct {
	Scope      string `json:"scope"`
	RetailerID string `json:"https://myfootfirst.com/retailer_id"`
}

// Validate does nothing, but we need it to satisfy validator.CustomClaims interface.
func (c CustomClaims) Validate(ctx context.Context) error {
	return nil
}

// HasScope checks whether our claims have a specific scope.
func (c CustomClaims) HasScope(expectedScope string) bool {
	result := strings.Split(c.Scope, " ")
	for i := range result {
		if result[i] == expectedScope {
			return true
		}
	}

	return false
}

// Authenticate returns the token middleware for the configured auth mode
func Authenticate(cfg *config.Config) gin.HandlerFunc {
	if cfg.AuthMode == config.AuthModeShared {
		return EnsureSharedSecretToken(cfg.JWTSecret)
	}
	return EnsureValidToken(cfg)
}

// EnsureValidToken is a middleware that will check the validity of our JWT.
func EnsureValidToken(cfg *config.Config) gin.HandlerFunc {
	issuerURL, err := url.Parse("https://" + cfg.Auth0Domain + "/")
	if err != nil {
		log.Fatalf("Failed to parse the issuer url: %v", err)
	}

	provider := jwks.NewCachingProvider(issuerURL, 5*time.Minute)

	jwtValidator, err := validator.New(
		provider.KeyFunc,
		validator.RS256,
		issuerURL.String(),
		[]string{cfg.Auth0Audience},
		validator.WithCustomClaims(
			func() validator.CustomClaims {
				return &CustomClaims{}
			},
		),
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		log.Fatalf("Failed to set up the jwt validator")
	}

	errorHandler := func(w http.ResponseWriter, r *http.Request, err error) {
		log.Printf("Encountered error while validating JWT: %v", err)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		if _, writeErr := w.Write([]byte(`{"success":false,"error":{"code":"INVALID_TOKEN","message":"Failed to validate JWT."}}`)); writeErr != nil {
			log.Printf("Failed to write error response: %v", writeErr)
		}
	}

	middleware := jwtmiddleware.New(
		jwtValidator.ValidateToken,
		jwtmiddleware.WithErrorHandler(errorHandler),
	)

	return func(c *gin.Context) {
		var handler http.HandlerFunc = func(w http.ResponseWriter, r *http.Request) {
			token := r.Context().Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)
			setIdentity(c, token, bearerToken(r))
			c.Next()
		}

		middleware.CheckJWT(handler).ServeHTTP(c.Writer, c.Request)
		if !c.IsAborted() && c.Writer.Written() && c.Writer.Status() == http.StatusUnauthorized {
			c.Abort()
		}
	}
}

// sharedSecretClaims is the payload of an HS256 development token
type sharedSecretClaims struct {
	Scope      string `json:"scope"`
	RetailerID string `json:"retailer_id"`
	jwt.RegisteredClaims
}

// EnsureSharedSecretToken validates HS256 tokens signed with secret.
// It is meant for development and tests where no Auth0 tenant is available.
func EnsureSharedSecretToken(secret string) gin.HandlerFunc {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(time.Minute),
		jwt.WithExpirationRequired(),
	)

	return func(c *gin.Context) {
		raw := bearerToken(c.Request)
		if raw == "" {
			abortUnauthorized(c, "MISSING_TOKEN", "Authorization header with bearer token is required")
			return
		}

		claims := &sharedSecretClaims{}
		_, err := parser.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		})
		if err != nil {
			log.Printf("Encountered error while validating JWT: %v", err)
			abortUnauthorized(c, "INVALID_TOKEN", "Failed to validate JWT.")
			return
		}

		validated := &validator.ValidatedClaims{
			RegisteredClaims: validator.RegisteredClaims{
				Issuer:  claims.Issuer,
				Subject: claims.Subject,
			},
			CustomClaims: &CustomClaims{
				Scope:      claims.Scope,
				RetailerID: claims.RetailerID,
			},
		}
		setIdentity(c, validated, raw)
		c.Next()
	}
}

// IssueSharedSecretToken signs an HS256 token accepted by EnsureSharedSecretToken
func IssueSharedSecretToken(secret, userID, retailerID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := sharedSecretClaims{
		RetailerID: retailerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    "myfootfirst-dev",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func setIdentity(c *gin.Context, claims *validator.ValidatedClaims, accessToken string) {
	c.Set(userIDKey, claims.RegisteredClaims.Subject)
	c.Set(validatedClaimsKey, claims)
	c.Set(accessTokenKey, accessToken)
	if custom, ok := claims.CustomClaims.(*CustomClaims); ok && custom.RetailerID != "" {
		c.Set(retailerIDKey, custom.RetailerID)
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func abortUnauthorized(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// GetUserID extracts the user ID from the Gin context
func GetUserID(c *gin.Context) (string, error) {
	return getString(c, userIDKey, "USER_ID", "User ID")
}

// GetRetailerID extracts the retailer the user belongs to
func GetRetailerID(c *gin.Context) (string, error) {
	return getString(c, retailerIDKey, "RETAILER_ID", "Retailer ID")
}

// GetAccessToken extracts the raw bearer token of the request
func GetAccessToken(c *gin.Context) (string, error) {
	return getString(c, accessTokenKey, "ACCESS_TOKEN", "Access token")
}

func getString(c *gin.Context, key, code, label string) (string, error) {
	value, exists := c.Get(key)
	if !exists {
		return "", &AuthError{Code: "MISSING_" + code, Message: label + " not found in context"}
	}

	str, ok := value.(string)
	if !ok {
		return "", &AuthError{Code: "INVALID_" + code, Message: label + " is not a string"}
	}

	return str, nil
}

// GetClaims extracts the validated JWT claims from the Gin context
func GetClaims(c *gin.Context) (*validator.ValidatedClaims, error) {
	claims, exists := c.Get(validatedClaimsKey)
	if !exists {
		return nil, &AuthError{Code: "MISSING_CLAIMS", Message: "Claims not found in context"}
	}

	validatedClaims, ok := claims.(*validator.ValidatedClaims)
	if !ok {
		return nil, &AuthError{Code: "INVALID_CLAIMS", Message: "Claims are not in the expected format"}
	}

	return validatedClaims, nil
}

// RequireScope is a middleware that checks if the token has a specific scope
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := GetClaims(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "MISSING_CLAIMS",
					"message": "Could not retrieve token claims",
				},
			})
			c.Abort()
			return
		}

		customClaims, ok := claims.CustomClaims.(*CustomClaims)
		if !ok || !customClaims.HasScope(scope) {
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INSUFFICIENT_SCOPE",
					"message": "Insufficient permissions to access this resource",
				},
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// AuthError represents an authentication error
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}
