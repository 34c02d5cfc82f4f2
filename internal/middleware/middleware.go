package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mchileshe/CourierIQ/internal/config"
	apierrors "github.com/mchileshe/CourierIQ/internal/errors"
	"github.com/mchileshe/CourierIQ/internal/models"
)

// Context keys for storing user information
const (
	ContextKeyRequestID = "request_id"
	ContextKeyUserID    = "user_id"
	ContextKeyUserRole  = "user_role"
	ContextKeyEmail     = "email"
)

// JWT validation errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Claims represents JWT claims
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// RequestID assigns each request a unique identifier for log correlation
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(ContextKeyRequestID, requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)
		c.Next()
	}
}

// CORS handles cross-origin requests for the allowed origins
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if allowed[origin] || allowed["*"] {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// JWTAuthenticator handles JWT token validation
type JWTAuthenticator struct {
	config *config.JWTConfig
}

// NewJWTAuthenticator creates a new JWT authenticator
func NewJWTAuthenticator(cfg *config.JWTConfig) *JWTAuthenticator {
	return &JWTAuthenticator{config: cfg}
}

// JWTAuth creates a middleware that validates JWT tokens from the
// Authorization header and sets user information in the context
func (j *JWTAuthenticator) JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			respondWithError(c, apierrors.ErrInvalidCredentialsError)
			c.Abort()
			return
		}

		tokenString, err := extractBearerToken(authHeader)
		if err != nil {
			respondWithError(c, apierrors.ErrInvalidCredentialsError)
			c.Abort()
			return
		}

		claims, err := j.ValidateAccessToken(tokenString)
		if err != nil {
			if errors.Is(err, ErrTokenExpired) {
				respondWithError(c, apierrors.ErrTokenExpiredError)
			} else {
				respondWithError(c, apierrors.ErrInvalidCredentialsError)
			}
			c.Abort()
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyUserRole, claims.Role)
		c.Set(ContextKeyEmail, claims.Email)

		c.Next()
	}
}

// ValidateAccessToken validates an access token and returns claims
func (j *JWTAuthenticator) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims, err := j.validateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Subject != "access" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// validateToken parses and validates a JWT token
func (j *JWTAuthenticator) validateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(j.config.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// extractBearerToken extracts the token from a Bearer authorization header
func extractBearerToken(authHeader string) (string, error) {
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidToken
	}
	return authHeader[len(bearerPrefix):], nil
}

// RequireRole creates a middleware that checks if the user has one of the
// required roles. Must be used after JWTAuth.
func RequireRole(allowedRoles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleStr, exists := c.Get(ContextKeyUserRole)
		if !exists {
			respondWithError(c, apierrors.ErrForbiddenError)
			c.Abort()
			return
		}

		role := models.UserRole(roleStr.(string))
		for _, allowed := range allowedRoles {
			if role == allowed {
				c.Next()
				return
			}
		}

		respondWithError(c, &apierrors.APIError{
			Code:       apierrors.ErrForbidden,
			Message:    fmt.Sprintf("Access denied. Required role: %v", allowedRoles),
			HTTPStatus: http.StatusForbidden,
		})
		c.Abort()
	}
}

// RequireAdmin is a convenience middleware that requires the admin role
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(models.UserRoleAdmin)
}

// GetUserIDFromContext extracts the user ID from the gin context.
// Returns uuid.Nil if not found or unparseable.
func GetUserIDFromContext(c *gin.Context) uuid.UUID {
	value, exists := c.Get(ContextKeyUserID)
	if !exists {
		return uuid.Nil
	}
	id, err := uuid.Parse(value.(string))
	if err != nil {
		return uuid.Nil
	}
	return id
}

// GetUserRoleFromContext extracts the user role from the gin context
func GetUserRoleFromContext(c *gin.Context) models.UserRole {
	value, exists := c.Get(ContextKeyUserRole)
	if !exists {
		return ""
	}
	return models.UserRole(value.(string))
}

// GetRequestIDFromContext extracts the request ID from the gin context
func GetRequestIDFromContext(c *gin.Context) string {
	value, exists := c.Get(ContextKeyRequestID)
	if !exists {
		return ""
	}
	return value.(string)
}

// respondWithError sends a standardized error response
func respondWithError(c *gin.Context, err *apierrors.APIError) {
	c.JSON(err.HTTPStatus, apierrors.NewErrorResponse(err, GetRequestIDFromContext(c)))
}
