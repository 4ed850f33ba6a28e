package middleware

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"survey-voice-api/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ContextKeyUser      = "user"
	ContextKeyRequestID = "request_id"
)

// TokenValidator resolves a bearer token to an active user
type TokenValidator interface {
	ValidateAccessToken(ctx context.Context, token string) (*models.User, error)
}

func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequestID propagates X-Request-ID, generating one when absent
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(ContextKeyRequestID, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// Logger writes one line per request through the standard logger
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		marker := ""
		switch {
		case status >= 500:
			marker = "❌ "
		case status >= 400:
			marker = "⚠️  "
		}
		log.Printf("%s[HTTP] %s %s -> %d (%s) rid=%s", marker, c.Request.Method, c.Request.URL.Path,
			status, time.Since(start).Round(time.Millisecond), c.GetString(ContextKeyRequestID))
	}
}

type AuthMiddleware struct {
	tokens TokenValidator
}

func NewAuthMiddleware(tokens TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// JWTAuth requires a valid access token and stores the user in the context
func (m *AuthMiddleware) JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		user, err := m.tokens.ValidateAccessToken(c.Request.Context(), strings.TrimSpace(authHeader[len("Bearer "):]))
		if err != nil {
			if errors.Is(err, models.ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
				return
			}
			log.Printf("❌ [Auth] Token validation failed: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Authentication service error"})
			return
		}

		c.Set(ContextKeyUser, user)
		c.Next()
	}
}

// RequireAdmin must run after JWTAuth
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin role required"})
			return
		}
		c.Next()
	}
}

// WebhookToken guards provider callbacks with a shared token passed as the
// "token" query parameter. An empty expected token disables the check.
func WebhookToken(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if expected != "" && c.Query("token") != expected {
			log.Printf("⚠️  [Webhook] Rejected callback from %s", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid webhook token"})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil outside JWTAuth
func CurrentUser(c *gin.Context) *models.User {
	v, exists := c.Get(ContextKeyUser)
	if !exists {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// MustUser is CurrentUser for handlers mounted behind JWTAuth
func MustUser(c *gin.Context) (*models.User, error) {
	if user := CurrentUser(c); user != nil {
		return user, nil
	}
	return nil, fmt.Errorf("%w: no authenticated user", models.ErrUnauthorized)
}
