package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/VanHoang0612/Mochi-Chat/internal/token"
)

const (
	claimsKey   = "accessClaims"
	usernameKey = "username"
)

// Auth validates Authorization headers and attaches claims.
type Auth struct {
	Codec *token.Codec
}

// RequireAccessToken ensures the request carries a valid bearer access token.
// Refresh tokens presented here are rejected regardless of their validity.
func (m *Auth) RequireAccessToken(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		abortUnauthorized(c, "Authorization header required")
		return
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		abortUnauthorized(c, "Bearer token required")
		return
	}
	claims, err := m.Codec.Decode(parts[1])
	if err != nil || claims.Type != token.TypeAccess {
		abortUnauthorized(c, "Invalid access token")
		return
	}
	c.Set(claimsKey, claims)
	c.Set(usernameKey, claims.Subject)
	c.Next()
}

// GetAccessClaims exposes the validated token claims to handlers.
func GetAccessClaims(c *gin.Context) (token.Claims, bool) {
	value, ok := c.Get(claimsKey)
	if !ok {
		return token.Claims{}, false
	}
	claims, ok := value.(token.Claims)
	return claims, ok
}

// GetUsername returns the authenticated subject, if any.
func GetUsername(c *gin.Context) (string, bool) {
	value, ok := c.Get(usernameKey)
	if !ok {
		return "", false
	}
	username, ok := value.(string)
	return username, ok
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"message": message,
		"errors":  gin.H{"code": "ACCESS_TOKEN_INVALID"},
	})
}
