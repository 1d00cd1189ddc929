package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ContextUserIDKey = "userID"
	ContextRoleKey   = "userRole"
)

type authClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// parseClaims validates the bearer token; on failure it aborts the request
// and returns false.
func parseClaims(c *gin.Context, secret string) (*authClaims, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "code": "UNAUTHORIZED", "error": "missing bearer token"})
		return nil, false
	}
	tokenStr := strings.TrimPrefix(header, "Bearer ")

	claims := &authClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "code": "UNAUTHORIZED", "error": "invalid token"})
		return nil, false
	}
	return claims, true
}

// RequireAuth validates the bearer token and puts user id/role on the gin
// context. Token issuance lives in the user service; we only verify here.
func RequireAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := parseClaims(c, secret)
		if !ok {
			return
		}
		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextRoleKey, claims.Role)
		c.Next()
	}
}

// RequireAuthRole is RequireAuth plus a role gate, for routes that take a
// single auth handler (manual restock, status updates, refunds).
func RequireAuthRole(secret, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := parseClaims(c, secret)
		if !ok {
			return
		}
		if claims.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "code": "FORBIDDEN", "error": "insufficient role"})
			return
		}
		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextRoleKey, claims.Role)
		c.Next()
	}
}
