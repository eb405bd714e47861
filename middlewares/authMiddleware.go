package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/maisoong/exchange_backend/config"
	"github.com/maisoong/exchange_backend/models"
	"github.com/maisoong/exchange_backend/utils"
)

type authString string

// AuthMiddleware decodes a bearer token when one is sent. Requests without
// a token pass through; RequireAuth decides whether that is allowed.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")

		if auth == "" {
			c.Next()
			return
		}

		bearer := "Bearer "
		if !strings.HasPrefix(auth, bearer) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		auth = auth[len(bearer):]

		customClaim, err := utils.JwtValidate(auth)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := context.WithValue(c.Request.Context(), authString("auth"), customClaim)
		ctx = utils.SetUserIdInContext(ctx, customClaim.ID)
		ctx = utils.SetUsernameInContext(ctx, customClaim.Username)
		ctx = utils.SetRoleInContext(ctx, customClaim.Role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireAuth rejects anonymous requests when AUTH_REQUIRED=true.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !config.AuthRequired() {
			c.Next()
			return
		}
		if CtxValue(c.Request.Context()) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// RequireAdmin limits destructive routes to admin tokens when
// AUTH_REQUIRED=true.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !config.AuthRequired() {
			c.Next()
			return
		}
		role, _ := utils.GetRoleFromContext(c.Request.Context())
		if role != string(models.UserRoleAdmin) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}
		c.Next()
	}
}

func CtxValue(ctx context.Context) *utils.JwtCustomClaim {
	raw, _ := ctx.Value(authString("auth")).(*utils.JwtCustomClaim)
	return raw
}
