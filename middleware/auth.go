package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/brewbuds/server/cache"
	"github.com/brewbuds/server/config"
	"github.com/brewbuds/server/model"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	UserIDKey = "user_id"
	TokenKey  = "token"
)

func newTokenID() string { return uuid.NewString() }

func bearer(ctx *gin.Context) (string, bool) {
	header := ctx.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(header, "Bearer "), true
}

// authenticate resolves the bearer token to a user id. The session must
// still be present in the cache.
func authenticate(ctx *gin.Context, sec config.SecurityConfig, c cache.Cache) (int64, string, string) {
	tokenStr, ok := bearer(ctx)
	if !ok {
		return 0, "", "missing token"
	}
	claims, err := ParseToken(tokenStr, sec.JWTSecret)
	if err != nil {
		return 0, "", err.Error()
	}

	cacheCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()
	exists, err := c.Exists(cacheCtx, cache.SessionKey(tokenStr))
	if err != nil || !exists {
		return 0, "", "session expired"
	}
	return claims.UserID, tokenStr, ""
}

// Auth validates the Bearer JWT token and checks the session cache.
func Auth(sec config.SecurityConfig, c cache.Cache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		uid, token, msg := authenticate(ctx, sec, c)
		if msg != "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg, "code": "unauthorized"})
			return
		}
		ctx.Set(UserIDKey, uid)
		ctx.Set(TokenKey, token)
		ctx.Next()
	}
}

// OptionalAuth sets the user id when a valid session is presented and lets
// anonymous requests through otherwise.
func OptionalAuth(sec config.SecurityConfig, c cache.Cache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if _, ok := bearer(ctx); ok {
			if uid, token, msg := authenticate(ctx, sec, c); msg == "" {
				ctx.Set(UserIDKey, uid)
				ctx.Set(TokenKey, token)
			}
		}
		ctx.Next()
	}
}

// RequireStaff must run after Auth. It rejects users without is_staff.
func RequireStaff(db *gorm.DB) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var u model.User
		err := db.WithContext(ctx.Request.Context()).
			Select("id", "is_staff", "is_active").
			First(&u, GetUserID(ctx)).Error
		if err != nil || !u.IsStaff || !u.IsActive {
			ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "staff only", "code": "forbidden"})
			return
		}
		ctx.Next()
	}
}

// GetUserID retrieves the authenticated user ID from the Gin context.
// It returns 0 for anonymous requests.
func GetUserID(c *gin.Context) int64 {
	if v, exists := c.Get(UserIDKey); exists {
		return v.(int64)
	}
	return 0
}

// GetToken returns the raw bearer token of the authenticated request.
func GetToken(c *gin.Context) string {
	return c.GetString(TokenKey)
}
