package middleware

import (
	"strings"
	"time"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"
	"golang.org/x/time/rate"

	"memberhub/internal/dto"
	"memberhub/pkg/auth"
)

const (
	ctxMemberID = "member_id"
	ctxIsAdmin  = "is_admin"
)

func LoggingMiddleware() ginext.HandlerFunc {
	return func(c *ginext.Context) {
		start := time.Now()
		c.Next()
		zlog.Logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	}
}

// RateLimit applies one shared token bucket to the whole API surface.
func RateLimit(rps float64, burst int) ginext.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(c *ginext.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(429, dto.Response{
				Status: "error",
				Error:  &dto.Error{Code: dto.ServiceUnavailable, Desc: "Too many requests"},
			})
			return
		}
		c.Next()
	}
}

// Auth validates the bearer token and stores the member identity on the
// request context.
func Auth(tm *auth.TokenManager) ginext.HandlerFunc {
	return func(c *ginext.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			dto.UnauthorizedError(c)
			c.Abort()
			return
		}
		claims, err := tm.Parse(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			dto.UnauthorizedError(c)
			c.Abort()
			return
		}
		c.Set(ctxMemberID, claims.MemberID)
		c.Set(ctxIsAdmin, claims.IsAdmin)
		c.Next()
	}
}

// OptionalAuth stores the member identity when a valid token is present
// but lets anonymous requests through. Used by read endpoints whose answer
// depends on who is asking.
func OptionalAuth(tm *auth.TokenManager) ginext.HandlerFunc {
	return func(c *ginext.Context) {
		header := c.GetHeader("Authorization")
		if strings.HasPrefix(header, "Bearer ") {
			if claims, err := tm.Parse(strings.TrimPrefix(header, "Bearer ")); err == nil {
				c.Set(ctxMemberID, claims.MemberID)
				c.Set(ctxIsAdmin, claims.IsAdmin)
			}
		}
		c.Next()
	}
}

// AdminOnly must run after Auth.
func AdminOnly() ginext.HandlerFunc {
	return func(c *ginext.Context) {
		if !IsAdmin(c) {
			dto.ForbiddenError(c, "Admin rights required")
			c.Abort()
			return
		}
		c.Next()
	}
}

func MemberID(c *ginext.Context) (int64, bool) {
	v, ok := c.Get(ctxMemberID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

func IsAdmin(c *ginext.Context) bool {
	v, ok := c.Get(ctxIsAdmin)
	if !ok {
		return false
	}
	admin, _ := v.(bool)
	return admin
}
