package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	obslogger "github.com/smallbiznis/teleload/internal/observability/logger"
	"github.com/smallbiznis/teleload/internal/ratelimit"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	bearerPrefix = "Bearer "

	adminAttemptsPerSecond = 0.2
	adminAttemptBurst      = 5
)

func newAdminLimiter() *ratelimit.KeyLimiter {
	return ratelimit.NewKeyLimiter(adminAttemptsPerSecond, adminAttemptBurst, nil)
}

// AdminRequired checks the bearer token against ADMIN_TOKEN_HASH. With no hash
// configured every admin route is forbidden.
func (s *Server) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		hash := strings.TrimSpace(s.cfg.Admin.TokenHash)
		if hash == "" {
			AbortWithError(c, ErrForbidden)
			return
		}

		if !s.adminLimiter.Allow(c.ClientIP()) {
			s.recordAdminDenied(c, "rate")
			c.Header("Retry-After", "5")
			AbortWithError(c, ErrRateLimited)
			return
		}

		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			s.recordAdminDenied(c, "missing_token")
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
			s.recordAdminDenied(c, "invalid_token")
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

func (s *Server) recordAdminDenied(c *gin.Context, reason string) {
	ctx := c.Request.Context()
	obslogger.WithContext(ctx, s.log).Warn("admin request rejected",
		zap.String("reason", reason),
		zap.String("route", c.FullPath()),
		zap.String("client_ip", c.ClientIP()),
	)
	s.obsMetrics.RecordRateLimitDenied(ctx, "admin_"+reason)
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}
