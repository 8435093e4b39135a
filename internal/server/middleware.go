package server

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/subvisor/subvisor/internal/actorcontext"
	"go.uber.org/zap"
)

// AdminActorMiddleware resolves the acting administrator from the
// X-Admin-ID header and stores it in the request context. Routes behind it
// reject requests without a parseable admin ID.
func AdminActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("X-Admin-ID"))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		adminID, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := actorcontext.WithAdminID(c.Request.Context(), int64(adminID))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequestLogMiddleware emits one structured line per request.
func RequestLogMiddleware(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
