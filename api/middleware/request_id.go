package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/feichai0017/intake-processor/pkg/logger"
)

const RequestIDHeader = "X-Request-ID"

// RequestID tags every request with an id, carried in the gin context, the
// request context and the response header, and logs its completion.
func RequestID(log logger.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(logger.RequestIDKey, id)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), id))
		c.Header(RequestIDHeader, id)

		start := time.Now()
		c.Next()

		log.Info("Request handled",
			logger.String(logger.RequestIDKey, id),
			logger.String("method", c.Request.Method),
			logger.String("path", c.FullPath()),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("elapsed", time.Since(start)),
		)
	}
}
