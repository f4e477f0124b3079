package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/renova-api/pkg/httputil"
)

// ErrorHandler logs errors attached to the context and renders the last one
// unless a response has already been written.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only handle errors if they exist
		if len(c.Errors) == 0 {
			return
		}

		requestID := c.GetString(ContextRequestID)

		for _, e := range c.Errors {
			status, _ := httputil.Describe(e.Err)
			event := log.Warn()
			if status >= 500 {
				event = log.Error()
			}
			event.
				Err(e.Err).
				Str("request_id", requestID).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Str("client_ip", c.ClientIP()).
				Int("status", status).
				Msg("Request error")
		}

		if c.Writer.Written() {
			return
		}

		// Return last error to client
		status, message := httputil.Describe(c.Errors.Last().Err)
		c.AbortWithStatusJSON(status, httputil.Response{
			Status:  httputil.StatusError,
			Message: message,
		})
	}
}
