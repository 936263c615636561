package logger

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// GinLogger write one log line per request once the handler chain is done
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		entry := log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     path,
			"status":   c.Writer.Status(),
			"latency":  time.Since(start).String(),
			"clientIP": c.ClientIP(),
		})

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("request handled")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Warn("request handled")
		default:
			entry.Info("request handled")
		}
	}
}

// Recovery answer a bare 500 when a handler panics
// the panic value is only logged, never sent back to the client
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.WithFields(log.Fields{
			"path":      c.Request.URL.Path,
			"recovered": recovered,
		}).Error("panic recovered while handling request")

		c.AbortWithStatus(http.StatusInternalServerError)
	})
}
