package devserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/khrees2412/jobportal/internal/apiclient"
	"github.com/khrees2412/jobportal/internal/logger"
)

const requestIDKey = "requestID"

// requestID echoes the caller's request id or assigns one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(apiclient.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(apiclient.RequestIDHeader, id)
		c.Next()
	}
}

func accessLog(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		start := time.Now()
		c.Next()

		log.Info("request completed", map[string]interface{}{
			"req_id":  c.GetString(requestIDKey),
			"method":  c.Request.Method,
			"path":    path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		})
	}
}

func requireCookie(name, value string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if name == "" || value == "" {
			c.Next()
			return
		}
		got, err := c.Cookie(name)
		if err != nil || got != value {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": msg})
}
