package logger

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const RequestIDHeader = "X-Request-ID"

// GinLoggerMiddleware пишет одну JSON строку на запрос.
// В поле route попадает шаблон маршрута (/api/v1/flags/:currency_id), исходный путь пишется только
// для несовпавших маршрутов. Пробы /health* и /metrics логируются на уровне debug.
func GinLoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = generateRequestID()
		}
		c.Header(RequestIDHeader, requestID)

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()

		logEvent := requestEvent(c.Request.URL.Path, status).
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Int("status", status).
			Int("size", c.Writer.Size()).
			Float64("duration_ms", float64(time.Since(start).Microseconds())/1000)

		if route != "" {
			logEvent.Str("route", route)
		} else {
			logEvent.Str("route", "unmatched").Str("path", c.Request.URL.Path)
		}
		if query := c.Request.URL.RawQuery; query != "" {
			logEvent.Str("query", query)
		}
		logEvent.
			Str("remote_addr", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent())

		if len(c.Errors) > 0 {
			logEvent.Str("error", c.Errors.String())
		}

		logEvent.Msg("HTTP request")
	}
}

// requestEvent выбирает уровень: ошибки важнее, чем признак пробы
func requestEvent(path string, status int) *zerolog.Event {
	switch {
	case status >= 500:
		return Error()
	case status >= 400:
		return Warn()
	case isProbePath(path):
		return Debug()
	default:
		return Info()
	}
}

func isProbePath(path string) bool {
	return path == "/metrics" || strings.HasPrefix(path, "/health")
}
