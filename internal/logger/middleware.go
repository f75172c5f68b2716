package logger

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const ctxLoggerKey = "logger"

// Middleware logs every request after it is handled and stores a request-scoped
// logger (tagged with the request id set by the requestid middleware) in Locals.
func Middleware(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		requestID, _ := c.Locals("requestid").(string)
		reqLog := log.With(zap.String("request_id", requestID))
		c.Locals(ctxLoggerKey, reqLog)

		err := c.Next()

		status := c.Response().StatusCode()
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.IP()),
		}
		if status >= fiber.StatusInternalServerError {
			reqLog.Error("http request", append(fields, zap.Error(err))...)
		} else {
			reqLog.Info("http request", fields...)
		}
		return err
	}
}

// FromCtx returns the request-scoped logger, falling back to the global one.
func FromCtx(c *fiber.Ctx) *zap.Logger {
	if l, ok := c.Locals(ctxLoggerKey).(*zap.Logger); ok && l != nil {
		return l
	}
	return zap.L()
}
