package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/theleywin/Collab-Nest/src/logger"
	"github.com/theleywin/Collab-Nest/src/metrics"
)

// RequestLogger logs every request once it has been answered and observes its
// latency. Chain errors are rendered here so the logged status is the one sent.
func RequestLogger(log logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		if err := c.Next(); err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		status := c.Response().StatusCode()

		route := c.Route().Path
		elapsed := time.Since(start)
		metrics.HTTPRequestDuration.
			WithLabelValues(c.Method(), route, strconv.Itoa(status)).
			Observe(elapsed.Seconds())

		fields := map[string]interface{}{
			"method":    c.Method(),
			"path":      c.Path(),
			"route":     route,
			"status":    status,
			"latencyMs": elapsed.Milliseconds(),
		}
		if id, ok := c.Locals(AccountKey).(uint); ok {
			fields["accountId"] = id
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			log.Error("Request failed", fields)
		case status >= fiber.StatusBadRequest:
			log.Warn("Request refused", fields)
		default:
			log.Debug("Request served", fields)
		}
		return nil
	}
}
