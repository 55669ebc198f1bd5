package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"agenda-eventos/internal/metrics"
)

// Metrics records request count and latency keyed by the matched route
// pattern, so ids in the path do not explode label cardinality.
func Metrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if e, ok := err.(*fiber.Error); ok {
				status = e.Code
			} else if s, ok := statusFor(err); ok {
				status = s
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		path := c.Route().Path
		method := c.Method()
		metrics.RequestCount.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
		metrics.RequestDuration.WithLabelValues(path, method).Observe(time.Since(start).Seconds())

		return err
	}
}
