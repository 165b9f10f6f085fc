package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/NeuralTrust/callgate/pkg/infra/prometheus"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	TraceIDHeader = "X-Trace-Id"
	TraceIDKey    = "trace_id"
)

type traceIDKey struct{}

// TraceIDFromContext returns the trace id set by the request log middleware.
func TraceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}

type requestLogMiddleware struct {
	logger *logrus.Logger
}

func NewRequestLogMiddleware(logger *logrus.Logger) Middleware {
	return &requestLogMiddleware{logger: logger}
}

func (m *requestLogMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		traceID := c.Get(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		c.Locals(TraceIDKey, traceID)
		c.SetUserContext(context.WithValue(c.UserContext(), traceIDKey{}, traceID))
		c.Set(TraceIDHeader, traceID)

		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()

		prometheus.HTTPRequestsTotal.WithLabelValues(c.Route().Path, strconv.Itoa(status)).Inc()
		m.logger.WithFields(logrus.Fields{
			TraceIDKey:   traceID,
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
		}).Debug("request handled")
		return err
	}
}
