// Package httpapi is the small HTTP surface every service exposes: health,
// Prometheus metrics, lookups where a service owns state, and the command
// endpoints that put orders, products and users onto the bus.
package httpapi

import (
	"net/http"
	"time"

	"ordersaga/internal/config"
	"ordersaga/internal/platform/metrics"
	"ordersaga/internal/platform/observability"
	"ordersaga/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// NewRouter returns an engine with tracing, correlation and access logging
// installed and /health and /metrics registered.
func NewRouter(serviceName string, gatherer prometheus.Gatherer, logger observability.Logger) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		otelgin.Middleware(serviceName),
		Correlation(),
		accessLog(logger),
	)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": serviceName})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler(gatherer)))
	return r
}

// Correlation honors the caller's X-Correlation-Id or mints one, stores it
// in the request context and echoes it on the response.
func Correlation() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id := c.GetHeader(config.CorrelationHeader)
		if id == "" {
			ctx, id = tracing.EnsureCorrelationID(ctx)
		} else {
			ctx = tracing.WithCorrelationID(ctx, id)
		}
		trace.SpanFromContext(ctx).SetAttributes(tracing.Attributes(ctx)...)

		c.Request = c.Request.WithContext(ctx)
		c.Header(config.CorrelationHeader, id)
		c.Next()
	}
}

func accessLog(logger observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/health" || c.Request.URL.Path == "/metrics" {
			return
		}
		tracing.Logger(c.Request.Context(), logger).Info("HTTP request served",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
