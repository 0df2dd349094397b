package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	awspkg "github.com/cate-nduta/Lash-Business-sub002/pkg/aws"
)

// MetricsMiddleware records request count, latency and error class per route
// template in one CloudWatch call, off the request path.
func MetricsMiddleware(metricsClient *awspkg.MetricsClient, serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !metricsClient.IsEnabled() {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		data := httpMetrics(serviceName, c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsClient.Put(ctx, data...)
		}()
	}
}

func httpMetrics(service, method, route string, status int, took time.Duration) []awspkg.Datum {
	// route template, so per-reference paths do not explode the dimension space
	if route == "" {
		route = "unmatched"
	}
	dims := map[string]string{
		"Service": service,
		"Method":  method,
		"Path":    route,
		"Status":  statusClass(status),
	}

	data := []awspkg.Datum{
		awspkg.Count(awspkg.MetricHTTPRequests, dims),
		awspkg.Latency(awspkg.MetricHTTPLatency, took, dims),
	}
	switch {
	case status >= 500:
		data = append(data, awspkg.Count(awspkg.MetricHTTP5xx, dims))
	case status >= 400:
		data = append(data, awspkg.Count(awspkg.MetricHTTP4xx, dims))
	}
	return data
}

func statusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
