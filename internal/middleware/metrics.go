package middleware

import (
	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
)

// InitMetrics builds the fiberprometheus collector for the given service name.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	p := fiberprometheus.New(serviceName)
	p.SetSkipPaths([]string{"/metrics", "/health/live", "/health/ready"})
	return p
}

// MetricsMiddleware records request count, latency and in-flight gauges.
func MetricsMiddleware(p *fiberprometheus.FiberPrometheus) fiber.Handler {
	return p.Middleware
}
