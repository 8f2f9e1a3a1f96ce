package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/telecomx/user-service/internal/observability"
)

// Pinger is a dependency checked by the readiness endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BrokerState reports whether the event producer holds a broker connection.
type BrokerState interface {
	Connected() bool
}

// HealthHandler serves the liveness, readiness and metrics endpoints.
type HealthHandler struct {
	serviceName  string
	version      string
	dependencies map[string]Pinger
	broker       BrokerState
	metrics      *observability.Metrics
}

// NewHealthHandler returns a new handler instance. Only configured
// datastores should be passed in dependencies; broker and metrics may be nil.
func NewHealthHandler(serviceName, version string, dependencies map[string]Pinger, broker BrokerState, metrics *observability.Metrics) *HealthHandler {
	return &HealthHandler{
		serviceName:  serviceName,
		version:      version,
		dependencies: dependencies,
		broker:       broker,
		metrics:      metrics,
	}
}

// Root handles GET /.
func (h *HealthHandler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"ok":      true,
		"service": h.serviceName,
	})
}

// Live reports service liveness. The broker connection is informational:
// it is opened lazily and never gates readiness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	body := fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	}
	if h.broker != nil {
		body["broker"] = brokerStatus(h.broker.Connected())
	}
	return c.JSON(body)
}

// Metrics handles GET /health/metrics with a snapshot of in-memory counters.
func (h *HealthHandler) Metrics(c *fiber.Ctx) error {
	snapshot := h.metrics.Snapshot()
	if snapshot == nil {
		snapshot = map[string]map[string]int64{}
	}
	return c.JSON(snapshot)
}

func brokerStatus(connected bool) string {
	if connected {
		return "connected"
	}
	return "disconnected"
}

// Ready reports service readiness by checking dependencies.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	depStatus := fiber.Map{}
	ready := true

	for name, dep := range h.dependencies {
		if err := dep.Ping(ctx); err != nil {
			depStatus[name] = err.Error()
			ready = false
		} else {
			depStatus[name] = "ok"
		}
	}

	if ready {
		return c.JSON(fiber.Map{
			"status":       "ready",
			"dependencies": depStatus,
		})
	}

	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "DEPENDENCY_UNAVAILABLE",
			"message": "one or more dependencies unavailable",
			"details": depStatus,
		},
	})
}
