package health

import (
	"context"
	"time"

	"github.com/intakehub/intake-go/internal/rabbitmq"
)

// BrokerChecker checks RabbitMQ connection health
type BrokerChecker struct {
	connManager *rabbitmq.ConnectionManager
}

// NewBrokerChecker creates a new broker health checker
func NewBrokerChecker(connManager *rabbitmq.ConnectionManager) *BrokerChecker {
	return &BrokerChecker{connManager: connManager}
}

func (c *BrokerChecker) Name() string {
	return "rabbitmq"
}

func (c *BrokerChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
		Details:   make(map[string]interface{}),
	}
	result.Details["state"] = c.connManager.State().String()

	if !c.connManager.IsConnected() {
		// Connecting is degraded rather than unhealthy: the manager redials
		// on the next operation, so a momentary gap should not flip
		// readiness.
		result.Status = StatusDegraded
		result.Message = "Not connected"
		result.Duration = time.Since(start)
		return result
	}

	// Opening and closing a channel exercises the connection end to end.
	ch, err := c.connManager.CreateChannel(ctx)
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = "Failed to create channel"
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result
	}
	_ = ch.Close()

	result.Status = StatusHealthy
	result.Message = "Connection is healthy"
	result.Duration = time.Since(start)
	result.Details["response_time_ms"] = result.Duration.Milliseconds()

	return result
}

// PingChecker wraps a ping function, e.g. a database or Redis ping, as a
// Checker.
type PingChecker struct {
	name string
	ping func(ctx context.Context) error
}

// NewPingChecker creates a checker from a ping function
func NewPingChecker(name string, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, ping: ping}
}

func (c *PingChecker) Name() string {
	return c.name
}

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
		Details:   make(map[string]interface{}),
	}

	if err := c.ping(ctx); err != nil {
		result.Status = StatusUnhealthy
		result.Message = "Ping failed"
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result
	}

	result.Status = StatusHealthy
	result.Message = "Ping succeeded"
	result.Duration = time.Since(start)
	result.Details["response_time_ms"] = result.Duration.Milliseconds()

	return result
}
