package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticChecker struct {
	name   string
	status Status
}

func (c staticChecker) Name() string { return c.name }

func (c staticChecker) Check(ctx context.Context) CheckResult {
	return CheckResult{Name: c.name, Status: c.status, Timestamp: time.Now()}
}

func TestRegistryCheck(t *testing.T) {
	t.Run("all healthy", func(t *testing.T) {
		r := NewRegistry()
		r.Register(staticChecker{name: "postgres", status: StatusHealthy})
		r.Register(staticChecker{name: "redis", status: StatusHealthy})

		report := r.Check(context.Background())
		assert.Equal(t, StatusHealthy, report.Status)
		assert.Len(t, report.Checks, 2)
	})

	t.Run("degraded does not mask unhealthy", func(t *testing.T) {
		r := NewRegistry()
		r.Register(staticChecker{name: "postgres", status: StatusUnhealthy})
		r.Register(staticChecker{name: "rabbitmq", status: StatusDegraded})

		report := r.Check(context.Background())
		assert.Equal(t, StatusUnhealthy, report.Status)
	})

	t.Run("single degraded component degrades overall", func(t *testing.T) {
		r := NewRegistry()
		r.Register(staticChecker{name: "postgres", status: StatusHealthy})
		r.Register(staticChecker{name: "rabbitmq", status: StatusDegraded})

		report := r.Check(context.Background())
		assert.Equal(t, StatusDegraded, report.Status)
	})

	t.Run("metadata is reported", func(t *testing.T) {
		r := NewRegistry()
		r.SetMetadata("service", "intakesvc")

		report := r.Check(context.Background())
		assert.Equal(t, "intakesvc", report.Metadata["service"])
	})
}

func TestPingChecker(t *testing.T) {
	t.Run("healthy on success", func(t *testing.T) {
		c := NewPingChecker("postgres", func(ctx context.Context) error { return nil })

		result := c.Check(context.Background())
		assert.Equal(t, "postgres", result.Name)
		assert.Equal(t, StatusHealthy, result.Status)
	})

	t.Run("unhealthy on error", func(t *testing.T) {
		c := NewPingChecker("redis", func(ctx context.Context) error {
			return errors.New("connection refused")
		})

		result := c.Check(context.Background())
		assert.Equal(t, StatusUnhealthy, result.Status)
		assert.Equal(t, "connection refused", result.Error)
	})
}

func TestHandlers(t *testing.T) {
	t.Run("full report returns 503 when unhealthy", func(t *testing.T) {
		r := NewRegistry()
		r.Register(staticChecker{name: "postgres", status: StatusUnhealthy})

		rec := httptest.NewRecorder()
		NewHandler(r, time.Second).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"unhealthy"`)
	})

	t.Run("full report rejects non-GET", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewHandler(NewRegistry(), time.Second).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("readiness tolerates degraded", func(t *testing.T) {
		r := NewRegistry()
		r.Register(staticChecker{name: "rabbitmq", status: StatusDegraded})

		rec := httptest.NewRecorder()
		ReadinessHandler(r)(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ready", rec.Body.String())
	})

	t.Run("liveness always succeeds", func(t *testing.T) {
		rec := httptest.NewRecorder()
		LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
