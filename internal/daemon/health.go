package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"git.home.luguber.info/inful/docpublish/internal/logfields"
	"git.home.luguber.info/inful/docpublish/internal/version"
)

// HealthStatus represents the overall health of the daemon.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck represents a single health check.
type HealthCheck struct {
	Name        string        `json:"name"`
	Status      HealthStatus  `json:"status"`
	Message     string        `json:"message,omitempty"`
	Duration    time.Duration `json:"duration"`
	LastChecked time.Time     `json:"last_checked"`
}

// HealthResponse represents the complete health check response.
type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Uptime    string        `json:"uptime"`
	Version   string        `json:"version"`
	Checks    []HealthCheck `json:"checks"`
}

// PerformHealthChecks executes all health checks and returns the overall
// status. Any unhealthy check makes the whole response unhealthy; any
// non-healthy check degrades it.
func (d *Daemon) PerformHealthChecks(ctx context.Context) *HealthResponse {
	checks := []HealthCheck{
		d.checkDaemonHealth(),
		d.checkQueueHealth(),
		d.checkEventStoreHealth(ctx),
	}

	overallStatus := HealthStatusHealthy
	for _, c := range checks {
		switch c.Status {
		case HealthStatusUnhealthy:
			overallStatus = HealthStatusUnhealthy
		case HealthStatusDegraded:
			if overallStatus == HealthStatusHealthy {
				overallStatus = HealthStatusDegraded
			}
		}
	}

	return &HealthResponse{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Uptime:    time.Since(d.GetStartTime()).Round(time.Second).String(),
		Version:   version.Version,
		Checks:    checks,
	}
}

// checkDaemonHealth verifies the daemon is in a running state.
func (d *Daemon) checkDaemonHealth() HealthCheck {
	start := time.Now()

	check := HealthCheck{
		Name:        "daemon_status",
		LastChecked: time.Now(),
	}

	switch d.GetStatus() {
	case StatusRunning:
		check.Status = HealthStatusHealthy
		check.Message = "Daemon is running normally"
	case StatusStarting:
		check.Status = HealthStatusDegraded
		check.Message = "Daemon is still starting up"
	case StatusStopping:
		check.Status = HealthStatusDegraded
		check.Message = "Daemon is shutting down"
	case StatusError:
		check.Status = HealthStatusUnhealthy
		check.Message = "Daemon is in error state"
	default:
		check.Status = HealthStatusUnhealthy
		check.Message = "Daemon is in unknown state"
	}

	check.Duration = time.Since(start)
	return check
}

// checkQueueHealth verifies the run queue has headroom.
func (d *Daemon) checkQueueHealth() HealthCheck {
	start := time.Now()

	check := HealthCheck{
		Name:        "run_queue",
		LastChecked: time.Now(),
	}

	if d.queue == nil {
		check.Status = HealthStatusUnhealthy
		check.Message = "Run queue not initialized"
		check.Duration = time.Since(start)
		return check
	}

	depth := d.queue.Depth()
	capacity := d.queue.Capacity()
	switch {
	case depth >= capacity:
		check.Status = HealthStatusDegraded
		check.Message = fmt.Sprintf("Run queue is full (%d/%d); new pushes will be rejected", depth, capacity)
	case depth > capacity/2:
		check.Status = HealthStatusDegraded
		check.Message = fmt.Sprintf("Run queue is backing up (%d/%d)", depth, capacity)
	default:
		check.Status = HealthStatusHealthy
		check.Message = fmt.Sprintf("Run queue is operating normally (%d/%d)", depth, capacity)
	}

	check.Duration = time.Since(start)
	return check
}

// checkEventStoreHealth verifies the event store answers queries.
func (d *Daemon) checkEventStoreHealth(ctx context.Context) HealthCheck {
	start := time.Now()

	check := HealthCheck{
		Name:        "event_store",
		LastChecked: time.Now(),
	}

	if d.eventStore == nil {
		check.Status = HealthStatusUnhealthy
		check.Message = "Event store not initialized"
		check.Duration = time.Since(start)
		return check
	}

	if _, err := d.eventStore.GetByRunID(ctx, "healthcheck"); err != nil {
		check.Status = HealthStatusUnhealthy
		check.Message = fmt.Sprintf("Event store query failed: %v", err)
	} else {
		check.Status = HealthStatusHealthy
		check.Message = "Event store is answering queries"
	}

	check.Duration = time.Since(start)
	return check
}

// HealthzHandler serves the aggregated health checks. Degraded still returns
// 200 so load balancers keep routing while operators investigate.
func (d *Daemon) HealthzHandler(w http.ResponseWriter, r *http.Request) {
	health := d.PerformHealthChecks(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

	if health.Status == HealthStatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	if err := json.NewEncoder(w).Encode(health); err != nil {
		slog.Warn("Failed to encode health response", logfields.Error(err))
	}
}
