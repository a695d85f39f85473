package daemon

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func performHealthz(t *testing.T, d *Daemon) (*httptest.ResponseRecorder, HealthResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	d.HealthzHandler(rec, req)

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	return rec, resp
}

func checkByName(t *testing.T, resp HealthResponse, name string) HealthCheck {
	t.Helper()
	for _, c := range resp.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("health check %q not found in %+v", name, resp.Checks)
	return HealthCheck{}
}

func TestHealthzHealthyWhenRunning(t *testing.T) {
	d := newTestDaemon(t)
	d.status.Store(StatusRunning)
	d.startTime = time.Now().Add(-time.Minute)

	rec, resp := performHealthz(t, d)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if resp.Status != HealthStatusHealthy {
		t.Errorf("expected healthy status, got %s", resp.Status)
	}
	if len(resp.Checks) != 3 {
		t.Errorf("expected 3 checks, got %d", len(resp.Checks))
	}
	if resp.Uptime == "" {
		t.Error("expected uptime to be populated")
	}
	if resp.Version == "" {
		t.Error("expected version to be populated")
	}
	for _, name := range []string{"daemon_status", "run_queue", "event_store"} {
		if c := checkByName(t, resp, name); c.Status != HealthStatusHealthy {
			t.Errorf("expected %s healthy, got %s: %s", name, c.Status, c.Message)
		}
	}
}

func TestHealthzDegradedWhileStarting(t *testing.T) {
	d := newTestDaemon(t)
	d.status.Store(StatusStarting)

	rec, resp := performHealthz(t, d)

	// Degraded still answers 200 so load balancers keep routing.
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for degraded daemon, got %d", rec.Code)
	}
	if resp.Status != HealthStatusDegraded {
		t.Errorf("expected degraded status, got %s", resp.Status)
	}
}

func TestHealthzDegradedWhenQueueFull(t *testing.T) {
	d := newTestDaemon(t)
	d.status.Store(StatusRunning)

	// The queue is not started, so enqueued jobs sit in the channel.
	for i := range d.queue.Capacity() {
		job := &RunJob{RunID: fmt.Sprintf("run-%d", i)}
		if err := d.queue.Enqueue(job); err != nil {
			t.Fatalf("failed to fill queue: %v", err)
		}
	}

	rec, resp := performHealthz(t, d)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if resp.Status != HealthStatusDegraded {
		t.Errorf("expected degraded status, got %s", resp.Status)
	}
	queueCheck := checkByName(t, resp, "run_queue")
	if queueCheck.Status != HealthStatusDegraded {
		t.Errorf("expected run_queue degraded, got %s", queueCheck.Status)
	}
}

func TestHealthzUnhealthyWhenStoreClosed(t *testing.T) {
	d := newTestDaemon(t)
	d.status.Store(StatusRunning)

	if err := d.eventStore.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	rec, resp := performHealthz(t, d)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	if resp.Status != HealthStatusUnhealthy {
		t.Errorf("expected unhealthy status, got %s", resp.Status)
	}
	storeCheck := checkByName(t, resp, "event_store")
	if storeCheck.Status != HealthStatusUnhealthy {
		t.Errorf("expected event_store unhealthy, got %s", storeCheck.Status)
	}
}
