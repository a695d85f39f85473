// Package eventstore provides event sourcing primitives for run tracking.
package eventstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

const (
	runStatusQueued  = "queued"
	runStatusRunning = "running"
	runStatusSuccess = "success"
	runStatusFailed  = "failed"
)

// RunSummary is a read model summarizing a queued, running or finished run.
type RunSummary struct {
	RunID           string        `json:"run_id"`
	Trigger         string        `json:"trigger,omitempty"`
	Repository      string        `json:"repository,omitempty"`
	Branch          string        `json:"branch,omitempty"`
	Status          string        `json:"status"` // "queued", "running", "success", "failed", "canceled"
	StartedAt       time.Time     `json:"started_at"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
	Duration        time.Duration `json:"duration,omitempty"`
	StagesCompleted int           `json:"stages_completed"`
	Published       bool          `json:"published"`
	PublishedCommit string        `json:"published_commit,omitempty"`
	ErrorStage      string        `json:"error_stage,omitempty"`
	ErrorMessage    string        `json:"error_message,omitempty"`
	// ReportData contains detailed run report metrics (populated from RunReportRecorded event)
	ReportData *RunReportData `json:"report_data,omitempty"`
}

// RunHistoryProjection maintains an in-memory view of run history,
// reconstructed from events stored in the event store.
type RunHistoryProjection struct {
	mu       sync.RWMutex
	store    Store
	runs     map[string]*RunSummary // runID -> summary
	history  []*RunSummary          // ordered by start time, newest first
	maxSize  int
	lastSync time.Time
}

// NewRunHistoryProjection creates a new projection backed by the given store.
func NewRunHistoryProjection(store Store, maxHistorySize int) *RunHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &RunHistoryProjection{
		store:   store,
		runs:    make(map[string]*RunSummary),
		history: make([]*RunSummary, 0, maxHistorySize),
		maxSize: maxHistorySize,
	}
}

// Rebuild reconstructs the projection from all events in the store.
// This is typically called at startup.
func (p *RunHistoryProjection) Rebuild(ctx context.Context) error {
	// Get all events from the beginning of time
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Reset state
	p.runs = make(map[string]*RunSummary)
	p.history = make([]*RunSummary, 0, p.maxSize)

	// Apply each event
	for _, event := range events {
		p.applyEventLocked(event)
	}

	// Sort history by start time (newest first)
	p.sortHistoryLocked()

	// Trim to max size
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}

	// Prevent unbounded growth: keep only bounded history + any active runs.
	p.pruneRunsLocked()

	p.lastSync = time.Now()
	return nil
}

// Apply processes a single event and updates the projection.
// This is used for real-time updates when events are emitted.
func (p *RunHistoryProjection) Apply(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventLocked(event)
}

// applyEventLocked applies an event without holding the lock.
func (p *RunHistoryProjection) applyEventLocked(event Event) {
	runID := event.RunID()
	if runID == "" || runID == "unknown" {
		return
	}

	summary, exists := p.runs[runID]
	if !exists {
		summary = &RunSummary{
			RunID:     runID,
			Status:    runStatusQueued,
			StartedAt: event.Timestamp(),
		}
		p.runs[runID] = summary
	}

	// Update summary based on event type
	switch event.Type() {
	case TypeRunQueued:
		summary.Status = runStatusQueued
		var payload struct {
			Trigger string `json:"trigger"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.Trigger = payload.Trigger
		}

	case TypeRunStarted:
		summary.StartedAt = event.Timestamp()
		summary.Status = runStatusRunning
		var meta RunStartedMeta
		if err := json.Unmarshal(event.Payload(), &meta); err == nil {
			summary.Trigger = meta.Trigger
			summary.Repository = meta.Repository
			summary.Branch = meta.Branch
		}

	case TypeStageCompleted:
		summary.StagesCompleted++

	case TypeRunCompleted:
		now := event.Timestamp()
		summary.CompletedAt = &now
		summary.Duration = now.Sub(summary.StartedAt)
		summary.Status = runStatusSuccess
		var payload struct {
			Outcome         string `json:"outcome"`
			Published       bool   `json:"published"`
			PublishedCommit string `json:"published_commit"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			if payload.Outcome != "" {
				summary.Status = payload.Outcome
			}
			summary.Published = payload.Published
			summary.PublishedCommit = payload.PublishedCommit
		}
		// Add to history if not already there
		p.addToHistoryLocked(summary)

	case TypeRunFailed:
		now := event.Timestamp()
		summary.CompletedAt = &now
		summary.Duration = now.Sub(summary.StartedAt)
		summary.Status = runStatusFailed
		var payload struct {
			Outcome string `json:"outcome"`
			Stage   string `json:"stage"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			if payload.Outcome != "" {
				summary.Status = payload.Outcome
			}
			summary.ErrorStage = payload.Stage
			summary.ErrorMessage = payload.Error
		}
		// Add to history if not already there
		p.addToHistoryLocked(summary)

	case TypeRunReportRecorded:
		var report RunReportData
		if err := json.Unmarshal(event.Payload(), &report); err == nil {
			summary.ReportData = &report
		}
	}
}

// addToHistoryLocked adds a finished run to history if not already present.
func (p *RunHistoryProjection) addToHistoryLocked(summary *RunSummary) {
	// Check if already in history
	for _, h := range p.history {
		if h.RunID == summary.RunID {
			return
		}
	}

	// Add to history
	p.history = append([]*RunSummary{summary}, p.history...)

	// Trim to max size
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}

	// Prevent unbounded growth: keep only bounded history + any active runs.
	p.pruneRunsLocked()
}

// pruneRunsLocked removes finished runs not present in the bounded history.
// It keeps any runs that are still queued or running.
// Caller must hold p.mu (write lock).
func (p *RunHistoryProjection) pruneRunsLocked() {
	keep := make(map[string]struct{}, len(p.history))
	for _, h := range p.history {
		if h != nil {
			keep[h.RunID] = struct{}{}
		}
	}

	for id, summary := range p.runs {
		if summary != nil && (summary.Status == runStatusRunning || summary.Status == runStatusQueued) {
			continue
		}
		if _, ok := keep[id]; !ok {
			delete(p.runs, id)
		}
	}
}

// sortHistoryLocked sorts history by start time, newest first.
func (p *RunHistoryProjection) sortHistoryLocked() {
	// Simple insertion sort (history is usually small)
	for i := 1; i < len(p.history); i++ {
		for j := i; j > 0 && p.history[j].StartedAt.After(p.history[j-1].StartedAt); j-- {
			p.history[j], p.history[j-1] = p.history[j-1], p.history[j]
		}
	}
}

// GetHistory returns the run history, newest first.
func (p *RunHistoryProjection) GetHistory() []*RunSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]*RunSummary, len(p.history))
	copy(result, p.history)
	return result
}

// GetRun returns the summary for a specific run.
func (p *RunHistoryProjection) GetRun(runID string) (*RunSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	summary, exists := p.runs[runID]
	if !exists {
		return nil, false
	}

	// Return a copy
	cp := *summary
	return &cp, true
}

// GetActiveRun returns a currently queued or running run if any.
func (p *RunHistoryProjection) GetActiveRun() *RunSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, summary := range p.runs {
		if summary.Status == runStatusRunning || summary.Status == runStatusQueued {
			cp := *summary
			return &cp
		}
	}
	return nil
}

// GetLastFinishedRun returns the most recently finished run (success or failure).
func (p *RunHistoryProjection) GetLastFinishedRun() *RunSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.history) == 0 {
		return nil
	}

	// History is sorted newest first
	cp := *p.history[0]
	return &cp
}

// LastSyncTime returns when the projection was last synchronized.
func (p *RunHistoryProjection) LastSyncTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSync
}
