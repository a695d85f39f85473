package eventstore

import (
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/docpublish/internal/errors"
)

// Event type names as stored in the events table.
const (
	TypeRunQueued         = "RunQueued"
	TypeRunStarted        = "RunStarted"
	TypeStageCompleted    = "StageCompleted"
	TypeRunCompleted      = "RunCompleted"
	TypeRunFailed         = "RunFailed"
	TypeRunReportRecorded = "RunReportRecorded"
)

// RunQueued is emitted when a run request is accepted onto the daemon queue.
type RunQueued struct {
	BaseEvent
	Trigger  string `json:"trigger"`
	Ref      string `json:"ref,omitempty"`
	Commit   string `json:"commit,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// NewRunQueued creates a RunQueued event.
func NewRunQueued(runID, trigger, ref, commit, provider string) (*RunQueued, error) {
	payload, err := json.Marshal(map[string]any{
		"trigger":  trigger,
		"ref":      ref,
		"commit":   commit,
		"provider": provider,
	})
	if err != nil {
		return nil, errors.StorageError("marshal RunQueued payload", err).
			WithContext("run_id", runID)
	}

	return &RunQueued{
		BaseEvent: BaseEvent{
			EventRunID:     runID,
			EventType:      TypeRunQueued,
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		Trigger:  trigger,
		Ref:      ref,
		Commit:   commit,
		Provider: provider,
	}, nil
}

// RunStartedMeta carries the run context captured at start time.
type RunStartedMeta struct {
	Trigger    string `json:"trigger"`
	Repository string `json:"repository,omitempty"`
	Branch     string `json:"branch,omitempty"`
	Commit     string `json:"commit,omitempty"`
	Provider   string `json:"provider,omitempty"`
}

// RunStarted is emitted when the pipeline begins executing a run.
type RunStarted struct {
	BaseEvent
	Meta RunStartedMeta `json:"meta"`
}

// NewRunStarted creates a RunStarted event.
func NewRunStarted(runID string, meta RunStartedMeta) (*RunStarted, error) {
	payload, err := json.Marshal(meta)
	if err != nil {
		return nil, errors.StorageError("marshal RunStarted payload", err).
			WithContext("run_id", runID)
	}

	return &RunStarted{
		BaseEvent: BaseEvent{
			EventRunID:     runID,
			EventType:      TypeRunStarted,
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		Meta: meta,
	}, nil
}

// StageCompleted is emitted for each pipeline stage that ran, with its outcome.
type StageCompleted struct {
	BaseEvent
	Stage    string        `json:"stage"`
	Outcome  string        `json:"outcome"`
	Duration time.Duration `json:"duration_ms"`
}

// NewStageCompleted creates a StageCompleted event.
func NewStageCompleted(runID, stage, outcome string, duration time.Duration) (*StageCompleted, error) {
	payload, err := json.Marshal(map[string]any{
		"stage":       stage,
		"outcome":     outcome,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		return nil, errors.StorageError("marshal StageCompleted payload", err).
			WithContext("run_id", runID).
			WithContext("stage", stage)
	}

	return &StageCompleted{
		BaseEvent: BaseEvent{
			EventRunID:     runID,
			EventType:      TypeStageCompleted,
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		Stage:    stage,
		Outcome:  outcome,
		Duration: duration,
	}, nil
}

// RunCompleted is emitted when a run finishes successfully.
type RunCompleted struct {
	BaseEvent
	Outcome         string        `json:"outcome"`
	Duration        time.Duration `json:"duration_ms"`
	Published       bool          `json:"published"`
	PublishedCommit string        `json:"published_commit,omitempty"`
	PublishBranch   string        `json:"publish_branch,omitempty"`
}

// NewRunCompleted creates a RunCompleted event.
func NewRunCompleted(runID, outcome string, duration time.Duration, published bool, publishedCommit, publishBranch string) (*RunCompleted, error) {
	payload, err := json.Marshal(map[string]any{
		"outcome":          outcome,
		"duration_ms":      duration.Milliseconds(),
		"published":        published,
		"published_commit": publishedCommit,
		"publish_branch":   publishBranch,
	})
	if err != nil {
		return nil, errors.StorageError("marshal RunCompleted payload", err).
			WithContext("run_id", runID)
	}

	return &RunCompleted{
		BaseEvent: BaseEvent{
			EventRunID:     runID,
			EventType:      TypeRunCompleted,
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		Outcome:         outcome,
		Duration:        duration,
		Published:       published,
		PublishedCommit: publishedCommit,
		PublishBranch:   publishBranch,
	}, nil
}

// RunFailed is emitted when a run fails or is canceled.
type RunFailed struct {
	BaseEvent
	Outcome string `json:"outcome"`
	Stage   string `json:"stage"`
	Error   string `json:"error"`
}

// NewRunFailed creates a RunFailed event.
func NewRunFailed(runID, outcome, stage, errorMsg string) (*RunFailed, error) {
	payload, err := json.Marshal(map[string]any{
		"outcome": outcome,
		"stage":   stage,
		"error":   errorMsg,
	})
	if err != nil {
		return nil, errors.StorageError("marshal RunFailed payload", err).
			WithContext("run_id", runID).
			WithContext("stage", stage)
	}

	return &RunFailed{
		BaseEvent: BaseEvent{
			EventRunID:     runID,
			EventType:      TypeRunFailed,
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		Outcome: outcome,
		Stage:   stage,
		Error:   errorMsg,
	}, nil
}

// RunReportData contains the key metrics from a run report.
// This is a subset of pipeline.RunReport optimized for event storage.
type RunReportData struct {
	Outcome          string           `json:"outcome"`
	Summary          string           `json:"summary"`
	Documents        int              `json:"documents"`
	SnippetsExecuted int              `json:"snippets_executed"`
	PagesRendered    int              `json:"pages_rendered"`
	ArtifactCount    int              `json:"artifact_count"`
	Published        bool             `json:"published"`
	PublishSkipped   bool             `json:"publish_skipped"`
	PublishedCommit  string           `json:"published_commit,omitempty"`
	StageDurations   map[string]int64 `json:"stage_durations_ms"` // stage -> milliseconds
	Errors           []string         `json:"errors,omitempty"`
	Warnings         []string         `json:"warnings,omitempty"`
}

// RunReportRecorded is emitted when a run report is finalized.
type RunReportRecorded struct {
	BaseEvent
	Report RunReportData `json:"report"`
}

// NewRunReportRecorded creates a RunReportRecorded event.
func NewRunReportRecorded(runID string, report RunReportData) (*RunReportRecorded, error) {
	payload, err := json.Marshal(report)
	if err != nil {
		return nil, errors.StorageError("marshal RunReportRecorded payload", err).
			WithContext("run_id", runID)
	}

	return &RunReportRecorded{
		BaseEvent: BaseEvent{
			EventRunID:     runID,
			EventType:      TypeRunReportRecorded,
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		Report: report,
	}, nil
}
