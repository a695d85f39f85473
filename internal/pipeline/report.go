package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RunOutcome is the typed enumeration of final run result states.
type RunOutcome string

const (
	OutcomeSuccess  RunOutcome = "success"
	OutcomeFailed   RunOutcome = "failed"
	OutcomeCanceled RunOutcome = "canceled"
)

// RunReport captures what one publish run did: stage timings and outcomes,
// what was checked out, rendered and published, and the overall result.
// Warnings are recorded but never demote a successful run; only stage errors
// decide the outcome.
type RunReport struct {
	SchemaVersion int
	RunID         string
	Trigger       string
	Start         time.Time
	End           time.Time

	Repository string
	Branch     string
	Commit     string

	Engine         string
	EngineVersion  string
	RuntimeVersion string

	Documents        int
	SnippetsExecuted int
	PagesRendered    int
	ArtifactsWritten []string

	Published       bool
	PublishSkipped  bool
	PublishedCommit string
	PublishBranch   string

	StageDurations  map[string]time.Duration
	StageOutcomes   map[string]string // stage -> success|fatal|warning|canceled
	StageErrorKinds map[string]string // stage -> error kind, set only on error
	Errors          []error
	Warnings        []error

	Outcome  string     // string form for JSON consumers
	OutcomeT RunOutcome // typed mirror (source of truth)
}

func newRunReport(runID string, trigger Trigger) *RunReport {
	return &RunReport{
		SchemaVersion:   1,
		RunID:           runID,
		Trigger:         string(trigger),
		Start:           time.Now(),
		StageDurations:  make(map[string]time.Duration),
		StageOutcomes:   make(map[string]string),
		StageErrorKinds: make(map[string]string),
	}
}

// recordStageError files a classified stage error into the report.
func (r *RunReport) recordStageError(se *StageError) {
	r.StageErrorKinds[se.Stage] = string(se.Kind)
	r.StageOutcomes[se.Stage] = string(se.Kind)
	if se.Kind == StageErrorWarning {
		r.Warnings = append(r.Warnings, se)
		return
	}
	r.Errors = append(r.Errors, se)
}

func (r *RunReport) finish() {
	if r.End.IsZero() {
		r.End = time.Now()
	}
}

// Duration returns the run wall time.
func (r *RunReport) Duration() time.Duration { return r.End.Sub(r.Start) }

// deriveOutcome sets the overall result from recorded errors. Warnings alone
// leave a successful run successful.
func (r *RunReport) deriveOutcome() {
	if len(r.Errors) > 0 {
		for _, e := range r.Errors {
			if se, ok := e.(*StageError); ok && se.Kind == StageErrorCanceled {
				r.setOutcome(OutcomeCanceled)
				return
			}
		}
		r.setOutcome(OutcomeFailed)
		return
	}
	r.setOutcome(OutcomeSuccess)
}

func (r *RunReport) setOutcome(o RunOutcome) {
	r.OutcomeT = o
	r.Outcome = string(o)
}

// Summary returns a human-readable single-line summary.
func (r *RunReport) Summary() string {
	publish := "no"
	switch {
	case r.Published:
		publish = shortCommit(r.PublishedCommit)
	case r.PublishSkipped:
		publish = "skipped"
	}
	return fmt.Sprintf("run=%s trigger=%s duration=%s documents=%d pages=%d artifacts=%d published=%s errors=%d warnings=%d outcome=%s",
		r.RunID, r.Trigger, r.Duration().Truncate(time.Millisecond),
		r.Documents, r.PagesRendered, len(r.ArtifactsWritten),
		publish, len(r.Errors), len(r.Warnings), r.Outcome)
}

func shortCommit(commit string) string {
	if len(commit) > 8 {
		return commit[:8]
	}
	return commit
}

// JSON renders the report in its persisted machine-readable form.
func (r *RunReport) JSON() ([]byte, error) {
	return json.MarshalIndent(r.sanitizedCopy(), "", "  ")
}

// Persist writes the report atomically next to the run workspace root:
//
//	run-report.json  (machine readable)
//	run-report.txt   (human summary)
//
// Best effort; errors are returned for caller logging but do not change the
// run outcome.
func (r *RunReport) Persist(jsonPath string) error {
	if r.End.IsZero() {
		r.finish()
		r.deriveOutcome()
	}
	if err := os.MkdirAll(filepath.Dir(jsonPath), 0o750); err != nil {
		return fmt.Errorf("ensure report directory: %w", err)
	}

	jb, err := r.JSON()
	if err != nil {
		return fmt.Errorf("marshal report json: %w", err)
	}
	tmpJSON := jsonPath + ".tmp"
	if err := os.WriteFile(tmpJSON, jb, 0o644); err != nil {
		return fmt.Errorf("write temp report json: %w", err)
	}
	if err := os.Rename(tmpJSON, jsonPath); err != nil {
		return fmt.Errorf("atomic rename json: %w", err)
	}

	summaryPath := strings.TrimSuffix(jsonPath, filepath.Ext(jsonPath)) + ".txt"
	tmpTxt := summaryPath + ".tmp"
	if err := os.WriteFile(tmpTxt, []byte(r.Summary()+"\n"), 0o644); err != nil {
		return fmt.Errorf("write temp report summary: %w", err)
	}
	if err := os.Rename(tmpTxt, summaryPath); err != nil {
		return fmt.Errorf("atomic rename summary: %w", err)
	}
	return nil
}

// sanitizedCopy returns a JSON-friendly view with error values flattened to
// strings and nil maps normalized to empty objects.
func (r *RunReport) sanitizedCopy() *RunReportSerializable {
	s := &RunReportSerializable{
		SchemaVersion:    r.SchemaVersion,
		RunID:            r.RunID,
		Trigger:          r.Trigger,
		Start:            r.Start,
		End:              r.End,
		Repository:       r.Repository,
		Branch:           r.Branch,
		Commit:           r.Commit,
		Engine:           r.Engine,
		EngineVersion:    r.EngineVersion,
		RuntimeVersion:   r.RuntimeVersion,
		Documents:        r.Documents,
		SnippetsExecuted: r.SnippetsExecuted,
		PagesRendered:    r.PagesRendered,
		ArtifactsWritten: r.ArtifactsWritten,
		Published:        r.Published,
		PublishSkipped:   r.PublishSkipped,
		PublishedCommit:  r.PublishedCommit,
		PublishBranch:    r.PublishBranch,
		StageDurations:   r.StageDurations,
		StageOutcomes:    r.StageOutcomes,
		StageErrorKinds:  r.StageErrorKinds,
		Errors:           make([]string, len(r.Errors)),
		Warnings:         make([]string, len(r.Warnings)),
		Outcome:          r.Outcome,
	}
	if s.StageDurations == nil {
		s.StageDurations = map[string]time.Duration{}
	}
	if s.StageOutcomes == nil {
		s.StageOutcomes = map[string]string{}
	}
	if s.StageErrorKinds == nil {
		s.StageErrorKinds = map[string]string{}
	}
	if s.ArtifactsWritten == nil {
		s.ArtifactsWritten = []string{}
	}
	for i, e := range r.Errors {
		s.Errors[i] = e.Error()
	}
	for i, w := range r.Warnings {
		s.Warnings[i] = w.Error()
	}
	return s
}

// RunReportSerializable mirrors RunReport with string errors for JSON output.
type RunReportSerializable struct {
	SchemaVersion    int                      `json:"schema_version"`
	RunID            string                   `json:"run_id"`
	Trigger          string                   `json:"trigger"`
	Start            time.Time                `json:"start"`
	End              time.Time                `json:"end"`
	Repository       string                   `json:"repository"`
	Branch           string                   `json:"branch"`
	Commit           string                   `json:"commit"`
	Engine           string                   `json:"engine"`
	EngineVersion    string                   `json:"engine_version,omitempty"`
	RuntimeVersion   string                   `json:"runtime_version,omitempty"`
	Documents        int                      `json:"documents"`
	SnippetsExecuted int                      `json:"snippets_executed"`
	PagesRendered    int                      `json:"pages_rendered"`
	ArtifactsWritten []string                 `json:"artifacts_written"`
	Published        bool                     `json:"published"`
	PublishSkipped   bool                     `json:"publish_skipped"`
	PublishedCommit  string                   `json:"published_commit,omitempty"`
	PublishBranch    string                   `json:"publish_branch,omitempty"`
	StageDurations   map[string]time.Duration `json:"stage_durations"`
	StageOutcomes    map[string]string        `json:"stage_outcomes"`
	StageErrorKinds  map[string]string        `json:"stage_error_kinds"`
	Errors           []string                 `json:"errors"`
	Warnings         []string                 `json:"warnings"`
	Outcome          string                   `json:"outcome"`
}
