package daemon

import (
	"context"
	"log/slog"
	"strings"

	"git.home.luguber.info/inful/docpublish/internal/errors"
	"git.home.luguber.info/inful/docpublish/internal/eventstore"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
	"git.home.luguber.info/inful/docpublish/internal/notify"
	"git.home.luguber.info/inful/docpublish/internal/pipeline"
)

// stageOrder lists pipeline stages in execution order for event emission.
var stageOrder = []string{
	pipeline.StageCheckout,
	pipeline.StageSetupGenerator,
	pipeline.StageSetupRuntime,
	pipeline.StageRender,
	pipeline.StagePublish,
}

// EventEmitter records run lifecycle events: it appends them to the event
// store, updates the run history projection, and mirrors them to NATS when a
// notifier is configured. Emission is best-effort; failures are logged and
// never fail the run.
type EventEmitter struct {
	store      eventstore.Store
	projection *eventstore.RunHistoryProjection
	notifier   *notify.Publisher
}

// NewEventEmitter creates an EventEmitter. The notifier may be nil.
func NewEventEmitter(store eventstore.Store, projection *eventstore.RunHistoryProjection, notifier *notify.Publisher) *EventEmitter {
	return &EventEmitter{
		store:      store,
		projection: projection,
		notifier:   notifier,
	}
}

// EmitEvent persists an event to the event store, updates the projection and
// mirrors it to NATS. This is the canonical way to record run lifecycle events.
func (e *EventEmitter) EmitEvent(ctx context.Context, event eventstore.Event) {
	if e == nil || e.store == nil {
		return
	}

	if err := e.store.Append(ctx, event.RunID(), event.Type(), event.Payload(), event.Metadata()); err != nil {
		serr := errors.StorageError("append", err).
			WithContext("run_id", event.RunID()).
			WithContext("event_type", event.Type())
		slog.Warn("Failed to persist run event", logfields.Error(serr))
		return
	}

	if e.projection != nil {
		e.projection.Apply(event)
	}

	if e.notifier != nil {
		if err := e.notifier.PublishRunEvent(event); err != nil {
			slog.Warn("Failed to mirror run event to NATS",
				logfields.RunID(event.RunID()),
				logfields.Event(event.Type()),
				logfields.Error(err))
		}
	}
}

// EmitRunQueued records acceptance of a run onto the queue.
func (e *EventEmitter) EmitRunQueued(ctx context.Context, job *RunJob) {
	if e == nil || job == nil {
		return
	}
	event, err := eventstore.NewRunQueued(job.RunID, string(job.Trigger), job.Ref, job.Commit, job.Provider)
	if err != nil {
		slog.Warn("Failed to create RunQueued event", logfields.Error(err))
		return
	}
	e.EmitEvent(ctx, event)
}

// EmitRunStarted records the beginning of pipeline execution for a run.
func (e *EventEmitter) EmitRunStarted(ctx context.Context, job *RunJob) {
	if e == nil || job == nil {
		return
	}
	event, err := eventstore.NewRunStarted(job.RunID, eventstore.RunStartedMeta{
		Trigger:    string(job.Trigger),
		Repository: job.Repository,
		Branch:     strings.TrimPrefix(job.Ref, "refs/heads/"),
		Commit:     job.Commit,
		Provider:   job.Provider,
	})
	if err != nil {
		slog.Warn("Failed to create RunStarted event", logfields.Error(err))
		return
	}
	e.EmitEvent(ctx, event)
}

// EmitRunFinished records the outcome of a finished run from its report:
// one StageCompleted per executed stage, a terminal RunCompleted or
// RunFailed, and the full RunReportRecorded.
func (e *EventEmitter) EmitRunFinished(ctx context.Context, runID string, report *pipeline.RunReport) {
	if e == nil || report == nil {
		return
	}

	for _, stage := range stageOrder {
		d, ran := report.StageDurations[stage]
		if !ran {
			continue
		}
		outcome := report.StageOutcomes[stage]
		event, err := eventstore.NewStageCompleted(runID, stage, outcome, d)
		if err != nil {
			slog.Warn("Failed to create StageCompleted event", logfields.Stage(stage), logfields.Error(err))
			continue
		}
		e.EmitEvent(ctx, event)
	}

	if report.Outcome == string(pipeline.OutcomeSuccess) {
		event, err := eventstore.NewRunCompleted(runID, report.Outcome, report.Duration(),
			report.Published, report.PublishedCommit, report.PublishBranch)
		if err != nil {
			slog.Warn("Failed to create RunCompleted event", logfields.Error(err))
		} else {
			e.EmitEvent(ctx, event)
		}
	} else {
		stage, msg := firstFailure(report)
		event, err := eventstore.NewRunFailed(runID, report.Outcome, stage, msg)
		if err != nil {
			slog.Warn("Failed to create RunFailed event", logfields.Error(err))
		} else {
			e.EmitEvent(ctx, event)
		}
	}

	reportEvent, err := eventstore.NewRunReportRecorded(runID, convertRunReportToEventData(report))
	if err != nil {
		slog.Warn("Failed to create RunReportRecorded event", logfields.Error(err))
		return
	}
	e.EmitEvent(ctx, reportEvent)
}

// firstFailure returns the stage and message of the first recorded error.
func firstFailure(report *pipeline.RunReport) (stage, msg string) {
	for _, s := range stageOrder {
		kind, ok := report.StageErrorKinds[s]
		if ok && kind != "warning" {
			stage = s
			break
		}
	}
	if len(report.Errors) > 0 {
		msg = truncateMessage(report.Errors[0].Error())
	}
	return stage, msg
}

// convertRunReportToEventData converts a pipeline.RunReport to eventstore.RunReportData.
func convertRunReportToEventData(report *pipeline.RunReport) eventstore.RunReportData {
	data := eventstore.RunReportData{
		Outcome:          report.Outcome,
		Summary:          report.Summary(),
		Documents:        report.Documents,
		SnippetsExecuted: report.SnippetsExecuted,
		PagesRendered:    report.PagesRendered,
		ArtifactCount:    len(report.ArtifactsWritten),
		Published:        report.Published,
		PublishSkipped:   report.PublishSkipped,
		PublishedCommit:  report.PublishedCommit,
	}

	if len(report.StageDurations) > 0 {
		data.StageDurations = make(map[string]int64, len(report.StageDurations))
		for k, v := range report.StageDurations {
			data.StageDurations[k] = v.Milliseconds()
		}
	}

	for _, err := range report.Errors {
		data.Errors = append(data.Errors, truncateMessage(err.Error()))
	}
	for _, w := range report.Warnings {
		data.Warnings = append(data.Warnings, truncateMessage(w.Error()))
	}

	return data
}

// truncateMessage bounds stored error messages.
func truncateMessage(msg string) string {
	if len(msg) > 500 {
		return msg[:500] + "…"
	}
	return msg
}
