package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	derrors "git.home.luguber.info/inful/docpublish/internal/errors"
	"git.home.luguber.info/inful/docpublish/internal/metrics"
)

// countingRecorder tallies recorder calls for assertions.
type countingRecorder struct {
	stageResults map[string]int
	runOutcomes  map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{stageResults: map[string]int{}, runOutcomes: map[string]int{}}
}

func (c *countingRecorder) ObserveStageDuration(string, time.Duration) {}
func (c *countingRecorder) ObserveRunDuration(time.Duration)           {}

func (c *countingRecorder) IncStageResult(stage string, result metrics.ResultLabel) {
	c.stageResults[stage+"/"+string(result)]++
}

func (c *countingRecorder) IncRunOutcome(outcome string)   { c.runOutcomes[outcome]++ }
func (c *countingRecorder) IncPublishResult(string)        {}
func (c *countingRecorder) SetQueueDepth(int)              {}
func (c *countingRecorder) IncWebhookEvent(string, string) {}

func newTestState(rec metrics.Recorder) *State {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &State{
		RunID:    "run-test",
		Report:   newRunReport("run-test", TriggerManual),
		recorder: rec,
	}
}

func failingFatalStage(_ context.Context, _ *State) error {
	return newFatalStageError("fatal_stage", errors.New("boom"))
}

func failingWarnStage(_ context.Context, _ *State) error {
	return newWarnStageError("warn_stage", errors.New("soft"))
}

func okStage(_ context.Context, _ *State) error { return nil }

func TestRunStagesErrorClassification(t *testing.T) {
	rec := newCountingRecorder()
	s := newTestState(rec)

	stages := []namedStage{{"warn_stage", failingWarnStage}, {"fatal_stage", failingFatalStage}}
	err := runStages(context.Background(), s, stages)
	if err == nil {
		t.Fatal("expected fatal error")
	}
	if len(s.Report.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(s.Report.Warnings))
	}
	if len(s.Report.Errors) != 1 {
		t.Fatalf("expected 1 fatal error, got %d", len(s.Report.Errors))
	}
	if s.Report.StageErrorKinds["warn_stage"] != string(StageErrorWarning) {
		t.Errorf("warn_stage kind = %q", s.Report.StageErrorKinds["warn_stage"])
	}
	if s.Report.StageErrorKinds["fatal_stage"] != string(StageErrorFatal) {
		t.Errorf("fatal_stage kind = %q", s.Report.StageErrorKinds["fatal_stage"])
	}
	if rec.stageResults["warn_stage/warning"] != 1 || rec.stageResults["fatal_stage/fatal"] != 1 {
		t.Errorf("recorder stage results = %v", rec.stageResults)
	}
}

func TestRunStagesWarningContinues(t *testing.T) {
	s := newTestState(nil)

	ran := false
	next := func(_ context.Context, _ *State) error { ran = true; return nil }
	err := runStages(context.Background(), s, []namedStage{{"warn_stage", failingWarnStage}, {"next", next}})
	if err != nil {
		t.Fatalf("warning should not abort run: %v", err)
	}
	if !ran {
		t.Fatal("stage after warning did not run")
	}
	if s.Report.StageOutcomes["next"] != "success" {
		t.Errorf("next outcome = %q", s.Report.StageOutcomes["next"])
	}
}

func TestRunStagesCanceledBeforeStage(t *testing.T) {
	s := newTestState(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := runStages(ctx, s, []namedStage{{"never", okStage}})
	if err == nil {
		t.Fatal("expected canceled error")
	}
	var se *StageError
	if !errors.As(err, &se) || se.Kind != StageErrorCanceled {
		t.Fatalf("expected canceled stage error, got %v", err)
	}
	if s.Report.StageErrorKinds["never"] != string(StageErrorCanceled) {
		t.Errorf("kind = %q", s.Report.StageErrorKinds["never"])
	}
}

func TestRunStagesContextErrorMapsToCanceled(t *testing.T) {
	s := newTestState(nil)

	stage := func(ctx context.Context, _ *State) error {
		return context.Canceled
	}
	err := runStages(context.Background(), s, []namedStage{{"ctx_stage", stage}})
	var se *StageError
	if !errors.As(err, &se) || se.Kind != StageErrorCanceled {
		t.Fatalf("expected canceled classification, got %v", err)
	}
}

func TestRunStagesTimingRecorded(t *testing.T) {
	s := newTestState(nil)

	if err := runStages(context.Background(), s, []namedStage{{"warn_stage", failingWarnStage}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := s.Report.StageDurations["warn_stage"]; !ok {
		t.Error("expected timing recorded for warn_stage")
	}
}

func TestStageErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	se := newFatalStageError("checkout", cause)
	if !errors.Is(se, cause) {
		t.Error("StageError should unwrap to its cause")
	}
}

// Exit-code mapping depends on recovering the category through the stage wrap.
func TestStageErrorPreservesCategory(t *testing.T) {
	pe := derrors.PublishFailed("pages", errors.New("non-fast-forward"))
	se := newFatalStageError("publish", pe)

	got, ok := derrors.AsPublishError(se)
	if !ok {
		t.Fatal("expected a PublishError through the stage wrap")
	}
	if got.Category != derrors.CategoryPublish {
		t.Errorf("category = %v, want %v", got.Category, derrors.CategoryPublish)
	}
}
