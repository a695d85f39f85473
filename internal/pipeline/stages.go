package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/docpublish/internal/logfields"
	"git.home.luguber.info/inful/docpublish/internal/metrics"
)

// Stage names in execution order.
const (
	StageCheckout       = "checkout"
	StageSetupGenerator = "setup_generator"
	StageSetupRuntime   = "setup_runtime"
	StageRender         = "render"
	StagePublish        = "publish"
)

// Stage is a discrete unit of work in a publish run.
type Stage func(ctx context.Context, s *State) error

// StageErrorKind enumerates structured stage error categories.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"    // Run must abort.
	StageErrorWarning  StageErrorKind = "warning"  // Non-fatal; record and continue.
	StageErrorCanceled StageErrorKind = "canceled" // Context cancellation.
)

// StageError is a structured error carrying classification and cause.
type StageError struct {
	Kind  StageErrorKind
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

func newFatalStageError(stage string, err error) *StageError {
	return &StageError{Kind: StageErrorFatal, Stage: stage, Err: err}
}
func newWarnStageError(stage string, err error) *StageError {
	return &StageError{Kind: StageErrorWarning, Stage: stage, Err: err}
}
func newCanceledStageError(stage string, err error) *StageError {
	return &StageError{Kind: StageErrorCanceled, Stage: stage, Err: err}
}

// namedStage pairs a stage function with its report name.
type namedStage struct {
	name string
	fn   Stage
}

// runStages executes stages in order, recording timing and classification,
// and stops on the first fatal or canceled error.
func runStages(ctx context.Context, s *State, stages []namedStage) error {
	for _, st := range stages {
		select {
		case <-ctx.Done():
			se := newCanceledStageError(st.name, ctx.Err())
			s.Report.recordStageError(se)
			s.recorder.IncStageResult(st.name, metrics.ResultCanceled)
			return se
		default:
		}

		slog.Debug("Stage starting", logfields.RunID(s.RunID), logfields.Stage(st.name))
		t0 := time.Now()
		err := st.fn(ctx, s)
		dur := time.Since(t0)
		s.Report.StageDurations[st.name] = dur
		s.recorder.ObserveStageDuration(st.name, dur)

		if err != nil {
			se := classifyStageError(st.name, err)
			s.Report.recordStageError(se)
			s.recorder.IncStageResult(st.name, resultLabelFor(se.Kind))
			slog.Log(ctx, levelFor(se.Kind), "Stage finished with error",
				logfields.RunID(s.RunID),
				logfields.Stage(st.name),
				logfields.DurationMS(float64(dur.Milliseconds())),
				logfields.Error(se))
			if se.Kind == StageErrorWarning {
				continue
			}
			return se
		}

		s.Report.StageOutcomes[st.name] = string(metrics.ResultSuccess)
		s.recorder.IncStageResult(st.name, metrics.ResultSuccess)
		slog.Info("Stage finished",
			logfields.RunID(s.RunID),
			logfields.Stage(st.name),
			logfields.DurationMS(float64(dur.Milliseconds())))
	}
	return nil
}

// classifyStageError normalizes any stage failure to a StageError. Context
// cancellation maps to canceled; everything else defaults to fatal.
func classifyStageError(stage string, err error) *StageError {
	var se *StageError
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return newCanceledStageError(stage, err)
	}
	return newFatalStageError(stage, err)
}

func resultLabelFor(kind StageErrorKind) metrics.ResultLabel {
	switch kind {
	case StageErrorWarning:
		return metrics.ResultWarning
	case StageErrorCanceled:
		return metrics.ResultCanceled
	default:
		return metrics.ResultFatal
	}
}

func levelFor(kind StageErrorKind) slog.Level {
	if kind == StageErrorWarning {
		return slog.LevelWarn
	}
	return slog.LevelError
}
