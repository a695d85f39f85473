package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/docpublish/internal/logfields"
	"git.home.luguber.info/inful/docpublish/internal/metrics"
	"git.home.luguber.info/inful/docpublish/internal/pipeline"
)

// RunJob is a pending pipeline run accepted from the trigger surface.
type RunJob struct {
	RunID      string           `json:"run_id"`
	Trigger    pipeline.Trigger `json:"trigger"`
	Repository string           `json:"repository,omitempty"`
	Ref        string           `json:"ref,omitempty"`
	Commit     string           `json:"commit,omitempty"`
	Provider   string           `json:"provider,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// RunExecutor executes one pipeline run. Satisfied by pipeline.Pipeline.
type RunExecutor interface {
	RunWithID(ctx context.Context, runID string, req pipeline.Request) (*pipeline.RunReport, error)
}

// RunQueue is a bounded FIFO of pending runs drained by a single worker, so
// runs execute one at a time within a daemon instance.
type RunQueue struct {
	jobs     chan *RunJob
	maxSize  int
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	executor RunExecutor
	emitter  *EventEmitter
	recorder metrics.Recorder

	mu      sync.RWMutex
	current *RunJob
}

// NewRunQueue creates a run queue with the given capacity.
func NewRunQueue(maxSize int, executor RunExecutor, emitter *EventEmitter, recorder metrics.Recorder) *RunQueue {
	if maxSize <= 0 {
		maxSize = 16
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}

	return &RunQueue{
		jobs:     make(chan *RunJob, maxSize),
		maxSize:  maxSize,
		stopChan: make(chan struct{}),
		executor: executor,
		emitter:  emitter,
		recorder: recorder,
	}
}

// Start begins draining the queue with a single worker.
func (q *RunQueue) Start(ctx context.Context) {
	slog.Info("Starting run queue", slog.Int("max_size", q.maxSize))
	q.wg.Add(1)
	go q.worker(ctx)
}

// Stop shuts down the worker after the in-flight run finishes.
func (q *RunQueue) Stop(ctx context.Context) {
	slog.Info("Stopping run queue")
	q.stopOnce.Do(func() { close(q.stopChan) })
	q.wg.Wait()
	slog.Info("Run queue stopped")
}

// Enqueue adds a pending run. It never blocks: when the queue is full the
// job is rejected and the caller reports the overflow.
func (q *RunQueue) Enqueue(job *RunJob) error {
	if job == nil {
		return fmt.Errorf("job cannot be nil")
	}
	if job.RunID == "" {
		return fmt.Errorf("job run ID is required")
	}

	select {
	case q.jobs <- job:
		q.recorder.SetQueueDepth(len(q.jobs))
		q.emitter.EmitRunQueued(context.Background(), job)
		slog.Info("Run enqueued",
			logfields.RunID(job.RunID),
			logfields.Trigger(string(job.Trigger)),
			logfields.Ref(job.Ref))
		return nil
	default:
		return fmt.Errorf("run queue is full (%d pending)", q.maxSize)
	}
}

// Depth returns the number of pending runs.
func (q *RunQueue) Depth() int {
	return len(q.jobs)
}

// Capacity returns the maximum number of pending runs.
func (q *RunQueue) Capacity() int {
	return q.maxSize
}

// SetExecutor swaps the executor used for subsequent runs. An in-flight run
// finishes on the executor it started with.
func (q *RunQueue) SetExecutor(executor RunExecutor) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.executor = executor
}

// Current returns the run being executed right now, if any.
func (q *RunQueue) Current() *RunJob {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.current == nil {
		return nil
	}
	cp := *q.current
	return &cp
}

// worker drains the queue one job at a time.
func (q *RunQueue) worker(ctx context.Context) {
	defer q.wg.Done()

	slog.Debug("Run worker started")

	for {
		select {
		case <-ctx.Done():
			slog.Debug("Run worker stopped by context")
			return
		case <-q.stopChan:
			slog.Debug("Run worker stopped by stop signal")
			return
		case job := <-q.jobs:
			if job != nil {
				q.recorder.SetQueueDepth(len(q.jobs))
				q.process(ctx, job)
			}
		}
	}
}

// process executes one pipeline run and records its lifecycle events.
func (q *RunQueue) process(ctx context.Context, job *RunJob) {
	q.mu.Lock()
	q.current = job
	q.mu.Unlock()
	defer func() {
		q.mu.Lock()
		q.current = nil
		q.mu.Unlock()
	}()

	slog.Info("Run started",
		logfields.RunID(job.RunID),
		logfields.Trigger(string(job.Trigger)),
		logfields.Commit(job.Commit))

	q.emitter.EmitRunStarted(ctx, job)

	q.mu.RLock()
	executor := q.executor
	q.mu.RUnlock()

	report, err := executor.RunWithID(ctx, job.RunID, pipeline.Request{
		Trigger: job.Trigger,
		Ref:     job.Ref,
		Commit:  job.Commit,
	})

	q.emitter.EmitRunFinished(ctx, job.RunID, report)

	if err != nil {
		slog.Error("Run failed",
			logfields.RunID(job.RunID),
			logfields.Error(err))
		return
	}
	slog.Info("Run finished",
		logfields.RunID(job.RunID),
		logfields.RunStatus(report.Outcome))
}
