package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/eventstore"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
	"git.home.luguber.info/inful/docpublish/internal/workspace"
)

const (
	defaultRetentionMaxAge = 168 * time.Hour
	defaultSweepInterval   = time.Hour
)

// Sweeper periodically removes run workspaces and stored events older than
// the retention window.
type Sweeper struct {
	scheduler  gocron.Scheduler
	workspaces *workspace.Manager
	store      eventstore.Store
	maxAge     time.Duration
	interval   time.Duration
}

// NewSweeper creates a retention sweeper from configuration. Empty retention
// settings fall back to a week of history swept hourly.
func NewSweeper(cfg config.RetentionConfig, workspaces *workspace.Manager, store eventstore.Store) (*Sweeper, error) {
	maxAge := defaultRetentionMaxAge
	if cfg.MaxAge != "" {
		parsed, err := time.ParseDuration(cfg.MaxAge)
		if err != nil {
			return nil, fmt.Errorf("invalid retention max_age %q: %w", cfg.MaxAge, err)
		}
		maxAge = parsed
	}

	interval := defaultSweepInterval
	if cfg.SweepInterval != "" {
		parsed, err := time.ParseDuration(cfg.SweepInterval)
		if err != nil {
			return nil, fmt.Errorf("invalid retention sweep_interval %q: %w", cfg.SweepInterval, err)
		}
		interval = parsed
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Sweeper{
		scheduler:  scheduler,
		workspaces: workspaces,
		store:      store,
		maxAge:     maxAge,
		interval:   interval,
	}, nil
}

// MaxAge returns the retention window.
func (s *Sweeper) MaxAge() time.Duration { return s.maxAge }

// Interval returns the sweep cadence.
func (s *Sweeper) Interval() time.Duration { return s.interval }

// Start schedules the periodic sweep and begins execution.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.sweep),
		gocron.WithName("retention-sweep"),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule retention sweep: %w", err)
	}

	s.scheduler.Start()
	slog.Info("Retention sweeper started",
		slog.Duration("max_age", s.maxAge),
		slog.Duration("interval", s.interval))
	return nil
}

// Stop shuts the scheduler down, waiting for a running sweep to finish.
func (s *Sweeper) Stop(ctx context.Context) error {
	slog.Info("Stopping retention sweeper")
	return s.scheduler.Shutdown()
}

// sweep removes expired workspaces and prunes events past the window.
func (s *Sweeper) sweep() {
	if s.workspaces != nil {
		if _, err := s.workspaces.SweepExpired(s.maxAge); err != nil {
			slog.Warn("Workspace sweep failed", logfields.Error(err))
		}
	}

	if s.store != nil {
		cutoff := time.Now().Add(-s.maxAge)
		pruned, err := s.store.Prune(context.Background(), cutoff)
		if err != nil {
			slog.Warn("Event prune failed", logfields.Error(err))
		} else if pruned > 0 {
			slog.Info("Pruned expired run events", slog.Int64("pruned", pruned))
		}
	}
}
