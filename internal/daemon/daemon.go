// Package daemon runs docpublish as a long-lived service: it receives forge
// push webhooks, executes one pipeline run per qualifying push, and exposes
// health, status and metrics endpoints.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/eventstore"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
	"git.home.luguber.info/inful/docpublish/internal/metrics"
	"git.home.luguber.info/inful/docpublish/internal/notify"
	"git.home.luguber.info/inful/docpublish/internal/pipeline"
	"git.home.luguber.info/inful/docpublish/internal/workspace"
)

// Status represents the current state of the daemon
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

// Daemon represents the main daemon service
type Daemon struct {
	config         *config.Config
	configFilePath string
	status         atomic.Value // Status
	startTime      time.Time
	stopChan       chan struct{}
	mu             sync.RWMutex

	// Core components
	workspaces    *workspace.Manager
	runner        *pipeline.Pipeline
	queue         *RunQueue
	httpServer    *HTTPServer
	configWatcher *ConfigWatcher
	sweeper       *Sweeper
	recorder      metrics.Recorder
	registry      *prom.Registry

	// Event sourcing components
	eventStore    eventstore.Store
	runProjection *eventstore.RunHistoryProjection
	eventEmitter  *EventEmitter
	notifier      *notify.Publisher
}

// New creates a new daemon instance
func New(cfg *config.Config) (*Daemon, error) {
	return NewWithConfigFile(cfg, "")
}

// NewWithConfigFile creates a new daemon instance with config file watching
func NewWithConfigFile(cfg *config.Config, configFilePath string) (*Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}

	if cfg.Daemon == nil {
		return nil, fmt.Errorf("daemon configuration is required")
	}

	d := &Daemon{
		config:         cfg,
		configFilePath: configFilePath,
		stopChan:       make(chan struct{}),
	}
	d.status.Store(StatusStopped)

	// Prometheus recorder shared by pipeline stages and queue gauges
	d.registry = prom.NewRegistry()
	d.recorder = metrics.NewPrometheusRecorder(d.registry)

	// Run workspaces live under the data dir and are kept until the
	// retention sweep removes them, so reports stay inspectable.
	dataDir := cfg.Daemon.DataDir
	if dataDir == "" {
		dataDir = "./docpublish-data"
	}
	d.workspaces = workspace.NewKeepingManager(filepath.Join(dataDir, "runs"))

	// Event store and run history projection
	eventStorePath := cfg.Daemon.Events.Path
	if eventStorePath == "" {
		eventStorePath = filepath.Join(dataDir, "events.db")
	}
	store, err := eventstore.NewSQLiteStore(eventStorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create event store: %w", err)
	}
	d.eventStore = store
	d.runProjection = eventstore.NewRunHistoryProjection(store, 100)

	// Rebuild projection from existing events
	if err := d.runProjection.Rebuild(context.Background()); err != nil {
		slog.Warn("Failed to rebuild run history projection", logfields.Error(err))
		// Non-fatal: projection will start empty
	}

	// Optional NATS mirror for run events
	if cfg.Daemon.NATS != nil && cfg.Daemon.NATS.Enabled {
		notifier, err := notify.NewPublisher(cfg.Daemon.NATS)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to create NATS publisher: %w", err)
		}
		d.notifier = notifier
	}

	d.eventEmitter = NewEventEmitter(d.eventStore, d.runProjection, d.notifier)

	// Pipeline and its single-worker queue
	d.runner = pipeline.New(cfg, d.workspaces).SetRecorder(d.recorder)
	d.queue = NewRunQueue(cfg.Daemon.Queue.Size, d.runner, d.eventEmitter, d.recorder)

	// HTTP servers (webhook + admin)
	d.httpServer = NewHTTPServer(cfg, d)

	// Retention sweeper for run workspaces and old events
	sweeper, err := NewSweeper(cfg.Daemon.Retention, d.workspaces, d.eventStore)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create retention sweeper: %w", err)
	}
	d.sweeper = sweeper

	// Config watcher if a config file path is provided
	if configFilePath != "" {
		watcher, err := NewConfigWatcher(configFilePath, d)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to create config watcher: %w", err)
		}
		d.configWatcher = watcher
	}

	return d, nil
}

// Start starts the daemon and all its components, then blocks until the
// context is canceled or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.GetStatus() != StatusStopped {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not in stopped state: %s", d.GetStatus())
	}

	d.status.Store(StatusStarting)
	d.startTime = time.Now()

	slog.Info("Starting docpublish daemon",
		logfields.Repository(d.config.Source.URL),
		logfields.Branch(d.config.Source.Branch))

	// Start HTTP servers
	if err := d.httpServer.Start(ctx); err != nil {
		d.status.Store(StatusError)
		d.mu.Unlock()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// Start queue processing
	d.queue.Start(ctx)

	// Start retention sweeps
	if err := d.sweeper.Start(ctx); err != nil {
		slog.Error("Failed to start retention sweeper", logfields.Error(err))
	}

	// Start config watcher if available
	if d.configWatcher != nil {
		if err := d.configWatcher.Start(ctx); err != nil {
			slog.Error("Failed to start config watcher", logfields.Error(err))
		} else {
			slog.Info("Config watcher started")
		}
	}

	d.status.Store(StatusRunning)

	slog.Info("docpublish daemon started",
		slog.Int("webhook_port", d.config.Daemon.HTTP.WebhookPort),
		slog.Int("admin_port", d.config.Daemon.HTTP.AdminPort),
		slog.String("webhook_path", d.config.Daemon.Webhook.Path),
		slog.String("provider", string(d.config.Daemon.Webhook.Provider)))

	// Release lock before blocking so read endpoints stay responsive.
	d.mu.Unlock()

	select {
	case <-ctx.Done():
	case <-d.stopChan:
	}

	d.status.Store(StatusStopping)
	slog.Info("Daemon stopping")
	return nil
}

// Stop gracefully shuts down the daemon
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	currentStatus := d.GetStatus()
	if currentStatus == StatusStopped {
		return nil
	}

	d.status.Store(StatusStopping)
	slog.Info("Stopping docpublish daemon")

	// Signal stop to all components (only if not already closed)
	select {
	case <-d.stopChan:
	default:
		close(d.stopChan)
	}

	// Stop components in reverse order
	if d.configWatcher != nil {
		if err := d.configWatcher.Stop(ctx); err != nil {
			slog.Error("Failed to stop config watcher", logfields.Error(err))
		}
	}

	if d.sweeper != nil {
		if err := d.sweeper.Stop(ctx); err != nil {
			slog.Error("Failed to stop retention sweeper", logfields.Error(err))
		}
	}

	if d.queue != nil {
		d.queue.Stop(ctx)
	}

	if d.httpServer != nil {
		if err := d.httpServer.Stop(ctx); err != nil {
			slog.Error("Failed to stop HTTP server", logfields.Error(err))
		}
	}

	if d.notifier != nil {
		if err := d.notifier.Close(); err != nil {
			slog.Error("Failed to close NATS publisher", logfields.Error(err))
		}
	}

	if d.eventStore != nil {
		if err := d.eventStore.Close(); err != nil {
			slog.Error("Failed to close event store", logfields.Error(err))
		}
	}

	d.status.Store(StatusStopped)

	uptime := time.Since(d.startTime)
	slog.Info("docpublish daemon stopped", slog.Duration("uptime", uptime))

	return nil
}

// GetStatus returns the current daemon status
func (d *Daemon) GetStatus() Status {
	status, ok := d.status.Load().(Status)
	if !ok {
		return StatusError
	}
	return status
}

// GetStartTime returns the daemon start time
func (d *Daemon) GetStartTime() time.Time {
	return d.startTime
}

// GetQueueDepth returns the number of pending runs in the queue
func (d *Daemon) GetQueueDepth() int {
	if d.queue == nil {
		return 0
	}
	return d.queue.Depth()
}

// GetRunProjection returns the run history projection for querying run history.
func (d *Daemon) GetRunProjection() *eventstore.RunHistoryProjection {
	return d.runProjection
}

// GetConfig returns the active configuration.
func (d *Daemon) GetConfig() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config
}

// ReloadConfig applies a new configuration to the running daemon. Subsequent
// runs use the new pipeline settings; listeners and the event store keep
// their original configuration until restart.
func (d *Daemon) ReloadConfig(ctx context.Context, newConfig *config.Config) error {
	if newConfig == nil || newConfig.Daemon == nil {
		return fmt.Errorf("reload requires a configuration with a daemon section")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	slog.Info("Reloading daemon configuration")

	d.config = newConfig
	d.runner = pipeline.New(newConfig, d.workspaces).SetRecorder(d.recorder)
	if d.queue != nil {
		d.queue.SetExecutor(d.runner)
	}

	slog.Info("Configuration reloaded successfully")
	return nil
}
