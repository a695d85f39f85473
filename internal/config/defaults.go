package config

import (
	"os"
	"path/filepath"
)

// ConfigDefaultApplier applies defaults for a specific configuration domain.
type ConfigDefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// SourceDefaultApplier handles source repository defaults.
type SourceDefaultApplier struct{}

func (s *SourceDefaultApplier) Domain() string { return "source" }

func (s *SourceDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Source.Branch == "" {
		cfg.Source.Branch = "main"
	}
	if len(cfg.Source.DocsPaths) == 0 {
		cfg.Source.DocsPaths = []string{"."}
	}
	if cfg.Source.ExamplesDir == "" {
		cfg.Source.ExamplesDir = "examples"
	}
	return nil
}

// ToolchainDefaultApplier handles toolchain provisioning defaults.
type ToolchainDefaultApplier struct{}

func (t *ToolchainDefaultApplier) Domain() string { return "toolchain" }

func (t *ToolchainDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Toolchain.Engine == "" {
		cfg.Toolchain.Engine = EngineAuto
	} else if m := NormalizeEngineMode(string(cfg.Toolchain.Engine)); m != "" {
		cfg.Toolchain.Engine = m
	}
	// EngineAuto resolves to external only when a release source is configured.
	if cfg.Toolchain.Engine == EngineAuto {
		if cfg.Toolchain.Source != "" {
			cfg.Toolchain.Engine = EngineExternal
		} else {
			cfg.Toolchain.Engine = EngineBuiltin
		}
	}
	if cfg.Toolchain.CacheDir == "" {
		cacheRoot, err := os.UserCacheDir()
		if err != nil {
			cacheRoot = os.TempDir()
		}
		cfg.Toolchain.CacheDir = filepath.Join(cacheRoot, "docpublish", "toolchain")
	}
	return nil
}

// RuntimeDefaultApplier handles scripting runtime defaults.
type RuntimeDefaultApplier struct{}

func (r *RuntimeDefaultApplier) Domain() string { return "runtime" }

func (r *RuntimeDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Runtime.Interpreter == "" {
		cfg.Runtime.Interpreter = "python3"
	}
	if cfg.Runtime.SnippetTimeout == "" {
		cfg.Runtime.SnippetTimeout = "2m"
	}
	return nil
}

// RenderDefaultApplier handles render defaults.
type RenderDefaultApplier struct{}

func (r *RenderDefaultApplier) Domain() string { return "render" }

func (r *RenderDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Render.Title == "" {
		cfg.Render.Title = "Documentation"
	}
	if len(cfg.Render.SceneExtensions) == 0 {
		cfg.Render.SceneExtensions = []string{".mvsj", ".json"}
	}
	return nil
}

// PublishDefaultApplier handles publish target defaults.
type PublishDefaultApplier struct{}

func (p *PublishDefaultApplier) Domain() string { return "publish" }

func (p *PublishDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Publish.Branch == "" {
		cfg.Publish.Branch = "gh-pages"
	}
	if cfg.Publish.Remote == "" {
		cfg.Publish.Remote = cfg.Source.URL
	}
	if cfg.Publish.Auth == nil {
		cfg.Publish.Auth = cfg.Source.Auth
	}
	if cfg.Publish.CommitAuthor == "" {
		cfg.Publish.CommitAuthor = "docpublish"
	}
	if cfg.Publish.CommitEmail == "" {
		cfg.Publish.CommitEmail = "docpublish@localhost"
	}
	return nil
}

// DaemonDefaultApplier handles daemon configuration defaults.
type DaemonDefaultApplier struct{}

func (d *DaemonDefaultApplier) Domain() string { return "daemon" }

func (d *DaemonDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Daemon == nil {
		return nil // No daemon config to apply defaults to
	}

	if cfg.Daemon.HTTP.WebhookPort == 0 {
		cfg.Daemon.HTTP.WebhookPort = 8081
	}
	if cfg.Daemon.HTTP.AdminPort == 0 {
		cfg.Daemon.HTTP.AdminPort = 8082
	}
	if cfg.Daemon.Webhook.Path == "" {
		cfg.Daemon.Webhook.Path = "/hooks/push"
	}
	if cfg.Daemon.Webhook.Provider == "" {
		cfg.Daemon.Webhook.Provider = ProviderAuto
	} else if p := NormalizeProviderType(string(cfg.Daemon.Webhook.Provider)); p != "" {
		cfg.Daemon.Webhook.Provider = p
	}
	if cfg.Daemon.Queue.Size == 0 {
		cfg.Daemon.Queue.Size = 16
	}
	if cfg.Daemon.Retention.MaxAge == "" {
		cfg.Daemon.Retention.MaxAge = "168h" // one week
	}
	if cfg.Daemon.Retention.SweepInterval == "" {
		cfg.Daemon.Retention.SweepInterval = "1h"
	}
	if cfg.Daemon.DataDir == "" {
		cfg.Daemon.DataDir = "./docpublish-data"
	}
	if cfg.Daemon.Events.Path == "" {
		cfg.Daemon.Events.Path = filepath.Join(cfg.Daemon.DataDir, "events.db")
	}
	if cfg.Daemon.NATS != nil && cfg.Daemon.NATS.Enabled {
		if cfg.Daemon.NATS.Stream == "" {
			cfg.Daemon.NATS.Stream = "DOCPUBLISH"
		}
		if cfg.Daemon.NATS.SubjectPrefix == "" {
			cfg.Daemon.NATS.SubjectPrefix = "docpublish"
		}
	}
	return nil
}

// LoggingDefaultApplier handles logging defaults.
type LoggingDefaultApplier struct{}

func (l *LoggingDefaultApplier) Domain() string { return "logging" }

func (l *LoggingDefaultApplier) ApplyDefaults(cfg *Config) error {
	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
	return nil
}
