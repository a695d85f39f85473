// Package config defines the docpublish configuration format and its
// loading, defaulting and validation pipeline.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete docpublish configuration.
type Config struct {
	Version   string          `yaml:"version"`
	Source    SourceConfig    `yaml:"source"`
	Toolchain ToolchainConfig `yaml:"toolchain,omitempty"`
	Runtime   RuntimeConfig   `yaml:"runtime,omitempty"`
	Render    RenderConfig    `yaml:"render,omitempty"`
	Publish   PublishConfig   `yaml:"publish"`
	Daemon    *DaemonConfig   `yaml:"daemon,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
}

// SourceConfig describes the repository whose primary branch feeds the pipeline.
type SourceConfig struct {
	URL          string      `yaml:"url"`
	Branch       string      `yaml:"branch,omitempty"`        // primary branch, defaults to main
	DocsPaths    []string    `yaml:"docs_paths,omitempty"`    // directories scanned for documents
	ExamplesDir  string      `yaml:"examples_dir,omitempty"`  // directory holding runnable snippet sources
	ShallowDepth int         `yaml:"shallow_depth,omitempty"` // >0 shallow-clones the source branch
	Auth         *AuthConfig `yaml:"auth,omitempty"`
}

// ToolchainConfig describes the site generation toolchain to provision.
type ToolchainConfig struct {
	Engine      EngineMode `yaml:"engine,omitempty"`     // auto|external|builtin
	Source      string     `yaml:"source,omitempty"`     // release index URL for external engine
	Version     string     `yaml:"version,omitempty"`    // pinned version, empty means latest
	Typesetting bool       `yaml:"typesetting"`          // math typesetting add-on
	CacheDir    string     `yaml:"cache_dir,omitempty"`  // downloaded toolchain cache
	MirrorURL   string     `yaml:"mirror_url,omitempty"` // optional download mirror
}

// RuntimeConfig describes the scripting runtime that executes document snippets.
type RuntimeConfig struct {
	Interpreter    string   `yaml:"interpreter,omitempty"` // executable name or absolute path
	MinVersion     string   `yaml:"min_version,omitempty"` // e.g. "3.10"
	Packages       []string `yaml:"packages,omitempty"`    // packages snippets import
	SnippetTimeout string   `yaml:"snippet_timeout,omitempty"`
	EnvPassthrough []string `yaml:"env_passthrough,omitempty"` // extra env vars forwarded to snippets
}

// RenderConfig describes site rendering options.
type RenderConfig struct {
	Title           string         `yaml:"title,omitempty"`
	Description     string         `yaml:"description,omitempty"`
	BaseURL         string         `yaml:"base_url,omitempty"`
	SceneExtensions []string       `yaml:"scene_extensions,omitempty"` // artifact extensions snippets may emit
	Params          map[string]any `yaml:"params,omitempty"`
}

// PublishConfig describes the hosting branch the generated site is pushed to.
type PublishConfig struct {
	Branch       string      `yaml:"branch,omitempty"` // hosting branch, defaults to gh-pages
	Remote       string      `yaml:"remote,omitempty"` // defaults to source.url
	Auth         *AuthConfig `yaml:"auth,omitempty"`   // defaults to source.auth
	CommitAuthor string      `yaml:"commit_author,omitempty"`
	CommitEmail  string      `yaml:"commit_email,omitempty"`
}

// DaemonConfig represents daemon-specific configuration.
type DaemonConfig struct {
	DataDir   string          `yaml:"data_dir,omitempty"` // run workspaces and event store live here
	HTTP      HTTPConfig      `yaml:"http"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Queue     QueueConfig     `yaml:"queue"`
	Retention RetentionConfig `yaml:"retention"`
	Events    EventsConfig    `yaml:"events"`
	NATS      *NATSConfig     `yaml:"nats,omitempty"`
}

// HTTPConfig represents HTTP server configuration.
type HTTPConfig struct {
	WebhookPort int `yaml:"webhook_port"` // webhook reception port
	AdminPort   int `yaml:"admin_port"`   // health/status/metrics port
}

// WebhookConfig represents webhook reception configuration.
type WebhookConfig struct {
	Path     string       `yaml:"path,omitempty"`
	Secret   string       `yaml:"secret,omitempty"`
	Provider ProviderType `yaml:"provider,omitempty"` // github|gitlab|forgejo|auto
}

// QueueConfig bounds the pending run queue.
type QueueConfig struct {
	Size int `yaml:"size,omitempty"`
}

// RetentionConfig controls cleanup of finished run workspaces and reports.
type RetentionConfig struct {
	MaxAge        string `yaml:"max_age,omitempty"`        // e.g. "168h"
	SweepInterval string `yaml:"sweep_interval,omitempty"` // e.g. "1h"
}

// EventsConfig configures the run event store.
type EventsConfig struct {
	Path string `yaml:"path,omitempty"` // sqlite database file
}

// NATSConfig configures optional run event publication to NATS JetStream.
type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url,omitempty"`
	Stream        string `yaml:"stream,omitempty"`
	SubjectPrefix string `yaml:"subject_prefix,omitempty"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level,omitempty"`
	Format LogFormat `yaml:"format,omitempty"`
}

// Load loads a configuration file.
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	if err := loadEnvFile(); err != nil {
		// Don't fail if .env doesn't exist, just log it
		fmt.Fprintf(os.Stderr, "Note: .env file not found or couldn't be loaded: %v\n", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate version
	if config.Version == "" {
		config.Version = "1.0"
	}
	if !strings.HasPrefix(config.Version, "1.") {
		return nil, fmt.Errorf("unsupported configuration version: %s (expected 1.x)", config.Version)
	}

	// Apply defaults before validation so canonical values drive the checks
	if err := applyDefaults(&config); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	// Validate configuration
	if err := ValidateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// applyDefaults applies default values to configuration.
func applyDefaults(config *Config) error {
	applier := NewDefaultApplier()
	return applier.ApplyDefaults(config)
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	exampleConfig := Config{
		Version: "1.0",
		Source: SourceConfig{
			URL:         "https://github.com/example/docs.git",
			Branch:      "main",
			DocsPaths:   []string{"."},
			ExamplesDir: "examples",
			// For private repositories add an auth block, e.g.
			//   auth: {type: token, token: "${GIT_TOKEN}"}
		},
		Toolchain: ToolchainConfig{
			Engine:  EngineAuto,
			Source:  "https://releases.example.com/sitegen/index.json",
			Version: "",
		},
		Runtime: RuntimeConfig{
			Interpreter:    "python3",
			MinVersion:     "3.10",
			SnippetTimeout: "2m",
		},
		Render: RenderConfig{
			Title:           "Documentation",
			BaseURL:         "https://docs.example.com",
			SceneExtensions: []string{".mvsj", ".json"},
		},
		Publish: PublishConfig{
			Branch: "gh-pages",
		},
		Daemon: &DaemonConfig{
			DataDir: "./docpublish-data",
			HTTP: HTTPConfig{
				WebhookPort: 8081,
				AdminPort:   8082,
			},
			Webhook: WebhookConfig{
				Path:     "/hooks/push",
				Secret:   "${WEBHOOK_SECRET}",
				Provider: ProviderAuto,
			},
			Queue: QueueConfig{Size: 16},
			Retention: RetentionConfig{
				MaxAge:        "168h",
				SweepInterval: "1h",
			},
			Events: EventsConfig{Path: "./docpublish-data/events.db"},
		},
		Logging: LoggingConfig{
			Level:  LogLevelInfo,
			Format: LogFormatText,
		},
	}

	data, err := yaml.Marshal(&exampleConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
