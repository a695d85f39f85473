package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// versionPinPattern matches toolchain version pins like 0.148.2 or v0.148.2.
var versionPinPattern = regexp.MustCompile(`^v?\d+\.\d+(\.\d+)?$`)

// ValidateConfig validates the complete configuration structure.
func ValidateConfig(cfg *Config) error {
	validator := newConfigurationValidator(cfg)
	return validator.validate()
}

// configurationValidator coordinates validation across all configuration domains.
type configurationValidator struct {
	config *Config
}

// newConfigurationValidator creates a comprehensive configuration validator.
func newConfigurationValidator(config *Config) *configurationValidator {
	return &configurationValidator{config: config}
}

// validate performs comprehensive configuration validation using domain-specific methods.
func (cv *configurationValidator) validate() error {
	// Validate in order of dependencies
	if err := cv.validateSource(); err != nil {
		return err
	}
	if err := cv.validateToolchain(); err != nil {
		return err
	}
	if err := cv.validateRuntime(); err != nil {
		return err
	}
	if err := cv.validateRender(); err != nil {
		return err
	}
	if err := cv.validatePublish(); err != nil {
		return err
	}
	if err := cv.validateDaemon(); err != nil {
		return err
	}
	return nil
}

// validateSource validates the source repository configuration.
func (cv *configurationValidator) validateSource() error {
	src := cv.config.Source
	if src.URL == "" {
		return errors.New("source.url must be configured")
	}
	if src.Branch == "" {
		return errors.New("source.branch cannot be empty")
	}
	for _, p := range src.DocsPaths {
		if filepath.IsAbs(p) {
			return fmt.Errorf("source.docs_paths entry must be relative to the repository root: %s", p)
		}
		if strings.HasPrefix(filepath.Clean(p), "..") {
			return fmt.Errorf("source.docs_paths entry escapes the repository root: %s", p)
		}
	}
	if filepath.IsAbs(src.ExamplesDir) {
		return fmt.Errorf("source.examples_dir must be relative to the repository root: %s", src.ExamplesDir)
	}
	return cv.validateAuth("source", src.Auth)
}

// validateAuth validates an authentication block.
func (cv *configurationValidator) validateAuth(owner string, auth *AuthConfig) error {
	if auth == nil {
		return nil
	}
	switch auth.Type {
	case AuthTypeToken, AuthTypeBasic, AuthTypeNone, "":
		// Valid auth types
	default:
		return fmt.Errorf("%s: unsupported auth type: %s", owner, auth.Type)
	}
	if auth.Type == AuthTypeBasic && (auth.Username == "" || auth.Password == "") {
		return fmt.Errorf("%s: basic auth requires username and password", owner)
	}
	if auth.Type == AuthTypeToken && auth.Token == "" {
		return fmt.Errorf("%s: token auth requires a token", owner)
	}
	return nil
}

// validateToolchain validates toolchain provisioning settings.
func (cv *configurationValidator) validateToolchain() error {
	tc := cv.config.Toolchain
	switch tc.Engine {
	case EngineExternal, EngineBuiltin:
		// EngineAuto has been resolved by defaults
	default:
		return fmt.Errorf("invalid toolchain.engine: %s (allowed: auto|external|builtin)", tc.Engine)
	}
	if tc.Engine == EngineExternal && tc.Source == "" {
		return errors.New("toolchain.source is required when toolchain.engine is external")
	}
	if tc.Version != "" && !versionPinPattern.MatchString(tc.Version) {
		return fmt.Errorf("invalid toolchain.version pin: %s", tc.Version)
	}
	return nil
}

// validateRuntime validates scripting runtime settings.
func (cv *configurationValidator) validateRuntime() error {
	rt := cv.config.Runtime
	if rt.Interpreter == "" {
		return errors.New("runtime.interpreter cannot be empty")
	}
	d, err := time.ParseDuration(rt.SnippetTimeout)
	if err != nil {
		return fmt.Errorf("invalid runtime.snippet_timeout: %s: %w", rt.SnippetTimeout, err)
	}
	if d <= 0 {
		return fmt.Errorf("runtime.snippet_timeout must be positive: %s", rt.SnippetTimeout)
	}
	if rt.MinVersion != "" {
		for _, part := range strings.Split(rt.MinVersion, ".") {
			if part == "" || strings.TrimLeft(part, "0123456789") != "" {
				return fmt.Errorf("invalid runtime.min_version: %s", rt.MinVersion)
			}
		}
	}
	return nil
}

// validateRender validates rendering settings.
func (cv *configurationValidator) validateRender() error {
	for _, ext := range cv.config.Render.SceneExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("render.scene_extensions entry must start with a dot: %s", ext)
		}
	}
	return nil
}

// validatePublish validates the publish target.
// Publishing to the branch the pipeline builds from would rewrite the
// primary branch, so that combination is rejected outright.
func (cv *configurationValidator) validatePublish() error {
	pub := cv.config.Publish
	if pub.Branch == "" {
		return errors.New("publish.branch cannot be empty")
	}
	if pub.Remote == cv.config.Source.URL && pub.Branch == cv.config.Source.Branch {
		return fmt.Errorf("publish.branch (%s) must differ from source.branch when publishing to the source repository", pub.Branch)
	}
	return cv.validateAuth("publish", pub.Auth)
}

// validateDaemon validates daemon settings.
func (cv *configurationValidator) validateDaemon() error {
	d := cv.config.Daemon
	if d == nil {
		return nil
	}
	if d.HTTP.WebhookPort <= 0 || d.HTTP.WebhookPort > 65535 {
		return fmt.Errorf("invalid daemon.http.webhook_port: %d", d.HTTP.WebhookPort)
	}
	if d.HTTP.AdminPort <= 0 || d.HTTP.AdminPort > 65535 {
		return fmt.Errorf("invalid daemon.http.admin_port: %d", d.HTTP.AdminPort)
	}
	if d.HTTP.WebhookPort == d.HTTP.AdminPort {
		return fmt.Errorf("daemon.http.webhook_port and admin_port must differ: %d", d.HTTP.WebhookPort)
	}
	if !strings.HasPrefix(d.Webhook.Path, "/") {
		return fmt.Errorf("daemon.webhook.path must start with /: %s", d.Webhook.Path)
	}
	switch d.Webhook.Provider {
	case ProviderGitHub, ProviderGitLab, ProviderForgejo, ProviderAuto:
		// Valid providers
	default:
		return fmt.Errorf("unsupported daemon.webhook.provider: %s", d.Webhook.Provider)
	}
	if d.Queue.Size <= 0 {
		return fmt.Errorf("daemon.queue.size must be positive: %d", d.Queue.Size)
	}

	maxAge, err := time.ParseDuration(d.Retention.MaxAge)
	if err != nil {
		return fmt.Errorf("invalid daemon.retention.max_age: %s: %w", d.Retention.MaxAge, err)
	}
	sweep, err := time.ParseDuration(d.Retention.SweepInterval)
	if err != nil {
		return fmt.Errorf("invalid daemon.retention.sweep_interval: %s: %w", d.Retention.SweepInterval, err)
	}
	if maxAge < sweep {
		return fmt.Errorf("daemon.retention.max_age (%s) must be >= sweep_interval (%s)", d.Retention.MaxAge, d.Retention.SweepInterval)
	}

	if d.NATS != nil && d.NATS.Enabled && d.NATS.URL == "" {
		return errors.New("daemon.nats.url is required when daemon.nats.enabled is true")
	}
	return nil
}
