package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"git.home.luguber.info/inful/docpublish/internal/config"
)

func writeConfigFile(t *testing.T, path, sourceURL, publishBranch string) {
	t.Helper()
	content := fmt.Sprintf(`version: "1.0"
source:
  url: %s
publish:
  branch: %s
daemon: {}
`, sourceURL, publishBranch)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
}

func TestConfigWatcherReloadsOnWrite(t *testing.T) {
	d := newTestDaemon(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfigFile(t, path, "https://github.com/acme/docs.git", "pages")

	cw, err := NewConfigWatcher(path, d)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	cw.debounceTime = 50 * time.Millisecond
	if err := cw.Start(t.Context()); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	t.Cleanup(func() { _ = cw.Stop(context.Background()) })

	writeConfigFile(t, path, "https://github.com/acme/other-docs.git", "pages")

	waitFor(t, 10*time.Second, func() bool {
		cfg := d.GetConfig()
		return cfg != nil && cfg.Source.URL == "https://github.com/acme/other-docs.git"
	})
}

func TestConfigWatcherPerformReload(t *testing.T) {
	d := newTestDaemon(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfigFile(t, path, "https://github.com/acme/docs.git", "pages")

	cw, err := NewConfigWatcher(path, d)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	t.Cleanup(func() { _ = cw.Stop(context.Background()) })

	if err := cw.performReload(t.Context()); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if got := d.GetConfig().Source.URL; got != "https://github.com/acme/docs.git" {
		t.Errorf("expected reloaded source URL, got %s", got)
	}
}

func TestConfigWatcherPerformReloadKeepsConfigOnInvalidFile(t *testing.T) {
	d := newTestDaemon(t)
	oldCfg := d.GetConfig()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	// Publish branch matching the source branch fails validation.
	writeConfigFile(t, path, "https://github.com/acme/docs.git", "main")

	cw, err := NewConfigWatcher(path, d)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	t.Cleanup(func() { _ = cw.Stop(context.Background()) })

	if err := cw.performReload(t.Context()); err == nil {
		t.Error("expected reload to fail for invalid config")
	}
	if d.GetConfig() != oldCfg {
		t.Error("expected daemon to keep previous config after failed reload")
	}
}

func TestValidateConfigChangeRejectsRemovedDaemonSection(t *testing.T) {
	d := newTestDaemon(t)
	cw, err := NewConfigWatcher("config.yaml", d)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	t.Cleanup(func() { _ = cw.Stop(context.Background()) })

	if err := cw.validateConfigChange(&config.Config{}); err == nil {
		t.Error("expected error when daemon section is removed")
	}
}

func TestValidateConfigChangeAllowsPortChange(t *testing.T) {
	d := newTestDaemon(t)
	cw, err := NewConfigWatcher("config.yaml", d)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	t.Cleanup(func() { _ = cw.Stop(context.Background()) })

	// Port changes only warn; the new config still applies to the pipeline.
	newCfg := daemonTestConfig(t)
	newCfg.Daemon.HTTP.WebhookPort = 9091
	newCfg.Daemon.HTTP.AdminPort = 9092
	if err := cw.validateConfigChange(newCfg); err != nil {
		t.Errorf("expected port change to be allowed, got %v", err)
	}
}
