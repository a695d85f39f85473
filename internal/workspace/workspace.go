package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/docpublish/internal/logfields"
)

const runDirPrefix = "docpublish-run-"

// Manager hands out per-run workspace directories under a common base.
type Manager struct {
	baseDir string
	keep    bool // if true, Cleanup leaves run directories in place
}

// NewManager creates a workspace manager rooted at baseDir.
// An empty baseDir falls back to the system temp directory.
func NewManager(baseDir string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{baseDir: baseDir}
}

// NewKeepingManager creates a manager whose run directories survive Cleanup.
// The daemon uses this so reports stay inspectable until retention sweeps
// them.
func NewKeepingManager(baseDir string) *Manager {
	m := NewManager(baseDir)
	m.keep = true
	return m
}

// BaseDir returns the directory run workspaces are created under.
func (m *Manager) BaseDir() string { return m.baseDir }

// RunDirs is the directory layout of a single pipeline run.
type RunDirs struct {
	root string
	keep bool
}

// CreateRun creates the workspace directory tree for a run.
func (m *Manager) CreateRun(runID string) (*RunDirs, error) {
	if runID == "" {
		return nil, fmt.Errorf("workspace: run id must not be empty")
	}

	root := filepath.Join(m.baseDir, runDirPrefix+runID)
	for _, dir := range []string{root, filepath.Join(root, "source"), filepath.Join(root, "toolchain"), filepath.Join(root, "artifacts"), filepath.Join(root, "site-src"), filepath.Join(root, "site"), filepath.Join(root, "publish")} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create workspace directory: %w", err)
		}
	}

	slog.Info("Created run workspace", logfields.RunID(runID), logfields.Path(root))
	return &RunDirs{root: root, keep: m.keep}, nil
}

// Root returns the run workspace root.
func (d *RunDirs) Root() string { return d.root }

// Source returns the source checkout directory.
func (d *RunDirs) Source() string { return filepath.Join(d.root, "source") }

// Toolchain returns the toolchain provisioning directory.
func (d *RunDirs) Toolchain() string { return filepath.Join(d.root, "toolchain") }

// Artifacts returns the directory snippet execution writes scene artifacts to.
func (d *RunDirs) Artifacts() string { return filepath.Join(d.root, "artifacts") }

// SiteStage returns the scratch directory the external engine source tree is
// laid out in.
func (d *RunDirs) SiteStage() string { return filepath.Join(d.root, "site-src") }

// Site returns the generated site output directory.
func (d *RunDirs) Site() string { return filepath.Join(d.root, "site") }

// PublishCheckout returns the directory the hosting branch is checked out in.
func (d *RunDirs) PublishCheckout() string { return filepath.Join(d.root, "publish") }

// ReportPath returns the location of the persisted run report.
func (d *RunDirs) ReportPath() string { return filepath.Join(d.root, "run-report.json") }

// Cleanup removes the run workspace unless the manager keeps finished runs.
func (d *RunDirs) Cleanup() error {
	if d == nil || d.root == "" {
		return nil
	}
	if d.keep {
		slog.Debug("Keeping run workspace", logfields.Path(d.root))
		return nil
	}
	if err := os.RemoveAll(d.root); err != nil {
		return fmt.Errorf("failed to cleanup workspace: %w", err)
	}
	slog.Info("Cleaned up run workspace", logfields.Path(d.root))
	d.root = ""
	return nil
}

// SweepExpired removes run workspaces older than maxAge and returns how many
// were deleted. Entries that disappear concurrently are not an error.
func (m *Manager) SweepExpired(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to scan workspace base: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), runDirPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(m.baseDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			slog.Warn("Failed to remove expired run workspace", logfields.Path(path), logfields.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		slog.Info("Swept expired run workspaces", slog.Int("removed", removed))
	}
	return removed, nil
}
