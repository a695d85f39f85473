package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"git.home.luguber.info/inful/docpublish/internal/config"
	helpers "git.home.luguber.info/inful/docpublish/internal/testutil/testutils"
	"git.home.luguber.info/inful/docpublish/internal/workspace"
)

// fakeInterpreter writes a shell stub that reports a version and otherwise
// executes its argument as a shell script, standing in for python3.
func fakeInterpreter(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fakepy")
	script := "#!/bin/sh\nif [ \"$1\" = \"--version\" ]; then\n  echo \"FakePy 3.11.2\"\n  exit 0\nfi\nexec sh \"$@\"\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil { // #nosec G306 - interpreter stub must be executable
		t.Fatalf("write fake interpreter: %v", err)
	}
	return path
}

func testConfig(t *testing.T, remote string) *config.Config {
	t.Helper()
	cfg := &config.Config{Version: "1.0"}
	cfg.Source.URL = remote
	cfg.Source.Branch = "main"
	cfg.Source.DocsPaths = []string{"docs"}
	cfg.Runtime.Interpreter = fakeInterpreter(t)
	cfg.Render.Title = "Test Docs"
	if err := config.NewDefaultApplier().ApplyDefaults(cfg); err != nil {
		t.Fatalf("apply defaults: %v", err)
	}
	return cfg
}

// sourceFixture is a small docs repository: a landing page and a guide whose
// snippet emits one scene artifact that the guide also links.
func sourceFixture() map[string]string {
	return map[string]string{
		"docs/index.md": "---\ntitle: Home\nweight: 1\n---\n\n# Welcome\n\nSee the [guide](guide.md).\n",
		"docs/guide.md": "---\ntitle: Viewer Guide\nweight: 2\n---\n\n# Viewer Guide\n\n" +
			"```python {output=basic.mvsj}\nprintf '{\"snapshot\":1}' > basic.mvsj\n```\n\n" +
			"Open the [basic scene](examples/basic.mvsj).\n",
		"README.md": "# Repo\n",
	}
}

func clonePublished(t *testing.T, remote, branch string) string {
	t.Helper()
	dir := t.TempDir()
	_, err := gogit.PlainClone(dir, false, &gogit.CloneOptions{
		URL:           remote,
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
	})
	if err != nil {
		t.Fatalf("clone published branch: %v", err)
	}
	return dir
}

func TestRunPublishesSite(t *testing.T) {
	remote, seed := helpers.SeedRemote(t, "main", sourceFixture())
	cfg := testConfig(t, remote)
	wsBase := t.TempDir()
	rec := newCountingRecorder()

	pl := New(cfg, workspace.NewManager(wsBase)).SetRecorder(rec)
	report, err := pl.Run(t.Context(), Request{Trigger: TriggerManual})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if report.OutcomeT != OutcomeSuccess {
		t.Fatalf("outcome = %q, errors = %v", report.Outcome, report.Errors)
	}
	if report.Commit != seed.String() {
		t.Errorf("report commit = %s, want %s", report.Commit, seed)
	}
	if report.Documents != 2 {
		t.Errorf("documents = %d, want 2", report.Documents)
	}
	if report.SnippetsExecuted != 1 {
		t.Errorf("snippets executed = %d, want 1", report.SnippetsExecuted)
	}
	if report.PagesRendered != 2 {
		t.Errorf("pages rendered = %d, want 2", report.PagesRendered)
	}
	if len(report.ArtifactsWritten) != 1 || report.ArtifactsWritten[0] != "examples/basic.mvsj" {
		t.Errorf("artifacts = %v", report.ArtifactsWritten)
	}
	if !report.Published || report.PublishedCommit == "" {
		t.Errorf("expected publish, got published=%v commit=%q", report.Published, report.PublishedCommit)
	}
	if report.Engine != "builtin" {
		t.Errorf("engine = %q", report.Engine)
	}
	if report.RuntimeVersion != "3.11.2" {
		t.Errorf("runtime version = %q", report.RuntimeVersion)
	}

	published := clonePublished(t, remote, "gh-pages")
	for _, name := range []string{"index.html", "guide.html", "site-manifest.json", filepath.Join("examples", "basic.mvsj"), filepath.Join("assets", "style.css")} {
		if _, err := os.Stat(filepath.Join(published, name)); err != nil {
			t.Errorf("published site missing %s: %v", name, err)
		}
	}
	scene, err := os.ReadFile(filepath.Join(published, "examples", "basic.mvsj")) // #nosec G304 -- test reads its own fixture output
	if err != nil || string(scene) != `{"snapshot":1}` {
		t.Errorf("published scene = %q, err=%v", scene, err)
	}
	page, err := os.ReadFile(filepath.Join(published, "guide.html")) // #nosec G304 -- test reads its own fixture output
	if err != nil {
		t.Fatalf("read guide.html: %v", err)
	}
	if !strings.Contains(string(page), "examples/basic.mvsj") {
		t.Error("guide.html does not reference the scene artifact")
	}

	// The default manager removes run workspaces after the run.
	entries, err := os.ReadDir(wsBase)
	if err != nil {
		t.Fatalf("read workspace base: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("workspace not cleaned up: %v", entries)
	}
	if rec.runOutcomes["success"] != 1 {
		t.Errorf("recorder outcomes = %v", rec.runOutcomes)
	}
}

// TestRunRepublishSkips reruns an unchanged source and expects the publish
// stage to detect the identical site tree and push nothing.
func TestRunRepublishSkips(t *testing.T) {
	remote, _ := helpers.SeedRemote(t, "main", sourceFixture())
	cfg := testConfig(t, remote)
	pl := New(cfg, workspace.NewManager(t.TempDir()))

	first, err := pl.Run(t.Context(), Request{Trigger: TriggerPush})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if !first.Published {
		t.Fatalf("first run did not publish: %+v", first)
	}
	headAfterFirst := helpers.RemoteBranchHead(t, remote, "gh-pages")

	second, err := pl.Run(t.Context(), Request{Trigger: TriggerPush})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.OutcomeT != OutcomeSuccess {
		t.Fatalf("second run outcome = %q, errors = %v", second.Outcome, second.Errors)
	}
	if second.Published || !second.PublishSkipped {
		t.Errorf("expected skipped republish, got published=%v skipped=%v", second.Published, second.PublishSkipped)
	}
	if head := helpers.RemoteBranchHead(t, remote, "gh-pages"); head != headAfterFirst {
		t.Errorf("hosting branch advanced on unchanged source: %s -> %s", headAfterFirst, head)
	}
}

func TestRunFailingSnippetFailsRun(t *testing.T) {
	remote, _ := helpers.SeedRemote(t, "main", map[string]string{
		"docs/index.md": "---\ntitle: Home\n---\n\n# Welcome\n\n" +
			"```python {output=broken.mvsj}\necho nope >&2\nexit 1\n```\n",
	})
	cfg := testConfig(t, remote)
	wsBase := t.TempDir()

	pl := New(cfg, workspace.NewKeepingManager(wsBase))
	report, err := pl.RunWithID(t.Context(), "itest-fail", Request{Trigger: TriggerManual})
	if err == nil {
		t.Fatal("expected run error")
	}
	if report.OutcomeT != OutcomeFailed {
		t.Errorf("outcome = %q", report.Outcome)
	}
	if report.StageErrorKinds[StageRender] != string(StageErrorFatal) {
		t.Errorf("render kind = %q", report.StageErrorKinds[StageRender])
	}
	if report.Published || report.PublishSkipped {
		t.Error("failed run must not reach publish")
	}

	// No hosting branch may appear for a failed run.
	remoteRepo, err := gogit.PlainOpen(remote)
	if err != nil {
		t.Fatalf("open remote: %v", err)
	}
	if _, err := remoteRepo.Reference(plumbing.NewBranchReferenceName("gh-pages"), true); err == nil {
		t.Error("hosting branch exists after failed run")
	}

	// The keeping manager leaves the persisted report in place.
	reportPath := filepath.Join(wsBase, "docpublish-run-itest-fail", "run-report.json")
	raw, err := os.ReadFile(reportPath) // #nosec G304 -- test reads its own output
	if err != nil {
		t.Fatalf("read persisted report: %v", err)
	}
	if !strings.Contains(string(raw), `"outcome": "failed"`) {
		t.Errorf("persisted report lacks failed outcome: %s", raw)
	}
}

func TestRunCanceledContext(t *testing.T) {
	remote, _ := helpers.SeedRemote(t, "main", sourceFixture())
	cfg := testConfig(t, remote)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	pl := New(cfg, workspace.NewManager(t.TempDir()))
	report, err := pl.Run(ctx, Request{Trigger: TriggerManual})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if report.OutcomeT != OutcomeCanceled {
		t.Errorf("outcome = %q", report.Outcome)
	}
	if report.StageErrorKinds[StageCheckout] != string(StageErrorCanceled) {
		t.Errorf("checkout kind = %q", report.StageErrorKinds[StageCheckout])
	}
}
