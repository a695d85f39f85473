// Package pipeline executes publish runs as an ordered sequence of stages:
// checkout, setup_generator, setup_runtime, render, publish. Stages fail
// fast; the first fatal or canceled error aborts the run. Every run leaves a
// RunReport regardless of outcome.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/docs"
	"git.home.luguber.info/inful/docpublish/internal/errors"
	"git.home.luguber.info/inful/docpublish/internal/git"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
	"git.home.luguber.info/inful/docpublish/internal/metrics"
	"git.home.luguber.info/inful/docpublish/internal/scripting"
	"git.home.luguber.info/inful/docpublish/internal/site"
	"git.home.luguber.info/inful/docpublish/internal/toolchain"
	"git.home.luguber.info/inful/docpublish/internal/workspace"
)

// Trigger identifies what started a run.
type Trigger string

const (
	TriggerManual Trigger = "manual"
	TriggerPush   Trigger = "push"
)

// Request describes one requested publish run.
type Request struct {
	Trigger Trigger
	Ref     string // full ref from the webhook, empty for manual runs
	Commit  string // optional commit pin; empty means branch head
}

// State carries everything stages produce and consume during one run.
type State struct {
	RunID   string
	Config  *config.Config
	Dirs    *workspace.RunDirs
	Request Request
	Report  *RunReport

	recorder metrics.Recorder

	Checkout      *git.Checkout
	Toolchain     *toolchain.Toolchain
	Runtime       *scripting.Runtime
	Set           *docs.Set
	SiteResult    *site.Result
	PublishResult *git.PublishResult
}

// Pipeline runs the publish sequence for one configured site.
type Pipeline struct {
	cfg        *config.Config
	workspaces *workspace.Manager
	gitClient  *git.Client
	publisher  *git.Publisher
	recorder   metrics.Recorder
}

// New creates a pipeline for the given configuration and workspace manager.
func New(cfg *config.Config, workspaces *workspace.Manager) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		workspaces: workspaces,
		gitClient:  git.NewClient(),
		publisher:  git.NewPublisher(),
		recorder:   metrics.NoopRecorder{},
	}
}

// SetRecorder injects a metrics recorder. Returns the pipeline for chaining.
func (p *Pipeline) SetRecorder(r metrics.Recorder) *Pipeline {
	if r == nil {
		p.recorder = metrics.NoopRecorder{}
		return p
	}
	p.recorder = r
	return p
}

// NewRunID mints a fresh run identifier.
func NewRunID() string { return "run-" + uuid.NewString() }

// Run executes one publish run and returns its report. The report is non-nil
// even when the run failed.
func (p *Pipeline) Run(ctx context.Context, req Request) (*RunReport, error) {
	return p.RunWithID(ctx, NewRunID(), req)
}

// RunWithID executes one publish run under a caller-chosen run ID. The
// daemon uses this so queued runs keep the ID they were enqueued with.
func (p *Pipeline) RunWithID(ctx context.Context, runID string, req Request) (*RunReport, error) {
	if req.Trigger == "" {
		req.Trigger = TriggerManual
	}

	report := newRunReport(runID, req.Trigger)
	report.Repository = p.cfg.Source.URL
	report.Branch = p.cfg.Source.Branch
	report.PublishBranch = p.cfg.Publish.Branch

	slog.Info("Run starting",
		logfields.RunID(runID),
		logfields.Trigger(string(req.Trigger)),
		logfields.Repository(p.cfg.Source.URL),
		logfields.Branch(p.cfg.Source.Branch))

	dirs, err := p.workspaces.CreateRun(runID)
	if err != nil {
		werr := errors.WorkspaceError("create run workspace", err)
		report.Errors = append(report.Errors, werr)
		report.finish()
		report.deriveOutcome()
		p.recordRun(report)
		return report, werr
	}

	s := &State{
		RunID:    runID,
		Config:   p.cfg,
		Dirs:     dirs,
		Request:  req,
		Report:   report,
		recorder: p.recorder,
	}

	runErr := runStages(ctx, s, []namedStage{
		{StageCheckout, p.stageCheckout},
		{StageSetupGenerator, p.stageSetupGenerator},
		{StageSetupRuntime, p.stageSetupRuntime},
		{StageRender, p.stageRender},
		{StagePublish, p.stagePublish},
	})

	report.finish()
	report.deriveOutcome()

	// The report is written before cleanup so keeping managers leave it
	// inspectable inside the run directory.
	if err := report.Persist(dirs.ReportPath()); err != nil {
		slog.Warn("Failed to persist run report", logfields.RunID(runID), logfields.Error(err))
	}
	if err := dirs.Cleanup(); err != nil {
		report.Warnings = append(report.Warnings, err)
		slog.Warn("Failed to clean up run workspace", logfields.RunID(runID), logfields.Error(err))
	}

	p.recordRun(report)
	slog.Info("Run finished",
		logfields.RunID(runID),
		logfields.RunStatus(report.Outcome),
		logfields.DurationMS(float64(report.Duration().Milliseconds())))
	return report, runErr
}

func (p *Pipeline) recordRun(report *RunReport) {
	p.recorder.ObserveRunDuration(report.Duration())
	p.recorder.IncRunOutcome(report.Outcome)
}

// stageCheckout clones the source branch, honoring a commit pin from the
// trigger when one is present.
func (p *Pipeline) stageCheckout(ctx context.Context, s *State) error {
	checkout, err := p.gitClient.CheckoutSource(ctx, s.Dirs.Source(), git.CheckoutSpec{
		URL:    p.cfg.Source.URL,
		Branch: p.cfg.Source.Branch,
		Commit: s.Request.Commit,
		Auth:   p.cfg.Source.Auth,
		Depth:  p.cfg.Source.ShallowDepth,
	})
	if err != nil {
		return err
	}
	s.Checkout = checkout
	s.Report.Commit = checkout.Commit
	return nil
}

// stageSetupGenerator provisions the configured site generation engine.
func (p *Pipeline) stageSetupGenerator(ctx context.Context, s *State) error {
	tc, err := toolchain.NewProvisioner(p.cfg.Toolchain).Provision(ctx, s.Dirs.Toolchain())
	if err != nil {
		return err
	}
	s.Toolchain = tc
	s.Report.Engine = string(tc.Engine)
	s.Report.EngineVersion = tc.Version
	return nil
}

// stageSetupRuntime locates the snippet interpreter and verifies its version
// and configured packages.
func (p *Pipeline) stageSetupRuntime(ctx context.Context, s *State) error {
	rt, err := scripting.NewLocator(p.cfg.Runtime).Locate(ctx)
	if err != nil {
		return err
	}
	if len(p.cfg.Runtime.Packages) > 0 {
		if err := rt.VerifyPackages(ctx, p.cfg.Runtime.Packages); err != nil {
			return err
		}
	}
	s.Runtime = rt
	s.Report.RuntimeVersion = rt.Version
	return nil
}

// stageRender discovers documents, executes their runnable snippets and
// renders the static site with manifest and scene verification.
func (p *Pipeline) stageRender(ctx context.Context, s *State) error {
	discovery := docs.NewDiscovery(p.cfg.Source, docs.DiscoveryOptions{
		SceneExtensions: p.cfg.Render.SceneExtensions,
	})
	set, err := discovery.Discover(s.Checkout.Path)
	if err != nil {
		return err
	}
	s.Set = set
	s.Report.Documents = len(set.Documents)

	if err := p.executeSnippets(ctx, s); err != nil {
		return err
	}

	generator := site.NewGenerator(p.cfg.Source, p.cfg.Render, s.Toolchain)
	result, err := generator.Generate(ctx, site.Inputs{
		Set:          set,
		ArtifactsDir: s.Dirs.Artifacts(),
		StageDir:     s.Dirs.SiteStage(),
		SiteDir:      s.Dirs.Site(),
	})
	if err != nil {
		return err
	}
	s.SiteResult = result
	s.Report.PagesRendered = len(result.Pages)
	s.Report.ArtifactsWritten = result.Artifacts
	return nil
}

// executeSnippets runs every runnable snippet with the artifacts directory as
// working directory, then checks the declared artifact actually appeared.
func (p *Pipeline) executeSnippets(ctx context.Context, s *State) error {
	executor := scripting.NewExecutor(s.Runtime, p.cfg.Runtime)
	artifactsDir := s.Dirs.Artifacts()

	for _, document := range s.Set.Documents {
		for _, snippet := range document.RunnableSnippets() {
			if err := ctx.Err(); err != nil {
				return err
			}
			artifactPath := filepath.Join(artifactsDir, filepath.FromSlash(snippet.Output))
			if err := os.MkdirAll(filepath.Dir(artifactPath), 0o750); err != nil {
				return errors.RenderFailed(document.RelativePath, err)
			}

			result, err := executor.RunSnippet(ctx, snippet.Body, artifactsDir)
			if err != nil {
				return errors.RenderFailed(document.RelativePath,
					fmt.Errorf("snippet at line %d: %w", snippet.Line, err))
			}
			s.Report.SnippetsExecuted++

			if _, err := os.Stat(artifactPath); err != nil {
				return errors.RenderFailed(document.RelativePath,
					fmt.Errorf("snippet at line %d did not write declared artifact %q", snippet.Line, snippet.Output))
			}
			slog.Debug("Snippet executed",
				logfields.Document(document.RelativePath),
				logfields.Artifact(snippet.Output),
				logfields.DurationMS(float64(result.Duration.Milliseconds())))
		}
	}
	return nil
}

// stagePublish pushes the rendered site onto the hosting branch. An
// up-to-date hosting branch skips the push without failing the run.
func (p *Pipeline) stagePublish(ctx context.Context, s *State) error {
	result, err := p.publisher.Publish(ctx, git.PublishRequest{
		Remote:      p.cfg.Publish.Remote,
		Branch:      p.cfg.Publish.Branch,
		Auth:        p.cfg.Publish.Auth,
		SiteDir:     s.Dirs.Site(),
		CheckoutDir: s.Dirs.PublishCheckout(),
		Message:     fmt.Sprintf("Publish documentation from %s", shortCommit(s.Checkout.Commit)),
		Author:      p.cfg.Publish.CommitAuthor,
		Email:       p.cfg.Publish.CommitEmail,
	})
	if err != nil {
		return err
	}
	s.PublishResult = result

	if result.Skipped {
		s.Report.PublishSkipped = true
		s.recorder.IncPublishResult("skipped")
		slog.Info("Publish skipped, hosting branch already up to date",
			logfields.RunID(s.RunID), logfields.Branch(result.Branch))
		return nil
	}
	s.Report.Published = true
	s.Report.PublishedCommit = result.Commit
	s.recorder.IncPublishResult("pushed")
	return nil
}
