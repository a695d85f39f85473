package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
)

// PublishRequest describes one publication of a rendered site tree.
type PublishRequest struct {
	Remote      string
	Branch      string
	Auth        *config.AuthConfig
	SiteDir     string // rendered tree to publish
	CheckoutDir string // scratch directory for the hosting branch checkout
	Message     string
	Author      string
	Email       string
}

// PublishResult reports what the publisher did.
type PublishResult struct {
	// Skipped is true when the rendered tree matched the hosting branch
	// exactly, so no commit was created and nothing was pushed.
	Skipped bool
	Commit  string
	Branch  string
}

// Publisher pushes rendered site trees onto the hosting branch.
//
// The hosting branch only ever gains commits; content replacement happens in
// the worktree, never by rewriting history. A run whose tree is identical to
// the branch head publishes nothing. Pushes are never forced: if another
// publisher advanced the branch during this run, the push is rejected as
// non-fast-forward and the run fails without touching the published state.
type Publisher struct{}

// NewPublisher creates a site publisher.
func NewPublisher() *Publisher { return &Publisher{} }

// Publish checks out the hosting branch, replaces its content with the
// rendered tree and pushes a single commit. A missing hosting branch is
// created on first publish.
func (p *Publisher) Publish(ctx context.Context, req PublishRequest) (*PublishResult, error) {
	if req.Remote == "" {
		return nil, fmt.Errorf("publish: remote must not be empty")
	}
	if req.Branch == "" {
		return nil, fmt.Errorf("publish: branch must not be empty")
	}

	auth, err := CreateAuth(req.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to setup authentication: %w", err)
	}

	repository, err := p.checkoutHostingBranch(ctx, req, auth)
	if err != nil {
		return nil, err
	}

	wt, err := repository.Worktree()
	if err != nil {
		return nil, fmt.Errorf("worktree: %w", err)
	}

	if err := replaceWorktree(req.CheckoutDir, req.SiteDir); err != nil {
		return nil, fmt.Errorf("failed to stage rendered tree: %w", err)
	}

	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return nil, fmt.Errorf("git add: %w", err)
	}

	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("git status: %w", err)
	}
	if status.IsClean() {
		slog.Info("Rendered tree matches hosting branch, skipping publish",
			logfields.Branch(req.Branch))
		return &PublishResult{Skipped: true, Branch: req.Branch}, nil
	}

	message := req.Message
	if message == "" {
		message = "Publish site"
	}
	commit, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  req.Author,
			Email: req.Email,
			When:  time.Now(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("git commit: %w", err)
	}

	refSpec := gitcfg.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", req.Branch, req.Branch))
	err = repository.PushContext(ctx, &git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []gitcfg.RefSpec{refSpec},
		Auth:       auth,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil, classifyRemoteError("push", req.Remote, req.Branch, err)
	}

	slog.Info("Published site",
		logfields.Branch(req.Branch),
		logfields.Commit(commit.String()[:8]),
		logfields.URL(req.Remote))

	return &PublishResult{Commit: commit.String(), Branch: req.Branch}, nil
}

// checkoutHostingBranch clones the hosting branch, or initializes a fresh
// repository pointing at it when the branch does not exist yet.
func (p *Publisher) checkoutHostingBranch(ctx context.Context, req PublishRequest, auth transport.AuthMethod) (*git.Repository, error) {
	cloneOptions := &git.CloneOptions{
		URL:           req.Remote,
		ReferenceName: plumbing.NewBranchReferenceName(req.Branch),
		SingleBranch:  true,
		Auth:          auth,
	}
	repository, err := git.PlainCloneContext(ctx, req.CheckoutDir, false, cloneOptions)
	if err == nil {
		return repository, nil
	}

	if !isMissingBranch(err, req, auth) {
		return nil, classifyRemoteError("clone", req.Remote, req.Branch, err)
	}

	// First publish: start the hosting branch from scratch.
	slog.Info("Hosting branch missing, initializing",
		logfields.Branch(req.Branch), logfields.URL(req.Remote))

	// A failed clone can leave partial state behind.
	if err := clearDir(req.CheckoutDir); err != nil {
		return nil, err
	}
	repository, err = git.PlainInit(req.CheckoutDir, false)
	if err != nil {
		return nil, fmt.Errorf("git init: %w", err)
	}
	if _, err := repository.CreateRemote(&gitcfg.RemoteConfig{
		Name: "origin",
		URLs: []string{req.Remote},
	}); err != nil {
		return nil, fmt.Errorf("git remote add: %w", err)
	}
	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(req.Branch))
	if err := repository.Storer.SetReference(head); err != nil {
		return nil, fmt.Errorf("git symbolic-ref: %w", err)
	}
	return repository, nil
}

// isMissingBranch reports whether a clone failure means the hosting branch
// (or the whole ref namespace of an empty repository) does not exist yet.
func isMissingBranch(err error, req PublishRequest, _ transport.AuthMethod) bool {
	if errors.Is(err, transport.ErrEmptyRemoteRepository) {
		return true
	}
	var missing *BranchMissingError
	return errors.As(classifyRemoteError("clone", req.Remote, req.Branch, err), &missing)
}

func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(dir, 0o750)
		}
		return err
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func replaceWorktree(checkoutDir, siteDir string) error {
	entries, err := os.ReadDir(checkoutDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.Name() == ".git" {
			continue
		}
		if err := os.RemoveAll(filepath.Join(checkoutDir, entry.Name())); err != nil {
			return err
		}
	}
	return copyTree(checkoutDir, siteDir)
}

// copyTree copies the contents of src into dst, preserving file modes.
func copyTree(dst, src string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(target, path)
	})
}

func copyFile(dst, src string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
