package git

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
)

// CheckoutSpec describes which revision of the source repository to fetch.
type CheckoutSpec struct {
	URL    string
	Branch string
	// Commit optionally pins the exact revision reported by the trigger.
	// When empty, or when the commit is no longer reachable on the branch,
	// the branch head is used.
	Commit string
	Auth   *config.AuthConfig
	Depth  int
}

// Checkout is a completed source checkout.
type Checkout struct {
	Path   string
	Branch string
	Commit string
}

// Client performs source checkouts into run workspaces.
type Client struct{}

// NewClient creates a git client.
func NewClient() *Client { return &Client{} }

// CheckoutSource clones the configured branch into dir and positions the
// worktree at the requested commit when one is given. The directory must be
// empty; every run starts from a fresh clone.
func (c *Client) CheckoutSource(ctx context.Context, dir string, spec CheckoutSpec) (*Checkout, error) {
	if spec.URL == "" {
		return nil, fmt.Errorf("checkout: source URL must not be empty")
	}
	if spec.Branch == "" {
		return nil, fmt.Errorf("checkout: branch must not be empty")
	}

	slog.Debug("Cloning source repository",
		logfields.URL(spec.URL), logfields.Branch(spec.Branch), logfields.Path(dir))

	cloneOptions := &git.CloneOptions{
		URL:           spec.URL,
		ReferenceName: plumbing.NewBranchReferenceName(spec.Branch),
		SingleBranch:  true,
	}
	if spec.Depth > 0 && spec.Commit == "" {
		// A pinned commit may sit below the shallow horizon; only shallow-clone
		// when following the branch head.
		cloneOptions.Depth = spec.Depth
	}
	if spec.Auth != nil {
		auth, err := CreateAuth(spec.Auth)
		if err != nil {
			return nil, fmt.Errorf("failed to setup authentication: %w", err)
		}
		cloneOptions.Auth = auth
	}

	repository, err := git.PlainCloneContext(ctx, dir, false, cloneOptions)
	if err != nil {
		return nil, classifyRemoteError("clone", spec.URL, spec.Branch, err)
	}

	if spec.Commit != "" {
		if err := checkoutCommit(repository, spec.Commit); err != nil {
			// The trigger's head commit can vanish after a force push; fall back
			// to the branch head rather than failing the run.
			slog.Warn("Pinned commit not reachable, using branch head",
				logfields.Commit(spec.Commit), logfields.Error(err))
		}
	}

	head, err := repository.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve checkout head: %w", err)
	}

	slog.Info("Source checkout complete",
		logfields.URL(spec.URL),
		logfields.Branch(spec.Branch),
		logfields.Commit(head.Hash().String()[:8]),
		logfields.Path(dir))

	return &Checkout{Path: dir, Branch: spec.Branch, Commit: head.Hash().String()}, nil
}

func checkoutCommit(repository *git.Repository, commit string) error {
	hash := plumbing.NewHash(commit)
	if _, err := repository.CommitObject(hash); err != nil {
		return fmt.Errorf("commit %s: %w", commit, err)
	}
	wt, err := repository.Worktree()
	if err != nil {
		return err
	}
	return wt.Checkout(&git.CheckoutOptions{Hash: hash})
}

// EnsureDirUsable verifies dir exists and is a directory. Checkout targets
// are created by the workspace manager ahead of time.
func EnsureDirUsable(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("checkout directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("checkout target is not a directory: %s", dir)
	}
	return nil
}
