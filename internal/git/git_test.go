package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	helpers "git.home.luguber.info/inful/docpublish/internal/testutil/testutils"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

func writeSite(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
			t.Fatalf("mkdir for %s: %v", name, err)
		}
		if err := os.WriteFile(full, []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

// TestCheckoutSourceBranchHead clones the configured branch and reports its
// head commit.
func TestCheckoutSourceBranchHead(t *testing.T) {
	remote, seed := helpers.SeedRemote(t, "main", map[string]string{
		"docs/index.md": "# Home\n",
	})

	dir := filepath.Join(t.TempDir(), "src")
	checkout, err := NewClient().CheckoutSource(context.Background(), dir, CheckoutSpec{URL: remote, Branch: "main"})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if checkout.Commit != seed.String() {
		t.Errorf("expected head %s, got %s", seed, checkout.Commit)
	}
	if checkout.Branch != "main" {
		t.Errorf("expected branch main, got %s", checkout.Branch)
	}
	content, err := os.ReadFile(filepath.Join(dir, "docs", "index.md"))
	if err != nil {
		t.Fatalf("read checked out file: %v", err)
	}
	if !strings.Contains(string(content), "# Home") {
		t.Errorf("unexpected checkout content: %q", content)
	}
}

// TestCheckoutSourcePinnedCommit positions the worktree at the commit the
// trigger reported instead of the (newer) branch head.
func TestCheckoutSourcePinnedCommit(t *testing.T) {
	remote, first := helpers.SeedRemote(t, "main", map[string]string{"docs/index.md": "v1\n"})
	second := helpers.AddRemoteCommit(t, remote, "main", map[string]string{"docs/extra.md": "v2\n"}, "second")

	dir := filepath.Join(t.TempDir(), "src")
	checkout, err := NewClient().CheckoutSource(context.Background(), dir, CheckoutSpec{
		URL:    remote,
		Branch: "main",
		Commit: first.String(),
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if checkout.Commit != first.String() {
		t.Errorf("expected pinned commit %s, got %s", first, checkout.Commit)
	}
	if checkout.Commit == second.String() {
		t.Error("pin resolved to the branch head instead")
	}
	if _, err := os.Stat(filepath.Join(dir, "docs", "extra.md")); !os.IsNotExist(err) {
		t.Errorf("expected extra.md absent at pinned commit, stat err=%v", err)
	}
}

// TestCheckoutSourceUnknownPinFallsBack uses the branch head when the pinned
// commit is not reachable anymore, e.g. after a force push upstream.
func TestCheckoutSourceUnknownPinFallsBack(t *testing.T) {
	remote, seed := helpers.SeedRemote(t, "main", map[string]string{"docs/index.md": "v1\n"})

	dir := filepath.Join(t.TempDir(), "src")
	checkout, err := NewClient().CheckoutSource(context.Background(), dir, CheckoutSpec{
		URL:    remote,
		Branch: "main",
		Commit: strings.Repeat("4", 40),
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if checkout.Commit != seed.String() {
		t.Errorf("expected fallback to branch head %s, got %s", seed, checkout.Commit)
	}
}

func TestCheckoutSourceMissingBranch(t *testing.T) {
	remote, _ := helpers.SeedRemote(t, "main", map[string]string{"docs/index.md": "x\n"})

	_, err := NewClient().CheckoutSource(context.Background(), filepath.Join(t.TempDir(), "src"), CheckoutSpec{
		URL:    remote,
		Branch: "nope",
	})
	if err == nil {
		t.Fatal("expected error for missing branch")
	}
	var missing *BranchMissingError
	if !errors.As(err, &missing) {
		t.Fatalf("expected BranchMissingError, got %T: %v", err, err)
	}
}

func TestCheckoutSourceValidation(t *testing.T) {
	client := NewClient()
	if _, err := client.CheckoutSource(context.Background(), t.TempDir(), CheckoutSpec{Branch: "main"}); err == nil {
		t.Error("expected error for empty URL")
	}
	if _, err := client.CheckoutSource(context.Background(), t.TempDir(), CheckoutSpec{URL: "https://example.com/r.git"}); err == nil {
		t.Error("expected error for empty branch")
	}
}

// TestPublishCreatesHostingBranch publishes onto a branch that does not exist
// yet and verifies it appears on the remote carrying the site content.
func TestPublishCreatesHostingBranch(t *testing.T) {
	remote, _ := helpers.SeedRemote(t, "main", map[string]string{"docs/index.md": "# Docs\n"})

	siteDir := t.TempDir()
	writeSite(t, siteDir, map[string]string{
		"index.html":      "<h1>Docs</h1>",
		"examples/a.mvsj": `{"kind":"scene"}`,
	})

	result, err := NewPublisher().Publish(context.Background(), PublishRequest{
		Remote:      remote,
		Branch:      "gh-pages",
		SiteDir:     siteDir,
		CheckoutDir: filepath.Join(t.TempDir(), "publish"),
		Author:      "docpublish",
		Email:       "docpublish@localhost",
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if result.Skipped {
		t.Fatal("first publish must not be skipped")
	}
	if result.Commit == "" {
		t.Fatal("first publish must report a commit")
	}
	if head := helpers.RemoteBranchHead(t, remote, "gh-pages"); head.String() != result.Commit {
		t.Errorf("remote gh-pages at %s, expected %s", head, result.Commit)
	}

	cloneDir := filepath.Join(t.TempDir(), "verify")
	if _, err := git.PlainClone(cloneDir, false, &git.CloneOptions{
		URL:           remote,
		ReferenceName: plumbing.NewBranchReferenceName("gh-pages"),
		SingleBranch:  true,
	}); err != nil {
		t.Fatalf("verify clone: %v", err)
	}
	helpers.NewFileAssertions(t, cloneDir).
		AssertFileContains("index.html", "<h1>Docs</h1>").
		AssertFileExists("examples/a.mvsj")
}

// TestPublishSkipsWhenUnchanged publishes the same tree twice; the second run
// must create no commit and leave the remote untouched.
func TestPublishSkipsWhenUnchanged(t *testing.T) {
	remote, _ := helpers.SeedRemote(t, "main", map[string]string{"docs/index.md": "x\n"})

	siteDir := t.TempDir()
	writeSite(t, siteDir, map[string]string{"index.html": "<p>stable</p>"})

	publisher := NewPublisher()
	request := PublishRequest{
		Remote:  remote,
		Branch:  "gh-pages",
		SiteDir: siteDir,
		Author:  "docpublish",
		Email:   "docpublish@localhost",
	}

	request.CheckoutDir = filepath.Join(t.TempDir(), "pub1")
	first, err := publisher.Publish(context.Background(), request)
	if err != nil {
		t.Fatalf("first publish: %v", err)
	}

	request.CheckoutDir = filepath.Join(t.TempDir(), "pub2")
	second, err := publisher.Publish(context.Background(), request)
	if err != nil {
		t.Fatalf("second publish: %v", err)
	}
	if !second.Skipped {
		t.Fatal("expected identical tree publish to be skipped")
	}
	if second.Commit != "" {
		t.Errorf("skipped publish must not create a commit, got %s", second.Commit)
	}
	if head := helpers.RemoteBranchHead(t, remote, "gh-pages"); head.String() != first.Commit {
		t.Errorf("remote moved to %s on a skipped publish", head)
	}
}

// TestPublishCommitsOnChange verifies a changed tree extends the hosting
// branch history and drops files removed from the site.
func TestPublishCommitsOnChange(t *testing.T) {
	remote, _ := helpers.SeedRemote(t, "main", map[string]string{"docs/index.md": "x\n"})

	siteDir := t.TempDir()
	writeSite(t, siteDir, map[string]string{
		"index.html": "<p>v1</p>",
		"old.html":   "<p>going away</p>",
	})

	publisher := NewPublisher()
	request := PublishRequest{
		Remote:  remote,
		Branch:  "gh-pages",
		SiteDir: siteDir,
		Author:  "docpublish",
		Email:   "docpublish@localhost",
	}

	request.CheckoutDir = filepath.Join(t.TempDir(), "pub1")
	first, err := publisher.Publish(context.Background(), request)
	if err != nil {
		t.Fatalf("first publish: %v", err)
	}

	if err := os.Remove(filepath.Join(siteDir, "old.html")); err != nil {
		t.Fatalf("remove old.html: %v", err)
	}
	writeSite(t, siteDir, map[string]string{
		"index.html": "<p>v2</p>",
		"new.html":   "<p>added</p>",
	})

	request.CheckoutDir = filepath.Join(t.TempDir(), "pub2")
	second, err := publisher.Publish(context.Background(), request)
	if err != nil {
		t.Fatalf("second publish: %v", err)
	}
	if second.Skipped {
		t.Fatal("changed tree must publish")
	}

	if head := helpers.RemoteBranchHead(t, remote, "gh-pages"); head.String() != second.Commit {
		t.Errorf("remote gh-pages at %s, expected %s", head, second.Commit)
	}

	// History only grows: the new commit extends the previous one.
	bare, err := git.PlainOpen(remote)
	if err != nil {
		t.Fatalf("open remote: %v", err)
	}
	commitObj, err := bare.CommitObject(plumbing.NewHash(second.Commit))
	if err != nil {
		t.Fatalf("load commit: %v", err)
	}
	if len(commitObj.ParentHashes) != 1 || commitObj.ParentHashes[0].String() != first.Commit {
		t.Errorf("expected %s to extend %s, parents=%v", second.Commit, first.Commit, commitObj.ParentHashes)
	}

	cloneDir := filepath.Join(t.TempDir(), "verify")
	if _, err := git.PlainClone(cloneDir, false, &git.CloneOptions{
		URL:           remote,
		ReferenceName: plumbing.NewBranchReferenceName("gh-pages"),
		SingleBranch:  true,
	}); err != nil {
		t.Fatalf("verify clone: %v", err)
	}
	helpers.NewFileAssertions(t, cloneDir).
		AssertFileContains("index.html", "<p>v2</p>").
		AssertFileExists("new.html").
		AssertNoFile("old.html")
}

// TestPublishToEmptyRemote covers the very first publish into a repository
// with no branches at all.
func TestPublishToEmptyRemote(t *testing.T) {
	remote := helpers.InitBareRemote(t, "gh-pages")

	siteDir := t.TempDir()
	writeSite(t, siteDir, map[string]string{"index.html": "<p>first</p>"})

	result, err := NewPublisher().Publish(context.Background(), PublishRequest{
		Remote:      remote,
		Branch:      "gh-pages",
		SiteDir:     siteDir,
		CheckoutDir: filepath.Join(t.TempDir(), "publish"),
		Author:      "docpublish",
		Email:       "docpublish@localhost",
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if result.Skipped {
		t.Fatal("first publish must not be skipped")
	}
	if head := helpers.RemoteBranchHead(t, remote, "gh-pages"); head.String() != result.Commit {
		t.Errorf("remote gh-pages at %s, expected %s", head, result.Commit)
	}
}
