package helpers

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// SeedRemote creates a bare repository with the given files committed on
// branch, mimicking a hosted remote. The returned path is usable as a clone
// URL; the hash is the seed commit.
func SeedRemote(t *testing.T, branch string, files map[string]string) (string, plumbing.Hash) {
	t.Helper()

	remoteDir := InitBareRemote(t, branch)

	workDir := t.TempDir()
	work, err := git.PlainInit(workDir, false)
	if err != nil {
		t.Fatalf("init work repo: %v", err)
	}
	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branch))
	if err := work.Storer.SetReference(head); err != nil {
		t.Fatalf("set work HEAD: %v", err)
	}
	if _, err := work.CreateRemote(&gitcfg.RemoteConfig{Name: "origin", URLs: []string{remoteDir}}); err != nil {
		t.Fatalf("create remote: %v", err)
	}

	hash := CommitFiles(t, work, workDir, files, "seed")
	PushBranch(t, work, branch)
	return remoteDir, hash
}

// AddRemoteCommit adds one more commit on branch of a remote created by
// SeedRemote and returns its hash.
func AddRemoteCommit(t *testing.T, remoteDir, branch string, files map[string]string, msg string) plumbing.Hash {
	t.Helper()

	workDir := t.TempDir()
	work, err := git.PlainClone(workDir, false, &git.CloneOptions{
		URL:           remoteDir,
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
	})
	if err != nil {
		t.Fatalf("clone remote for commit: %v", err)
	}

	hash := CommitFiles(t, work, workDir, files, msg)
	PushBranch(t, work, branch)
	return hash
}

// InitBareRemote creates an empty bare repository whose default branch is branch.
func InitBareRemote(t *testing.T, branch string) string {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, true)
	if err != nil {
		t.Fatalf("init bare remote: %v", err)
	}
	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branch))
	if err := repo.Storer.SetReference(head); err != nil {
		t.Fatalf("set remote HEAD: %v", err)
	}
	return dir
}

// CommitFiles writes the given files (slash-separated paths relative to dir)
// into the worktree and commits them in one commit.
func CommitFiles(t *testing.T, repo *git.Repository, dir string, files map[string]string, msg string) plumbing.Hash {
	t.Helper()

	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		full := filepath.Join(dir, filepath.FromSlash(name))
		if mkdirErr := os.MkdirAll(filepath.Dir(full), 0o750); mkdirErr != nil {
			t.Fatalf("mkdir for %s: %v", name, mkdirErr)
		}
		if writeErr := os.WriteFile(full, []byte(files[name]), 0o600); writeErr != nil {
			t.Fatalf("write %s: %v", name, writeErr)
		}
		if _, addErr := wt.Add(name); addErr != nil {
			t.Fatalf("add %s: %v", name, addErr)
		}
	}

	hash, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	return hash
}

// PushBranch pushes branch to the origin remote.
func PushBranch(t *testing.T, repo *git.Repository, branch string) {
	t.Helper()

	refSpec := gitcfg.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch))
	if err := repo.Push(&git.PushOptions{RemoteName: "origin", RefSpecs: []gitcfg.RefSpec{refSpec}}); err != nil {
		t.Fatalf("push %s: %v", branch, err)
	}
}

// RemoteBranchHead resolves refs/heads/branch in the repository at remoteDir.
func RemoteBranchHead(t *testing.T, remoteDir, branch string) plumbing.Hash {
	t.Helper()

	repo, err := git.PlainOpen(remoteDir)
	if err != nil {
		t.Fatalf("open remote: %v", err)
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		t.Fatalf("resolve %s: %v", branch, err)
	}
	return ref.Hash()
}
