package forge

import (
	"crypto/hmac"
	"crypto/sha1" // #nosec G505 - legacy X-Hub-Signature support
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const zeroHash = "0000000000000000000000000000000000000000"

// GitHubProvider implements Provider for GitHub webhooks.
type GitHubProvider struct{}

// NewGitHubProvider creates a GitHub webhook provider.
func NewGitHubProvider() *GitHubProvider { return &GitHubProvider{} }

// GetType returns the provider type.
func (p *GitHubProvider) GetType() Type { return TypeGitHub }

// ValidateWebhook validates a GitHub webhook signature.
func (p *GitHubProvider) ValidateWebhook(payload []byte, signature string, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}

	// Preferred SHA-256 format: sha256=<hash>
	if strings.HasPrefix(signature, "sha256=") {
		expected := signature[len("sha256="):]
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(payload)
		calc := hex.EncodeToString(mac.Sum(nil))
		return hmac.Equal([]byte(expected), []byte(calc))
	}

	// Fallback legacy SHA-1 format: sha1=<hash>
	if strings.HasPrefix(signature, "sha1=") {
		expected := signature[len("sha1="):]
		mac := hmac.New(sha1.New, []byte(secret))
		mac.Write(payload)
		calc := hex.EncodeToString(mac.Sum(nil))
		return hmac.Equal([]byte(expected), []byte(calc))
	}

	return false
}

// githubPushEvent represents a GitHub push event payload.
type githubPushEvent struct {
	Ref        string `json:"ref"`
	After      string `json:"after"`
	Deleted    bool   `json:"deleted"`
	Repository struct {
		FullName string `json:"full_name"`
		CloneURL string `json:"clone_url"`
	} `json:"repository"`
	Pusher struct {
		Name string `json:"name"`
	} `json:"pusher"`
	HeadCommit struct {
		ID string `json:"id"`
	} `json:"head_commit"`
}

// ParsePushEvent parses a GitHub push event payload.
func (p *GitHubProvider) ParsePushEvent(payload []byte) (*PushEvent, error) {
	var pushEvent githubPushEvent
	if err := json.Unmarshal(payload, &pushEvent); err != nil {
		return nil, fmt.Errorf("invalid push payload: %w", err)
	}
	if pushEvent.Ref == "" {
		return nil, fmt.Errorf("missing ref in push event")
	}

	commit := pushEvent.After
	if commit == "" {
		commit = pushEvent.HeadCommit.ID
	}

	return &PushEvent{
		Ref:      pushEvent.Ref,
		Branch:   branchFromRef(pushEvent.Ref),
		Commit:   commit,
		RepoURL:  pushEvent.Repository.CloneURL,
		RepoName: pushEvent.Repository.FullName,
		Pusher:   pushEvent.Pusher.Name,
		Deleted:  pushEvent.Deleted || pushEvent.After == zeroHash,
		Received: time.Now(),
	}, nil
}

// EventType returns the GitHub event name.
func (p *GitHubProvider) EventType(header http.Header) string {
	return header.Get("X-GitHub-Event")
}

// Signature returns the GitHub signature header, preferring SHA-256.
func (p *GitHubProvider) Signature(header http.Header) string {
	if sig := header.Get("X-Hub-Signature-256"); sig != "" {
		return sig
	}
	return header.Get("X-Hub-Signature")
}

// branchFromRef extracts the branch name from a full ref
// (refs/heads/main -> main). Non-branch refs yield "".
func branchFromRef(ref string) string {
	if rest, ok := strings.CutPrefix(ref, "refs/heads/"); ok {
		return rest
	}
	return ""
}
