package forge

import (
	"crypto/hmac"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// GitLabProvider implements Provider for GitLab webhooks.
type GitLabProvider struct{}

// NewGitLabProvider creates a GitLab webhook provider.
func NewGitLabProvider() *GitLabProvider { return &GitLabProvider{} }

// GetType returns the provider type.
func (p *GitLabProvider) GetType() Type { return TypeGitLab }

// ValidateWebhook validates a GitLab webhook token. GitLab sends the shared
// secret verbatim in X-Gitlab-Token rather than an HMAC of the payload.
func (p *GitLabProvider) ValidateWebhook(_ []byte, signature string, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	return hmac.Equal([]byte(signature), []byte(secret))
}

// gitlabPushEvent represents a GitLab push event payload.
type gitlabPushEvent struct {
	ObjectKind  string `json:"object_kind"`
	Ref         string `json:"ref"`
	After       string `json:"after"`
	CheckoutSHA string `json:"checkout_sha"`
	UserName    string `json:"user_name"`
	Project     struct {
		PathWithNamespace string `json:"path_with_namespace"`
		GitHTTPURL        string `json:"git_http_url"`
	} `json:"project"`
}

// ParsePushEvent parses a GitLab push event payload.
func (p *GitLabProvider) ParsePushEvent(payload []byte) (*PushEvent, error) {
	var pushEvent gitlabPushEvent
	if err := json.Unmarshal(payload, &pushEvent); err != nil {
		return nil, fmt.Errorf("invalid push payload: %w", err)
	}
	if pushEvent.Ref == "" {
		return nil, fmt.Errorf("missing ref in push event")
	}

	// checkout_sha is null for branch deletions; after carries the zero hash.
	commit := pushEvent.CheckoutSHA
	if commit == "" && pushEvent.After != zeroHash {
		commit = pushEvent.After
	}

	return &PushEvent{
		Ref:      pushEvent.Ref,
		Branch:   branchFromRef(pushEvent.Ref),
		Commit:   commit,
		RepoURL:  pushEvent.Project.GitHTTPURL,
		RepoName: pushEvent.Project.PathWithNamespace,
		Pusher:   pushEvent.UserName,
		Deleted:  pushEvent.After == zeroHash,
		Received: time.Now(),
	}, nil
}

// EventType returns the GitLab event name, normalized to the short form
// ("Push Hook" -> "push").
func (p *GitLabProvider) EventType(header http.Header) string {
	switch header.Get("X-Gitlab-Event") {
	case "Push Hook", "push":
		return "push"
	case "Tag Push Hook", "tag_push":
		return "tag_push"
	case "":
		return ""
	default:
		return header.Get("X-Gitlab-Event")
	}
}

// Signature returns the GitLab webhook token header.
func (p *GitLabProvider) Signature(header http.Header) string {
	return header.Get("X-Gitlab-Token")
}
