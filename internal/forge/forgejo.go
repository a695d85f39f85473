package forge

import (
	"crypto/hmac"
	"crypto/sha1" // #nosec G505 - legacy signature support
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"net/http"
	"strings"
	"time"
)

// ForgejoProvider implements Provider for Forgejo (Gitea-compatible) webhooks.
type ForgejoProvider struct{}

// NewForgejoProvider creates a Forgejo webhook provider.
func NewForgejoProvider() *ForgejoProvider { return &ForgejoProvider{} }

// GetType returns the provider type.
func (p *ForgejoProvider) GetType() Type { return TypeForgejo }

// ValidateWebhook validates a Forgejo webhook signature. Forgejo sends
// GitHub-compatible sha256=<hash> signatures; X-Gitea-Signature carries the
// same HMAC-SHA256 as bare hex. Older Gitea setups used HMAC-SHA1.
func (p *ForgejoProvider) ValidateWebhook(payload []byte, signature string, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}

	if expected, ok := strings.CutPrefix(signature, "sha256="); ok {
		return hmacMatches(sha256.New, payload, secret, expected)
	}
	if expected, ok := strings.CutPrefix(signature, "sha1="); ok {
		return hmacMatches(sha1.New, payload, secret, expected)
	}

	// Bare hex: current servers use SHA-256, older ones SHA-1.
	return hmacMatches(sha256.New, payload, secret, signature) ||
		hmacMatches(sha1.New, payload, secret, signature)
}

// forgejoPushEvent represents a Forgejo push event payload, which follows the
// GitHub shape.
type forgejoPushEvent struct {
	Ref        string `json:"ref"`
	After      string `json:"after"`
	Repository struct {
		FullName string `json:"full_name"`
		CloneURL string `json:"clone_url"`
	} `json:"repository"`
	Pusher struct {
		UserName string `json:"username"`
		Login    string `json:"login"`
	} `json:"pusher"`
	HeadCommit struct {
		ID string `json:"id"`
	} `json:"head_commit"`
}

// ParsePushEvent parses a Forgejo push event payload.
func (p *ForgejoProvider) ParsePushEvent(payload []byte) (*PushEvent, error) {
	var pushEvent forgejoPushEvent
	if err := json.Unmarshal(payload, &pushEvent); err != nil {
		return nil, fmt.Errorf("invalid push payload: %w", err)
	}
	if pushEvent.Ref == "" {
		return nil, fmt.Errorf("missing ref in push event")
	}

	commit := pushEvent.After
	if commit == "" || commit == zeroHash {
		commit = pushEvent.HeadCommit.ID
	}
	pusher := pushEvent.Pusher.UserName
	if pusher == "" {
		pusher = pushEvent.Pusher.Login
	}

	return &PushEvent{
		Ref:      pushEvent.Ref,
		Branch:   branchFromRef(pushEvent.Ref),
		Commit:   commit,
		RepoURL:  pushEvent.Repository.CloneURL,
		RepoName: pushEvent.Repository.FullName,
		Pusher:   pusher,
		Deleted:  pushEvent.After == zeroHash,
		Received: time.Now(),
	}, nil
}

// EventType returns the Forgejo event name, accepting the Gitea header too.
func (p *ForgejoProvider) EventType(header http.Header) string {
	if event := header.Get("X-Forgejo-Event"); event != "" {
		return event
	}
	return header.Get("X-Gitea-Event")
}

// Signature returns the Forgejo signature, falling back through the
// compatibility headers the server also sends.
func (p *ForgejoProvider) Signature(header http.Header) string {
	for _, name := range []string{"X-Hub-Signature-256", "X-Forgejo-Signature", "X-Gitea-Signature", "X-Hub-Signature"} {
		if sig := header.Get(name); sig != "" {
			return sig
		}
	}
	return ""
}

func hmacMatches(newHash func() hash.Hash, payload []byte, secret, expected string) bool {
	mac := hmac.New(newHash, []byte(secret))
	mac.Write(payload)
	calc := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(calc))
}
