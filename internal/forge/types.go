// Package forge normalizes push webhooks from the supported git hosting
// services into one event shape the daemon can act on.
package forge

import (
	"net/http"
	"time"

	"git.home.luguber.info/inful/docpublish/internal/config"
)

// Type re-exports config.ProviderType for convenience within forge package.
type Type = config.ProviderType

const (
	TypeGitHub  Type = config.ProviderGitHub
	TypeGitLab  Type = config.ProviderGitLab
	TypeForgejo Type = config.ProviderForgejo
)

// PushEvent is a provider-neutral push notification.
type PushEvent struct {
	Ref      string    `json:"ref"`    // full ref, e.g. refs/heads/main
	Branch   string    `json:"branch"` // short name; empty for tag pushes
	Commit   string    `json:"commit"` // head commit the branch now points at
	RepoURL  string    `json:"repo_url"`
	RepoName string    `json:"repo_name"` // owner/repo or path with namespace
	Pusher   string    `json:"pusher"`
	Deleted  bool      `json:"deleted"` // the push removed the ref
	Received time.Time `json:"received"`
}

// Provider handles the webhook dialect of one git hosting service.
type Provider interface {
	// GetType returns the provider this implementation speaks for.
	GetType() Type

	// ValidateWebhook checks the request signature against the shared secret.
	ValidateWebhook(payload []byte, signature string, secret string) bool

	// ParsePushEvent extracts the push details from a webhook payload.
	ParsePushEvent(payload []byte) (*PushEvent, error)

	// EventType returns the provider's event name from request headers,
	// e.g. "push" or "ping".
	EventType(header http.Header) string

	// Signature returns the signature (or shared token) the provider put in
	// the request headers.
	Signature(header http.Header) string
}
