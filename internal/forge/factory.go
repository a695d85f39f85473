package forge

import (
	"fmt"
	"net/http"
	"strings"

	"git.home.luguber.info/inful/docpublish/internal/config"
)

// ForProvider returns the Provider implementation for a configured type.
func ForProvider(providerType Type) (Provider, error) {
	switch providerType {
	case TypeGitHub:
		return NewGitHubProvider(), nil
	case TypeGitLab:
		return NewGitLabProvider(), nil
	case TypeForgejo:
		return NewForgejoProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported webhook provider: %s", providerType)
	}
}

// Detect determines the sending provider from request headers. Forgejo sends
// GitHub-compatible headers alongside its own, so its markers must be checked
// before GitHub's.
func Detect(r *http.Request) (Provider, error) {
	userAgent := strings.ToLower(r.UserAgent())

	switch {
	case r.Header.Get("X-Forgejo-Event") != "" || r.Header.Get("X-Gitea-Event") != "" ||
		strings.Contains(userAgent, "forgejo") || strings.Contains(userAgent, "gitea"):
		return NewForgejoProvider(), nil
	case r.Header.Get("X-Gitlab-Event") != "" || strings.Contains(userAgent, "gitlab"):
		return NewGitLabProvider(), nil
	case r.Header.Get("X-GitHub-Event") != "" || strings.Contains(userAgent, "github"):
		return NewGitHubProvider(), nil
	default:
		return nil, fmt.Errorf("cannot determine webhook provider from request headers")
	}
}

// Resolve picks the provider for an incoming request: the configured one, or
// header detection when the configuration says auto.
func Resolve(providerType Type, r *http.Request) (Provider, error) {
	if providerType == config.ProviderAuto || providerType == "" {
		return Detect(r)
	}
	return ForProvider(providerType)
}
