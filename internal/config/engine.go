package config

import "strings"

// EngineMode selects how the site generation toolchain is provided.
type EngineMode string

const (
	// EngineAuto provisions the external toolchain when toolchain.source is
	// configured and otherwise uses the builtin renderer.
	EngineAuto EngineMode = "auto"
	// EngineExternal always downloads and runs the configured toolchain release.
	EngineExternal EngineMode = "external"
	// EngineBuiltin always renders with the embedded generator.
	EngineBuiltin EngineMode = "builtin"
)

// NormalizeEngineMode converts arbitrary user input (case-insensitive) into a typed mode, returning empty string for unknown.
func NormalizeEngineMode(raw string) EngineMode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(EngineAuto):
		return EngineAuto
	case string(EngineExternal):
		return EngineExternal
	case string(EngineBuiltin):
		return EngineBuiltin
	default:
		return ""
	}
}

// ProviderType enumerates supported webhook providers.
type ProviderType string

const (
	ProviderGitHub  ProviderType = "github"
	ProviderGitLab  ProviderType = "gitlab"
	ProviderForgejo ProviderType = "forgejo"
	// ProviderAuto detects the provider from request headers.
	ProviderAuto ProviderType = "auto"
)

// NormalizeProviderType canonicalizes a provider string (case-insensitive) or returns empty if unknown.
func NormalizeProviderType(raw string) ProviderType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ProviderGitHub):
		return ProviderGitHub
	case string(ProviderGitLab):
		return ProviderGitLab
	case string(ProviderForgejo):
		return ProviderForgejo
	case string(ProviderAuto):
		return ProviderAuto
	default:
		return ""
	}
}
