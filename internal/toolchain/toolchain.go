// Package toolchain provisions the site generation engine for a run.
//
// Two engines exist: the builtin renderer compiled into this binary, and the
// external standalone distribution of it ("sitegen"), fetched as a versioned
// release archive so sites can pin a renderer independent of the daemon
// deployment. Engine selection is resolved at configuration load time; this
// package fails rather than falling back to the other engine.
package toolchain

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/errors"
	"git.home.luguber.info/inful/docpublish/internal/retry"
	"git.home.luguber.info/inful/docpublish/internal/version"
)

// Toolchain is a provisioned engine ready for rendering.
type Toolchain struct {
	Engine      config.EngineMode
	Version     string
	BinaryPath  string // external engine binary; empty for builtin
	Dir         string // installation root
	Typesetting bool   // typesetting add-on present
}

// Provisioner installs the configured engine for a run.
type Provisioner struct {
	cfg     config.ToolchainConfig
	client  *http.Client
	backoff retry.Policy
}

// NewProvisioner creates a provisioner for the given toolchain configuration.
func NewProvisioner(cfg config.ToolchainConfig) *Provisioner {
	return &Provisioner{
		cfg:     cfg,
		client:  &http.Client{Timeout: 5 * time.Minute},
		backoff: retry.DefaultPolicy(),
	}
}

// Provision installs the engine and returns its description. dir is the run
// workspace directory reserved for the toolchain; external installs land in
// the configured cache so identical versions are downloaded once.
func (p *Provisioner) Provision(ctx context.Context, dir string) (*Toolchain, error) {
	switch p.cfg.Engine {
	case config.EngineBuiltin:
		return p.provisionBuiltin(dir)
	case config.EngineExternal:
		return p.provisionExternal(ctx, dir)
	default:
		return nil, errors.ToolchainFailed("provision", fmt.Errorf("engine not resolved: %q", p.cfg.Engine))
	}
}

// provisionBuiltin prepares the embedded renderer. There is nothing to fetch;
// the engine version is this binary's version.
func (p *Provisioner) provisionBuiltin(dir string) (*Toolchain, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.ToolchainFailed("prepare builtin engine directory", err)
	}
	return &Toolchain{
		Engine:  config.EngineBuiltin,
		Version: version.Version,
		Dir:     dir,
	}, nil
}
