// Package scripting provisions the interpreter that executes document
// snippets and runs them with a bounded, allowlisted environment.
package scripting

import (
	"context"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/errors"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
)

// Runtime is a located, version-checked snippet interpreter.
type Runtime struct {
	Interpreter string // resolved absolute path
	Version     string
}

// Locator finds the configured interpreter on the host.
type Locator struct {
	cfg config.RuntimeConfig
}

// NewLocator creates a locator for the given runtime configuration.
func NewLocator(cfg config.RuntimeConfig) *Locator {
	return &Locator{cfg: cfg}
}

// Locate resolves the interpreter binary and verifies its version satisfies
// the configured minimum.
func (l *Locator) Locate(ctx context.Context) (*Runtime, error) {
	path, err := exec.LookPath(l.cfg.Interpreter)
	if err != nil {
		return nil, errors.RuntimeFailed(l.cfg.Interpreter, err)
	}

	// Some interpreters print their version to stderr.
	cmd := exec.CommandContext(ctx, path, "--version") // #nosec G204 - path comes from exec.LookPath
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, errors.RuntimeFailed(l.cfg.Interpreter, err)
	}

	runtimeVersion := parseRuntimeVersion(string(output))
	if runtimeVersion == "" {
		return nil, errors.ValidationFailed("runtime.interpreter",
			"cannot parse version from "+strconv.Quote(strings.TrimSpace(string(output))))
	}
	if l.cfg.MinVersion != "" && !versionAtLeast(runtimeVersion, l.cfg.MinVersion) {
		return nil, errors.ValidationFailed("runtime.min_version",
			"interpreter version "+runtimeVersion+" is below required "+l.cfg.MinVersion)
	}

	slog.Info("Scripting runtime ready",
		logfields.Path(path), logfields.Version(runtimeVersion))

	return &Runtime{Interpreter: path, Version: runtimeVersion}, nil
}

// VerifyPackages probes that every configured package imports cleanly in the
// located runtime, so a missing dependency fails the run before any snippet
// runs against it.
func (r *Runtime) VerifyPackages(ctx context.Context, packages []string) error {
	var missing []string
	for _, pkg := range packages {
		cmd := exec.CommandContext(ctx, r.Interpreter, "-c", "import "+pkg) // #nosec G204 - interpreter resolved by the locator
		if err := cmd.Run(); err != nil {
			missing = append(missing, pkg)
		}
	}
	if len(missing) > 0 {
		return errors.ValidationFailed("runtime.packages",
			"packages not importable: "+strings.Join(missing, ", "))
	}
	return nil
}

// parseRuntimeVersion extracts a dotted version from interpreter output such
// as "Python 3.12.4".
func parseRuntimeVersion(output string) string {
	versionRegex := regexp.MustCompile(`(\d+(?:\.\d+)+)`)
	matches := versionRegex.FindStringSubmatch(output)
	if len(matches) >= 2 {
		return matches[1]
	}
	return ""
}

// versionAtLeast compares dotted versions component-wise; missing components
// count as zero.
func versionAtLeast(got, minimum string) bool {
	gotParts := strings.Split(got, ".")
	minParts := strings.Split(minimum, ".")
	for i := 0; i < len(gotParts) || i < len(minParts); i++ {
		g, m := 0, 0
		if i < len(gotParts) {
			g, _ = strconv.Atoi(gotParts[i])
		}
		if i < len(minParts) {
			m, _ = strconv.Atoi(minParts[i])
		}
		if g != m {
			return g > m
		}
	}
	return true
}
