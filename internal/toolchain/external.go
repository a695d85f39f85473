package toolchain

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"git.home.luguber.info/inful/docpublish/internal/errors"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
	"git.home.luguber.info/inful/docpublish/internal/retry"
)

const (
	generatorBinary = "sitegen"
	// provisionedSentinel marks a cache entry whose archive unpacked fully.
	provisionedSentinel = ".provisioned"
	// TokenEnvVar optionally authenticates release downloads from a private
	// index, sent as a bearer token.
	TokenEnvVar = "DOCPUBLISH_TOOLCHAIN_TOKEN" // #nosec G101 - env var name, not a credential
)

// releaseIndex is the document served at <source>/index.json.
type releaseIndex struct {
	Latest   string   `json:"latest"`
	Versions []string `json:"versions"`
}

func (p *Provisioner) provisionExternal(ctx context.Context, dir string) (*Toolchain, error) {
	if p.cfg.Source == "" {
		return nil, errors.ToolchainFailed("provision", fmt.Errorf("external engine requires toolchain.source"))
	}

	engineVersion, err := p.resolveVersion(ctx)
	if err != nil {
		return nil, err
	}

	installRoot := p.cfg.CacheDir
	if installRoot == "" {
		installRoot = dir
	}
	installDir := filepath.Join(installRoot, engineVersion)

	if !p.isProvisioned(installDir) {
		if err := p.fetchRelease(ctx, engineVersion, installDir); err != nil {
			return nil, err
		}
	} else {
		slog.Debug("Engine version already provisioned", logfields.Version(engineVersion), logfields.Path(installDir))
	}

	binary, err := findGeneratorBinary(installDir)
	if err != nil {
		return nil, errors.ToolchainFailed("locate engine binary", err)
	}
	if err := verifyBinary(ctx, binary, engineVersion); err != nil {
		return nil, err
	}

	typesetting := false
	if p.cfg.Typesetting {
		if err := p.installTypesetting(ctx, engineVersion, installDir); err != nil {
			return nil, err
		}
		typesetting = true
	}

	slog.Info("Site generation engine ready",
		logfields.Version(engineVersion), logfields.Path(binary))

	return &Toolchain{
		Engine:      p.cfg.Engine,
		Version:     engineVersion,
		BinaryPath:  binary,
		Dir:         installDir,
		Typesetting: typesetting,
	}, nil
}

// resolveVersion returns the pinned version, or the latest one published in
// the release index when no pin is configured.
func (p *Provisioner) resolveVersion(ctx context.Context) (string, error) {
	if p.cfg.Version != "" {
		return strings.TrimPrefix(p.cfg.Version, "v"), nil
	}

	indexURL, err := url.JoinPath(p.cfg.Source, "index.json")
	if err != nil {
		return "", errors.ToolchainFailed("resolve latest version", err)
	}

	body, err := p.get(ctx, indexURL)
	if err != nil {
		return "", err
	}
	defer body.Close()

	var index releaseIndex
	if err := json.NewDecoder(body).Decode(&index); err != nil {
		return "", errors.ToolchainFailed("parse release index", err)
	}
	if index.Latest == "" {
		return "", errors.ToolchainFailed("resolve latest version", fmt.Errorf("release index at %s has no latest version", indexURL))
	}

	latest := strings.TrimPrefix(index.Latest, "v")
	slog.Debug("Resolved latest engine version", logfields.Version(latest))
	return latest, nil
}

// fetchRelease downloads and unpacks the release archive for engineVersion
// into installDir.
func (p *Provisioner) fetchRelease(ctx context.Context, engineVersion, installDir string) error {
	archiveURL, err := p.archiveURL(archiveName(generatorBinary, engineVersion))
	if err != nil {
		return errors.ToolchainFailed("build download URL", err)
	}

	slog.Info("Downloading site generation engine",
		logfields.Version(engineVersion), logfields.URL(archiveURL))

	if err := os.MkdirAll(installDir, 0o750); err != nil {
		return errors.ToolchainFailed("create install directory", err)
	}

	archivePath := filepath.Join(installDir, "release.tar.gz")
	if err := p.downloadFile(ctx, archiveURL, archivePath); err != nil {
		return err
	}
	defer os.Remove(archivePath)

	if err := unpackArchive(archivePath, installDir); err != nil {
		return errors.ToolchainFailed("unpack release archive", err)
	}
	if err := os.WriteFile(filepath.Join(installDir, provisionedSentinel), []byte(engineVersion+"\n"), 0o600); err != nil {
		return errors.ToolchainFailed("mark install complete", err)
	}
	return nil
}

// installTypesetting fetches the typesetting add-on archive into the install
// directory. The add-on is skipped entirely unless enabled in configuration.
func (p *Provisioner) installTypesetting(ctx context.Context, engineVersion, installDir string) error {
	addonDir := filepath.Join(installDir, "typesetting")
	if _, err := os.Stat(addonDir); err == nil {
		slog.Debug("Typesetting add-on already installed", logfields.Path(addonDir))
		return nil
	}

	addonURL, err := p.archiveURL(archiveName("typeset", engineVersion))
	if err != nil {
		return errors.ToolchainFailed("build typesetting URL", err)
	}

	slog.Info("Installing typesetting add-on", logfields.URL(addonURL))

	if err := os.MkdirAll(addonDir, 0o750); err != nil {
		return errors.ToolchainFailed("create typesetting directory", err)
	}
	archivePath := filepath.Join(addonDir, "typeset.tar.gz")
	if err := p.downloadFile(ctx, addonURL, archivePath); err != nil {
		return err
	}
	defer os.Remove(archivePath)

	if err := unpackArchive(archivePath, addonDir); err != nil {
		return errors.ToolchainFailed("unpack typesetting archive", err)
	}
	return nil
}

func (p *Provisioner) isProvisioned(installDir string) bool {
	if _, err := os.Stat(filepath.Join(installDir, provisionedSentinel)); err != nil {
		return false
	}
	_, err := findGeneratorBinary(installDir)
	return err == nil
}

// archiveURL joins a release file name onto the mirror (when configured) or
// the primary source.
func (p *Provisioner) archiveURL(name string) (string, error) {
	base := p.cfg.Source
	if p.cfg.MirrorURL != "" {
		base = p.cfg.MirrorURL
	}
	return url.JoinPath(base, name)
}

func archiveName(component, engineVersion string) string {
	return fmt.Sprintf("%s-%s-%s-%s.tar.gz", component, engineVersion, runtime.GOOS, runtime.GOARCH)
}

// statusError reports a non-200 response from the release server.
type statusError struct {
	status string
	code   int
}

func (e *statusError) Error() string { return "unexpected status " + e.status }

// retryableDownload accepts transport errors plus throttling and server-side
// statuses. Client errors such as 404 signal a bad URL or version and fail
// immediately.
func retryableDownload(err error) bool {
	var se *statusError
	if stdErrors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	var ue *url.Error
	return stdErrors.As(err, &ue)
}

// get issues an authenticated GET and returns the body for 200 responses.
// Transient failures are retried under the provisioner's backoff policy.
func (p *Provisioner) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.DownloadError(rawURL, err)
	}
	if token := os.Getenv(TokenEnvVar); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	var body io.ReadCloser
	attempt := func() error {
		resp, err := p.client.Do(req)
		if err != nil {
			return errors.DownloadError(rawURL, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return errors.DownloadError(rawURL, &statusError{status: resp.Status, code: resp.StatusCode})
		}
		body = resp.Body
		return nil
	}
	if err := retry.Do(ctx, p.backoff, retryableDownload, attempt); err != nil {
		return nil, err
	}
	return body, nil
}

func (p *Provisioner) downloadFile(ctx context.Context, rawURL, dest string) error {
	body, err := p.get(ctx, rawURL)
	if err != nil {
		return err
	}
	defer body.Close()

	out, err := os.Create(dest) // #nosec G304 - dest is derived from the install directory
	if err != nil {
		return errors.ToolchainFailed("create download file", err)
	}
	if _, err := io.Copy(out, body); err != nil {
		out.Close()
		return errors.DownloadError(rawURL, err)
	}
	return out.Close()
}

// findGeneratorBinary locates the engine binary under installDir. Archives
// may carry it at the root or nested under bin/ or a version directory.
func findGeneratorBinary(installDir string) (string, error) {
	for _, candidate := range []string{
		filepath.Join(installDir, "bin", generatorBinary),
		filepath.Join(installDir, generatorBinary),
	} {
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate, nil
		}
	}

	var found string
	err := filepath.WalkDir(installDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == generatorBinary {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", fmt.Errorf("binary %q not found under %s", generatorBinary, installDir)
	}
	return found, nil
}

// verifyBinary runs the engine's version command and checks the reported
// version matches what was installed.
func verifyBinary(ctx context.Context, binary, want string) error {
	if info, err := os.Stat(binary); err == nil && info.Mode().Perm()&0o111 == 0 {
		if err := os.Chmod(binary, info.Mode().Perm()|0o755); err != nil {
			return errors.ToolchainFailed("make engine binary executable", err)
		}
	}

	cmd := exec.CommandContext(ctx, binary, "version") // #nosec G204 - binary path comes from the install directory
	output, err := cmd.Output()
	if err != nil {
		return errors.ToolchainFailed("run engine version check", err)
	}

	got := parseGeneratorVersion(string(output))
	if got == "" {
		return errors.ToolchainFailed("verify engine", fmt.Errorf("cannot parse version from %q", strings.TrimSpace(string(output))))
	}
	if got != want {
		return errors.ToolchainFailed("verify engine", fmt.Errorf("binary reports version %s, expected %s", got, want))
	}
	return nil
}

// parseGeneratorVersion extracts the semantic version from version command
// output such as "sitegen v1.2.3 linux/amd64".
func parseGeneratorVersion(output string) string {
	versionRegex := regexp.MustCompile(`v?(\d+\.\d+\.\d+)`)
	matches := versionRegex.FindStringSubmatch(output)
	if len(matches) >= 2 {
		return matches[1]
	}
	return ""
}
