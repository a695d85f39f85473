package site

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docpublish/internal/logfields"
)

// engineStderrTailLimit bounds how much engine stderr is quoted in errors.
const engineStderrTailLimit = 2048

// generateExternal lays out a generator source tree under in.StageDir and
// invokes the provisioned engine binary to render it into in.SiteDir.
func (g *Generator) generateExternal(ctx context.Context, in Inputs) ([]string, error) {
	if in.StageDir == "" {
		return nil, fmt.Errorf("site: external engine requires a stage directory")
	}
	if g.tc.BinaryPath == "" {
		return nil, fmt.Errorf("site: external engine binary not provisioned")
	}

	if err := g.writeSourceTree(in); err != nil {
		return nil, err
	}
	if err := g.writeEngineConfig(in.StageDir); err != nil {
		return nil, err
	}
	if err := g.runEngine(ctx, in.StageDir, in.SiteDir); err != nil {
		return nil, err
	}
	return listRenderedPages(in.SiteDir)
}

// writeSourceTree copies document sources into the engine content directory,
// frontmatter intact.
func (g *Generator) writeSourceTree(in Inputs) error {
	for i := range in.Set.Documents {
		doc := &in.Set.Documents[i]
		dest := filepath.Join(in.StageDir, "content", filepath.FromSlash(doc.RelativePath))
		if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
			return fmt.Errorf("site: failed to stage %s: %w", doc.RelativePath, err)
		}
		if err := os.WriteFile(dest, doc.Content, 0o644); err != nil {
			return fmt.Errorf("site: failed to stage %s: %w", doc.RelativePath, err)
		}
	}
	return nil
}

// writeEngineConfig emits the generator configuration consumed by the
// external engine.
func (g *Generator) writeEngineConfig(stageDir string) error {
	root := map[string]any{
		"title":   g.render.Title,
		"baseURL": g.render.BaseURL,
	}
	if g.render.Description != "" {
		root["description"] = g.render.Description
	}
	if g.tc.Typesetting {
		root["typesetting"] = true
	}
	if len(g.render.Params) > 0 {
		root["params"] = g.render.Params
	}

	data, err := yaml.Marshal(root)
	if err != nil {
		return fmt.Errorf("site: failed to marshal engine config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(stageDir, "sitegen.yaml"), data, 0o644); err != nil {
		return fmt.Errorf("site: failed to write engine config: %w", err)
	}
	return nil
}

// runEngine executes the generator binary against the staged source tree.
func (g *Generator) runEngine(ctx context.Context, stageDir, siteDir string) error {
	cmd := exec.CommandContext(ctx, g.tc.BinaryPath, "build", "--source", stageDir, "--destination", siteDir) // #nosec G204 - binary path comes from the provisioner
	cmd.Dir = stageDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Info("Running site generator",
		logfields.Path(g.tc.BinaryPath),
		logfields.Version(g.tc.Version),
		slog.String("destination", siteDir))

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("site: generator failed: %w%s", err, engineStderrTail(stderr.Bytes()))
	}
	if out := strings.TrimSpace(stdout.String()); out != "" {
		slog.Debug("Site generator output", slog.String("output", out))
	}
	return nil
}

// listRenderedPages walks the generated site for HTML pages.
func listRenderedPages(siteDir string) ([]string, error) {
	var pages []string
	err := filepath.WalkDir(siteDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".html") {
			return nil
		}
		rel, err := filepath.Rel(siteDir, p)
		if err != nil {
			return err
		}
		pages = append(pages, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("site: failed to list rendered pages: %w", err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("site: generator produced no pages in %s", siteDir)
	}
	return pages, nil
}

func engineStderrTail(stderr []byte) string {
	trimmed := strings.TrimSpace(string(stderr))
	if trimmed == "" {
		return ""
	}
	if len(trimmed) > engineStderrTailLimit {
		trimmed = "..." + trimmed[len(trimmed)-engineStderrTailLimit:]
	}
	return ": " + trimmed
}
