// Package site renders a discovered document set into a static site tree,
// either with the builtin renderer or an externally provisioned engine, and
// verifies that scene-description references and generated artifacts agree.
package site

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/docs"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
	"git.home.luguber.info/inful/docpublish/internal/toolchain"
)

// Generator renders one document set into a static site.
type Generator struct {
	source config.SourceConfig
	render config.RenderConfig
	tc     *toolchain.Toolchain
}

// Inputs names the directories a generation run works with.
type Inputs struct {
	Set          *docs.Set
	ArtifactsDir string // scene artifacts emitted by snippet execution
	StageDir     string // scratch dir used to lay out the external engine source tree
	SiteDir      string // final static site output
}

// Result summarizes a completed site generation.
type Result struct {
	Pages     []string // rendered page paths, site-relative
	Artifacts []string // scene artifact paths, site-relative
	Assets    []string // copied asset paths, site-relative
	Manifest  *Manifest
}

// NewGenerator creates a site generator. A nil toolchain or a toolchain with
// the builtin engine selects the builtin renderer.
func NewGenerator(source config.SourceConfig, render config.RenderConfig, tc *toolchain.Toolchain) *Generator {
	return &Generator{source: source, render: render, tc: tc}
}

// examplesDirName is the site directory scene artifacts are published under.
func (g *Generator) examplesDirName() string {
	if g.source.ExamplesDir != "" {
		return g.source.ExamplesDir
	}
	return "examples"
}

func (g *Generator) external() bool {
	return g.tc != nil && g.tc.Engine == config.EngineExternal
}

// Generate renders the document set into in.SiteDir, writes the site
// manifest and verifies scene references against generated artifacts.
func (g *Generator) Generate(ctx context.Context, in Inputs) (*Result, error) {
	if in.Set == nil || len(in.Set.Documents) == 0 {
		return nil, fmt.Errorf("site: nothing to render")
	}

	var (
		pages []string
		err   error
	)
	if g.external() {
		pages, err = g.generateExternal(ctx, in)
	} else {
		pages, err = g.generateBuiltin(ctx, in)
	}
	if err != nil {
		return nil, err
	}

	artifacts, err := g.copyArtifacts(in)
	if err != nil {
		return nil, err
	}
	assets, err := g.copyAssets(in)
	if err != nil {
		return nil, err
	}

	manifest, err := g.buildManifest(in.Set, pages, artifacts, assets)
	if err != nil {
		return nil, fmt.Errorf("site: failed to build manifest: %w", err)
	}
	if err := manifest.Write(in.SiteDir); err != nil {
		return nil, err
	}

	if err := VerifyScenes(in.SiteDir, g.examplesDirName(), g.render.SceneExtensions); err != nil {
		return nil, err
	}

	slog.Info("Site generated",
		slog.Int("pages", len(pages)),
		slog.Int("artifacts", len(artifacts)),
		slog.Int("assets", len(assets)))

	return &Result{Pages: pages, Artifacts: artifacts, Assets: assets, Manifest: manifest}, nil
}

// copyArtifacts copies snippet-emitted scene artifacts into the published
// examples directory. A missing artifacts directory means no snippets ran.
func (g *Generator) copyArtifacts(in Inputs) ([]string, error) {
	if in.ArtifactsDir == "" {
		return nil, nil
	}
	if _, err := os.Stat(in.ArtifactsDir); os.IsNotExist(err) {
		return nil, nil
	}

	destBase := filepath.Join(in.SiteDir, g.examplesDirName())
	var copied []string
	err := filepath.Walk(in.ArtifactsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(in.ArtifactsDir, path)
		if err != nil {
			return err
		}
		if err := copyFile(path, filepath.Join(destBase, rel)); err != nil {
			return err
		}
		sitePath := filepath.ToSlash(filepath.Join(g.examplesDirName(), rel))
		copied = append(copied, sitePath)
		slog.Debug("Copied scene artifact", logfields.Artifact(sitePath))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("site: failed to copy artifacts: %w", err)
	}
	return copied, nil
}

// copyAssets copies non-Markdown files from the docs tree into the site,
// preserving their relative layout so page links keep resolving.
func (g *Generator) copyAssets(in Inputs) ([]string, error) {
	var copied []string
	for _, asset := range in.Set.Assets {
		dest := filepath.Join(in.SiteDir, filepath.FromSlash(asset.RelativePath))
		if err := copyFile(asset.Path, dest); err != nil {
			return nil, fmt.Errorf("site: failed to copy asset %s: %w", asset.RelativePath, err)
		}
		copied = append(copied, asset.RelativePath)
	}
	return copied, nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// pageOutputPath maps a source document to its rendered page path.
func pageOutputPath(doc *docs.Document) string {
	return strings.TrimSuffix(doc.RelativePath, doc.Extension) + ".html"
}
