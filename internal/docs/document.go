// Package docs discovers and models the source documents a pipeline run
// renders: narrative Markdown with embedded executable snippets that emit
// scene-description artifacts.
package docs

import (
	"fmt"
	"path"
	"strings"

	derrors "git.home.luguber.info/inful/docpublish/internal/docs/errors"
	"git.home.luguber.info/inful/docpublish/internal/frontmatter"
	"git.home.luguber.info/inful/docpublish/internal/markdown"
)

// Document is one discovered source document.
type Document struct {
	Path         string // absolute path in the checkout
	RelativePath string // slash path relative to its docs base
	DocsBase     string // configured docs path this document came from
	Section      string // directory part of RelativePath, "" at root
	Name         string // file name without extension
	Extension    string

	Content  []byte             // raw file content
	Meta     map[string]any     // parsed frontmatter, empty map when absent
	Body     []byte             // content with frontmatter removed
	Snippets []markdown.Snippet // fenced code blocks, runnable and display-only
	// SceneRefs are site-root-relative slash paths of scene-description
	// artifacts this document links to.
	SceneRefs []string
}

// Asset is a non-Markdown file copied into the site unchanged.
type Asset struct {
	Path         string // absolute path in the checkout
	RelativePath string // slash path relative to its docs base
}

// Title returns the document title: frontmatter title when present,
// otherwise the file name.
func (d *Document) Title() string {
	if t, ok := d.Meta["title"].(string); ok && t != "" {
		return t
	}
	return d.Name
}

// Weight returns the frontmatter ordering weight, 0 when unset.
func (d *Document) Weight() int {
	switch w := d.Meta["weight"].(type) {
	case int:
		return w
	case int64:
		return int(w)
	case float64:
		return int(w)
	default:
		return 0
	}
}

// RunnableSnippets returns the snippets that declare an output artifact, in
// document order.
func (d *Document) RunnableSnippets() []markdown.Snippet {
	var runnable []markdown.Snippet
	for _, s := range d.Snippets {
		if s.Runnable() {
			runnable = append(runnable, s)
		}
	}
	return runnable
}

// Artifacts returns the scene artifact paths this document's snippets
// declare, relative to the examples output directory.
func (d *Document) Artifacts() []string {
	var outputs []string
	for _, s := range d.Snippets {
		if s.Runnable() {
			outputs = append(outputs, s.Output)
		}
	}
	return outputs
}

// parse fills Meta, Body, Snippets and SceneRefs from Content.
func (d *Document) parse(opts DiscoveryOptions) error {
	meta, body, err := frontmatter.Parse(d.Content)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", derrors.ErrFrontmatterInvalid, d.RelativePath, err)
	}
	d.Meta = meta
	d.Body = body

	snippets, err := markdown.ExtractSnippets(body, markdown.Options{})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", derrors.ErrSnippetInvalid, d.RelativePath, err)
	}
	d.Snippets = snippets

	links, err := markdown.ExtractLinks(body, markdown.Options{})
	if err != nil {
		return fmt.Errorf("failed to extract links from %s: %w", d.RelativePath, err)
	}
	d.SceneRefs = sceneRefs(d.RelativePath, links, opts.SceneExtensions)

	for _, s := range snippets {
		if s.Runnable() && !validArtifactPath(s.Output) {
			return fmt.Errorf("%w: %s: snippet output %q escapes the examples directory",
				derrors.ErrSnippetInvalid, d.RelativePath, s.Output)
		}
	}
	return nil
}

// sceneRefs filters link destinations down to local scene artifacts and
// resolves them against the document's directory to site-root-relative paths.
func sceneRefs(docRel string, links []markdown.Link, extensions []string) []string {
	seen := make(map[string]struct{})
	var refs []string
	for _, link := range links {
		dest := link.Destination
		if dest == "" || strings.Contains(dest, "://") || strings.HasPrefix(dest, "#") || strings.HasPrefix(dest, "/") {
			continue
		}
		if !hasSceneExtension(dest, extensions) {
			continue
		}
		resolved := path.Clean(path.Join(path.Dir(docRel), dest))
		if strings.HasPrefix(resolved, "..") {
			continue
		}
		if _, ok := seen[resolved]; ok {
			continue
		}
		seen[resolved] = struct{}{}
		refs = append(refs, resolved)
	}
	return refs
}

func hasSceneExtension(dest string, extensions []string) bool {
	lower := strings.ToLower(dest)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// validArtifactPath reports whether a declared snippet output stays inside
// the examples directory.
func validArtifactPath(out string) bool {
	if out == "" || strings.HasPrefix(out, "/") || strings.Contains(out, "\\") {
		return false
	}
	clean := path.Clean(out)
	return clean != ".." && !strings.HasPrefix(clean, "../")
}
