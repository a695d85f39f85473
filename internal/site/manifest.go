package site

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"git.home.luguber.info/inful/docpublish/internal/docs"
)

// ManifestName is the manifest file written at the site root.
const ManifestName = "site-manifest.json"

// Manifest maps source documents to their rendered pages, content
// fingerprints and scene artifacts. It contains no timestamps so rendering
// an unchanged source tree reproduces it byte for byte, which is what lets
// the publish stage skip no-change pushes.
type Manifest struct {
	Title      string         `json:"title"`
	Generator  string         `json:"generator"`
	SourceHash string         `json:"source_hash"`
	Pages      []ManifestPage `json:"pages"`
	Artifacts  []string       `json:"artifacts,omitempty"`
	Assets     []string       `json:"assets,omitempty"`
}

// ManifestPage is one source document in the manifest.
type ManifestPage struct {
	ID          string   `json:"id"`
	Source      string   `json:"source"`
	Page        string   `json:"page,omitempty"` // rendered page path when the layout mirrors the source tree
	Title       string   `json:"title"`
	Fingerprint string   `json:"fingerprint"`
	Scenes      []string `json:"scenes,omitempty"`
}

// buildManifest assembles the manifest for a rendered set.
func (g *Generator) buildManifest(set *docs.Set, pages, artifacts, assets []string) (*Manifest, error) {
	sourceHash, err := set.SetHash()
	if err != nil {
		return nil, err
	}

	generator := "builtin"
	if g.external() {
		generator = "sitegen/" + g.tc.Version
	}

	manifest := &Manifest{
		Title:      g.render.Title,
		Generator:  generator,
		SourceHash: sourceHash,
		Artifacts:  append([]string(nil), artifacts...),
		Assets:     append([]string(nil), assets...),
	}
	sort.Strings(manifest.Artifacts)
	sort.Strings(manifest.Assets)

	rendered := make(map[string]struct{}, len(pages))
	for _, p := range pages {
		rendered[p] = struct{}{}
	}

	for i := range set.Documents {
		doc := &set.Documents[i]
		fingerprint, err := doc.Fingerprint()
		if err != nil {
			return nil, fmt.Errorf("fingerprint for %s: %w", doc.RelativePath, err)
		}
		entry := ManifestPage{
			ID:          Slug(strings.TrimSuffix(doc.RelativePath, doc.Extension)),
			Source:      doc.RelativePath,
			Title:       doc.Title(),
			Fingerprint: fingerprint,
			Scenes:      append([]string(nil), doc.SceneRefs...),
		}
		if _, ok := rendered[pageOutputPath(doc)]; ok {
			entry.Page = pageOutputPath(doc)
		}
		manifest.Pages = append(manifest.Pages, entry)
	}
	sort.Slice(manifest.Pages, func(i, j int) bool {
		return manifest.Pages[i].Source < manifest.Pages[j].Source
	})
	return manifest, nil
}

// Write serializes the manifest to the site root.
func (m *Manifest) Write(siteDir string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("site: failed to marshal manifest: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(filepath.Join(siteDir, ManifestName), data, 0o644); err != nil {
		return fmt.Errorf("site: failed to write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a manifest from a site directory.
func ReadManifest(siteDir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(siteDir, ManifestName))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("site: failed to parse manifest: %w", err)
	}
	return &m, nil
}
