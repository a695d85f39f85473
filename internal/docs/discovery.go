package docs

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"git.home.luguber.info/inful/docpublish/internal/config"
	derrors "git.home.luguber.info/inful/docpublish/internal/docs/errors"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
)

// DiscoveryOptions tunes document discovery.
type DiscoveryOptions struct {
	// SceneExtensions are the artifact extensions treated as scene references
	// when scanning document links.
	SceneExtensions []string
}

// Set is the result of discovering one checkout: documents, assets and a
// content fingerprint over the whole collection.
type Set struct {
	Documents []Document
	Assets    []Asset
}

// Discovery finds and parses documents in a source checkout.
type Discovery struct {
	source  config.SourceConfig
	options DiscoveryOptions
}

// NewDiscovery creates a document discovery instance for a source
// configuration.
func NewDiscovery(source config.SourceConfig, opts DiscoveryOptions) *Discovery {
	if len(opts.SceneExtensions) == 0 {
		opts.SceneExtensions = []string{".mvsj"}
	}
	return &Discovery{source: source, options: opts}
}

// Discover walks the configured docs paths under checkoutDir and returns all
// parsed documents and copyable assets. A docs path missing from the checkout
// is a warning; discovering zero documents overall is an error.
func (d *Discovery) Discover(checkoutDir string) (*Set, error) {
	paths := d.source.DocsPaths
	if len(paths) == 0 {
		paths = []string{"."}
	}

	set := &Set{}
	for _, docsPath := range paths {
		fullDocsPath := filepath.Join(checkoutDir, docsPath)

		if _, err := os.Stat(fullDocsPath); os.IsNotExist(err) {
			slog.Warn("Documentation path not found",
				logfields.Path(docsPath),
				slog.String("full_path", fullDocsPath))
			continue
		}

		if err := d.walkDocsDirectory(fullDocsPath, docsPath, set); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", derrors.ErrDocsDirWalkFailed, docsPath, err)
		}
	}

	if len(set.Documents) == 0 {
		return nil, fmt.Errorf("%w in %v", derrors.ErrNoDocsFound, paths)
	}

	sortSet(set)

	slog.Info("Documentation discovered",
		slog.Int("documents", len(set.Documents)),
		slog.Int("assets", len(set.Assets)))
	return set, nil
}

// walkDocsDirectory recursively walks one documentation directory.
func (d *Discovery) walkDocsDirectory(docsPath, docsBase string, set *Set) error {
	return filepath.Walk(docsPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// Skip hidden files and directories
		if strings.HasPrefix(info.Name(), ".") && info.Name() != "." {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if info.IsDir() {
			// The examples directory holds snippet sources, not documents
			if d.source.ExamplesDir != "" && path == filepath.Join(docsPath, d.source.ExamplesDir) {
				return filepath.SkipDir
			}
			return nil
		}

		relPath, err := filepath.Rel(docsPath, path)
		if err != nil {
			return fmt.Errorf("%w: %w", derrors.ErrInvalidRelativePath, err)
		}
		relPath = filepath.ToSlash(relPath)

		switch {
		case isMarkdownFile(path):
			doc, err := d.loadDocument(path, relPath, docsBase)
			if err != nil {
				return err
			}
			set.Documents = append(set.Documents, *doc)
			slog.Debug("Discovered document",
				logfields.Document(relPath),
				slog.String("section", doc.Section),
				slog.Int("snippets", len(doc.Snippets)))
		case isAsset(path):
			set.Assets = append(set.Assets, Asset{Path: path, RelativePath: relPath})
			slog.Debug("Discovered asset", logfields.Path(relPath))
		}
		return nil
	})
}

// loadDocument reads and parses one Markdown source file.
func (d *Discovery) loadDocument(path, relPath, docsBase string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", derrors.ErrFileReadFailed, path, err)
	}

	section := filepath.ToSlash(filepath.Dir(relPath))
	if section == "." {
		section = ""
	}

	name := filepath.Base(relPath)
	ext := filepath.Ext(name)

	doc := &Document{
		Path:         path,
		RelativePath: relPath,
		DocsBase:     docsBase,
		Section:      section,
		Name:         strings.TrimSuffix(name, ext),
		Extension:    ext,
		Content:      content,
	}
	if err := doc.parse(d.options); err != nil {
		return nil, err
	}
	return doc, nil
}

// sortSet orders documents and assets by relative path so downstream
// rendering and hashing are deterministic regardless of filesystem order.
func sortSet(set *Set) {
	sort.Slice(set.Documents, func(i, j int) bool {
		return set.Documents[i].RelativePath < set.Documents[j].RelativePath
	})
	sort.Slice(set.Assets, func(i, j int) bool {
		return set.Assets[i].RelativePath < set.Assets[j].RelativePath
	})
}

// isMarkdownFile checks if a file is a markdown file.
func isMarkdownFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".md" || ext == ".markdown" || ext == ".mdown" || ext == ".mkd"
}

// isAsset checks if a file is an asset (image, etc.).
func isAsset(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	assetExtensions := []string{
		// Images
		".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".bmp", ".ico",
		// Documents
		".pdf",
		// Video
		".mp4", ".webm", ".ogv",
		// Data and checked-in scene files
		".csv", ".json", ".mvsj", ".css",
	}
	for _, assetExt := range assetExtensions {
		if ext == assetExt {
			return true
		}
	}
	return false
}
