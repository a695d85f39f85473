package site

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"git.home.luguber.info/inful/docpublish/internal/docs"
	"git.home.luguber.info/inful/docpublish/internal/markdown"
)

// navPage is one document entry in the sidebar navigation.
type navPage struct {
	Title string
	Href  string // site-root-relative page path
}

// navSection groups nav pages by their source section directory.
type navSection struct {
	ID    string // slugged anchor id
	Title string // display heading, empty for the root section
	Pages []navPage
}

// pageData feeds the builtin page template.
type pageData struct {
	SiteTitle   string
	Description string
	Title       string
	Root        string // relative prefix back to the site root, e.g. "../"
	Nav         []navSection
	Content     template.HTML
}

// generateBuiltin renders every document with the embedded renderer.
func (g *Generator) generateBuiltin(ctx context.Context, in Inputs) ([]string, error) {
	tmpl, err := template.New("page").Parse(pageTemplate)
	if err != nil {
		return nil, fmt.Errorf("site: invalid page template: %w", err)
	}

	nav := buildNav(in.Set.Documents)

	var pages []string
	for i := range in.Set.Documents {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		doc := &in.Set.Documents[i]
		out := pageOutputPath(doc)
		rendered, err := g.renderPage(tmpl, nav, doc, out)
		if err != nil {
			return nil, fmt.Errorf("site: failed to render %s: %w", doc.RelativePath, err)
		}
		if err := writeSiteFile(in.SiteDir, out, rendered); err != nil {
			return nil, err
		}
		pages = append(pages, out)
	}

	if !containsPage(pages, "index.html") {
		rendered, err := g.renderIndex(tmpl, nav)
		if err != nil {
			return nil, fmt.Errorf("site: failed to render index: %w", err)
		}
		if err := writeSiteFile(in.SiteDir, "index.html", rendered); err != nil {
			return nil, err
		}
		pages = append(pages, "index.html")
	}

	if err := writeSiteFile(in.SiteDir, "assets/style.css", []byte(styleCSS)); err != nil {
		return nil, err
	}

	sort.Strings(pages)
	return pages, nil
}

// renderPage converts one document body to HTML and wraps it in the page
// template. Links to sibling Markdown sources are rewritten to their
// rendered page paths; scene and asset links pass through untouched.
func (g *Generator) renderPage(tmpl *template.Template, nav []navSection, doc *docs.Document, out string) ([]byte, error) {
	fragment, err := markdown.RenderHTML(doc.Body)
	if err != nil {
		return nil, err
	}
	fragment, err = rewriteDocLinks(fragment)
	if err != nil {
		return nil, err
	}

	data := pageData{
		SiteTitle:   g.render.Title,
		Description: g.render.Description,
		Title:       doc.Title(),
		Root:        rootPrefix(out),
		Nav:         nav,
		Content:     template.HTML(fragment),
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// renderIndex synthesizes a root index page when the docs tree has none.
func (g *Generator) renderIndex(tmpl *template.Template, nav []navSection) ([]byte, error) {
	var content bytes.Buffer
	fmt.Fprintf(&content, "<h1>%s</h1>\n", template.HTMLEscapeString(g.render.Title))
	if g.render.Description != "" {
		fmt.Fprintf(&content, "<p>%s</p>\n", template.HTMLEscapeString(g.render.Description))
	}
	for _, section := range nav {
		if section.Title != "" {
			fmt.Fprintf(&content, "<h2 id=%q>%s</h2>\n", section.ID, template.HTMLEscapeString(section.Title))
		}
		content.WriteString("<ul>\n")
		for _, page := range section.Pages {
			fmt.Fprintf(&content, "<li><a href=%q>%s</a></li>\n", page.Href, template.HTMLEscapeString(page.Title))
		}
		content.WriteString("</ul>\n")
	}

	data := pageData{
		SiteTitle:   g.render.Title,
		Description: g.render.Description,
		Title:       g.render.Title,
		Root:        "",
		Nav:         nav,
		Content:     template.HTML(content.String()),
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// buildNav groups documents by section, root section first, pages ordered by
// weight then title.
func buildNav(documents []docs.Document) []navSection {
	grouped := make(map[string][]navPage)
	weights := make(map[string]map[string]int)
	for i := range documents {
		doc := &documents[i]
		grouped[doc.Section] = append(grouped[doc.Section], navPage{
			Title: doc.Title(),
			Href:  pageOutputPath(doc),
		})
		if weights[doc.Section] == nil {
			weights[doc.Section] = make(map[string]int)
		}
		weights[doc.Section][pageOutputPath(doc)] = doc.Weight()
	}

	sections := make([]string, 0, len(grouped))
	for section := range grouped {
		sections = append(sections, section)
	}
	sort.Strings(sections) // "" sorts first, so the root section leads

	nav := make([]navSection, 0, len(sections))
	for _, section := range sections {
		pages := grouped[section]
		w := weights[section]
		sort.SliceStable(pages, func(i, j int) bool {
			wi, wj := w[pages[i].Href], w[pages[j].Href]
			if wi != wj {
				// weight 0 means unset and sorts after explicit weights
				if wi == 0 {
					return false
				}
				if wj == 0 {
					return true
				}
				return wi < wj
			}
			return pages[i].Title < pages[j].Title
		})

		title := ""
		if section != "" {
			title = DisplayTitle(filepath.Base(section))
		}
		nav = append(nav, navSection{ID: Slug(section), Title: title, Pages: pages})
	}
	return nav
}

// rootPrefix returns the ../ chain from a page back to the site root.
func rootPrefix(pagePath string) string {
	depth := strings.Count(pagePath, "/")
	return strings.Repeat("../", depth)
}

func containsPage(pages []string, want string) bool {
	for _, p := range pages {
		if p == want {
			return true
		}
	}
	return false
}

func writeSiteFile(siteDir, rel string, content []byte) error {
	full := filepath.Join(siteDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return fmt.Errorf("site: failed to create directory for %s: %w", rel, err)
	}
	// #nosec G306 -- rendered pages are public assets
	if err := os.WriteFile(full, content, 0o644); err != nil {
		return fmt.Errorf("site: failed to write %s: %w", rel, err)
	}
	return nil
}

// Page template for the builtin renderer.
const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{ .Title }} - {{ .SiteTitle }}</title>
  {{- if .Description }}
  <meta name="description" content="{{ .Description }}">
  {{- end }}
  <link rel="stylesheet" href="{{ .Root }}assets/style.css">
</head>
<body>
  <nav class="sidebar">
    <p class="site-title"><a href="{{ .Root }}index.html">{{ .SiteTitle }}</a></p>
    {{- range .Nav }}
    {{- if .Title }}
    <p class="section" id="{{ .ID }}">{{ .Title }}</p>
    {{- end }}
    <ul>
      {{- range .Pages }}
      <li><a href="{{ $.Root }}{{ .Href }}">{{ .Title }}</a></li>
      {{- end }}
    </ul>
    {{- end }}
  </nav>
  <main>
    <article>
{{ .Content }}
    </article>
  </main>
</body>
</html>
`

const styleCSS = `body {
  margin: 0;
  display: flex;
  font-family: system-ui, sans-serif;
  line-height: 1.6;
  color: #1f2328;
}
nav.sidebar {
  flex: 0 0 16rem;
  padding: 1rem 1.5rem;
  border-right: 1px solid #d0d7de;
  min-height: 100vh;
}
nav.sidebar .site-title { font-weight: 600; }
nav.sidebar .section { font-weight: 600; margin-bottom: 0; }
nav.sidebar ul { list-style: none; padding-left: 0.5rem; margin-top: 0.25rem; }
nav.sidebar a { text-decoration: none; color: #0969da; }
main { flex: 1; padding: 1rem 2rem; max-width: 52rem; }
pre {
  background: #f6f8fa;
  padding: 0.75rem;
  overflow-x: auto;
  border-radius: 6px;
}
code { font-family: ui-monospace, monospace; font-size: 0.95em; }
table { border-collapse: collapse; }
th, td { border: 1px solid #d0d7de; padding: 0.3rem 0.6rem; }
img { max-width: 100%; }
`
