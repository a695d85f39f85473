package site

import (
	"bytes"
	"io"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// rewriteDocLinks rewrites relative anchor hrefs pointing at Markdown
// sources to their rendered page paths (.md to .html), leaving scene, asset
// and external links untouched.
func rewriteDocLinks(fragment []byte) ([]byte, error) {
	ctxNode := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(bytes.NewReader(fragment), ctxNode)
	if err != nil {
		return nil, err
	}

	for _, n := range nodes {
		walkNodes(n, func(node *html.Node) {
			if node.Type != html.ElementNode || node.DataAtom != atom.A {
				return
			}
			for i, attr := range node.Attr {
				if attr.Key != "href" {
					continue
				}
				if rewritten, ok := rewriteMarkdownHref(attr.Val); ok {
					node.Attr[i].Val = rewritten
				}
			}
		})
	}

	var buf bytes.Buffer
	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// rewriteMarkdownHref maps a relative ".md" href to ".html", preserving
// query and fragment. Absolute URLs pass through.
func rewriteMarkdownHref(href string) (string, bool) {
	u, err := url.Parse(href)
	if err != nil || u.IsAbs() || u.Host != "" || u.Path == "" {
		return "", false
	}
	lower := strings.ToLower(u.Path)
	ext := path.Ext(lower)
	switch ext {
	case ".md", ".markdown", ".mdown", ".mkd":
	default:
		return "", false
	}
	u.Path = u.Path[:len(u.Path)-len(ext)] + ".html"
	return u.String(), true
}

// extractPageSceneRefs parses one rendered HTML page and returns the
// site-root-relative paths of all scene files it references via href or src
// attributes. pagePath is the page's own site-relative path, used to resolve
// relative references.
func extractPageSceneRefs(pagePath string, r io.Reader, extensions []string) ([]string, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var refs []string
	walkNodes(root, func(node *html.Node) {
		if node.Type != html.ElementNode {
			return
		}
		for _, attr := range node.Attr {
			if attr.Key != "href" && attr.Key != "src" && attr.Key != "data-src" {
				continue
			}
			if ref, ok := resolveSceneRef(pagePath, attr.Val, extensions); ok {
				refs = append(refs, ref)
			}
		}
	})
	return refs, nil
}

// resolveSceneRef resolves one attribute value against the referencing page
// and reports whether it names a local scene file.
func resolveSceneRef(pagePath, val string, extensions []string) (string, bool) {
	u, err := url.Parse(val)
	if err != nil || u.IsAbs() || u.Host != "" || u.Path == "" {
		return "", false
	}
	if !hasExtension(u.Path, extensions) {
		return "", false
	}
	ref := u.Path
	if !strings.HasPrefix(ref, "/") {
		ref = path.Join(path.Dir(pagePath), ref)
	}
	ref = strings.TrimPrefix(path.Clean(ref), "/")
	if strings.HasPrefix(ref, "..") {
		return "", false
	}
	return ref, true
}

func hasExtension(p string, extensions []string) bool {
	lower := strings.ToLower(p)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

func walkNodes(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkNodes(c, visit)
	}
}
