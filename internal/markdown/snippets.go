package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Snippet is a fenced code block found in a document body.
//
// A snippet is executable when its info string declares an output artifact:
//
//	```python {output=basic.mvsj}
//
// The output path is relative to the examples output directory. Fences
// without an attribute block are display-only.
type Snippet struct {
	Language string
	Name     string            // name attribute, optional
	Output   string            // declared scene artifact, empty for display-only
	Attrs    map[string]string // full attribute set from the info string
	Body     string
	Line     int // 1-based line of the opening fence
}

// Runnable reports whether the snippet declares an output artifact.
func (s Snippet) Runnable() bool { return s.Output != "" }

// ExtractSnippets collects all fenced code blocks from a Markdown body.
// Malformed attribute blocks are reported with their line number.
func ExtractSnippets(body []byte, _ Options) ([]Snippet, error) {
	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(body))

	var snippets []Snippet
	var walkErr error
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		fence, ok := n.(*gmast.FencedCodeBlock)
		if !ok {
			return gmast.WalkContinue, nil
		}

		snippet := Snippet{}
		if fence.Info != nil {
			seg := fence.Info.Segment
			snippet.Line = lineAt(body, seg.Start)
			lang, attrs, err := parseFenceInfo(string(seg.Value(body)))
			if err != nil {
				walkErr = fmt.Errorf("line %d: %w", snippet.Line, err)
				return gmast.WalkStop, nil
			}
			snippet.Language = lang
			snippet.Attrs = attrs
			snippet.Name = attrs["name"]
			snippet.Output = attrs["output"]
		} else if lines := fence.Lines(); lines.Len() > 0 {
			snippet.Line = lineAt(body, lines.At(0).Start) - 1
		}

		var b strings.Builder
		lines := fence.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(body))
		}
		snippet.Body = b.String()

		snippets = append(snippets, snippet)
		return gmast.WalkContinue, nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return snippets, nil
}

// parseFenceInfo splits a fence info string into a language and an optional
// `{key=value ...}` attribute block.
func parseFenceInfo(info string) (string, map[string]string, error) {
	info = strings.TrimSpace(info)

	brace := strings.Index(info, "{")
	if brace < 0 {
		fields := strings.Fields(info)
		if len(fields) == 0 {
			return "", map[string]string{}, nil
		}
		return fields[0], map[string]string{}, nil
	}

	if !strings.HasSuffix(info, "}") {
		return "", nil, fmt.Errorf("unterminated snippet attribute block: %q", info)
	}

	lang := strings.TrimSpace(info[:brace])
	attrText := info[brace+1 : len(info)-1]

	attrs := map[string]string{}
	for _, tok := range splitAttrTokens(attrText) {
		key, value, ok := strings.Cut(tok, "=")
		if !ok || key == "" {
			return "", nil, fmt.Errorf("malformed snippet attribute %q", tok)
		}
		attrs[key] = unquoteAttr(value)
	}
	return lang, attrs, nil
}

// splitAttrTokens splits on spaces outside single or double quotes.
func splitAttrTokens(s string) []string {
	var tokens []string
	var current strings.Builder
	var quote byte

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			current.WriteByte(c)
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
			current.WriteByte(c)
		case c == ' ' || c == '\t':
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
		default:
			current.WriteByte(c)
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}

func unquoteAttr(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

func lineAt(source []byte, offset int) int {
	if offset > len(source) {
		offset = len(source)
	}
	return 1 + bytes.Count(source[:offset], []byte("\n"))
}
