// Package frontmatter splits and reassembles YAML frontmatter on Markdown
// documents. The pipeline reads document metadata through it and the site
// generator writes page headers with it.
package frontmatter

import (
	"bytes"
	"errors"

	"gopkg.in/yaml.v3"
)

// ErrMissingClosingDelimiter indicates the document started with a YAML
// frontmatter delimiter but did not contain a closing delimiter.
var ErrMissingClosingDelimiter = errors.New("yaml frontmatter start delimiter found but closing delimiter is missing")

const delimiter = "---"

// Style captures the newline shape of a document so rewrites stay stable.
type Style struct {
	Newline            string
	HasTrailingNewline bool
}

// Split separates YAML frontmatter (`---` delimited) from the Markdown body.
//
// When the document does not start with a frontmatter delimiter, had is
// false and body is the full input.
func Split(content []byte) (meta []byte, body []byte, had bool, style Style, err error) {
	style = detectStyle(content)

	nl := style.Newline
	open := []byte(delimiter + nl)
	if !bytes.HasPrefix(content, open) {
		return nil, content, false, style, nil
	}

	rest := content[len(open):]

	// Empty frontmatter block: opening delimiter immediately followed by the
	// closing one.
	if bytes.HasPrefix(rest, open) {
		return []byte{}, rest[len(open):], true, style, nil
	}

	closeSeq := []byte(nl + delimiter + nl)
	idx := bytes.Index(rest, closeSeq)
	if idx < 0 {
		return nil, nil, false, style, ErrMissingClosingDelimiter
	}

	metaEnd := idx + len(nl)
	return rest[:metaEnd], rest[idx+len(closeSeq):], true, style, nil
}

// Parse splits a document and decodes its frontmatter in one step.
// Documents without frontmatter yield an empty map.
func Parse(content []byte) (map[string]any, []byte, error) {
	meta, body, had, _, err := Split(content)
	if err != nil {
		return nil, nil, err
	}
	if !had {
		return map[string]any{}, body, nil
	}
	fields, err := ParseYAML(meta)
	if err != nil {
		return nil, nil, err
	}
	return fields, body, nil
}

// ParseYAML decodes raw YAML frontmatter (without --- delimiters) into a map.
func ParseYAML(meta []byte) (map[string]any, error) {
	if len(meta) == 0 {
		return map[string]any{}, nil
	}

	var fields map[string]any
	if err := yaml.Unmarshal(meta, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

// Join reassembles a document from raw frontmatter and body.
//
// When had is false the body is returned unchanged; otherwise the
// frontmatter is wrapped in `---` delimiters using the captured newline
// style.
func Join(meta []byte, body []byte, had bool, style Style) []byte {
	if !had {
		return body
	}

	nl := style.Newline
	if nl == "" {
		nl = "\n"
	}

	fence := []byte(delimiter + nl)
	out := make([]byte, 0, 2*len(fence)+len(meta)+len(body))
	out = append(out, fence...)
	out = append(out, meta...)
	out = append(out, fence...)
	out = append(out, body...)
	return out
}

func detectStyle(content []byte) Style {
	newline := "\n"
	for i := 0; i+1 < len(content); i++ {
		if content[i] == '\r' && content[i+1] == '\n' {
			newline = "\r\n"
			break
		}
		if content[i] == '\n' {
			break
		}
	}

	return Style{
		Newline:            newline,
		HasTrailingNewline: len(content) > 0 && content[len(content)-1] == '\n',
	}
}
