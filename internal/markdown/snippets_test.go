package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractSnippets_Runnable(t *testing.T) {
	src := []byte("Intro.\n\n" +
		"```python {output=basic.mvsj name=basic}\n" +
		"builder = create()\n" +
		"builder.save()\n" +
		"```\n")

	snippets, err := ExtractSnippets(src, Options{})
	require.NoError(t, err)
	require.Len(t, snippets, 1)

	s := snippets[0]
	require.Equal(t, "python", s.Language)
	require.Equal(t, "basic.mvsj", s.Output)
	require.Equal(t, "basic", s.Name)
	require.True(t, s.Runnable())
	require.Equal(t, "builder = create()\nbuilder.save()\n", s.Body)
	require.Equal(t, 3, s.Line)
}

func TestExtractSnippets_DisplayOnly(t *testing.T) {
	src := []byte("```python\nprint('shown, not run')\n```\n")

	snippets, err := ExtractSnippets(src, Options{})
	require.NoError(t, err)
	require.Len(t, snippets, 1)
	require.Equal(t, "python", snippets[0].Language)
	require.False(t, snippets[0].Runnable())
}

func TestExtractSnippets_QuotedAttributes(t *testing.T) {
	src := []byte("```python {output=\"two words/scene.mvsj\"}\nx = 1\n```\n")

	snippets, err := ExtractSnippets(src, Options{})
	require.NoError(t, err)
	require.Len(t, snippets, 1)
	require.Equal(t, "two words/scene.mvsj", snippets[0].Output)
}

func TestExtractSnippets_MultipleFences(t *testing.T) {
	src := []byte("```python {output=a.mvsj}\nfirst\n```\n\nProse.\n\n" +
		"```sh\nls\n```\n\n" +
		"```python {output=b.mvsj}\nsecond\n```\n")

	snippets, err := ExtractSnippets(src, Options{})
	require.NoError(t, err)
	require.Len(t, snippets, 3)
	require.Equal(t, "a.mvsj", snippets[0].Output)
	require.False(t, snippets[1].Runnable())
	require.Equal(t, "b.mvsj", snippets[2].Output)
}

func TestExtractSnippets_MalformedAttributes(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unterminated block", "```python {output=a.mvsj\nx\n```\n"},
		{"missing value", "```python {output}\nx\n```\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractSnippets([]byte(tt.src), Options{})
			require.Error(t, err)
			require.True(t, strings.Contains(err.Error(), "line 1"), "error should carry the line: %v", err)
		})
	}
}

func TestRenderHTML(t *testing.T) {
	out, err := RenderHTML([]byte("# Title\n\nSome *emphasis* and a [link](scenes/a.mvsj).\n"))
	require.NoError(t, err)

	html := string(out)
	require.Contains(t, html, "<h1>Title</h1>")
	require.Contains(t, html, "<em>emphasis</em>")
	require.Contains(t, html, `href="scenes/a.mvsj"`)
}

func TestRenderHTML_PassesRawHTML(t *testing.T) {
	out, err := RenderHTML([]byte("<div class=\"viewer\" data-scene=\"a.mvsj\"></div>\n"))
	require.NoError(t, err)
	require.Contains(t, string(out), `<div class="viewer" data-scene="a.mvsj">`)
}
