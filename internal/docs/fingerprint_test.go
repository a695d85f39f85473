package docs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/inful/mdfp"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpublish/internal/frontmatter"
)

func TestDocumentFingerprint(t *testing.T) {
	t.Run("excludes fingerprint/lastmod/uid/aliases", func(t *testing.T) {
		doc := &Document{
			Meta: map[string]any{
				"title":       "Test",
				"fingerprint": "should-be-ignored",
				"lastmod":     "2026-01-01",
				"uid":         "123",
				"aliases":     []string{"/a"},
			},
			Body: []byte("hello\n"),
		}

		got, err := doc.Fingerprint()
		require.NoError(t, err)

		fmBytes, err := frontmatter.SerializeYAML(map[string]any{"title": "Test"}, frontmatter.Style{Newline: "\n"})
		require.NoError(t, err)
		expected := mdfp.CalculateFingerprintFromParts(trimSingleTrailingNewline(string(fmBytes)), "hello\n")
		require.Equal(t, expected, got)
	})

	t.Run("stable across map insertion order", func(t *testing.T) {
		fieldsA := map[string]any{}
		fieldsA["title"] = "Test"
		fieldsA["weight"] = 10

		fieldsB := map[string]any{}
		fieldsB["weight"] = 10
		fieldsB["title"] = "Test"

		fpA, err := (&Document{Meta: fieldsA, Body: []byte("hello")}).Fingerprint()
		require.NoError(t, err)
		fpB, err := (&Document{Meta: fieldsB, Body: []byte("hello")}).Fingerprint()
		require.NoError(t, err)
		require.Equal(t, fpA, fpB)
	})

	t.Run("changes when body changes", func(t *testing.T) {
		fpA, err := (&Document{Meta: map[string]any{"title": "T"}, Body: []byte("one")}).Fingerprint()
		require.NoError(t, err)
		fpB, err := (&Document{Meta: map[string]any{"title": "T"}, Body: []byte("two")}).Fingerprint()
		require.NoError(t, err)
		require.NotEqual(t, fpA, fpB)
	})
}

func TestSetHashDeterministic(t *testing.T) {
	dir := t.TempDir()
	assetPath := filepath.Join(dir, "pic.png")
	require.NoError(t, os.WriteFile(assetPath, []byte("png-bytes"), 0644))

	set := &Set{
		Documents: []Document{
			{RelativePath: "a.md", Content: []byte("# A\n")},
			{RelativePath: "b.md", Content: []byte("# B\n")},
		},
		Assets: []Asset{{Path: assetPath, RelativePath: "pic.png"}},
	}

	h1, err := set.SetHash()
	require.NoError(t, err)
	h2, err := set.SetHash()
	require.NoError(t, err)
	require.Equal(t, h1, h2)

	set.Documents[0].Content = []byte("# Changed\n")
	h3, err := set.SetHash()
	require.NoError(t, err)
	require.NotEqual(t, h1, h3)
}
