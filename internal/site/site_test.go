package site

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/docs"
	"git.home.luguber.info/inful/docpublish/internal/toolchain"
)

// discoverFixture builds a checkout on disk and runs discovery over it.
func discoverFixture(t *testing.T, files map[string]string) *docs.Set {
	t.Helper()
	checkout := t.TempDir()
	for path, content := range files {
		full := filepath.Join(checkout, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	set, err := docs.NewDiscovery(config.SourceConfig{
		DocsPaths:   []string{"docs"},
		ExamplesDir: "examples",
	}, docs.DiscoveryOptions{SceneExtensions: []string{".mvsj", ".json"}}).Discover(checkout)
	require.NoError(t, err)
	return set
}

func writeArtifact(t *testing.T, dir, name, content string) {
	t.Helper()
	full := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func testRenderConfig() config.RenderConfig {
	return config.RenderConfig{
		Title:           "Test Docs",
		Description:     "Reference documentation",
		SceneExtensions: []string{".mvsj", ".json"},
	}
}

func testSourceConfig() config.SourceConfig {
	return config.SourceConfig{DocsPaths: []string{"docs"}, ExamplesDir: "examples"}
}

func TestGenerateBuiltinSite(t *testing.T) {
	set := discoverFixture(t, map[string]string{
		"docs/index.md": "---\ntitle: Welcome\n---\n\n# Welcome\n\nSee the [guide](guides/viewer.md).\n",
		"docs/guides/viewer.md": "---\ntitle: Viewer Guide\nweight: 1\n---\n\n" +
			"```python {output=basic.mvsj}\nbuild()\n```\n\n" +
			"Open the [basic scene](../examples/basic.mvsj).\n",
		"docs/guides/shot.png": "png-bytes",
	})

	artifactsDir := t.TempDir()
	writeArtifact(t, artifactsDir, "basic.mvsj", `{"kind":"scene"}`)

	siteDir := t.TempDir()
	gen := NewGenerator(testSourceConfig(), testRenderConfig(), nil)
	result, err := gen.Generate(t.Context(), Inputs{
		Set:          set,
		ArtifactsDir: artifactsDir,
		SiteDir:      siteDir,
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"index.html", "guides/viewer.html"}, result.Pages)
	assert.Equal(t, []string{"examples/basic.mvsj"}, result.Artifacts)
	assert.Equal(t, []string{"guides/shot.png"}, result.Assets)

	index, err := os.ReadFile(filepath.Join(siteDir, "index.html"))
	require.NoError(t, err)
	// Markdown links to sibling documents point at rendered pages
	assert.Contains(t, string(index), `href="guides/viewer.html"`)
	assert.Contains(t, string(index), "Test Docs")

	page, err := os.ReadFile(filepath.Join(siteDir, "guides", "viewer.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), `href="../examples/basic.mvsj"`)
	assert.Contains(t, string(page), `href="../assets/style.css"`)

	// Artifact and asset copied into place
	assert.FileExists(t, filepath.Join(siteDir, "examples", "basic.mvsj"))
	assert.FileExists(t, filepath.Join(siteDir, "guides", "shot.png"))

	manifest, err := ReadManifest(siteDir)
	require.NoError(t, err)
	assert.Equal(t, "builtin", manifest.Generator)
	require.Len(t, manifest.Pages, 2)
	assert.Equal(t, "guides/viewer.md", manifest.Pages[0].Source)
	assert.Equal(t, "guides/viewer.html", manifest.Pages[0].Page)
	assert.Equal(t, []string{"examples/basic.mvsj"}, manifest.Pages[0].Scenes)
	assert.NotEmpty(t, manifest.Pages[0].Fingerprint)
}

func TestGenerateSynthesizesRootIndex(t *testing.T) {
	set := discoverFixture(t, map[string]string{
		"docs/guides/a.md": "# A\n",
		"docs/guides/b.md": "# B\n",
	})

	siteDir := t.TempDir()
	gen := NewGenerator(testSourceConfig(), testRenderConfig(), nil)
	result, err := gen.Generate(t.Context(), Inputs{Set: set, SiteDir: siteDir})
	require.NoError(t, err)

	assert.Contains(t, result.Pages, "index.html")
	index, err := os.ReadFile(filepath.Join(siteDir, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(index), "Guides")
	assert.Contains(t, string(index), `href="guides/a.html"`)
}

func TestGenerateFailsOnMissingScene(t *testing.T) {
	set := discoverFixture(t, map[string]string{
		"docs/index.md": "# Docs\n\n[scene](examples/missing.mvsj)\n",
	})

	gen := NewGenerator(testSourceConfig(), testRenderConfig(), nil)
	_, err := gen.Generate(t.Context(), Inputs{Set: set, SiteDir: t.TempDir()})
	require.Error(t, err)

	var sceneErr *SceneVerificationError
	require.ErrorAs(t, err, &sceneErr)
	assert.Equal(t, []string{"examples/missing.mvsj"}, sceneErr.Missing)
	assert.Empty(t, sceneErr.Unreferenced)
}

func TestGenerateFailsOnUnreferencedArtifact(t *testing.T) {
	set := discoverFixture(t, map[string]string{
		"docs/index.md": "# Docs\n\nNo scenes here.\n",
	})

	artifactsDir := t.TempDir()
	writeArtifact(t, artifactsDir, "orphan.mvsj", "{}")

	gen := NewGenerator(testSourceConfig(), testRenderConfig(), nil)
	_, err := gen.Generate(t.Context(), Inputs{
		Set:          set,
		ArtifactsDir: artifactsDir,
		SiteDir:      t.TempDir(),
	})
	require.Error(t, err)

	var sceneErr *SceneVerificationError
	require.ErrorAs(t, err, &sceneErr)
	assert.Equal(t, []string{"examples/orphan.mvsj"}, sceneErr.Unreferenced)
	assert.Empty(t, sceneErr.Missing)
}

func TestGenerateManifestIsReproducible(t *testing.T) {
	files := map[string]string{
		"docs/index.md":    "---\ntitle: Stable\n---\n\n[scene](examples/a.mvsj)\n",
		"docs/guides/g.md": "# Guide\n",
	}

	render := func(t *testing.T) []byte {
		set := discoverFixture(t, files)
		artifactsDir := t.TempDir()
		writeArtifact(t, artifactsDir, "a.mvsj", "{}")
		siteDir := t.TempDir()
		gen := NewGenerator(testSourceConfig(), testRenderConfig(), nil)
		_, err := gen.Generate(t.Context(), Inputs{Set: set, ArtifactsDir: artifactsDir, SiteDir: siteDir})
		require.NoError(t, err)
		data, err := os.ReadFile(filepath.Join(siteDir, ManifestName))
		require.NoError(t, err)
		return data
	}

	first := render(t)
	second := render(t)
	assert.Equal(t, string(first), string(second))
}

// fakeEngine writes a generator stub that renders a fixed page tree into the
// destination directory.
func fakeEngine(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sitegen")
	script := `#!/bin/sh
if [ "$1" = "version" ]; then
  echo "sitegen v1.4.0"
  exit 0
fi
dest=""
while [ $# -gt 0 ]; do
  if [ "$1" = "--destination" ]; then dest="$2"; fi
  shift
done
mkdir -p "$dest"
ls content >/dev/null 2>&1 || { echo "missing content tree" >&2; exit 1; }
printf '<html><body><a href="examples/basic.mvsj">scene</a></body></html>' > "$dest/index.html"
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755)) // #nosec G306 - engine stub must be executable
	return path
}

func TestGenerateExternalEngine(t *testing.T) {
	set := discoverFixture(t, map[string]string{
		"docs/index.md": "# Docs\n\n[scene](examples/basic.mvsj)\n",
	})

	artifactsDir := t.TempDir()
	writeArtifact(t, artifactsDir, "basic.mvsj", "{}")

	tc := &toolchain.Toolchain{
		Engine:     config.EngineExternal,
		Version:    "1.4.0",
		BinaryPath: fakeEngine(t),
	}

	stageDir := t.TempDir()
	siteDir := t.TempDir()
	gen := NewGenerator(testSourceConfig(), testRenderConfig(), tc)
	result, err := gen.Generate(t.Context(), Inputs{
		Set:          set,
		ArtifactsDir: artifactsDir,
		StageDir:     stageDir,
		SiteDir:      siteDir,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"index.html"}, result.Pages)
	assert.Equal(t, "sitegen/1.4.0", result.Manifest.Generator)

	// Engine saw the staged content tree and config
	assert.FileExists(t, filepath.Join(stageDir, "content", "index.md"))
	assert.FileExists(t, filepath.Join(stageDir, "sitegen.yaml"))
	assert.FileExists(t, filepath.Join(siteDir, "examples", "basic.mvsj"))
}

func TestGenerateExternalEngineFailure(t *testing.T) {
	set := discoverFixture(t, map[string]string{
		"docs/index.md": "# Docs\n",
	})

	bin := filepath.Join(t.TempDir(), "sitegen")
	script := "#!/bin/sh\necho \"render exploded\" >&2\nexit 2\n"
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755)) // #nosec G306 - engine stub must be executable

	tc := &toolchain.Toolchain{Engine: config.EngineExternal, Version: "1.4.0", BinaryPath: bin}
	gen := NewGenerator(testSourceConfig(), testRenderConfig(), tc)
	_, err := gen.Generate(t.Context(), Inputs{Set: set, StageDir: t.TempDir(), SiteDir: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render exploded")
}
