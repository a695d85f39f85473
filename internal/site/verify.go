package site

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SceneVerificationError reports disagreement between the scene files pages
// reference and the scene files present in the generated site.
type SceneVerificationError struct {
	Missing      []string // referenced by a page but absent from the site
	Unreferenced []string // present under the examples dir but never referenced
}

func (e *SceneVerificationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("referenced but missing: %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.Unreferenced) > 0 {
		parts = append(parts, fmt.Sprintf("generated but unreferenced: %s", strings.Join(e.Unreferenced, ", ")))
	}
	return "scene verification failed: " + strings.Join(parts, "; ")
}

// VerifyScenes cross-checks the rendered site: every scene file a page
// references must exist, and every scene file under the examples directory
// must be referenced by at least one page. Either mismatch fails the render.
func VerifyScenes(siteDir, examplesDir string, extensions []string) error {
	if len(extensions) == 0 {
		extensions = []string{".mvsj"}
	}

	referenced, err := collectReferencedScenes(siteDir, extensions)
	if err != nil {
		return fmt.Errorf("site: scene reference scan failed: %w", err)
	}
	generated, err := collectGeneratedScenes(siteDir, examplesDir, extensions)
	if err != nil {
		return fmt.Errorf("site: artifact scan failed: %w", err)
	}

	var missing []string
	for ref := range referenced {
		if _, err := os.Stat(filepath.Join(siteDir, filepath.FromSlash(ref))); err != nil {
			missing = append(missing, ref)
		}
	}
	var unreferenced []string
	for _, artifact := range generated {
		if _, ok := referenced[artifact]; !ok {
			unreferenced = append(unreferenced, artifact)
		}
	}

	if len(missing) == 0 && len(unreferenced) == 0 {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(unreferenced)
	return &SceneVerificationError{Missing: missing, Unreferenced: unreferenced}
}

// collectReferencedScenes walks every rendered page and gathers the scene
// files it links to, as site-root-relative slash paths.
func collectReferencedScenes(siteDir string, extensions []string) (map[string]struct{}, error) {
	referenced := make(map[string]struct{})
	err := filepath.WalkDir(siteDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".html") {
			return nil
		}
		rel, err := filepath.Rel(siteDir, p)
		if err != nil {
			return err
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		refs, err := extractPageSceneRefs(filepath.ToSlash(rel), f, extensions)
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", rel, err)
		}
		for _, ref := range refs {
			referenced[ref] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return referenced, nil
}

// collectGeneratedScenes lists scene files under the published examples
// directory, as site-root-relative slash paths.
func collectGeneratedScenes(siteDir, examplesDir string, extensions []string) ([]string, error) {
	base := filepath.Join(siteDir, examplesDir)
	if _, err := os.Stat(base); os.IsNotExist(err) {
		return nil, nil
	}

	var generated []string
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if !hasExtension(d.Name(), extensions) {
			return nil
		}
		rel, err := filepath.Rel(siteDir, p)
		if err != nil {
			return err
		}
		generated = append(generated, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return generated, nil
}
