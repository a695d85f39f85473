package commands

import (
	"fmt"
	"os"
	"strings"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/docs"
	"git.home.luguber.info/inful/docpublish/internal/errors"
)

// CheckCmd implements the 'check' command.
type CheckCmd struct {
	SourceDir  string `name:"source-dir" short:"s" help:"Local source checkout containing the documents" default:"."`
	ConfigOnly bool   `help:"Only validate the configuration file"`
}

func (c *CheckCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fmt.Printf("Configuration OK: %s\n", root.Config)

	if c.ConfigOnly {
		return nil
	}

	if _, err := os.Stat(c.SourceDir); os.IsNotExist(err) {
		return fmt.Errorf("source directory does not exist: %s", c.SourceDir)
	}

	return CheckDocuments(cfg, c.SourceDir)
}

// CheckDocuments lints the documents under sourceDir the way the render
// stage will see them, without executing snippets or writing anything.
func CheckDocuments(cfg *config.Config, sourceDir string) error {
	discovery := docs.NewDiscovery(cfg.Source, docs.DiscoveryOptions{
		SceneExtensions: cfg.Render.SceneExtensions,
	})
	set, err := discovery.Discover(sourceDir)
	if err != nil {
		return err
	}

	examplesDir := cfg.Source.ExamplesDir
	if examplesDir == "" {
		examplesDir = "examples"
	}

	var problems []string
	snippets := 0
	refs := 0
	for i := range set.Documents {
		doc := &set.Documents[i]
		snippets += len(doc.RunnableSnippets())
		refs += len(doc.SceneRefs)
		for _, ref := range doc.SceneRefs {
			if !strings.HasPrefix(ref, examplesDir+"/") {
				problems = append(problems,
					fmt.Sprintf("%s: scene reference %s is outside the %s directory", doc.RelativePath, ref, examplesDir))
			}
		}
	}

	fmt.Printf("Documents: %d, runnable snippets: %d, scene references: %d\n",
		len(set.Documents), snippets, refs)

	if len(problems) > 0 {
		for _, p := range problems {
			fmt.Printf("  problem: %s\n", p)
		}
		return errors.New(errors.CategoryValidation, errors.SeverityError,
			fmt.Sprintf("document check found %d problem(s)", len(problems)))
	}

	fmt.Println("Documents OK")
	return nil
}
