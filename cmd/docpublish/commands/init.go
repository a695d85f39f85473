package commands

import (
	"fmt"
	"path/filepath"

	"git.home.luguber.info/inful/docpublish/internal/config"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force  bool   `help:"Overwrite existing configuration file"`
	Output string `short:"o" name:"output" help:"Output directory for generated config file"`
}

func (i *InitCmd) Run(_ *Global, root *CLI) error {
	// If the user specified an output directory, place the config there as "config.yaml".
	if i.Output != "" {
		cfgPath := filepath.Join(i.Output, "config.yaml")
		return RunInit(cfgPath, i.Force)
	}
	return RunInit(root.Config, i.Force)
}

// RunInit writes a starter configuration file.
func RunInit(configPath string, force bool) error {
	fmt.Printf("Writing configuration to %s\n", configPath)
	if err := config.Init(configPath, force); err != nil {
		return err
	}
	fmt.Println("Configuration initialized. Edit the source and publish sections, then run 'docpublish check'.")
	return nil
}
