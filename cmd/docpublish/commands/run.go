package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/pipeline"
	"git.home.luguber.info/inful/docpublish/internal/workspace"
)

// RunCmd implements the 'run' command.
type RunCmd struct {
	Workdir       string `short:"w" help:"Base directory for run workspaces" default:"./docpublish-runs"`
	KeepWorkspace bool   `help:"Keep the run workspace on disk after the run"`
	JSON          bool   `help:"Print the full run report as JSON on stdout"`
}

func (r *RunCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ConfigureLogging(cfg, root.Verbose)

	// Ctrl-C cancels the run; the report still records the canceled stages.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var workspaces *workspace.Manager
	if r.KeepWorkspace {
		workspaces = workspace.NewKeepingManager(r.Workdir)
	} else {
		workspaces = workspace.NewManager(r.Workdir)
	}

	report, runErr := pipeline.New(cfg, workspaces).Run(ctx, pipeline.Request{Trigger: pipeline.TriggerManual})

	if r.JSON {
		out, err := report.JSON()
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		fmt.Println(string(out))
	} else {
		fmt.Println(report.Summary())
		if r.KeepWorkspace {
			fmt.Printf("Run workspace kept under %s\n", r.Workdir)
		}
	}

	return runErr
}
