package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"

	"github.com/sokinpui/patchgen/cli"
	"github.com/sokinpui/patchgen/internal/tui"
	"github.com/sokinpui/patchgen/internal/ui"
	"github.com/sokinpui/patchgen/model"
	"github.com/sokinpui/patchgen/patchgen"
)

func main() {
	cfg, err := cli.ParseFlags()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	app, err := patchgen.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var summary model.Summary
	if cfg.Mode() == cli.ModeValidate && !cfg.NoAnimation && isatty.IsTerminal(os.Stdout.Fd()) {
		final, runErr := tea.NewProgram(tui.New(ctx, app, "Validating diff...")).Run()
		if runErr != nil {
			fmt.Fprintf(os.Stderr, "Error running program: %v\n", runErr)
			os.Exit(1)
		}
		summary, err = final.(tui.Model).Summary()
	} else {
		summary, err = app.Execute(ctx)
		if err == nil {
			printSummary(summary)
		}
	}

	if err := patchgen.ExitError(summary, err); err != nil {
		var detailed *patchgen.DetailedError
		if errors.As(err, &detailed) {
			fmt.Fprintf(os.Stderr, "\n--- Stack Trace ---\n%s\n", detailed.Stack)
		}
		if !errors.Is(err, patchgen.ErrInvalidDiff) {
			ui.Error("Error: %v", err)
		}
		os.Exit(1)
	}
}

func printSummary(s model.Summary) {
	if s.Message != "" {
		ui.Info("%s", s.Message)
	}
	ui.PrintSummary(s.Created, s.Modified, s.Deleted, s.Failed)
	if s.Checked {
		ui.PrintValidation(s.Valid, s.Diagnostics)
	}
}
