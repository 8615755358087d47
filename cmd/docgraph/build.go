package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dgallion1/docgraph/internal/pipeline"
)

func newBuildCommand() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Rebuild the tree once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := newLogger(cfg, cmd.ErrOrStderr())

			rep, err := pipeline.NewBuilder(cfg, log).Build(cmd.Context())
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), rep)
			if strict && rep.HasDefects() {
				return errDefects
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when cycles or orphans are found")
	return cmd
}

// printSummary writes a short human-readable account of a run.
func printSummary(w io.Writer, rep *pipeline.Report) {
	titleColor := color.New(color.FgCyan, color.Bold)
	warnColor := color.New(color.FgYellow)
	errColor := color.New(color.FgRed)
	okColor := color.New(color.FgGreen)

	titleColor.Fprintf(w, "docgraph run %s\n", rep.RunID)
	fmt.Fprintf(w, "  %d nodes from %d documents", rep.Nodes, rep.Documents)
	if rep.Sources > 0 {
		fmt.Fprintf(w, " and %d source files", rep.Sources)
	}
	fmt.Fprintln(w)

	if rep.Output.Changed {
		okColor.Fprintf(w, "  wrote %s (%d bytes)\n", rep.Output.Path, rep.Output.Bytes)
	} else {
		fmt.Fprintf(w, "  %s unchanged\n", rep.Output.Path)
	}

	for _, msg := range rep.Warnings {
		warnColor.Fprintf(w, "  warning: %s\n", msg)
	}
	for _, line := range rep.Defects() {
		errColor.Fprintf(w, "  defect: %s\n", line)
	}
	for _, s := range rep.Suggestions {
		state := "suggested"
		if s.Applied {
			state = "applied"
		}
		fmt.Fprintf(w, "  %s (%s): %s -> %s\n", state, s.Confidence, s.NodeID, s.SuggestedParent)
	}
}
