package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"txshield/internal/artifact"
	"txshield/internal/display"
	"txshield/internal/format"
	"txshield/internal/pipeline"
)

var statusFlags struct {
	runID string
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of a run (default: the promoted latest)",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusFlags.runID, "run-id", "", "run id (default: latest)")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	dir := artifact.LatestDir(settings.ArtifactRoot)
	label := "latest"
	if statusFlags.runID != "" {
		dir = artifact.RunDir(settings.ArtifactRoot, statusFlags.runID)
		label = statusFlags.runID
	}
	state, err := pipeline.LoadState(dir)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	out := cmd.OutOrStdout()
	if state == nil {
		fmt.Fprintf(out, "No run state for %s under %s\n", label, settings.ArtifactRoot)
		fmt.Fprintf(out, "Run 'txshield run' to train a model.\n")
		return nil
	}

	fmt.Fprintf(out, "Run:     %s\n", state.RunID)
	if started, err := artifact.ParseRunID(state.RunID); err == nil {
		fmt.Fprintf(out, "Started: %s\n", started.Local().Format(time.DateTime))
	}
	fmt.Fprintf(out, "Step:    %s\n", display.Stage(string(state.CurrentStep)))
	fmt.Fprintf(out, "Status:  %s (%s)\n", state.Status, display.Outcome(state.Status))
	if len(state.History) == 0 {
		return nil
	}
	fmt.Fprintf(out, "History: (%d steps)\n", len(state.History))
	tb := format.NewTable(output, "STEP", "OUTCOME", "GATE", "DETAIL", "AT")
	for _, h := range state.History {
		tb.Row(display.Stage(string(h.Step)), h.Outcome, h.Gate, format.Truncate(h.Detail, 60), h.Timestamp)
	}
	fmt.Fprintln(out, tb.String())
	return nil
}
