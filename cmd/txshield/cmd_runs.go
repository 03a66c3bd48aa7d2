package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"txshield/internal/display"
	"txshield/internal/format"
	"txshield/internal/ledger"
)

var runsFlags struct {
	limit int
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs, newest first",
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().IntVar(&runsFlags.limit, "limit", 20, "maximum runs to list (0 for all)")
}

func runRuns(cmd *cobra.Command, _ []string) error {
	if settings.Ledger.Path == "" {
		return fmt.Errorf("ledger disabled: set ledger.path")
	}
	l, err := ledger.Open(settings.Ledger.Path)
	if err != nil {
		return err
	}
	defer l.Close()
	runs, err := l.ListRuns(runsFlags.limit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}
	tb := format.NewTable(output, "RUN", "STARTED", "TOOK", "OUTCOME", "STAGE", "F2", "RECALL", "PRECISION")
	for _, r := range runs {
		outcome := r.Outcome
		if outcome == "" {
			outcome = "running"
		}
		stage := ""
		if r.FailedStage != "" {
			stage = display.Stage(r.FailedStage)
		}
		var took time.Duration
		if !r.FinishedAt.IsZero() {
			took = r.FinishedAt.Sub(r.StartedAt)
		}
		tb.Row(r.ID, r.StartedAt.Local().Format(time.DateTime), format.Duration(took), outcome, stage,
			format.Score(r.F2), format.Score(r.Recall), format.Score(r.Precision))
	}
	tb.AlignRight(6, 7, 8)
	fmt.Fprintln(out, tb.String())
	return nil
}
