package main

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"txshield/internal/artifact"
	"txshield/internal/config"
	"txshield/internal/format"
	"txshield/internal/pipeline"
	"txshield/internal/validate"
)

var validateFlags struct {
	rawData string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Ingest and validate a raw export without training",
	Long: "validate splits the raw export and runs the schema and drift checks in a\n" +
		"new run directory. Nothing is trained or promoted.",
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateFlags.rawData, "raw-data", "", "raw transactions CSV (overrides ingestion.raw_data_path)")
}

func runValidate(cmd *cobra.Command, _ []string) error {
	s := *settings
	if cmd.Flags().Changed("raw-data") {
		s.Ingestion.RawDataPath = validateFlags.rawData
	}
	run, err := config.NewRun(s, artifact.NewRunID(time.Now()))
	if err != nil {
		return err
	}
	if _, err := artifact.CreateRunDir(run.Root, run.RunID); err != nil {
		return err
	}
	_, val, err := pipeline.DefaultStages().Validate(cmd.Context(), run)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:          %s\n", run.RunID)
	fmt.Fprintf(out, "Status:       %s\n", format.PassFail(val.Status))
	fmt.Fprintf(out, "Drift report: %s\n", val.DriftReportPath)
	report, err := artifact.ReadYAML[validate.DriftReport](val.DriftReportPath)
	if err == nil && report != nil && len(*report) > 0 {
		cols := make([]string, 0, len(*report))
		for c := range *report {
			cols = append(cols, c)
		}
		slices.Sort(cols)
		tb := format.NewTable(output, "COLUMN", "P-VALUE", "DRIFT")
		for _, c := range cols {
			d := (*report)[c]
			tb.Row(c, fmt.Sprintf("%.4g", d.PValue), d.DriftDetected)
		}
		tb.AlignRight(2)
		fmt.Fprintln(out, tb.String())
		if drifted := report.Drifted(); len(drifted) > 0 {
			fmt.Fprintf(out, "Drifted:      %v\n", drifted)
		}
	}
	if !val.Status {
		return &gateError{msg: fmt.Sprintf("validation failed (report: %s)", val.DriftReportPath)}
	}
	return nil
}
