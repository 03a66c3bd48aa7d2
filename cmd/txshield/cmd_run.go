package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"txshield/internal/artifact"
	"txshield/internal/config"
	"txshield/internal/display"
	"txshield/internal/format"
	"txshield/internal/ledger"
	"txshield/internal/logging"
	"txshield/internal/metrics"
	"txshield/internal/objstore"
	"txshield/internal/pipeline"
	"txshield/internal/telemetry"
)

var runFlags struct {
	rawData         string
	thresholdSource string
	noLedger        bool
	noPublish       bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full training pipeline once",
	RunE:  runPipeline,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.rawData, "raw-data", "", "raw transactions CSV (overrides ingestion.raw_data_path)")
	f.StringVar(&runFlags.thresholdSource, "threshold-source", "", "decision threshold source: fixed or trained")
	f.BoolVar(&runFlags.noLedger, "no-ledger", false, "do not record the run in the ledger")
	f.BoolVar(&runFlags.noPublish, "no-publish", false, "skip publishing the promoted model")
}

func applyRunFlags(cmd *cobra.Command, s *config.Settings) {
	if cmd.Flags().Changed("raw-data") {
		s.Ingestion.RawDataPath = runFlags.rawData
	}
	if cmd.Flags().Changed("threshold-source") {
		s.Evaluation.ThresholdSource = runFlags.thresholdSource
	}
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	s := *settings
	applyRunFlags(cmd, &s)
	run, err := config.NewRun(s, artifact.NewRunID(time.Now()))
	if err != nil {
		return err
	}
	log := logging.ForRun("cli", run.RunID)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var opts []pipeline.Option
	if s.Tracing.Enabled {
		shutdown, err := telemetry.InitTracer(s.Tracing.Output, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Error("tracer shutdown failed", slog.String("error", err.Error()))
			}
		}()
	}
	if s.Ledger.Path != "" && !runFlags.noLedger {
		l, err := ledger.Open(s.Ledger.Path)
		if err != nil {
			return err
		}
		defer l.Close()
		opts = append(opts, pipeline.WithLedger(l))
	}
	var m *metrics.Metrics
	if s.Metrics.TextfilePath != "" {
		m = metrics.New()
		opts = append(opts, pipeline.WithMetrics(m))
	}
	if s.Publish.Endpoint != "" && !runFlags.noPublish {
		pub, err := objstore.New(s.Publish)
		if err != nil {
			return err
		}
		opts = append(opts, pipeline.WithPublisher(pub))
	}

	res, runErr := pipeline.New(run, opts...).Run(ctx)
	if err := m.WriteTextfile(s.Metrics.TextfilePath); err != nil {
		log.Warn("metrics export failed", "error", err)
	}
	if runErr != nil {
		return runErr
	}
	printResult(cmd.OutOrStdout(), res, run.Evaluation.Thresholds)
	if !res.Promoted() {
		return &gateError{msg: fmt.Sprintf("run %s not promoted: %s at %s (report: %s)",
			res.RunID, res.Outcome, res.FailedStage, res.ReportPath)}
	}
	return nil
}

func printResult(out io.Writer, res *pipeline.Result, floors config.Thresholds) {
	fmt.Fprintf(out, "Run:       %s\n", res.RunID)
	fmt.Fprintf(out, "Outcome:   %s (%s)\n", res.Outcome, display.Outcome(string(res.Outcome)))
	fmt.Fprintf(out, "Artifacts: %s\n", res.ArtifactDir)
	if res.FailedStage != "" {
		fmt.Fprintf(out, "Gate:      %s\n", display.Stage(string(res.FailedStage)))
	}
	if res.ReportPath != "" {
		fmt.Fprintf(out, "Report:    %s\n", res.ReportPath)
	}
	if tr := res.Trainer; tr != nil {
		fmt.Fprintf(out, "Model:     %s (F1 %s, tuned threshold %s)\n",
			display.Model(tr.BestModelName), format.Score(tr.BestModelScore), format.Threshold(tr.TunedThreshold))
	}
	if ev := res.Evaluation; ev != nil {
		tb := format.NewTable(output, "METRIC", "VALUE", "FLOOR")
		tb.Row("F2", format.Score(ev.F2), format.Score(floors.MinF2))
		tb.Row("Recall", format.Score(ev.Recall), format.Score(floors.MinRecall))
		tb.Row("Precision", format.Score(ev.Precision), format.Score(floors.MinPrecision))
		tb.AlignRight(2, 3)
		fmt.Fprintf(out, "Threshold: %s\n%s\n", format.Threshold(ev.Threshold), tb.String())
	}
	if res.LatestDir != "" {
		fmt.Fprintf(out, "Latest:    %s\n", res.LatestDir)
	}
	if res.PublishedTo != "" {
		fmt.Fprintf(out, "Published: %s\n", res.PublishedTo)
	}
	if res.PublishError != "" {
		fmt.Fprintf(out, "Publish:   failed: %s\n", res.PublishError)
	}
}
