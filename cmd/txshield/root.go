package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"txshield/internal/config"
	"txshield/internal/format"
	"txshield/internal/logging"
)

var rootFlags struct {
	configPath   string
	logLevel     string
	logFormat    string
	artifactRoot string
	output       string
}

// output is the table mode chosen by --output.
var output format.Mode

// settings is loaded once per invocation by the root pre-run hook.
var settings *config.Settings

var rootCmd = &cobra.Command{
	Use:   "txshield",
	Short: "Fraud model training pipeline with validation and evaluation gates",
	Long: "txshield ingests transaction exports, validates schema and drift, trains\n" +
		"candidate fraud classifiers and promotes the best one to artifacts/latest\n" +
		"only when it clears the F2, recall and precision floors.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadSettings,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.configPath, "config", "", "settings file (default "+config.DefaultFile+" if present)")
	f.StringVar(&rootFlags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	f.StringVar(&rootFlags.logFormat, "log-format", "", "log format: text or json")
	f.StringVar(&rootFlags.artifactRoot, "artifact-root", "", "artifact root directory")
	f.StringVarP(&rootFlags.output, "output", "o", "table", "table output: table or markdown")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.Version = version
}

func loadSettings(cmd *cobra.Command, _ []string) error {
	s, err := config.Load(rootFlags.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		s.Log.Level = rootFlags.logLevel
	}
	if flags.Changed("log-format") {
		s.Log.Format = rootFlags.logFormat
	}
	if flags.Changed("artifact-root") {
		s.ArtifactRoot = rootFlags.artifactRoot
	}

	mode, err := format.ParseMode(rootFlags.output)
	if err != nil {
		return err
	}
	output = mode

	level, err := logging.ParseLevel(s.Log.Level)
	if err != nil {
		return err
	}
	logging.Init(level, s.Log.Format, os.Stderr)
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	settings = s
	return nil
}
