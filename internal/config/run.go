package config

import (
	"fmt"
	"path/filepath"

	"txshield/internal/artifact"
)

// ThresholdSource decides where the evaluator's decision threshold comes from.
type ThresholdSource string

const (
	// ThresholdFixed uses Evaluation.DecisionThreshold from settings.
	ThresholdFixed ThresholdSource = "fixed"
	// ThresholdTrained uses the threshold the trainer tuned on its holdout.
	ThresholdTrained ThresholdSource = "trained"
)

// ParseThresholdSource validates a threshold source name.
func ParseThresholdSource(s string) (ThresholdSource, error) {
	switch ThresholdSource(s) {
	case ThresholdFixed, ThresholdTrained:
		return ThresholdSource(s), nil
	}
	return "", fmt.Errorf("evaluation.threshold_source %q must be %q or %q", s, ThresholdFixed, ThresholdTrained)
}

// Thresholds are the evaluation gate floors. All three must be met.
type Thresholds struct {
	MinF2        float64 `yaml:"min_f2_score"`
	MinRecall    float64 `yaml:"min_recall"`
	MinPrecision float64 `yaml:"min_precision"`
}

// DefaultThresholds mirrors the settings defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{MinF2: 0.40, MinRecall: 0.50, MinPrecision: 0.10}
}

// Ingestion is the ingestion stage configuration for one run.
type Ingestion struct {
	RawDataPath string
	Dir         string
	TrainPath   string
	TestPath    string
	TestRatio   float64
	Seed        uint64
}

// Validation is the validation stage configuration for one run.
type Validation struct {
	SchemaPath       string
	Dir              string
	ValidTrainPath   string
	ValidTestPath    string
	InvalidTrainPath string
	InvalidTestPath  string
	DriftReportPath  string
	DriftThreshold   float64
}

// Transformation is the feature engineering stage configuration for one run.
type Transformation struct {
	Dir          string
	TrainPath    string
	TestPath     string
	MetadataPath string
	TargetColumn string
}

// Trainer is the model training stage configuration for one run.
type Trainer struct {
	Dir          string
	ModelPath    string
	MetricsPath  string
	TargetColumn string
	Candidates   []string
	Seed         uint64
}

// Evaluation is the evaluation stage configuration for one run.
type Evaluation struct {
	Dir               string
	ReportPath        string
	TargetColumn      string
	Thresholds        Thresholds
	ThresholdSource   ThresholdSource
	DecisionThreshold float64
}

// DriftPValueThreshold is the significance level below which a column is drifted.
const DriftPValueThreshold = 0.03

// Run is the complete, immutable configuration of one pipeline run. It is
// built once by NewRun and handed to stages by value.
type Run struct {
	RunID          string
	Root           string
	Dir            string
	LatestDir      string
	Ingestion      Ingestion
	Validation     Validation
	Transformation Transformation
	Trainer        Trainer
	Evaluation     Evaluation
}

// NewRun derives every stage path from the artifact root and run id.
func NewRun(s Settings, runID string) (Run, error) {
	source, err := ParseThresholdSource(s.Evaluation.ThresholdSource)
	if err != nil {
		return Run{}, err
	}
	root := s.ArtifactRoot
	stage := func(st artifact.Stage, parts ...string) string {
		return filepath.Join(append([]string{artifact.StageDir(root, runID, st)}, parts...)...)
	}

	return Run{
		RunID:     runID,
		Root:      root,
		Dir:       artifact.RunDir(root, runID),
		LatestDir: artifact.LatestDir(root),
		Ingestion: Ingestion{
			RawDataPath: s.Ingestion.RawDataPath,
			Dir:         stage(artifact.StageIngestion),
			TrainPath:   stage(artifact.StageIngestion, "train.csv"),
			TestPath:    stage(artifact.StageIngestion, "test.csv"),
			TestRatio:   s.Ingestion.TestRatio,
			Seed:        s.Ingestion.Seed,
		},
		Validation: Validation{
			SchemaPath:       s.Validation.SchemaPath,
			Dir:              stage(artifact.StageValidation),
			ValidTrainPath:   stage(artifact.StageValidation, "valid", "train.csv"),
			ValidTestPath:    stage(artifact.StageValidation, "valid", "test.csv"),
			InvalidTrainPath: stage(artifact.StageValidation, "invalid", "train.csv"),
			InvalidTestPath:  stage(artifact.StageValidation, "invalid", "test.csv"),
			DriftReportPath:  stage(artifact.StageValidation, "drift_report", "report.yaml"),
			DriftThreshold:   DriftPValueThreshold,
		},
		Transformation: Transformation{
			Dir:          stage(artifact.StageTransformation),
			TrainPath:    stage(artifact.StageTransformation, "transformed", "train.csv"),
			TestPath:     stage(artifact.StageTransformation, "transformed", "test.csv"),
			MetadataPath: stage(artifact.StageTransformation, "feature_engineering.json"),
			TargetColumn: s.Transformation.TargetColumn,
		},
		Trainer: Trainer{
			Dir:          stage(artifact.StageTrainer),
			ModelPath:    stage(artifact.StageTrainer, "model.json"),
			MetricsPath:  stage(artifact.StageTrainer, "metrics.yaml"),
			TargetColumn: s.Transformation.TargetColumn,
			Candidates:   append([]string(nil), s.Trainer.Candidates...),
			Seed:         s.Trainer.Seed,
		},
		Evaluation: Evaluation{
			Dir:          stage(artifact.StageEvaluation),
			ReportPath:   stage(artifact.StageEvaluation, "evaluation.yaml"),
			TargetColumn: s.Transformation.TargetColumn,
			Thresholds: Thresholds{
				MinF2:        s.Evaluation.MinF2,
				MinRecall:    s.Evaluation.MinRecall,
				MinPrecision: s.Evaluation.MinPrecision,
			},
			ThresholdSource:   source,
			DecisionThreshold: s.Evaluation.DecisionThreshold,
		},
	}, nil
}
