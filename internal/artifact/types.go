// Package artifact defines the records that stages hand to each other.
//
// An artifact is written once, by the stage that produced it, and is then only
// read. Every field is a durable path or a value derived at creation time, so an
// artifact stays meaningful after the process that produced it exits.
package artifact

import "errors"

// Stage names double as the per-run directory names: artifacts/<run_id>/<stage>/.
type Stage string

const (
	StageIngestion      Stage = "data_ingestion"
	StageValidation     Stage = "data_validation"
	StageTransformation Stage = "data_transformation"
	StageTrainer        Stage = "model_trainer"
	StageEvaluation     Stage = "model_evaluation"
	StagePromotion      Stage = "promotion"
)

// Filename is the name each stage uses to persist its own artifact record.
const Filename = "artifact.json"

// Ingestion is produced once per run by the ingestion stage.
type Ingestion struct {
	TrainPath   string `json:"train_path" yaml:"train_path"`
	TestPath    string `json:"test_path" yaml:"test_path"`
	ArtifactDir string `json:"artifact_dir" yaml:"artifact_dir"`
}

// Validation records the outcome of the schema and drift checks.
// Exactly one of the valid/invalid path pairs is populated.
type Validation struct {
	Status           bool   `json:"status" yaml:"status"`
	ValidTrainPath   string `json:"valid_train_path,omitempty" yaml:"valid_train_path,omitempty"`
	ValidTestPath    string `json:"valid_test_path,omitempty" yaml:"valid_test_path,omitempty"`
	InvalidTrainPath string `json:"invalid_train_path,omitempty" yaml:"invalid_train_path,omitempty"`
	InvalidTestPath  string `json:"invalid_test_path,omitempty" yaml:"invalid_test_path,omitempty"`
	DriftReportPath  string `json:"drift_report_path" yaml:"drift_report_path"`
}

// NewValidValidation returns a passing validation artifact.
func NewValidValidation(trainPath, testPath, driftReport string) *Validation {
	return &Validation{
		Status:          true,
		ValidTrainPath:  trainPath,
		ValidTestPath:   testPath,
		DriftReportPath: driftReport,
	}
}

// NewInvalidValidation returns a failing validation artifact.
func NewInvalidValidation(trainPath, testPath, driftReport string) *Validation {
	return &Validation{
		Status:           false,
		InvalidTrainPath: trainPath,
		InvalidTestPath:  testPath,
		DriftReportPath:  driftReport,
	}
}

var errValidationPaths = errors.New("validation artifact must carry exactly one of the valid/invalid path pairs")

// Check reports whether the valid/invalid path pairs agree with Status.
func (v *Validation) Check() error {
	hasValid := v.ValidTrainPath != "" || v.ValidTestPath != ""
	hasInvalid := v.InvalidTrainPath != "" || v.InvalidTestPath != ""
	switch {
	case v.Status && (!hasValid || hasInvalid):
		return errValidationPaths
	case !v.Status && (!hasInvalid || hasValid):
		return errValidationPaths
	}
	return nil
}

// Transformation points at the engineered feature tables.
type Transformation struct {
	TransformedTrainPath      string `json:"transformed_train_path" yaml:"transformed_train_path"`
	TransformedTestPath       string `json:"transformed_test_path" yaml:"transformed_test_path"`
	PreprocessingMetadataPath string `json:"preprocessing_metadata_path" yaml:"preprocessing_metadata_path"`
}

// Trainer describes the best candidate model of a run.
type Trainer struct {
	TrainedModelPath string  `json:"trained_model_path" yaml:"trained_model_path"`
	BestModelName    string  `json:"best_model_name" yaml:"best_model_name"`
	BestModelScore   float64 `json:"best_model_score" yaml:"best_model_score"`
	TunedThreshold   float64 `json:"tuned_threshold" yaml:"tuned_threshold"`
	MetricsPath      string  `json:"metrics_path" yaml:"metrics_path"`
}

// Evaluation is the verdict of the evaluation gate.
// MetricValue is the F2 score, the headline metric of the run.
type Evaluation struct {
	IsAccepted  bool    `json:"is_accepted" yaml:"is_accepted"`
	MetricValue float64 `json:"metric_value" yaml:"metric_value"`
	ReportPath  string  `json:"report_path" yaml:"report_path"`
	F2          float64 `json:"f2_score" yaml:"f2_score"`
	Recall      float64 `json:"recall" yaml:"recall"`
	Precision   float64 `json:"precision" yaml:"precision"`
	Threshold   float64 `json:"threshold" yaml:"threshold"`
}
