// Package validate decides whether ingested data may proceed into training.
//
// Two checks gate the data: the column set of each split must equal the
// declared schema, and no shared column may drift between train and test
// under a two-sample Kolmogorov–Smirnov test. A failed check is a normal
// outcome reported on the artifact; only unreadable inputs are errors.
package validate

import (
	"context"
	"fmt"
	"log/slog"

	"txshield/internal/artifact"
	"txshield/internal/config"
	"txshield/internal/dataset"
	"txshield/internal/logging"
)

// Decision is the outcome of validating one train/test pair.
type Decision struct {
	TrainSchema SchemaDiff
	TestSchema  SchemaDiff
	DriftOK     bool
	Report      DriftReport
}

// SchemaValid is true when both splits match the declaration.
func (d Decision) SchemaValid() bool { return d.TrainSchema.Empty() && d.TestSchema.Empty() }

// Status combines the checks: schema AND drift.
func (d Decision) Status() bool { return d.SchemaValid() && d.DriftOK }

// Check validates train and test against schema and each other.
func Check(train, test *dataset.Frame, schema *Schema, driftThreshold float64) (Decision, error) {
	d := Decision{
		TrainSchema: schema.Diff(train),
		TestSchema:  schema.Diff(test),
	}
	ok, report, err := DetectDrift(train, test, driftThreshold)
	if err != nil {
		return Decision{}, err
	}
	d.DriftOK, d.Report = ok, report
	return d, nil
}

// Validator is the validation stage executor.
type Validator struct {
	in  *artifact.Ingestion
	cfg config.Validation
	log *slog.Logger
}

// New builds the validation stage from the ingestion artifact.
func New(in *artifact.Ingestion, cfg config.Validation) *Validator {
	return &Validator{in: in, cfg: cfg, log: logging.New("validate")}
}

// Initiate runs the checks, writes the drift report unconditionally, and
// snapshots both splits into the valid or invalid location.
func (v *Validator) Initiate(ctx context.Context) (*artifact.Validation, error) {
	if err := ctx.Err(); err != nil {
		return nil, artifact.Fail(artifact.StageValidation, err)
	}
	schema, err := LoadSchema(v.cfg.SchemaPath)
	if err != nil {
		return nil, artifact.Fail(artifact.StageValidation, err)
	}
	train, err := dataset.ReadCSV(v.in.TrainPath)
	if err != nil {
		return nil, artifact.Fail(artifact.StageValidation, fmt.Errorf("read train: %w", err))
	}
	test, err := dataset.ReadCSV(v.in.TestPath)
	if err != nil {
		return nil, artifact.Fail(artifact.StageValidation, fmt.Errorf("read test: %w", err))
	}

	d, err := Check(train, test, schema, v.cfg.DriftThreshold)
	if err != nil {
		return nil, artifact.Fail(artifact.StageValidation, err)
	}
	v.log.Info("schema checked",
		"schema_valid", d.SchemaValid(),
		"train_missing", d.TrainSchema.Missing, "train_unexpected", d.TrainSchema.Unexpected,
		"test_missing", d.TestSchema.Missing, "test_unexpected", d.TestSchema.Unexpected)
	v.log.Info("drift checked", "drift_ok", d.DriftOK, "drifted_columns", d.Report.Drifted(),
		"threshold", v.cfg.DriftThreshold)

	if err := artifact.WriteYAML(v.cfg.DriftReportPath, d.Report); err != nil {
		return nil, artifact.Fail(artifact.StageValidation, fmt.Errorf("write drift report: %w", err))
	}

	var out *artifact.Validation
	if d.Status() {
		if err := snapshot(v.in, v.cfg.ValidTrainPath, v.cfg.ValidTestPath); err != nil {
			return nil, artifact.Fail(artifact.StageValidation, err)
		}
		out = artifact.NewValidValidation(v.cfg.ValidTrainPath, v.cfg.ValidTestPath, v.cfg.DriftReportPath)
	} else {
		if err := snapshot(v.in, v.cfg.InvalidTrainPath, v.cfg.InvalidTestPath); err != nil {
			return nil, artifact.Fail(artifact.StageValidation, err)
		}
		out = artifact.NewInvalidValidation(v.cfg.InvalidTrainPath, v.cfg.InvalidTestPath, v.cfg.DriftReportPath)
	}
	if err := artifact.Save(v.cfg.Dir, out); err != nil {
		return nil, artifact.Fail(artifact.StageValidation, err)
	}
	return out, nil
}

func snapshot(in *artifact.Ingestion, trainDst, testDst string) error {
	if err := artifact.CopyFile(in.TrainPath, trainDst); err != nil {
		return fmt.Errorf("snapshot train: %w", err)
	}
	if err := artifact.CopyFile(in.TestPath, testDst); err != nil {
		return fmt.Errorf("snapshot test: %w", err)
	}
	return nil
}
