// Package config loads pipeline settings and derives the immutable per-run
// configuration each stage is constructed with.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultFile is read when no explicit settings file is given. It is optional.
const DefaultFile = "txshield.yaml"

// EnvPrefix scopes environment overrides: TXSHIELD_EVALUATION__MIN_RECALL=0.6.
const EnvPrefix = "TXSHIELD_"

// Settings is everything an operator can configure.
type Settings struct {
	ArtifactRoot   string                 `koanf:"artifact_root"`
	Log            LogSettings            `koanf:"log"`
	Ingestion      IngestionSettings      `koanf:"ingestion"`
	Validation     ValidationSettings     `koanf:"validation"`
	Transformation TransformationSettings `koanf:"transformation"`
	Trainer        TrainerSettings        `koanf:"trainer"`
	Evaluation     EvaluationSettings     `koanf:"evaluation"`
	Ledger         LedgerSettings         `koanf:"ledger"`
	Metrics        MetricsSettings        `koanf:"metrics"`
	Tracing        TracingSettings        `koanf:"tracing"`
	Publish        PublishSettings        `koanf:"publish"`
}

type LogSettings struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // text, json
}

type IngestionSettings struct {
	RawDataPath string  `koanf:"raw_data_path"`
	TestRatio   float64 `koanf:"test_ratio"`
	Seed        uint64  `koanf:"seed"`
}

type ValidationSettings struct {
	SchemaPath string `koanf:"schema_path"`
}

type TransformationSettings struct {
	TargetColumn string `koanf:"target_column"`
}

type TrainerSettings struct {
	Seed       uint64   `koanf:"seed"`
	Candidates []string `koanf:"candidates"`
}

type EvaluationSettings struct {
	MinF2             float64 `koanf:"min_f2_score"`
	MinRecall         float64 `koanf:"min_recall"`
	MinPrecision      float64 `koanf:"min_precision"`
	DecisionThreshold float64 `koanf:"decision_threshold"`
	ThresholdSource   string  `koanf:"threshold_source"` // fixed, trained
}

type LedgerSettings struct {
	Path string `koanf:"path"` // empty disables the SQLite ledger
}

type MetricsSettings struct {
	TextfilePath string `koanf:"textfile_path"` // empty disables metrics export
}

type TracingSettings struct {
	Enabled bool   `koanf:"enabled"`
	Output  string `koanf:"output"` // file path; empty means stdout
}

// PublishSettings configures mirroring of the promoted tree to MinIO/S3.
type PublishSettings struct {
	Endpoint  string `koanf:"endpoint"` // empty disables publishing
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Bucket    string `koanf:"bucket"`
	Prefix    string `koanf:"prefix"`
	UseSSL    bool   `koanf:"use_ssl"`
}

var defaults = map[string]any{
	"artifact_root":                 "artifacts",
	"log.level":                     "info",
	"log.format":                    "text",
	"ingestion.raw_data_path":       "data/raw/transactions.csv",
	"ingestion.test_ratio":          0.2,
	"ingestion.seed":                42,
	"validation.schema_path":        "data_schema/schema.yaml",
	"transformation.target_column":  "Is Fraudulent",
	"trainer.seed":                  42,
	"trainer.candidates":            []string{"logistic_regression", "gaussian_nb"},
	"evaluation.min_f2_score":       0.40,
	"evaluation.min_recall":         0.50,
	"evaluation.min_precision":      0.10,
	"evaluation.decision_threshold": 0.15,
	"evaluation.threshold_source":   string(ThresholdFixed),
	"ledger.path":                   ".txshield/runs.db",
	"publish.bucket":                "txshield",
	"publish.prefix":                "models",
}

// Load reads settings from path (or DefaultFile when path is empty), then
// applies TXSHIELD_ environment overrides and defaults. A missing DefaultFile
// is fine; a missing explicit path is an error.
func Load(path string) (*Settings, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load settings %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env settings: %w", err)
	}

	if err := applyDefaults(k); err != nil {
		return nil, err
	}

	var s Settings
	if err := k.Unmarshal("", &s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Defaults returns the settings used when no file or environment overrides exist.
func Defaults() Settings {
	k := koanf.New(".")
	var s Settings
	if err := applyDefaults(k); err != nil {
		panic(err)
	}
	if err := k.Unmarshal("", &s); err != nil {
		panic(fmt.Sprintf("decode default settings: %v", err))
	}
	return s
}

func applyDefaults(k *koanf.Koanf) error {
	for key, v := range defaults {
		if !k.Exists(key) {
			if err := k.Set(key, v); err != nil {
				return fmt.Errorf("set default %s: %w", key, err)
			}
		}
	}
	return nil
}

// Validate rejects settings no run could succeed with.
func (s *Settings) Validate() error {
	var errs []error
	if s.ArtifactRoot == "" {
		errs = append(errs, errors.New("artifact_root is required"))
	}
	if s.Ingestion.TestRatio <= 0 || s.Ingestion.TestRatio >= 1 {
		errs = append(errs, fmt.Errorf("ingestion.test_ratio %v must be in (0,1)", s.Ingestion.TestRatio))
	}
	if s.Transformation.TargetColumn == "" {
		errs = append(errs, errors.New("transformation.target_column is required"))
	}
	if len(s.Trainer.Candidates) == 0 {
		errs = append(errs, errors.New("trainer.candidates must name at least one model"))
	}
	for name, v := range map[string]float64{
		"evaluation.min_f2_score":       s.Evaluation.MinF2,
		"evaluation.min_recall":         s.Evaluation.MinRecall,
		"evaluation.min_precision":      s.Evaluation.MinPrecision,
		"evaluation.decision_threshold": s.Evaluation.DecisionThreshold,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s %v must be in [0,1]", name, v))
		}
	}
	if _, err := ParseThresholdSource(s.Evaluation.ThresholdSource); err != nil {
		errs = append(errs, err)
	}
	if s.Publish.Endpoint != "" && (s.Publish.AccessKey == "" || s.Publish.SecretKey == "") {
		errs = append(errs, errors.New("publish.access_key and publish.secret_key are required with publish.endpoint"))
	}
	return errors.Join(errs...)
}
