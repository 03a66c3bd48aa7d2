package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	s, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "artifacts", s.ArtifactRoot)
	require.Equal(t, 0.2, s.Ingestion.TestRatio)
	require.Equal(t, uint64(42), s.Ingestion.Seed)
	require.Equal(t, "Is Fraudulent", s.Transformation.TargetColumn)
	require.Equal(t, []string{"logistic_regression", "gaussian_nb"}, s.Trainer.Candidates)
	require.Equal(t, 0.15, s.Evaluation.DecisionThreshold)
	require.Equal(t, string(ThresholdFixed), s.Evaluation.ThresholdSource)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
artifact_root: /data/artifacts
evaluation:
  min_recall: 0.7
  threshold_source: trained
`), 0644))
	t.Setenv("TXSHIELD_EVALUATION__MIN_RECALL", "0.8")
	t.Setenv("TXSHIELD_INGESTION__TEST_RATIO", "0.25")

	s, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/data/artifacts", s.ArtifactRoot)
	require.Equal(t, 0.8, s.Evaluation.MinRecall)
	require.Equal(t, 0.25, s.Ingestion.TestRatio)
	require.Equal(t, "trained", s.Evaluation.ThresholdSource)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	t.Chdir(t.TempDir())
	s, err := Load("")
	require.NoError(t, err)

	bad := *s
	bad.Ingestion.TestRatio = 1
	bad.Evaluation.MinRecall = 1.5
	bad.Evaluation.ThresholdSource = "tuned"
	bad.Publish.Endpoint = "minio:9000"
	err = bad.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "test_ratio")
	require.Contains(t, err.Error(), "min_recall")
	require.Contains(t, err.Error(), "threshold_source")
	require.Contains(t, err.Error(), "access_key")
}

func TestNewRun_DerivesPaths(t *testing.T) {
	t.Chdir(t.TempDir())
	s, err := Load("")
	require.NoError(t, err)

	run, err := NewRun(*s, "01_02_2026_03_04_05")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("artifacts", "01_02_2026_03_04_05"), run.Dir)
	require.Equal(t, filepath.Join("artifacts", "latest"), run.LatestDir)
	require.Equal(t, filepath.Join(run.Dir, "data_ingestion", "train.csv"), run.Ingestion.TrainPath)
	require.Equal(t, filepath.Join(run.Dir, "data_validation", "valid", "test.csv"), run.Validation.ValidTestPath)
	require.Equal(t, filepath.Join(run.Dir, "data_validation", "drift_report", "report.yaml"), run.Validation.DriftReportPath)
	require.Equal(t, filepath.Join(run.Dir, "model_trainer", "model.json"), run.Trainer.ModelPath)
	require.Equal(t, filepath.Join(run.Dir, "model_evaluation", "evaluation.yaml"), run.Evaluation.ReportPath)
	require.Equal(t, DriftPValueThreshold, run.Validation.DriftThreshold)
	require.Equal(t, ThresholdFixed, run.Evaluation.ThresholdSource)
	require.Equal(t, DefaultThresholds(), run.Evaluation.Thresholds)
}

func TestDefaults_MatchLoad(t *testing.T) {
	t.Chdir(t.TempDir())
	loaded, err := Load("")
	require.NoError(t, err)
	require.Equal(t, *loaded, Defaults())
}
