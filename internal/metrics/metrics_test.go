package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, c prometheus.Metric) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	if m.Counter != nil {
		return m.Counter.GetValue()
	}
	return m.Gauge.GetValue()
}

func TestMetrics_RecordsRun(t *testing.T) {
	m := New()
	m.ObserveStage("data_ingestion", 2*time.Second, nil)
	m.ObserveStage("model_trainer", time.Second, errors.New("boom"))
	m.ObserveValidation(3)
	m.ObserveEvaluation(0.5, 0.6, 0.2)
	m.RunFinished("promoted", time.Unix(1700000000, 0), true)
	m.RunFinished("model_rejected", time.Unix(1700000100, 0), false)

	assert.Equal(t, 1.0, value(t, m.StageErrors.WithLabelValues("model_trainer")))
	assert.Equal(t, 0.0, value(t, m.StageErrors.WithLabelValues("data_ingestion")))
	assert.Equal(t, 3.0, value(t, m.DriftedColumns))
	assert.Equal(t, 0.6, value(t, m.EvaluationScore.WithLabelValues("recall")))
	assert.Equal(t, 1.0, value(t, m.RunsTotal.WithLabelValues("promoted")))
	assert.Equal(t, 1700000000.0, value(t, m.LastPromotion))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveStage("x", time.Second, nil)
	m.ObserveEvaluation(1, 1, 1)
	m.RunFinished("promoted", time.Now(), true)
	require.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "m.prom")))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.RunFinished("validation_failed", time.Now(), false)
	path := filepath.Join(t.TempDir(), "textfile", "txshield.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `txshield_runs_total{outcome="validation_failed"} 1`), string(data))
}
