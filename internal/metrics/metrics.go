// Package metrics exports run-level Prometheus metrics in the node-exporter
// textfile format, since a batch training run has no scrape endpoint.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every exported metric.
const Namespace = "txshield"

// Metrics holds the pipeline's collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	StageDuration   *prometheus.HistogramVec
	StageErrors     *prometheus.CounterVec
	RunsTotal       *prometheus.CounterVec
	EvaluationScore *prometheus.GaugeVec
	DriftedColumns  prometheus.Gauge
	LastPromotion   prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		StageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "stage_duration_seconds",
				Help:      "Wall time of each pipeline stage",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"stage"},
		),
		StageErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "stage_errors_total",
				Help:      "Operational stage failures",
			},
			[]string{"stage"},
		),
		RunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "runs_total",
				Help:      "Completed runs by outcome",
			},
			[]string{"outcome"},
		),
		EvaluationScore: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "evaluation_score",
				Help:      "Test-set score of the last evaluated model",
			},
			[]string{"metric"},
		),
		DriftedColumns: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "drifted_columns",
				Help:      "Columns flagged as drifted by the last validation",
			},
		),
		LastPromotion: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "last_promotion_timestamp_seconds",
				Help:      "Unix time of the last promotion to latest",
			},
		),
	}
}

func (m *Metrics) ObserveStage(stage string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		m.StageErrors.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) ObserveValidation(drifted int) {
	if m == nil {
		return
	}
	m.DriftedColumns.Set(float64(drifted))
}

func (m *Metrics) ObserveEvaluation(f2, recall, precision float64) {
	if m == nil {
		return
	}
	m.EvaluationScore.WithLabelValues("f2").Set(f2)
	m.EvaluationScore.WithLabelValues("recall").Set(recall)
	m.EvaluationScore.WithLabelValues("precision").Set(precision)
}

func (m *Metrics) RunFinished(outcome string, at time.Time, promoted bool) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
	if promoted {
		m.LastPromotion.Set(float64(at.Unix()))
	}
}

// WriteTextfile writes the registry to path for a textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
