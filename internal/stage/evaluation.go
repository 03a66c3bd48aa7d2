package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"txshield/internal/artifact"
	"txshield/internal/config"
	"txshield/internal/dataset"
	"txshield/internal/model"
	"txshield/internal/stats"
)

var errNoTarget = errors.New("evaluation target column not configured")

// Metrics are the gated test-set scores of a model at one decision threshold.
type Metrics struct {
	F2        float64
	Recall    float64
	Precision float64
}

// Gate accepts a model only when every floor is met.
type Gate struct {
	Thresholds config.Thresholds
}

func (g Gate) Accept(m Metrics) bool {
	return m.F2 >= g.Thresholds.MinF2 &&
		m.Recall >= g.Thresholds.MinRecall &&
		m.Precision >= g.Thresholds.MinPrecision
}

// Score computes the gated metrics of scores against labels at threshold.
func Score(yTrue []int, scores []float64, threshold float64) (Metrics, error) {
	c, err := stats.NewConfusion(yTrue, stats.Threshold(scores, threshold))
	if err != nil {
		return Metrics{}, err
	}
	return Metrics{F2: c.FBeta(2), Recall: c.Recall(), Precision: c.Precision()}, nil
}

// EvaluationReport is the evaluation.yaml record. It is written on accept and reject.
type EvaluationReport struct {
	F2Score         float64           `yaml:"f2_score"`
	Recall          float64           `yaml:"recall"`
	Precision       float64           `yaml:"precision"`
	Threshold       float64           `yaml:"threshold"`
	ThresholdSource string            `yaml:"threshold_source"`
	Model           string            `yaml:"model"`
	Floors          config.Thresholds `yaml:"floors"`
	Accepted        bool              `yaml:"accepted"`
}

// Evaluation scores the trained model on the transformed test table.
type Evaluation struct {
	trained     *artifact.Trainer
	transformed *artifact.Transformation
	cfg         config.Evaluation
	log         *slog.Logger
}

func NewEvaluation(trained *artifact.Trainer, transformed *artifact.Transformation, cfg config.Evaluation) *Evaluation {
	return &Evaluation{trained: trained, transformed: transformed, cfg: cfg, log: stageLogger(artifact.StageEvaluation)}
}

// DecisionThreshold resolves the threshold the gate is evaluated at.
func (s *Evaluation) DecisionThreshold() float64 {
	if s.cfg.ThresholdSource == config.ThresholdTrained {
		return s.trained.TunedThreshold
	}
	return s.cfg.DecisionThreshold
}

func (s *Evaluation) Initiate(ctx context.Context) (*artifact.Evaluation, error) {
	if err := ctx.Err(); err != nil {
		return nil, artifact.Fail(artifact.StageEvaluation, err)
	}
	if s.cfg.TargetColumn == "" {
		return nil, artifact.Fail(artifact.StageEvaluation, errNoTarget)
	}
	clf, features, err := model.Load(s.trained.TrainedModelPath)
	if err != nil {
		return nil, artifact.Fail(artifact.StageEvaluation, err)
	}
	test, err := dataset.ReadCSV(s.transformed.TransformedTestPath)
	if err != nil {
		return nil, artifact.Fail(artifact.StageEvaluation, fmt.Errorf("read test: %w", err))
	}
	test, err = model.Align(test, features, s.cfg.TargetColumn)
	if err != nil {
		return nil, artifact.Fail(artifact.StageEvaluation, fmt.Errorf("align test features: %w", err))
	}
	X, y, _, err := model.Matrix(test, s.cfg.TargetColumn)
	if err != nil {
		return nil, artifact.Fail(artifact.StageEvaluation, err)
	}

	threshold := s.DecisionThreshold()
	m, err := Score(y, clf.PredictProba(X), threshold)
	if err != nil {
		return nil, artifact.Fail(artifact.StageEvaluation, err)
	}
	accepted := Gate{Thresholds: s.cfg.Thresholds}.Accept(m)

	report := EvaluationReport{
		F2Score:         m.F2,
		Recall:          m.Recall,
		Precision:       m.Precision,
		Threshold:       threshold,
		ThresholdSource: string(s.cfg.ThresholdSource),
		Model:           clf.Kind(),
		Floors:          s.cfg.Thresholds,
		Accepted:        accepted,
	}
	if err := artifact.WriteYAML(s.cfg.ReportPath, report); err != nil {
		return nil, artifact.Fail(artifact.StageEvaluation, fmt.Errorf("write report: %w", err))
	}
	s.log.Info("model evaluated", "f2", m.F2, "recall", m.Recall, "precision", m.Precision,
		"threshold", threshold, "threshold_source", s.cfg.ThresholdSource, "accepted", accepted,
		"report", s.cfg.ReportPath)
	if !accepted {
		s.log.Warn("model rejected by evaluation floors",
			"min_f2", s.cfg.Thresholds.MinF2, "min_recall", s.cfg.Thresholds.MinRecall,
			"min_precision", s.cfg.Thresholds.MinPrecision)
	}

	out := &artifact.Evaluation{
		IsAccepted:  accepted,
		MetricValue: m.F2,
		ReportPath:  s.cfg.ReportPath,
		F2:          m.F2,
		Recall:      m.Recall,
		Precision:   m.Precision,
		Threshold:   threshold,
	}
	if err := artifact.Save(s.cfg.Dir, out); err != nil {
		return nil, artifact.Fail(artifact.StageEvaluation, err)
	}
	return out, nil
}
