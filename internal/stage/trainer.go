package stage

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"txshield/internal/artifact"
	"txshield/internal/config"
	"txshield/internal/dataset"
	"txshield/internal/model"
	"txshield/internal/stats"
)

const (
	holdoutRatio     = 0.2
	selectionCutoff  = 0.5
	thresholdFBeta   = 2
	defaultCandidate = model.KindLogistic
)

// ThresholdGrid is the set of decision thresholds the trainer tunes over: 0.05 to 0.95.
func ThresholdGrid() []float64 {
	grid := make([]float64, 0, 19)
	for i := 5; i <= 95; i += 5 {
		grid = append(grid, float64(i)/100)
	}
	return grid
}

// TrainerMetrics is the metrics.yaml report of a training run.
type TrainerMetrics struct {
	BestModel      string             `yaml:"best_model"`
	BestF1Score    float64            `yaml:"best_f1_score"`
	TunedThreshold float64            `yaml:"tuned_threshold"`
	HoldoutF2Score float64            `yaml:"holdout_f2_score"`
	Candidates     map[string]float64 `yaml:"candidates"`
}

// Trainer fits every candidate on a seeded split of the training table, picks
// the best by holdout F1 at 0.5, tunes its decision threshold for F2 on the
// same holdout, and refits the winner on the full table.
type Trainer struct {
	in  *artifact.Transformation
	cfg config.Trainer
	log *slog.Logger
}

func NewTrainer(in *artifact.Transformation, cfg config.Trainer) *Trainer {
	return &Trainer{in: in, cfg: cfg, log: stageLogger(artifact.StageTrainer)}
}

type candidate struct {
	kind   string
	f1     float64
	scores []float64
}

func (s *Trainer) Initiate(ctx context.Context) (*artifact.Trainer, error) {
	if err := ctx.Err(); err != nil {
		return nil, artifact.Fail(artifact.StageTrainer, err)
	}
	train, err := dataset.ReadCSV(s.in.TransformedTrainPath)
	if err != nil {
		return nil, artifact.Fail(artifact.StageTrainer, fmt.Errorf("read train: %w", err))
	}
	fit, holdout, err := train.Split(holdoutRatio, s.cfg.Seed)
	if err != nil {
		return nil, artifact.Fail(artifact.StageTrainer, fmt.Errorf("holdout split: %w", err))
	}
	Xf, yf, _, err := model.Matrix(fit, s.cfg.TargetColumn)
	if err != nil {
		return nil, artifact.Fail(artifact.StageTrainer, err)
	}
	Xh, yh, _, err := model.Matrix(holdout, s.cfg.TargetColumn)
	if err != nil {
		return nil, artifact.Fail(artifact.StageTrainer, err)
	}

	kinds := s.cfg.Candidates
	if len(kinds) == 0 {
		kinds = []string{defaultCandidate}
	}
	results := make([]candidate, len(kinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		g.Go(func() error {
			c, err := model.New(kind)
			if err != nil {
				return err
			}
			if err := c.Fit(Xf, yf); err != nil {
				return fmt.Errorf("fit %s: %w", kind, err)
			}
			if err := gctx.Err(); err != nil {
				return err
			}
			scores := c.PredictProba(Xh)
			conf, err := stats.NewConfusion(yh, stats.Threshold(scores, selectionCutoff))
			if err != nil {
				return err
			}
			results[i] = candidate{kind: kind, f1: conf.F1(), scores: scores}
			s.log.Info("candidate scored", "model", kind, "holdout_f1", conf.F1())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, artifact.Fail(artifact.StageTrainer, err)
	}

	best := results[0]
	for _, r := range results[1:] {
		if r.f1 > best.f1 {
			best = r
		}
	}
	threshold, f2, err := stats.BestThreshold(yh, best.scores, thresholdFBeta, ThresholdGrid())
	if err != nil {
		return nil, artifact.Fail(artifact.StageTrainer, fmt.Errorf("tune threshold: %w", err))
	}

	X, y, features, err := model.Matrix(train, s.cfg.TargetColumn)
	if err != nil {
		return nil, artifact.Fail(artifact.StageTrainer, err)
	}
	final, err := model.New(best.kind)
	if err != nil {
		return nil, artifact.Fail(artifact.StageTrainer, err)
	}
	if err := final.Fit(X, y); err != nil {
		return nil, artifact.Fail(artifact.StageTrainer, fmt.Errorf("refit %s: %w", best.kind, err))
	}
	if err := model.Save(s.cfg.ModelPath, final, features); err != nil {
		return nil, artifact.Fail(artifact.StageTrainer, err)
	}

	metrics := TrainerMetrics{
		BestModel:      best.kind,
		BestF1Score:    best.f1,
		TunedThreshold: threshold,
		HoldoutF2Score: f2,
		Candidates:     make(map[string]float64, len(results)),
	}
	for _, r := range results {
		metrics.Candidates[r.kind] = r.f1
	}
	if err := artifact.WriteYAML(s.cfg.MetricsPath, metrics); err != nil {
		return nil, artifact.Fail(artifact.StageTrainer, fmt.Errorf("write metrics: %w", err))
	}
	s.log.Info("best model selected", "model", best.kind, "f1", best.f1,
		"tuned_threshold", threshold, "holdout_f2", f2, "model_path", s.cfg.ModelPath)

	out := &artifact.Trainer{
		TrainedModelPath: s.cfg.ModelPath,
		BestModelName:    best.kind,
		BestModelScore:   best.f1,
		TunedThreshold:   threshold,
		MetricsPath:      s.cfg.MetricsPath,
	}
	if err := artifact.Save(s.cfg.Dir, out); err != nil {
		return nil, artifact.Fail(artifact.StageTrainer, err)
	}
	return out, nil
}
