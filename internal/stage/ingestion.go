// Package stage holds the pipeline's stage executors. Each executor is built
// from upstream artifacts plus its per-run configuration and runs once through
// Initiate.
package stage

import (
	"context"
	"fmt"
	"log/slog"

	"txshield/internal/artifact"
	"txshield/internal/config"
	"txshield/internal/dataset"
	"txshield/internal/logging"
)

func stageLogger(s artifact.Stage) *slog.Logger {
	return logging.New("stage").With("stage", string(s))
}

// Ingestion splits the raw transaction export into train and test tables.
type Ingestion struct {
	cfg config.Ingestion
	log *slog.Logger
}

func NewIngestion(cfg config.Ingestion) *Ingestion {
	return &Ingestion{cfg: cfg, log: stageLogger(artifact.StageIngestion)}
}

func (s *Ingestion) Initiate(ctx context.Context) (*artifact.Ingestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, artifact.Fail(artifact.StageIngestion, err)
	}
	s.log.Info("reading raw data", "path", s.cfg.RawDataPath)
	raw, err := dataset.ReadCSV(s.cfg.RawDataPath)
	if err != nil {
		return nil, artifact.Fail(artifact.StageIngestion, fmt.Errorf("read raw data: %w", err))
	}
	train, test, err := raw.Split(s.cfg.TestRatio, s.cfg.Seed)
	if err != nil {
		return nil, artifact.Fail(artifact.StageIngestion, fmt.Errorf("split: %w", err))
	}
	if err := train.WriteCSV(s.cfg.TrainPath); err != nil {
		return nil, artifact.Fail(artifact.StageIngestion, fmt.Errorf("write train: %w", err))
	}
	if err := test.WriteCSV(s.cfg.TestPath); err != nil {
		return nil, artifact.Fail(artifact.StageIngestion, fmt.Errorf("write test: %w", err))
	}
	s.log.Info("split written", "rows", raw.Len(), "train_rows", train.Len(), "test_rows", test.Len(),
		"test_ratio", s.cfg.TestRatio, "seed", s.cfg.Seed)

	out := &artifact.Ingestion{TrainPath: s.cfg.TrainPath, TestPath: s.cfg.TestPath, ArtifactDir: s.cfg.Dir}
	if err := artifact.Save(s.cfg.Dir, out); err != nil {
		return nil, artifact.Fail(artifact.StageIngestion, err)
	}
	return out, nil
}
