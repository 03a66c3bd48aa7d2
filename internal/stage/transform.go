package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"txshield/internal/artifact"
	"txshield/internal/config"
	"txshield/internal/dataset"
)

// FeatureMetadata is written next to the transformed tables so inference can
// rebuild the same feature layout.
type FeatureMetadata struct {
	Columns  []string `json:"columns"`
	Target   string   `json:"target"`
	Encoding Encoding `json:"encoding"`
}

// Transformation engineers features for validated train and test tables.
type Transformation struct {
	in  *artifact.Validation
	cfg config.Transformation
	log *slog.Logger
}

func NewTransformation(in *artifact.Validation, cfg config.Transformation) *Transformation {
	return &Transformation{in: in, cfg: cfg, log: stageLogger(artifact.StageTransformation)}
}

func (s *Transformation) Initiate(ctx context.Context) (*artifact.Transformation, error) {
	if err := ctx.Err(); err != nil {
		return nil, artifact.Fail(artifact.StageTransformation, err)
	}
	if !s.in.Status {
		return nil, artifact.Fail(artifact.StageTransformation, errors.New("validation artifact is not passing"))
	}
	train, err := dataset.ReadCSV(s.in.ValidTrainPath)
	if err != nil {
		return nil, artifact.Fail(artifact.StageTransformation, fmt.Errorf("read train: %w", err))
	}
	test, err := dataset.ReadCSV(s.in.ValidTestPath)
	if err != nil {
		return nil, artifact.Fail(artifact.StageTransformation, fmt.Errorf("read test: %w", err))
	}
	if !train.Has(s.cfg.TargetColumn) {
		return nil, artifact.Fail(artifact.StageTransformation,
			fmt.Errorf("target %q: %w", s.cfg.TargetColumn, dataset.ErrNoColumn))
	}

	enc, err := LearnEncoding(train)
	if err != nil {
		return nil, artifact.Fail(artifact.StageTransformation, fmt.Errorf("learn encoding: %w", err))
	}
	trainOut, err := Engineer(train, enc)
	if err != nil {
		return nil, artifact.Fail(artifact.StageTransformation, fmt.Errorf("engineer train: %w", err))
	}
	testOut, err := Engineer(test, enc)
	if err != nil {
		return nil, artifact.Fail(artifact.StageTransformation, fmt.Errorf("engineer test: %w", err))
	}

	if err := trainOut.WriteCSV(s.cfg.TrainPath); err != nil {
		return nil, artifact.Fail(artifact.StageTransformation, fmt.Errorf("write train: %w", err))
	}
	if err := testOut.WriteCSV(s.cfg.TestPath); err != nil {
		return nil, artifact.Fail(artifact.StageTransformation, fmt.Errorf("write test: %w", err))
	}
	meta := FeatureMetadata{Columns: trainOut.Columns, Target: s.cfg.TargetColumn, Encoding: *enc}
	if err := artifact.WriteJSON(s.cfg.MetadataPath, meta); err != nil {
		return nil, artifact.Fail(artifact.StageTransformation, fmt.Errorf("write metadata: %w", err))
	}
	s.log.Info("features engineered", "columns", len(trainOut.Columns),
		"train_rows", trainOut.Len(), "test_rows", testOut.Len(), "target", s.cfg.TargetColumn)

	out := &artifact.Transformation{
		TransformedTrainPath:      s.cfg.TrainPath,
		TransformedTestPath:       s.cfg.TestPath,
		PreprocessingMetadataPath: s.cfg.MetadataPath,
	}
	if err := artifact.Save(s.cfg.Dir, out); err != nil {
		return nil, artifact.Fail(artifact.StageTransformation, err)
	}
	return out, nil
}
