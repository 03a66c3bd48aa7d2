package pipeline

import (
	"context"

	"txshield/internal/artifact"
	"txshield/internal/config"
	"txshield/internal/stage"
	"txshield/internal/validate"
)

// Executor is the contract every stage meets: run once, return its artifact.
type Executor[A any] interface {
	Initiate(ctx context.Context) (*A, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc[A any] func(ctx context.Context) (*A, error)

func (f ExecutorFunc[A]) Initiate(ctx context.Context) (*A, error) { return f(ctx) }

// StageSet builds each stage from its upstream artifacts and per-run config.
type StageSet struct {
	Ingestion      func(cfg config.Ingestion) Executor[artifact.Ingestion]
	Validation     func(in *artifact.Ingestion, cfg config.Validation) Executor[artifact.Validation]
	Transformation func(in *artifact.Validation, cfg config.Transformation) Executor[artifact.Transformation]
	Trainer        func(in *artifact.Transformation, cfg config.Trainer) Executor[artifact.Trainer]
	Evaluation     func(trained *artifact.Trainer, transformed *artifact.Transformation, cfg config.Evaluation) Executor[artifact.Evaluation]
}

// DefaultStages returns the production stage executors.
func DefaultStages() StageSet {
	return StageSet{
		Ingestion: func(cfg config.Ingestion) Executor[artifact.Ingestion] {
			return stage.NewIngestion(cfg)
		},
		Validation: func(in *artifact.Ingestion, cfg config.Validation) Executor[artifact.Validation] {
			return validate.New(in, cfg)
		},
		Transformation: func(in *artifact.Validation, cfg config.Transformation) Executor[artifact.Transformation] {
			return stage.NewTransformation(in, cfg)
		},
		Trainer: func(in *artifact.Transformation, cfg config.Trainer) Executor[artifact.Trainer] {
			return stage.NewTrainer(in, cfg)
		},
		Evaluation: func(trained *artifact.Trainer, transformed *artifact.Transformation, cfg config.Evaluation) Executor[artifact.Evaluation] {
			return stage.NewEvaluation(trained, transformed, cfg)
		},
	}
}

// Validate runs only ingestion and validation, for checking a new export
// before committing to a training run.
func (s StageSet) Validate(ctx context.Context, run config.Run) (*artifact.Ingestion, *artifact.Validation, error) {
	in, err := s.Ingestion(run.Ingestion).Initiate(ctx)
	if err != nil {
		return nil, nil, artifact.Fail(artifact.StageIngestion, err)
	}
	val, err := s.Validation(in, run.Validation).Initiate(ctx)
	if err != nil {
		return nil, nil, artifact.Fail(artifact.StageValidation, err)
	}
	return in, val, nil
}
