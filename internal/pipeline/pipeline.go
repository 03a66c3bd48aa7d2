// Package pipeline runs the training stages in order and decides whether the
// resulting model replaces artifacts/latest.
//
// A run is a linear state machine:
//
//	ingest → validate → transform → train → evaluate → (promote | reject)
//
// Each stage runs once and starts only after its predecessor returned an
// artifact. Two hard gates stop a run early: a failed validation and a
// rejected model. Both are normal outcomes reported on the Result; only
// operational failures are returned as errors, always as *artifact.StageError.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"txshield/internal/artifact"
	"txshield/internal/config"
	"txshield/internal/ledger"
	"txshield/internal/logging"
	"txshield/internal/metrics"
	"txshield/internal/validate"
)

// Outcome is how a run ended.
type Outcome string

const (
	OutcomePromoted         Outcome = "promoted"
	OutcomeValidationFailed Outcome = "validation_failed"
	OutcomeModelRejected    Outcome = "model_rejected"
	// OutcomeFailed is recorded for runs that ended in an operational error.
	// Run returns the error instead of a Result.
	OutcomeFailed Outcome = "failed"
)

// Result describes a run that completed without an operational error.
type Result struct {
	RunID   string
	Outcome Outcome
	// FailedStage is the gate that stopped the run; empty when promoted.
	FailedStage artifact.Stage
	// ReportPath is the drift report for a failed validation and the
	// evaluation report otherwise.
	ReportPath  string
	ArtifactDir string
	// LatestDir is set only when the run was promoted.
	LatestDir    string
	PublishedTo  string
	PublishError string

	Ingestion      *artifact.Ingestion
	Validation     *artifact.Validation
	Transformation *artifact.Transformation
	Trainer        *artifact.Trainer
	Evaluation     *artifact.Evaluation
}

func (r *Result) Promoted() bool { return r.Outcome == OutcomePromoted }

// Publisher mirrors a promoted tree somewhere outside the artifact root.
type Publisher interface {
	Publish(ctx context.Context, runID, dir string) (string, error)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStages replaces the stage executors, mainly for tests.
func WithStages(s StageSet) Option { return func(p *Pipeline) { p.stages = s } }

// WithLedger records run history. Ledger writes are best effort.
func WithLedger(l ledger.Ledger) Option { return func(p *Pipeline) { p.ledger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(p *Pipeline) { p.metrics = m } }

// WithPublisher mirrors promoted trees. Publish failures do not fail the run.
func WithPublisher(pub Publisher) Option { return func(p *Pipeline) { p.publisher = pub } }

func WithTracer(t trace.Tracer) Option { return func(p *Pipeline) { p.tracer = t } }

// Pipeline is a single training run.
type Pipeline struct {
	run       config.Run
	stages    StageSet
	ledger    ledger.Ledger
	metrics   *metrics.Metrics
	publisher Publisher
	tracer    trace.Tracer
	now       func() time.Time
	log       *slog.Logger

	state *RunState
}

func New(run config.Run, opts ...Option) *Pipeline {
	p := &Pipeline{
		run:    run,
		stages: DefaultStages(),
		tracer: otel.Tracer("txshield/pipeline"),
		now:    time.Now,
		log:    logging.ForRun("pipeline", run.RunID),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the run once. It returns a Result for every run that reached a
// verdict, and a *artifact.StageError for every run that did not.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := p.now()
	ctx, span := p.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("run_id", p.run.RunID)))
	defer span.End()

	if _, err := artifact.CreateRunDir(p.run.Root, p.run.RunID); err != nil {
		err = artifact.Fail(artifact.StageIngestion, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	p.state = InitState(p.run.RunID)
	p.saveState()
	if p.ledger != nil {
		if err := p.ledger.StartRun(p.run.RunID, start); err != nil {
			p.log.Warn("ledger start failed", "error", err)
		}
	}
	p.log.Info("run started", "artifact_dir", p.run.Dir)

	res := &Result{RunID: p.run.RunID, ArtifactDir: p.run.Dir}
	err := p.execute(ctx, res)
	p.finish(start, res, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("outcome", string(res.Outcome)))
	return res, nil
}

func (p *Pipeline) execute(ctx context.Context, res *Result) error {
	in, err := runStage(ctx, p, artifact.StageIngestion, p.stages.Ingestion(p.run.Ingestion))
	if err != nil {
		return err
	}
	res.Ingestion = in
	p.advance(artifact.StageValidation, StepRecord{Outcome: stepOK, Detail: in.ArtifactDir})

	val, err := runStage(ctx, p, artifact.StageValidation, p.stages.Validation(in, p.run.Validation))
	if err != nil {
		return err
	}
	if err := val.Check(); err != nil {
		return artifact.Fail(artifact.StageValidation, err)
	}
	res.Validation = val
	p.observeDrift(val)
	if !val.Status {
		p.advance(StepDone, StepRecord{Outcome: stepFail, Gate: gateSchema, Detail: val.DriftReportPath})
		p.log.Warn("validation gate failed", "drift_report", val.DriftReportPath,
			"invalid_train", val.InvalidTrainPath, "invalid_test", val.InvalidTestPath)
		res.Outcome, res.FailedStage, res.ReportPath = OutcomeValidationFailed, artifact.StageValidation, val.DriftReportPath
		return nil
	}
	p.advance(artifact.StageTransformation, StepRecord{Outcome: stepPass, Gate: gateSchema, Detail: val.DriftReportPath})
	p.log.Info("validation gate passed", "valid_train", val.ValidTrainPath, "valid_test", val.ValidTestPath)

	tf, err := runStage(ctx, p, artifact.StageTransformation, p.stages.Transformation(val, p.run.Transformation))
	if err != nil {
		return err
	}
	res.Transformation = tf
	p.advance(artifact.StageTrainer, StepRecord{Outcome: stepOK, Detail: tf.PreprocessingMetadataPath})

	tr, err := runStage(ctx, p, artifact.StageTrainer, p.stages.Trainer(tf, p.run.Trainer))
	if err != nil {
		return err
	}
	res.Trainer = tr
	p.advance(artifact.StageEvaluation, StepRecord{Outcome: stepOK,
		Detail: fmt.Sprintf("%s f1=%.4f", tr.BestModelName, tr.BestModelScore)})

	ev, err := runStage(ctx, p, artifact.StageEvaluation, p.stages.Evaluation(tr, tf, p.run.Evaluation))
	if err != nil {
		return err
	}
	res.Evaluation = ev
	res.ReportPath = ev.ReportPath
	p.metrics.ObserveEvaluation(ev.F2, ev.Recall, ev.Precision)
	detail := fmt.Sprintf("f2=%.4f recall=%.4f precision=%.4f threshold=%.2f", ev.F2, ev.Recall, ev.Precision, ev.Threshold)
	if !ev.IsAccepted {
		p.advance(StepDone, StepRecord{Outcome: stepFail, Gate: gateFloors, Detail: detail})
		p.log.Warn("evaluation gate failed, latest left unchanged", "report", ev.ReportPath,
			"f2", ev.F2, "recall", ev.Recall, "precision", ev.Precision)
		res.Outcome, res.FailedStage = OutcomeModelRejected, artifact.StageEvaluation
		return nil
	}
	p.advance(artifact.StagePromotion, StepRecord{Outcome: stepPass, Gate: gateFloors, Detail: detail})
	p.log.Info("evaluation gate passed", "report", ev.ReportPath, "f2", ev.F2)

	// latest must read as a finished run, so the terminal record is built
	// before the copy and reused for the run's own state after the swap.
	done := StepRecord{Outcome: stepOK, Detail: p.run.LatestDir, Timestamp: p.now().UTC().Format(time.RFC3339)}
	latest, err := runStage[string](ctx, p, artifact.StagePromotion, ExecutorFunc[string](func(context.Context) (*string, error) {
		lock, err := AcquireLock(p.run.Root)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := lock.Release(); err != nil {
				p.log.Warn("lock release failed", "error", err)
			}
		}()
		final := p.state.Clone()
		AdvanceStep(final, StepDone, done)
		final.Status = string(OutcomePromoted)
		dir, err := Promote(p.run.Root, p.run.Dir, p.run.RunID, final)
		if err != nil {
			return nil, err
		}
		return &dir, nil
	}))
	if err != nil {
		return err
	}
	res.Outcome, res.LatestDir = OutcomePromoted, *latest
	p.advance(StepDone, done)
	p.log.Info("model promoted", "latest", *latest, "model", tr.BestModelName)

	if p.publisher != nil {
		p.publish(ctx, res)
	}
	return nil
}

func (p *Pipeline) publish(ctx context.Context, res *Result) {
	ctx, span := p.tracer.Start(ctx, "publish")
	defer span.End()
	uri, err := p.publisher.Publish(ctx, p.run.RunID, res.LatestDir)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		res.PublishError = err.Error()
		p.log.Error("publish failed, promotion kept", "error", err)
		return
	}
	res.PublishedTo = uri
	p.log.Info("published", "uri", uri)
}

// runStage runs one executor inside its own span and attributes any error to st.
func runStage[A any](ctx context.Context, p *Pipeline, st artifact.Stage, exec Executor[A]) (*A, error) {
	if err := ctx.Err(); err != nil {
		return nil, artifact.Fail(st, err)
	}
	ctx, span := p.tracer.Start(ctx, string(st))
	defer span.End()

	p.log.Info("stage started", "stage", st)
	began := p.now()
	a, err := exec.Initiate(ctx)
	if err == nil && a == nil {
		err = errors.New("stage returned no artifact")
	}
	elapsed := p.now().Sub(began)
	p.metrics.ObserveStage(string(st), elapsed, err)
	if err != nil {
		err = artifact.Fail(st, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.log.Error("stage failed", "stage", st, "error", err, "duration", elapsed)
		return nil, err
	}
	p.log.Info("stage completed", "stage", st, "duration", elapsed)
	return a, nil
}

// advance records the current step's outcome, moves on, and persists.
func (p *Pipeline) advance(next artifact.Stage, rec StepRecord) {
	if rec.Timestamp == "" {
		rec.Timestamp = p.now().UTC().Format(time.RFC3339)
	}
	rec = AdvanceStep(p.state, next, rec)
	p.log.Info("transition", "from", rec.Step, "to", next, "outcome", rec.Outcome, "gate", rec.Gate, "detail", rec.Detail)
	p.saveState()
	p.recordTransition(rec)
}

func (p *Pipeline) recordTransition(rec StepRecord) {
	if p.ledger == nil {
		return
	}
	at, err := time.Parse(time.RFC3339, rec.Timestamp)
	if err != nil {
		at = p.now()
	}
	if err := p.ledger.RecordTransition(ledger.Transition{
		RunID:   p.run.RunID,
		Seq:     len(p.state.History),
		Stage:   string(rec.Step),
		Outcome: rec.Outcome,
		Detail:  rec.Detail,
		At:      at,
	}); err != nil {
		p.log.Warn("ledger transition failed", "error", err)
	}
}

func (p *Pipeline) saveState() {
	if err := SaveState(p.run.Dir, p.state); err != nil {
		p.log.Warn("save state failed", "error", err)
	}
}

func (p *Pipeline) observeDrift(val *artifact.Validation) {
	if p.metrics == nil {
		return
	}
	report, err := artifact.ReadYAML[validate.DriftReport](val.DriftReportPath)
	if err != nil || report == nil {
		p.log.Debug("drift report unavailable for metrics", "path", val.DriftReportPath, "error", err)
		return
	}
	p.metrics.ObserveValidation(len(report.Drifted()))
}

func (p *Pipeline) finish(start time.Time, res *Result, runErr error) {
	end := p.now()
	rec := &ledger.Run{
		ID:          p.run.RunID,
		FinishedAt:  end,
		ArtifactDir: p.run.Dir,
	}
	outcome := res.Outcome
	if runErr != nil {
		outcome = OutcomeFailed
		st, _ := artifact.FailedStage(runErr)
		p.state.History = append(p.state.History, StepRecord{
			Step:      p.state.CurrentStep,
			Outcome:   stepError,
			Detail:    runErr.Error(),
			Timestamp: end.UTC().Format(time.RFC3339),
		})
		p.recordTransition(p.state.History[len(p.state.History)-1])
		rec.FailedStage, rec.Error = string(st), runErr.Error()
	} else {
		rec.FailedStage = string(res.FailedStage)
		rec.ReportPath = res.ReportPath
		rec.Promoted = res.Promoted()
		rec.PublishedTo = res.PublishedTo
		if ev := res.Evaluation; ev != nil {
			rec.F2, rec.Recall, rec.Precision, rec.Threshold = ev.F2, ev.Recall, ev.Precision, ev.Threshold
		}
	}
	rec.Outcome = string(outcome)
	p.state.Status = string(outcome)
	p.saveState()

	if p.ledger != nil {
		if err := p.ledger.FinishRun(rec); err != nil {
			p.log.Warn("ledger finish failed", "error", err)
		}
	}
	p.metrics.RunFinished(string(outcome), end, rec.Promoted)
	p.log.Info("run finished", "outcome", outcome, "duration", end.Sub(start),
		"failed_stage", rec.FailedStage, "report", rec.ReportPath)
}
