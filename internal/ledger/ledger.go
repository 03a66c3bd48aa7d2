// Package ledger keeps a durable history of pipeline runs and their stage
// transitions, independent of what is left on disk under the artifact root.
package ledger

import (
	"errors"
	"time"
)

// DefaultPath is the default relative path for the SQLite ledger.
const DefaultPath = ".txshield/runs.db"

// ErrNotFound is returned when a run id has no ledger entry.
var ErrNotFound = errors.New("run not found")

// Run is one pipeline run. Outcome is empty while the run is in progress.
type Run struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	Outcome     string
	FailedStage string
	Error       string
	F2          float64
	Recall      float64
	Precision   float64
	Threshold   float64
	ReportPath  string
	ArtifactDir string
	Promoted    bool
	PublishedTo string
}

// Transition is one recorded step of a run's state machine.
type Transition struct {
	RunID   string
	Seq     int
	Stage   string
	Outcome string
	Detail  string
	At      time.Time
}

// Ledger is the persistence facade for run history.
// Implementation is SQLite or in-memory.
type Ledger interface {
	StartRun(id string, startedAt time.Time) error
	RecordTransition(t Transition) error
	FinishRun(r *Run) error
	GetRun(id string) (*Run, error)
	// ListRuns returns the newest runs first. limit <= 0 returns all.
	ListRuns(limit int) ([]*Run, error)
	Transitions(runID string) ([]Transition, error)
	Close() error
}
