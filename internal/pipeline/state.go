package pipeline

import (
	"path/filepath"
	"slices"
	"time"

	"txshield/internal/artifact"
)

const stateFilename = "state.json"

// StepDone is the terminal step of every run, whatever its outcome.
const StepDone artifact.Stage = "done"

// RunState is the persisted state machine of one run, kept at
// artifacts/<run_id>/state.json.
type RunState struct {
	RunID       string         `json:"run_id"`
	CurrentStep artifact.Stage `json:"current_step"`
	Status      string         `json:"status"`
	History     []StepRecord   `json:"history"`
}

// StepRecord is one completed transition.
type StepRecord struct {
	Step      artifact.Stage `json:"step"`
	Outcome   string         `json:"outcome"`
	Gate      string         `json:"gate,omitempty"`
	Detail    string         `json:"detail,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// Step outcomes recorded in history.
const (
	stepOK     = "ok"
	stepPass   = "pass"
	stepFail   = "fail"
	stepError  = "error"
	statusRun  = "running"
	gateSchema = "schema_and_drift"
	gateFloors = "evaluation_floors"
)

// InitState creates a new RunState starting at ingestion.
func InitState(runID string) *RunState {
	return &RunState{RunID: runID, CurrentStep: artifact.StageIngestion, Status: statusRun}
}

// LoadState reads the persisted state of a run directory.
// Returns nil if no state file exists.
func LoadState(runDir string) (*RunState, error) {
	return artifact.ReadJSON[RunState](stateFile(runDir))
}

// SaveState persists the run state.
func SaveState(runDir string, state *RunState) error {
	return artifact.WriteJSON(stateFile(runDir), state)
}

func stateFile(runDir string) string {
	return filepath.Join(runDir, stateFilename)
}

// Clone returns a deep copy of the state.
func (s *RunState) Clone() *RunState {
	c := *s
	c.History = slices.Clone(s.History)
	return &c
}

// AdvanceStep records the outcome of the current step and moves to next.
func AdvanceStep(state *RunState, next artifact.Stage, rec StepRecord) StepRecord {
	rec.Step = state.CurrentStep
	if rec.Timestamp == "" {
		rec.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	state.History = append(state.History, rec)
	state.CurrentStep = next
	return rec
}
