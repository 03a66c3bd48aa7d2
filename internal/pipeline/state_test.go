package pipeline

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"txshield/internal/artifact"
)

func TestAdvanceStep_RecordsHistory(t *testing.T) {
	s := InitState("r1")
	AdvanceStep(s, artifact.StageValidation, StepRecord{Outcome: stepOK, Timestamp: "t1"})
	AdvanceStep(s, StepDone, StepRecord{Outcome: stepFail, Gate: gateSchema, Detail: "report.yaml", Timestamp: "t2"})

	want := []StepRecord{
		{Step: artifact.StageIngestion, Outcome: stepOK, Timestamp: "t1"},
		{Step: artifact.StageValidation, Outcome: stepFail, Gate: gateSchema, Detail: "report.yaml", Timestamp: "t2"},
	}
	if diff := cmp.Diff(want, s.History); diff != "" {
		t.Errorf("history (-want +got):\n%s", diff)
	}
	if s.CurrentStep != StepDone {
		t.Errorf("current step = %q, want done", s.CurrentStep)
	}
}

func TestSaveLoadState(t *testing.T) {
	dir := t.TempDir()
	if got, err := LoadState(dir); err != nil || got != nil {
		t.Fatalf("LoadState on empty dir = %v, %v; want nil, nil", got, err)
	}
	s := InitState("r1")
	AdvanceStep(s, artifact.StageValidation, StepRecord{Outcome: stepOK})
	if err := SaveState(dir, s); err != nil {
		t.Fatal(err)
	}
	got, err := LoadState(dir)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(s, got); diff != "" {
		t.Errorf("state (-want +got):\n%s", diff)
	}
}
