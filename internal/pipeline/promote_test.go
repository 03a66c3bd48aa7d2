package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"txshield/internal/artifact"
)

func writeRun(t *testing.T, root, runID, body string) string {
	t.Helper()
	dir := filepath.Join(root, runID)
	if err := os.MkdirAll(filepath.Join(dir, "model_trainer"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "model_trainer", "model.json"), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestAcquireLock_Exclusive(t *testing.T) {
	root := t.TempDir()
	l, err := AcquireLock(root)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := AcquireLock(root); !errors.Is(err, ErrLocked) {
		t.Fatalf("second acquire err = %v, want ErrLocked", err)
	}
	if err := l.Release(); err != nil {
		t.Fatal(err)
	}
	l, err = AcquireLock(root)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	_ = l.Release()
}

func stagingDirs(t *testing.T, root string) []string {
	t.Helper()
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	var staging []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), stagingPrefix) {
			staging = append(staging, strings.SplitN(strings.TrimPrefix(e.Name(), stagingPrefix), "-", 2)[0])
		}
	}
	slices.Sort(staging)
	return staging
}

func TestPromote_ReplacesAndKeepsPreviousTree(t *testing.T) {
	root := t.TempDir()
	if _, err := Promote(root, writeRun(t, root, "r1", "one"), "r1", nil); err != nil {
		t.Fatal(err)
	}
	latest, err := Promote(root, writeRun(t, root, "r2", "two"), "r2", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := treeOf(t, latest)[filepath.Join("model_trainer", "model.json")]; got != "two" {
		t.Errorf("latest model = %q, want two", got)
	}
	if diff := cmp.Diff([]string{"r1", "r2"}, stagingDirs(t, root)); diff != "" {
		t.Errorf("after second promotion (-want +got):\n%s", diff)
	}

	if _, err := Promote(root, writeRun(t, root, "r3", "three"), "r3", nil); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"r2", "r3"}, stagingDirs(t, root)); diff != "" {
		t.Errorf("after third promotion (-want +got):\n%s", diff)
	}
}

func TestPromote_WritesFinalState(t *testing.T) {
	root := t.TempDir()
	runDir := writeRun(t, root, "r1", "one")
	inFlight := InitState("r1")
	inFlight.CurrentStep = artifact.StagePromotion
	if err := SaveState(runDir, inFlight); err != nil {
		t.Fatal(err)
	}

	final := inFlight.Clone()
	AdvanceStep(final, StepDone, StepRecord{Outcome: stepOK, Timestamp: "2026-01-02T03:04:05Z"})
	final.Status = string(OutcomePromoted)
	latest, err := Promote(root, runDir, "r1", final)
	if err != nil {
		t.Fatal(err)
	}

	got, err := LoadState(latest)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(final, got); diff != "" {
		t.Errorf("latest state (-want +got):\n%s", diff)
	}
	own, err := LoadState(runDir)
	if err != nil {
		t.Fatal(err)
	}
	if own.Status != statusRun || len(inFlight.History) != 0 {
		t.Errorf("run dir state or source mutated: %+v, %+v", own, inFlight)
	}
}

func TestPromote_MigratesLegacyDirectory(t *testing.T) {
	root := t.TempDir()
	legacy := filepath.Join(root, "latest")
	if err := os.MkdirAll(legacy, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(legacy, "old.txt"), []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	latest, err := Promote(root, writeRun(t, root, "r1", "one"), "r1", nil)
	if err != nil {
		t.Fatal(err)
	}
	fi, err := os.Lstat(latest)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode()&os.ModeSymlink == 0 {
		t.Fatalf("latest mode = %v, want symlink after migration", fi.Mode())
	}
	tree := treeOf(t, latest)
	if _, ok := tree["old.txt"]; ok {
		t.Error("legacy content leaked into the promoted tree")
	}
}

func TestSwapDirectory(t *testing.T) {
	root := t.TempDir()
	latest := filepath.Join(root, "latest")
	staging := writeRun(t, root, ".latest-r2-x", "two")
	writeRun(t, root, "latest", "one")

	prev, err := swapDirectory(root, latest, staging)
	if err != nil {
		t.Fatal(err)
	}
	if got := treeOf(t, latest)[filepath.Join("model_trainer", "model.json")]; got != "two" {
		t.Errorf("latest model = %q, want two", got)
	}
	if _, err := os.Stat(staging); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("staging should have been renamed into place: %v", err)
	}
	if got := treeOf(t, filepath.Join(root, prev))[filepath.Join("model_trainer", "model.json")]; got != "one" {
		t.Errorf("replaced tree %q holds %q, want one", prev, got)
	}
}
