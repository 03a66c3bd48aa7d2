package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultRoot is the root directory for all run artifacts.
const DefaultRoot = "artifacts"

// LatestDirName is the promoted pointer under the artifact root.
const LatestDirName = "latest"

// runIDLayout matches the original %m_%d_%Y_%H_%M_%S stamp.
const runIDLayout = "01_02_2006_15_04_05"

// ErrRunExists is returned when a run directory is already present.
var ErrRunExists = errors.New("run directory already exists")

// NewRunID derives the run identifier from a timestamp.
func NewRunID(t time.Time) string {
	return t.Format(runIDLayout)
}

// ParseRunID recovers the timestamp a run id was derived from.
func ParseRunID(id string) (time.Time, error) {
	t, err := time.ParseInLocation(runIDLayout, id, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse run id %q: %w", id, err)
	}
	return t, nil
}

// RunDir returns artifacts/<run_id>.
func RunDir(root, runID string) string {
	return filepath.Join(root, runID)
}

// LatestDir returns artifacts/latest.
func LatestDir(root string) string {
	return filepath.Join(root, LatestDirName)
}

// StageDir returns artifacts/<run_id>/<stage>.
func StageDir(root, runID string, stage Stage) string {
	return filepath.Join(root, runID, string(stage))
}

// CreateRunDir creates the run directory. It fails with ErrRunExists if a run
// with the same id already left a directory behind.
func CreateRunDir(root, runID string) (string, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return "", fmt.Errorf("create artifact root: %w", err)
	}
	dir := RunDir(root, runID)
	if err := os.Mkdir(dir, 0755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%s: %w", dir, ErrRunExists)
		}
		return "", fmt.Errorf("create run dir: %w", err)
	}
	return dir, nil
}
