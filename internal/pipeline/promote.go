package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"txshield/internal/artifact"
)

const (
	lockFilename  = ".lock"
	stagingPrefix = ".latest-"
)

// ErrLocked is returned when another process holds the artifact root lock.
var ErrLocked = errors.New("artifact root is locked by another run")

// Lock is an exclusive, cross-process lock on an artifact root.
type Lock struct {
	path string
}

// AcquireLock creates <root>/.lock exclusively. A held lock fails with
// ErrLocked rather than waiting.
func AcquireLock(root string) (*Lock, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create artifact root: %w", err)
	}
	path := filepath.Join(root, lockFilename)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if errors.Is(err, fs.ErrExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrLocked)
	}
	if err != nil {
		return nil, fmt.Errorf("create lock: %w", err)
	}
	_, werr := f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write lock: %w", werr)
	}
	return &Lock{path: path}, nil
}

func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// Promote publishes runDir as <root>/latest. The run is copied into a fresh
// staging directory first, so latest never points at a partially written
// tree. When final is set it replaces the copied state.json, so latest
// carries the finished state of the run rather than the in-flight one.
// latest is a symlink swapped with rename(2); where symlinks are not
// available it falls back to swapping directories with two renames.
func Promote(root, runDir, runID string, final *RunState) (string, error) {
	latest := artifact.LatestDir(root)
	stagingName := stagingPrefix + runID + "-" + uuid.NewString()
	staging := filepath.Join(root, stagingName)
	if err := artifact.CopyTree(runDir, staging); err != nil {
		_ = os.RemoveAll(staging)
		return "", fmt.Errorf("stage %s: %w", runID, err)
	}
	if final != nil {
		if err := SaveState(staging, final); err != nil {
			_ = os.RemoveAll(staging)
			return "", fmt.Errorf("stage %s state: %w", runID, err)
		}
	}

	prev, err := swapSymlink(root, latest, stagingName)
	if errors.Is(err, errNoSymlinks) {
		prev, err = swapDirectory(root, latest, staging)
	}
	if err != nil {
		_ = os.RemoveAll(staging)
		return "", err
	}
	removeSuperseded(root, stagingName, prev)
	return latest, nil
}

var errNoSymlinks = errors.New("symlinks unsupported")

// swapSymlink points latest at target and returns the name of the tree latest
// resolved to before, if any.
func swapSymlink(root, latest, target string) (string, error) {
	tmp := filepath.Join(root, ".latest-link-"+uuid.NewString())
	if err := os.Symlink(target, tmp); err != nil {
		return "", fmt.Errorf("%w: %v", errNoSymlinks, err)
	}
	var prev string
	fi, err := os.Lstat(latest)
	switch {
	case err != nil:
	case fi.Mode()&os.ModeSymlink != 0:
		if dest, err := os.Readlink(latest); err == nil {
			prev = filepath.Base(dest)
		}
	case fi.IsDir():
		// A real directory left by the fallback or an older release cannot be
		// replaced by rename; move it aside first.
		prev = stagingPrefix + "legacy-" + uuid.NewString()
		if err := os.Rename(latest, filepath.Join(root, prev)); err != nil {
			_ = os.Remove(tmp)
			return "", fmt.Errorf("move legacy latest: %w", err)
		}
	}
	if err := os.Rename(tmp, latest); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("swap latest: %w", err)
	}
	return prev, nil
}

// swapDirectory renames staging over latest, moving the current latest aside.
// It returns the name the old tree was moved to, if any.
func swapDirectory(root, latest, staging string) (string, error) {
	var prev string
	if _, err := os.Lstat(latest); err == nil {
		prev = stagingPrefix + "old-" + uuid.NewString()
		if err := os.Rename(latest, filepath.Join(root, prev)); err != nil {
			return "", fmt.Errorf("move old latest: %w", err)
		}
	}
	if err := os.Rename(staging, latest); err != nil {
		if prev != "" {
			_ = os.Rename(filepath.Join(root, prev), latest)
		}
		return "", fmt.Errorf("swap latest: %w", err)
	}
	return prev, nil
}

// removeSuperseded deletes staging trees other than the current one and the
// one it replaced. The replaced tree stays until the next promotion so a
// reader that resolved latest before the swap can finish.
func removeSuperseded(root string, keep ...string) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, stagingPrefix) || slices.Contains(keep, name) {
			continue
		}
		_ = os.RemoveAll(filepath.Join(root, name))
	}
}
