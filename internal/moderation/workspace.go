package moderation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"go.uber.org/zap"
)

var validJobID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// Artifacts are the temporary files of one run.
type Artifacts struct {
	Dir    string
	Video  string
	Audio  string
	Frames string
}

// Workspace owns the per-job temporary directories under root.
type Workspace struct {
	root string
}

func NewWorkspace(root string) *Workspace {
	return &Workspace{root: root}
}

// ValidateJobID accepts ids usable as a single path component.
func ValidateJobID(jobID string) error {
	if !validJobID.MatchString(jobID) {
		return fmt.Errorf("%w: %q", ErrInvalidJobID, jobID)
	}
	return nil
}

func (w *Workspace) Artifacts(jobID string) (Artifacts, error) {
	if err := ValidateJobID(jobID); err != nil {
		return Artifacts{}, err
	}

	dir := filepath.Join(w.root, jobID)
	return Artifacts{
		Dir:    dir,
		Video:  filepath.Join(dir, "video.mp4"),
		Audio:  filepath.Join(dir, "audio.mp3"),
		Frames: filepath.Join(dir, "frames"),
	}, nil
}

// Prepare creates the job directories. Leftovers of a crashed run are reclaimed first.
func (w *Workspace) Prepare(jobID string) (Artifacts, error) {
	a, err := w.Artifacts(jobID)
	if err != nil {
		return Artifacts{}, err
	}

	if _, err := os.Stat(a.Dir); err == nil {
		zap.S().Named("workspace").Warnw("reclaiming stale artifacts", "job_id", jobID, "dir", a.Dir)
		if err := w.Clean(jobID); err != nil {
			return Artifacts{}, fmt.Errorf("failed to reclaim stale artifacts: %w", err)
		}
	}

	if err := os.MkdirAll(a.Frames, 0o750); err != nil {
		return Artifacts{}, fmt.Errorf("failed to create workspace: %w", err)
	}
	return a, nil
}

// Clean deletes every artifact of the job. Missing files are not an error.
func (w *Workspace) Clean(jobID string) error {
	a, err := w.Artifacts(jobID)
	if err != nil {
		return err
	}

	if err := os.RemoveAll(a.Dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (w *Workspace) Exists(jobID string) bool {
	a, err := w.Artifacts(jobID)
	if err != nil {
		return false
	}
	_, err = os.Stat(a.Dir)
	return err == nil
}
