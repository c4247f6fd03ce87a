package render

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Scratch is the job-scoped temporary directory holding normalized
// segments and intermediate artifacts. Exactly one job owns a scratch
// directory; it is destroyed when the job settles, success or failure.
type Scratch struct {
	dir    string
	logger *slog.Logger
}

// NewScratch creates the scratch directory for one job under root.
// The job ID keeps concurrent jobs from ever sharing a directory.
func NewScratch(root, jobID string, logger *slog.Logger) (*Scratch, error) {
	dir := filepath.Join(root, "job-"+jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create scratch dir: %w", err)
	}
	return &Scratch{dir: dir, logger: logger}, nil
}

// Dir returns the scratch directory path.
func (s *Scratch) Dir() string { return s.dir }

// Path returns a file path inside the scratch directory.
func (s *Scratch) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Destroy removes the scratch directory and everything in it. Removal
// failure is logged and swallowed: the job already succeeded or failed
// on its own merits.
func (s *Scratch) Destroy() {
	if err := os.RemoveAll(s.dir); err != nil {
		if s.logger != nil {
			s.logger.Warn("failed to remove scratch directory", "dir", s.dir, "error", err)
		}
	}
}
