package progress

import "log/slog"

// ProgressStore persists progress lines of a run.
type ProgressStore interface {
	AppendProgress(runID string, line string) error
}

// RunSink stores every message under a run ID. Store failures are logged
// and do not interrupt the run.
type RunSink struct {
	Store ProgressStore
	RunID string
}

func (s RunSink) Progress(text string) {
	if err := s.Store.AppendProgress(s.RunID, text); err != nil {
		slog.Warn("RunSink: failed to persist progress", "run_id", s.RunID, "error", err)
	}
}
