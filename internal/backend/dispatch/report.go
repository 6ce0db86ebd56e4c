package dispatch

import (
	"errors"
	"fmt"
	"time"

	"github.com/jo-hoe/cdbgen/internal/backend/tool"
)

// ErrMissingSourceFile marks a layer skipped because its file does not exist.
var ErrMissingSourceFile = errors.New("layer source file does not exist")

type Status string

const (
	StatusInserted  Status = "inserted"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusElevation Status = "elevation"
	StatusIgnored   Status = "ignored"
)

// LayerOutcome records what happened to one layer.
type LayerOutcome struct {
	LayerID    string           `json:"layerId"`
	Name       string           `json:"name"`
	Source     string           `json:"source"`
	Class      Class            `json:"class"`
	Status     Status           `json:"status"`
	Invocation *tool.Invocation `json:"invocation,omitempty"`
	ExitCode   int              `json:"exitCode"`
	Lines      int              `json:"lines"`
	Duration   time.Duration    `json:"duration"`
	Error      string           `json:"error,omitempty"`

	Err error `json:"-"`
}

// OverviewOutcome records the overview build step.
type OverviewOutcome struct {
	Invocation tool.Invocation `json:"invocation"`
	Executed   bool            `json:"executed"`
	ExitCode   int             `json:"exitCode"`
	Error      string          `json:"error,omitempty"`

	Err error `json:"-"`
}

// Report is the result of a dispatcher run.
type Report struct {
	InjectPath   string          `json:"injectPath"`
	OverviewPath string          `json:"overviewPath"`
	Datastore    string          `json:"datastore"`
	Layers       []LayerOutcome  `json:"layers"`
	Overview     OverviewOutcome `json:"overview"`
}

// Count returns the number of layers with the given status.
func (r *Report) Count(status Status) int {
	n := 0
	for _, outcome := range r.Layers {
		if outcome.Status == status {
			n++
		}
	}
	return n
}

// Invocations returns the inject invocations in the order they ran.
func (r *Report) Invocations() []tool.Invocation {
	var out []tool.Invocation
	for _, outcome := range r.Layers {
		if outcome.Invocation != nil {
			out = append(out, *outcome.Invocation)
		}
	}
	return out
}

// Err joins all per-layer and overview failures. Skipped layers are not failures.
func (r *Report) Err() error {
	var errs []error
	for _, outcome := range r.Layers {
		if outcome.Status == StatusFailed && outcome.Err != nil {
			errs = append(errs, fmt.Errorf("layer %s: %w", outcome.Name, outcome.Err))
		}
	}
	if r.Overview.Err != nil {
		errs = append(errs, fmt.Errorf("overviews: %w", r.Overview.Err))
	}
	return errors.Join(errs...)
}
