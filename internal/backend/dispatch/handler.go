package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jo-hoe/cdbgen/internal/backend/layer"
	"github.com/jo-hoe/cdbgen/internal/backend/progress"
	"github.com/jo-hoe/cdbgen/internal/backend/tool"
)

// Environment is what a handler needs to act on one layer.
type Environment struct {
	InjectPath string
	Datastore  string
	Runner     tool.Runner
	Sink       progress.Sink

	prepareDatastore func() error
}

// Handler processes the layers of one class.
type Handler interface {
	Name() string
	Class() Class
	Handle(ctx context.Context, env *Environment, l layer.Layer) LayerOutcome
}

// ImageryHandler inserts imagery layers with cdb-inject.
type ImageryHandler struct {
	skipOverviews bool
}

// NewImageryHandler creates an imagery handler from configuration parameters
func NewImageryHandler(params map[string]any) (Handler, error) {
	if err := ValidateKnownParams(params, []string{"skipOverviews"}); err != nil {
		return nil, err
	}
	return &ImageryHandler{
		skipOverviews: GetBoolParam(params, "skipOverviews", true),
	}, nil
}

func (h *ImageryHandler) Name() string { return "ImageryHandler" }

func (h *ImageryHandler) Class() Class { return ClassImagery }

func (h *ImageryHandler) Handle(ctx context.Context, env *Environment, l layer.Layer) LayerOutcome {
	outcome := newOutcome(l, ClassImagery)
	env.Sink.Progress("Processing imagery file " + l.Source)

	if env.prepareDatastore != nil {
		if err := env.prepareDatastore(); err != nil {
			outcome.fail(err)
			return outcome
		}
	}

	invocation := tool.InjectInvocation(env.InjectPath, l.Source, env.Datastore, h.skipOverviews)
	outcome.Invocation = &invocation

	slog.Info("ImageryHandler: inserting layer",
		"layer", l.Name,
		"source", l.Source,
		"command", invocation.String())

	result, err := env.Runner.Run(ctx, invocation, env.Sink.Progress)
	outcome.ExitCode = result.ExitCode
	outcome.Lines = result.Lines
	outcome.Duration = result.Duration
	if err != nil {
		slog.Error("ImageryHandler: insert failed",
			"layer", l.Name,
			"source", l.Source,
			"error", err)
		env.Sink.Progress(fmt.Sprintf("Failed to insert %s: %v", l.Source, err))
		outcome.fail(err)
		return outcome
	}

	slog.Info("ImageryHandler: layer inserted",
		"layer", l.Name,
		"duration_ms", result.Duration.Milliseconds(),
		"output_lines", result.Lines)
	outcome.Status = StatusInserted
	return outcome
}

// ElevationHandler recognises elevation layers. Insertion of elevation is
// not supported by the external tooling yet, so nothing is run.
type ElevationHandler struct{}

// NewElevationHandler creates an elevation handler from configuration parameters
func NewElevationHandler(params map[string]any) (Handler, error) {
	if err := ValidateKnownParams(params, nil); err != nil {
		return nil, err
	}
	return &ElevationHandler{}, nil
}

func (h *ElevationHandler) Name() string { return "ElevationHandler" }

func (h *ElevationHandler) Class() Class { return ClassElevation }

func (h *ElevationHandler) Handle(_ context.Context, env *Environment, l layer.Layer) LayerOutcome {
	env.Sink.Progress("Processing elevation file " + l.Source)
	outcome := newOutcome(l, ClassElevation)
	outcome.Status = StatusElevation
	return outcome
}

func newOutcome(l layer.Layer, class Class) LayerOutcome {
	return LayerOutcome{
		LayerID:  l.ID,
		Name:     l.Name,
		Source:   l.Source,
		Class:    class,
		ExitCode: -1,
	}
}

func (o *LayerOutcome) fail(err error) {
	o.Status = StatusFailed
	o.Err = err
	o.Error = err.Error()
}

func init() {
	if err := DefaultRegistry.Register(string(ClassImagery), NewImageryHandler); err != nil {
		panic(fmt.Sprintf("failed to register ImageryHandler: %v", err))
	}
	if err := DefaultRegistry.Register(string(ClassElevation), NewElevationHandler); err != nil {
		panic(fmt.Sprintf("failed to register ElevationHandler: %v", err))
	}
}
