package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jo-hoe/cdbgen/internal/backend/cdb"
	"github.com/jo-hoe/cdbgen/internal/backend/layer"
	"github.com/jo-hoe/cdbgen/internal/backend/progress"
	"github.com/jo-hoe/cdbgen/internal/backend/tool"
)

// Params are the two user supplied strings of a run.
type Params struct {
	ToolDir   string `json:"toolDir" validate:"required"`
	Datastore string `json:"datastore" validate:"required"`
}

// OverviewConfig controls the overview build after all layers are processed.
type OverviewConfig struct {
	Enabled bool
	tool.OverviewOptions
}

// Options configure a Dispatcher.
type Options struct {
	// ForceExeSuffix appends .exe to the tool names on every platform.
	ForceExeSuffix bool
	// CreateDatastore initialises Metadata/Version.xml before the first insert.
	CreateDatastore bool
	Overviews       OverviewConfig
	// Handlers selects handlers from Registry; empty means imagery and elevation.
	Handlers []HandlerConfig
	Registry *HandlerRegistry
}

// Dispatcher classifies project layers and hands them to their handler.
type Dispatcher struct {
	runner   tool.Runner
	options  Options
	handlers map[Class]Handler
}

func NewDispatcher(runner tool.Runner, options Options) (*Dispatcher, error) {
	if runner == nil {
		return nil, errors.New("runner cannot be nil")
	}
	registry := options.Registry
	if registry == nil {
		registry = DefaultRegistry
	}
	configs := options.Handlers
	if len(configs) == 0 {
		configs = []HandlerConfig{{Name: string(ClassImagery)}, {Name: string(ClassElevation)}}
	}

	handlers := make(map[Class]Handler, len(configs))
	for i, config := range configs {
		handler, err := registry.Create(config.Name, config.Params)
		if err != nil {
			return nil, fmt.Errorf("handler at index %d: %w", i, err)
		}
		if _, exists := handlers[handler.Class()]; exists {
			return nil, fmt.Errorf("duplicate handler for class %s", handler.Class())
		}
		handlers[handler.Class()] = handler
	}

	return &Dispatcher{
		runner:   runner,
		options:  options,
		handlers: handlers,
	}, nil
}

// Run processes every layer of the collection sequentially. Per-layer
// failures are recorded in the report and do not stop the run; the
// returned error is reserved for failures that abort the whole run.
func (d *Dispatcher) Run(ctx context.Context, params Params, collection layer.Collection, sink progress.Sink) (*Report, error) {
	start := time.Now()
	if sink == nil {
		sink = progress.Discard
	}

	report := &Report{
		InjectPath:   tool.ExecutablePath(params.ToolDir, tool.InjectExecutable, d.options.ForceExeSuffix),
		OverviewPath: tool.ExecutablePath(params.ToolDir, tool.OverviewExecutable, d.options.ForceExeSuffix),
		Datastore:    params.Datastore,
	}
	sink.Progress("Using " + report.InjectPath)

	layers, err := collection.Layers(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to enumerate layers: %w", err)
	}

	slog.Info("starting cdb dispatch",
		"layer_count", len(layers),
		"datastore", params.Datastore,
		"tool_dir", params.ToolDir)

	env := &Environment{
		InjectPath:       report.InjectPath,
		Datastore:        params.Datastore,
		Runner:           d.runner,
		Sink:             sink,
		prepareDatastore: d.datastorePreparer(params.Datastore),
	}

	for idx, l := range layers {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("dispatch interrupted at layer %d: %w", idx, err)
		}
		report.Layers = append(report.Layers, d.dispatchLayer(ctx, env, l))
	}
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("dispatch interrupted: %w", err)
	}

	report.Overview = d.buildOverviews(ctx, report, sink)

	slog.Info("cdb dispatch completed",
		"total_duration_ms", time.Since(start).Milliseconds(),
		"inserted", report.Count(StatusInserted),
		"failed", report.Count(StatusFailed),
		"skipped", report.Count(StatusSkipped),
		"elevation", report.Count(StatusElevation),
		"ignored", report.Count(StatusIgnored))

	return report, nil
}

func (d *Dispatcher) dispatchLayer(ctx context.Context, env *Environment, l layer.Layer) LayerOutcome {
	if _, err := os.Stat(l.Source); err != nil {
		env.Sink.Progress("Skipping layer " + l.Name + " because file " + l.Source + " does not exist.")
		slog.Warn("skipping layer with missing source",
			"layer", l.Name,
			"source", l.Source,
			"error", err)
		outcome := newOutcome(l, Classify(l))
		outcome.Status = StatusSkipped
		outcome.Err = fmt.Errorf("%w: %s", ErrMissingSourceFile, l.Source)
		outcome.Error = outcome.Err.Error()
		return outcome
	}

	env.Sink.Progress("Processing " + l.Source)

	class := Classify(l)
	handler, ok := d.handlers[class]
	if !ok {
		slog.Debug("ignoring layer", "layer", l.Name, "kind", l.Kind, "bands", l.BandCount)
		outcome := newOutcome(l, class)
		outcome.Status = StatusIgnored
		return outcome
	}

	slog.Debug("dispatching layer",
		"layer", l.Name,
		"class", class,
		"handler", handler.Name())
	return handler.Handle(ctx, env, l)
}

func (d *Dispatcher) datastorePreparer(datastore string) func() error {
	if !d.options.CreateDatastore {
		return nil
	}
	var once sync.Once
	var prepareErr error
	return func() error {
		once.Do(func() {
			if cdb.IsCDB(datastore) {
				return
			}
			slog.Info("initialising cdb datastore", "datastore", datastore)
			if err := cdb.MakeCDB(datastore, "Created by cdbgen"); err != nil && !errors.Is(err, cdb.ErrAlreadyExists) {
				prepareErr = fmt.Errorf("failed to initialise datastore %s: %w", datastore, err)
			}
		})
		return prepareErr
	}
}

// buildOverviews always constructs the gdaladdo invocation and only runs it
// when enabled and at least one imagery layer was inserted.
func (d *Dispatcher) buildOverviews(ctx context.Context, report *Report, sink progress.Sink) OverviewOutcome {
	outcome := OverviewOutcome{
		Invocation: tool.OverviewInvocation(report.OverviewPath, report.Datastore, d.options.Overviews.OverviewOptions),
		ExitCode:   -1,
	}
	if !d.options.Overviews.Enabled {
		slog.Debug("overview build disabled", "command", outcome.Invocation.String())
		return outcome
	}
	if report.Count(StatusInserted) == 0 {
		slog.Info("no imagery inserted, skipping overview build")
		return outcome
	}

	sink.Progress("Building overviews for " + cdb.ImageryURI(report.Datastore))
	outcome.Executed = true
	result, err := d.runner.Run(ctx, outcome.Invocation, sink.Progress)
	outcome.ExitCode = result.ExitCode
	if err != nil {
		slog.Error("overview build failed", "error", err)
		sink.Progress(fmt.Sprintf("Failed to build overviews: %v", err))
		outcome.Err = err
		outcome.Error = err.Error()
	}
	return outcome
}
