package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator"
	"github.com/redis/go-redis/v9"

	"github.com/jo-hoe/cdbgen/internal/backend/database"
	"github.com/jo-hoe/cdbgen/internal/backend/dispatch"
	"github.com/jo-hoe/cdbgen/internal/backend/layer"
	"github.com/jo-hoe/cdbgen/internal/backend/progress"
	"github.com/jo-hoe/cdbgen/internal/backend/raster"
	"github.com/jo-hoe/cdbgen/internal/backend/tool"
)

// ErrNotFound is returned when a run or layer does not exist.
var ErrNotFound = errors.New("not found")

type CoreService struct {
	config          *ServiceConfig
	databaseService database.DatabaseService
	dispatcher      *dispatch.Dispatcher
	redisClient     redis.UniversalClient
	validate        *validator.Validate
}

// RunRequest carries the parameters of one dispatch run. Empty fields fall
// back to the configuration.
type RunRequest struct {
	ToolDir     string   `json:"toolDir"`
	Datastore   string   `json:"datastore"`
	ProjectFile string   `json:"projectFile"`
	Scan        []string `json:"scan"`
	// Sink receives progress in addition to the log, database and Redis.
	Sink progress.Sink `json:"-"`
}

type RunResult struct {
	Run      *database.Run    `json:"run"`
	Report   *dispatch.Report `json:"report"`
	Progress []string         `json:"progress"`
}

type RunDetail struct {
	Run      *database.Run `json:"run"`
	Progress []string      `json:"progress"`
}

// LayerView is a layer together with its dispatch class.
type LayerView struct {
	layer.Layer
	Class  dispatch.Class `json:"class"`
	Exists bool           `json:"exists"`
}

// NewCoreService wires database, tool runner and dispatcher from the configuration.
func NewCoreService(config *ServiceConfig) (*CoreService, error) {
	return newCoreService(config, nil)
}

func newCoreService(config *ServiceConfig, runner tool.Runner) (*CoreService, error) {
	databaseService, err := getDatabaseService(config)
	if err != nil {
		return nil, err
	}

	if runner == nil {
		runner = tool.NewExecRunner(config.Tools.Timeout)
	}
	dispatcher, err := dispatch.NewDispatcher(runner, config.dispatchOptions())
	if err != nil {
		_ = databaseService.Close()
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	service := &CoreService{
		config:          config,
		databaseService: databaseService,
		dispatcher:      dispatcher,
		validate:        validator.New(),
	}
	if config.Redis.Address != "" {
		service.redisClient = redis.NewClient(&redis.Options{Addr: config.Redis.Address})
		slog.Info("redis progress publishing enabled", "address", config.Redis.Address, "channel", config.Redis.Channel)
	}
	return service, nil
}

func getDatabaseService(config *ServiceConfig) (database.DatabaseService, error) {
	databaseService, err := database.NewDatabase(config.Database.Type, config.Database.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("database initialized successfully", "type", config.Database.Type)
	return databaseService, nil
}

func (service *CoreService) Config() *ServiceConfig {
	return service.config
}

// Run dispatches every layer of the requested collection and records the run.
func (service *CoreService) Run(ctx context.Context, request RunRequest) (*RunResult, error) {
	params := dispatch.Params{
		ToolDir:   firstNonEmpty(request.ToolDir, service.config.Tools.Directory),
		Datastore: firstNonEmpty(request.Datastore, service.config.Output.Directory),
	}
	if err := service.validate.Struct(params); err != nil {
		return nil, fmt.Errorf("invalid run parameters: %w", err)
	}

	run, err := service.databaseService.CreateRun(params.ToolDir, params.Datastore)
	if err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}

	recorder := &progress.Recorder{}
	sinks := progress.Multi{
		progress.LogSink{Attrs: []any{"run_id", run.ID}},
		progress.RunSink{Store: service.databaseService, RunID: run.ID},
		recorder,
	}
	if service.redisClient != nil {
		sinks = append(sinks, progress.NewRedisSink(service.redisClient, service.config.Redis.Channel, run.ID, service.config.Redis.History))
	}
	if request.Sink != nil {
		sinks = append(sinks, request.Sink)
	}

	report, runErr := service.dispatcher.Run(ctx, params, service.collection(request), sinks)

	status := database.RunStatusSucceeded
	if runErr != nil || (report != nil && report.Err() != nil) {
		status = database.RunStatusFailed
	}
	encoded, err := json.Marshal(report)
	if err != nil {
		slog.Error("Run: failed to encode report", "run_id", run.ID, "error", err)
		encoded = []byte("{}")
	}
	if err := service.databaseService.FinishRun(run.ID, status, string(encoded)); err != nil {
		slog.Error("Run: failed to finish run", "run_id", run.ID, "error", err)
	}
	run.Status = status
	run.Report = string(encoded)

	return &RunResult{Run: run, Report: report, Progress: recorder.Messages()}, runErr
}

// collection combines the project file, directory scan and catalog layers.
func (service *CoreService) collection(request RunRequest) layer.Collection {
	var collections layer.Multi
	if file := firstNonEmpty(request.ProjectFile, service.config.Project.File); file != "" {
		collections = append(collections, layer.ProjectFile{Path: file})
	}
	scan := request.Scan
	if len(scan) == 0 {
		scan = service.config.Project.Scan
	}
	if len(scan) > 0 {
		collections = append(collections, layer.DirectoryScan{Roots: scan, Workers: service.config.Project.Workers})
	}
	collections = append(collections, layer.CollectionFunc(service.catalogLayers))
	return collections
}

func (service *CoreService) catalogLayers(context.Context) ([]layer.Layer, error) {
	records, err := service.databaseService.GetLayers()
	if err != nil {
		return nil, fmt.Errorf("failed to read layer catalog: %w", err)
	}
	layers := make([]layer.Layer, 0, len(records))
	for _, record := range records {
		layers = append(layers, layer.Layer{
			ID:        record.ID,
			Name:      record.Name,
			Source:    record.Source,
			Kind:      layer.Kind(record.Kind),
			BandCount: record.BandCount,
		})
	}
	return layers, nil
}

// ListLayers returns the layers a run with the given request would see.
func (service *CoreService) ListLayers(ctx context.Context, request RunRequest) ([]LayerView, error) {
	layers, err := service.collection(request).Layers(ctx)
	if err != nil {
		return nil, err
	}
	return toViews(layers), nil
}

// CatalogLayers returns only the layers registered in the database, in rank order.
func (service *CoreService) CatalogLayers(ctx context.Context) ([]LayerView, error) {
	layers, err := service.catalogLayers(ctx)
	if err != nil {
		return nil, err
	}
	return toViews(layers), nil
}

// RegisterLayer adds a layer to the catalog. Raster band counts are probed
// from the file unless given.
func (service *CoreService) RegisterLayer(name, source, kind string, bands int) (*database.LayerRecord, error) {
	parsedKind, err := layer.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	if source == "" {
		return nil, errors.New("layer source cannot be empty")
	}
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	}

	if parsedKind == layer.KindRaster && bands <= 0 {
		info, err := raster.Probe(source)
		if err != nil {
			return nil, fmt.Errorf("failed to probe %s: %w", source, err)
		}
		bands = info.Bands
	}

	record := &database.LayerRecord{Name: name, Source: source, Kind: string(parsedKind), BandCount: bands}
	if _, err := service.databaseService.CreateLayer(record); err != nil {
		return nil, fmt.Errorf("failed to store layer: %w", err)
	}
	slog.Info("layer registered", "layer_id", record.ID, "name", name, "kind", parsedKind, "bands", bands)
	return record, nil
}

func (service *CoreService) DeleteLayer(id string) error {
	existing, err := service.databaseService.GetLayerByID(id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("layer %s: %w", id, ErrNotFound)
	}
	return service.databaseService.DeleteLayer(id)
}

// MoveLayer swaps a catalog layer with its neighbour; dir is "up" or "down".
func (service *CoreService) MoveLayer(id, dir string) error {
	dir = strings.ToLower(strings.TrimSpace(dir))
	if dir != "up" && dir != "down" {
		return fmt.Errorf("invalid move direction %q", dir)
	}

	records, err := service.databaseService.GetLayers()
	if err != nil {
		return err
	}
	order := make([]string, 0, len(records))
	idx := -1
	for i, record := range records {
		order = append(order, record.ID)
		if record.ID == id {
			idx = i
		}
	}
	if idx < 0 {
		return fmt.Errorf("layer %s: %w", id, ErrNotFound)
	}

	switch {
	case dir == "up" && idx > 0:
		order[idx], order[idx-1] = order[idx-1], order[idx]
	case dir == "down" && idx < len(order)-1:
		order[idx], order[idx+1] = order[idx+1], order[idx]
	default:
		return nil
	}
	return service.databaseService.UpdateLayerOrder(order)
}

// LayerThumbnail renders a PNG preview of a catalog raster layer.
func (service *CoreService) LayerThumbnail(id string) ([]byte, error) {
	record, err := service.databaseService.GetLayerByID(id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("layer %s: %w", id, ErrNotFound)
	}
	if record.Kind != string(layer.KindRaster) {
		return nil, fmt.Errorf("layer %s is not a raster layer", id)
	}
	return raster.Thumbnail(record.Source, service.config.ThumbnailWidth)
}

func (service *CoreService) GetRun(id string) (*RunDetail, error) {
	run, err := service.databaseService.GetRun(id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	lines, err := service.databaseService.GetProgress(id)
	if err != nil {
		return nil, err
	}
	return &RunDetail{Run: run, Progress: lines}, nil
}

func (service *CoreService) ListRuns(limit int) ([]*database.Run, error) {
	return service.databaseService.GetRuns(limit)
}

func (service *CoreService) Close() error {
	var errs []error
	if service.redisClient != nil {
		errs = append(errs, service.redisClient.Close())
	}
	errs = append(errs, service.databaseService.Close())
	return errors.Join(errs...)
}

func toViews(layers []layer.Layer) []LayerView {
	views := make([]LayerView, 0, len(layers))
	for _, l := range layers {
		_, statErr := os.Stat(l.Source)
		views = append(views, LayerView{Layer: l, Class: dispatch.Classify(l), Exists: statErr == nil})
	}
	return views
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
