package backend

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"github.com/jo-hoe/cdbgen/internal/common"
	"github.com/jo-hoe/cdbgen/internal/core"
)

const defaultRunLimit = 50

type APIService struct {
	coreService *core.CoreService
}

type registerLayerRequest struct {
	Name   string `json:"name"`
	Source string `json:"source" validate:"required"`
	Kind   string `json:"kind" validate:"required,oneof=raster vector"`
	Bands  int    `json:"bands" validate:"gte=0"`
}

type runRequest struct {
	ToolDir     string   `json:"toolDir"`
	Datastore   string   `json:"datastore"`
	ProjectFile string   `json:"projectFile"`
	Scan        []string `json:"scan" validate:"dive,required"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewAPIService(coreService *core.CoreService) *APIService {
	return &APIService{
		coreService: coreService,
	}
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	e.GET("/probe", func(c echo.Context) error {
		return c.String(http.StatusOK, "API Service is running")
	})

	api := e.Group("/api")
	api.GET("/probe", s.probeFileHandler)
	api.GET("/layers", s.listLayersHandler)
	api.POST("/layers", s.registerLayerHandler)
	api.DELETE("/layers/:id", s.deleteLayerHandler)
	api.POST("/layers/:id/move", s.moveLayerHandler)
	api.POST("/runs", s.runHandler)
	api.GET("/runs", s.listRunsHandler)
	api.GET("/runs/:id", s.getRunHandler)
	api.GET("/runs/:id/live", s.liveProgressHandler)
}

func (s *APIService) probeFileHandler(ctx echo.Context) error {
	path := ctx.QueryParam("path")
	if path == "" {
		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: "missing path query parameter"})
	}
	result, err := core.ProbeFile(path)
	if err != nil {
		slog.Warn("probeFileHandler: probe failed", "path", path, "error", err)
		return ctx.JSON(http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	}
	return ctx.JSON(http.StatusOK, result)
}

// listLayersHandler returns catalog layers only with ?source=catalog,
// otherwise every layer a run would see.
func (s *APIService) listLayersHandler(ctx echo.Context) error {
	var (
		views []core.LayerView
		err   error
	)
	if ctx.QueryParam("source") == "catalog" {
		views, err = s.coreService.CatalogLayers(ctx.Request().Context())
	} else {
		views, err = s.coreService.ListLayers(ctx.Request().Context(), core.RunRequest{})
	}
	if err != nil {
		slog.Error("listLayersHandler: failed to list layers", "error", err)
		return ctx.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to list layers"})
	}
	return ctx.JSON(http.StatusOK, views)
}

func (s *APIService) registerLayerHandler(ctx echo.Context) error {
	var request registerLayerRequest
	if err := common.BindAndValidate(ctx, &request); err != nil {
		return err
	}
	record, err := s.coreService.RegisterLayer(request.Name, request.Source, request.Kind, request.Bands)
	if err != nil {
		slog.Warn("registerLayerHandler: failed to register layer", "source", request.Source, "error", err)
		return ctx.JSON(http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	}
	return ctx.JSON(http.StatusCreated, record)
}

func (s *APIService) deleteLayerHandler(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := s.coreService.DeleteLayer(id); err != nil {
		return s.storeError(ctx, "deleteLayerHandler", err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (s *APIService) moveLayerHandler(ctx echo.Context) error {
	id := ctx.Param("id")
	dir := ctx.QueryParam("dir")
	if dir != "up" && dir != "down" {
		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: "dir must be 'up' or 'down'"})
	}
	if err := s.coreService.MoveLayer(id, dir); err != nil {
		return s.storeError(ctx, "moveLayerHandler", err)
	}
	views, err := s.coreService.CatalogLayers(ctx.Request().Context())
	if err != nil {
		return s.storeError(ctx, "moveLayerHandler", err)
	}
	return ctx.JSON(http.StatusOK, views)
}

// runHandler runs the dispatcher synchronously and returns the report.
// Per-layer failures still yield 200; the report carries them.
func (s *APIService) runHandler(ctx echo.Context) error {
	var request runRequest
	if err := common.BindAndValidate(ctx, &request); err != nil {
		return err
	}

	result, err := s.coreService.Run(ctx.Request().Context(), core.RunRequest{
		ToolDir:     request.ToolDir,
		Datastore:   request.Datastore,
		ProjectFile: request.ProjectFile,
		Scan:        request.Scan,
	})
	var validationErrors validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrors):
		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case err != nil && result == nil:
		slog.Error("runHandler: failed to start run", "error", err)
		return ctx.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	case err != nil:
		slog.Error("runHandler: run aborted", "run_id", result.Run.ID, "error", err)
		return ctx.JSON(http.StatusInternalServerError, result)
	}
	return ctx.JSON(http.StatusOK, result)
}

func (s *APIService) listRunsHandler(ctx echo.Context) error {
	limit := defaultRunLimit
	if raw := ctx.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return ctx.JSON(http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
		}
		limit = parsed
	}
	runs, err := s.coreService.ListRuns(limit)
	if err != nil {
		return s.storeError(ctx, "listRunsHandler", err)
	}
	return ctx.JSON(http.StatusOK, runs)
}

func (s *APIService) getRunHandler(ctx echo.Context) error {
	detail, err := s.coreService.GetRun(ctx.Param("id"))
	if err != nil {
		return s.storeError(ctx, "getRunHandler", err)
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (s *APIService) liveProgressHandler(ctx echo.Context) error {
	lines, err := s.coreService.LiveProgress(ctx.Request().Context(), ctx.Param("id"))
	if errors.Is(err, core.ErrRedisDisabled) {
		return ctx.JSON(http.StatusNotImplemented, errorResponse{Error: err.Error()})
	}
	if err != nil {
		return s.storeError(ctx, "liveProgressHandler", err)
	}
	return ctx.JSON(http.StatusOK, lines)
}

func (s *APIService) storeError(ctx echo.Context, handler string, err error) error {
	if errors.Is(err, core.ErrNotFound) {
		return ctx.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	}
	slog.Error(handler+": request failed", "error", err)
	return ctx.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
}
