package frontend

import (
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jo-hoe/cdbgen/internal/core"
)

const (
	MainPageName = "index.html"
	mimePNG      = "image/png"
	runListLimit = 10
)

type FrontendService struct {
	coreService *core.CoreService
	config      *core.ServiceConfig
}

func NewFrontendService(config *core.ServiceConfig, coreService *core.CoreService) *FrontendService {
	return &FrontendService{
		coreService: coreService,
		config:      config,
	}
}

// rootRedirectHandler redirects root path to index.html
func (service *FrontendService) rootRedirectHandler(ctx echo.Context) error {
	return ctx.Redirect(http.StatusMovedPermanently, "/"+MainPageName)
}

func (service *FrontendService) SetRoutes(e *echo.Echo) {
	e.Renderer = newTemplateRenderer()

	e.GET("/", service.rootRedirectHandler)
	e.GET("/"+MainPageName, service.indexHandler)

	e.GET("/htmx/layers", service.htmxListLayersHandler)
	e.POST("/htmx/layers", service.htmxRegisterLayerHandler)
	e.DELETE("/htmx/layer/:id", service.htmxDeleteLayerHandler)
	e.POST("/htmx/layer/:id/move", service.htmxMoveLayerHandler)
	e.GET("/htmx/layer/:id/thumb", service.htmxLayerThumbnailHandler)

	e.POST("/htmx/run", service.htmxRunHandler)
	e.GET("/htmx/runs", service.htmxListRunsHandler)
}

func (service *FrontendService) indexHandler(ctx echo.Context) error {
	return ctx.Render(http.StatusOK, MainPageName, indexPage{
		ToolDir:   service.config.Tools.Directory,
		Datastore: service.config.Output.Directory,
	})
}

func (service *FrontendService) htmxListLayersHandler(ctx echo.Context) error {
	listHTML, err := service.buildLayerListHTML(ctx)
	if err != nil {
		slog.Error("htmxListLayersHandler: failed to list layers",
			"status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to list layers")
	}
	service.setNoCache(ctx)
	return ctx.HTML(http.StatusOK, listHTML)
}

func (service *FrontendService) htmxRegisterLayerHandler(ctx echo.Context) error {
	source := strings.TrimSpace(ctx.FormValue("source"))
	if source == "" {
		return ctx.HTML(http.StatusOK, `<div id="register-result">Source is required</div>`)
	}

	record, err := service.coreService.RegisterLayer(strings.TrimSpace(ctx.FormValue("name")), source, ctx.FormValue("kind"), 0)
	if err != nil {
		slog.Warn("htmxRegisterLayerHandler: failed to register layer", "source", source, "error", err)
		return ctx.HTML(http.StatusOK, fmt.Sprintf(`<div id="register-result">Failed to add layer: %s</div>`, html.EscapeString(err.Error())))
	}

	listHTML, err := service.buildLayerListHTML(ctx)
	if err != nil {
		slog.Error("htmxRegisterLayerHandler: failed to list layers for OOB update", "error", err)
		return ctx.HTML(http.StatusOK, fmt.Sprintf(`<div id="register-result">Added layer: %s</div>`, html.EscapeString(record.Name)))
	}
	layerListOOB := fmt.Sprintf(`<div id="layer-list" hx-swap-oob="true">%s</div>`, listHTML)
	return ctx.HTML(http.StatusOK, fmt.Sprintf(`<div id="register-result">Added layer: %s (%d bands)</div>%s`,
		html.EscapeString(record.Name), record.BandCount, layerListOOB))
}

func (service *FrontendService) htmxDeleteLayerHandler(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := service.coreService.DeleteLayer(id); err != nil {
		slog.Error("htmxDeleteLayerHandler: failed to delete layer",
			"status", http.StatusInternalServerError, "layer_id", id, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to delete layer")
	}
	return service.htmxListLayersHandler(ctx)
}

func (service *FrontendService) htmxMoveLayerHandler(ctx echo.Context) error {
	id := ctx.Param("id")
	dir := strings.ToLower(strings.TrimSpace(ctx.QueryParam("dir")))
	if dir != "up" && dir != "down" {
		slog.Warn("htmxMoveLayerHandler: invalid params", "id", id, "dir", dir)
		return ctx.String(http.StatusBadRequest, "Invalid parameters")
	}
	if err := service.coreService.MoveLayer(id, dir); err != nil {
		slog.Error("htmxMoveLayerHandler: failed to update order", "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to update order")
	}
	return service.htmxListLayersHandler(ctx)
}

func (service *FrontendService) htmxLayerThumbnailHandler(ctx echo.Context) error {
	id := ctx.Param("id")
	thumbnail, err := service.coreService.LayerThumbnail(id)
	if err != nil || len(thumbnail) == 0 {
		slog.Warn("htmxLayerThumbnailHandler: thumbnail not available",
			"status", http.StatusNotFound, "layer_id", id, "error", err)
		return ctx.String(http.StatusNotFound, "Thumbnail not available")
	}
	service.setNoCache(ctx)
	return ctx.Blob(http.StatusOK, mimePNG, thumbnail)
}

func (service *FrontendService) htmxRunHandler(ctx echo.Context) error {
	result, err := service.coreService.Run(ctx.Request().Context(), core.RunRequest{
		ToolDir:   strings.TrimSpace(ctx.FormValue("toolDir")),
		Datastore: strings.TrimSpace(ctx.FormValue("datastore")),
	})
	if result == nil {
		slog.Warn("htmxRunHandler: run not started", "error", err)
		return ctx.HTML(http.StatusOK, fmt.Sprintf(`<p>Run not started: %s</p>`, html.EscapeString(err.Error())))
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf(`<p>Run <code>%s</code> %s</p><pre>`, html.EscapeString(result.Run.ID), html.EscapeString(result.Run.Status)))
	for _, line := range result.Progress {
		b.WriteString(html.EscapeString(line))
		b.WriteString("\n")
	}
	b.WriteString(`</pre>`)
	if err != nil {
		b.WriteString(fmt.Sprintf(`<p>Run aborted: %s</p>`, html.EscapeString(err.Error())))
	}

	if runsHTML, listErr := service.buildRunListHTML(); listErr == nil {
		b.WriteString(fmt.Sprintf(`<div id="run-list" hx-swap-oob="true">%s</div>`, runsHTML))
	} else {
		slog.Error("htmxRunHandler: failed to list runs for OOB update", "error", listErr)
	}
	service.setNoCache(ctx)
	return ctx.HTML(http.StatusOK, b.String())
}

func (service *FrontendService) htmxListRunsHandler(ctx echo.Context) error {
	runsHTML, err := service.buildRunListHTML()
	if err != nil {
		slog.Error("htmxListRunsHandler: failed to list runs", "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to list runs")
	}
	service.setNoCache(ctx)
	return ctx.HTML(http.StatusOK, runsHTML)
}

func (service *FrontendService) setNoCache(ctx echo.Context) {
	ctx.Response().Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	ctx.Response().Header().Set("Pragma", "no-cache")
	ctx.Response().Header().Set("Expires", "0")
}

func (service *FrontendService) buildLayerListHTML(ctx echo.Context) (string, error) {
	// Render strictly in persisted rank order for deterministic Up/Down moves
	views, err := service.coreService.CatalogLayers(ctx.Request().Context())
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if len(views) == 0 {
		b.WriteString(`<p>No layers registered yet.</p>`)
		return b.String(), nil
	}

	b.WriteString(`<table><thead><tr><th></th><th>Name</th><th>Source</th><th>Kind</th><th>Bands</th><th>Class</th><th></th></tr></thead><tbody>`)
	for i, view := range views {
		disableUp := ""
		disableDown := ""
		if i == 0 {
			disableUp = " disabled"
		}
		if i == len(views)-1 {
			disableDown = " disabled"
		}
		source := html.EscapeString(view.Source)
		if !view.Exists {
			source = "<del>" + source + "</del>"
		}
		id := html.EscapeString(view.ID)
		preview := ""
		if view.Exists && view.IsRaster() {
			preview = fmt.Sprintf(`<img src="/htmx/layer/%s/thumb?ts=%d" alt="Preview %s" style="max-width:96px;height:auto">`,
				id, time.Now().UnixNano(), html.EscapeString(view.Name))
		}

		b.WriteString(fmt.Sprintf(`<tr data-id="%s"><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%d</td><td>%s</td><td>
	<div role="group">
		<button hx-post="/htmx/layer/%s/move?dir=up" hx-target="#layer-list" hx-swap="innerHTML"%s aria-label="Move up" title="Move up">&uarr;</button>
		<button hx-post="/htmx/layer/%s/move?dir=down" hx-target="#layer-list" hx-swap="innerHTML"%s aria-label="Move down" title="Move down">&darr;</button>
		<button hx-delete="/htmx/layer/%s" hx-target="#layer-list" hx-swap="innerHTML" class="secondary">Delete</button>
	</div>
</td></tr>`, id, preview, html.EscapeString(view.Name), source, view.Kind, view.BandCount, view.Class, id, disableUp, id, disableDown, id))
	}
	b.WriteString(`</tbody></table>`)
	return b.String(), nil
}

func (service *FrontendService) buildRunListHTML() (string, error) {
	runs, err := service.coreService.ListRuns(runListLimit)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return `<p>No runs yet.</p>`, nil
	}

	var b strings.Builder
	b.WriteString(`<table><thead><tr><th>Started</th><th>Datastore</th><th>Status</th></tr></thead><tbody>`)
	for _, run := range runs {
		b.WriteString(fmt.Sprintf(`<tr><td>%s</td><td>%s</td><td><a href="/api/runs/%s">%s</a></td></tr>`,
			run.StartedAt.Format("2006-01-02 15:04:05"),
			html.EscapeString(run.Datastore),
			html.EscapeString(run.ID),
			html.EscapeString(run.Status)))
	}
	b.WriteString(`</tbody></table>`)
	return b.String(), nil
}
