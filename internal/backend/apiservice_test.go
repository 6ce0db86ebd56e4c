package backend

import (
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jo-hoe/cdbgen/internal/backend/database"
	"github.com/jo-hoe/cdbgen/internal/common"
	"github.com/jo-hoe/cdbgen/internal/core"
)

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	svc, err := core.NewCoreService(core.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	e := echo.New()
	e.Validator = &common.GenericEchoValidator{}
	NewAPIService(svc).SetRoutes(e)
	return e
}

func do(t *testing.T, e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func writeRGBA(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "ortho.png")
	file, err := os.Create(path)
	require.NoError(t, err)
	defer func() { _ = file.Close() }()
	require.NoError(t, png.Encode(file, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return path
}

func TestProbe(t *testing.T) {
	e := newTestServer(t)
	rec := do(t, e, http.MethodGet, "/probe", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProbeFile(t *testing.T) {
	e := newTestServer(t)
	path := writeRGBA(t, t.TempDir())

	rec := do(t, e, http.MethodGet, "/api/probe?path="+path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var result core.ProbeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 4, result.Bands)
	assert.Equal(t, "imagery", string(result.Class))

	rec = do(t, e, http.MethodGet, "/api/probe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, e, http.MethodGet, "/api/probe?path="+filepath.Join(t.TempDir(), "missing.tif"), "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestLayerLifecycle(t *testing.T) {
	e := newTestServer(t)
	dir := t.TempDir()
	ortho := writeRGBA(t, dir)

	rec := do(t, e, http.MethodPost, "/api/layers", `{"source":"`+ortho+`","kind":"raster"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var first database.LayerRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.Equal(t, "ortho", first.Name)
	assert.Equal(t, 4, first.BandCount)

	rec = do(t, e, http.MethodPost, "/api/layers", `{"name":"roads","source":"/data/roads.shp","kind":"vector"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var second database.LayerRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))

	rec = do(t, e, http.MethodPost, "/api/layers/"+second.ID+"/move?dir=up", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var views []core.LayerView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 2)
	assert.Equal(t, second.ID, views[0].ID)
	assert.Equal(t, "ignored", string(views[0].Class))
	assert.False(t, views[0].Exists)

	rec = do(t, e, http.MethodGet, "/api/layers?source=catalog", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, e, http.MethodDelete, "/api/layers/"+first.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, e, http.MethodDelete, "/api/layers/"+first.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegisterLayer_Invalid(t *testing.T) {
	e := newTestServer(t)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"missing source", `{"kind":"raster"}`, http.StatusBadRequest},
		{"unknown kind", `{"source":"/a.tif","kind":"mesh"}`, http.StatusBadRequest},
		{"malformed", `{"source":`, http.StatusBadRequest},
		{"unreadable raster", `{"source":"/does/not/exist.tif","kind":"raster"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, e, http.MethodPost, "/api/layers", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}

func TestMoveLayer_InvalidDirection(t *testing.T) {
	e := newTestServer(t)
	rec := do(t, e, http.MethodPost, "/api/layers/any/move?dir=left", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, e, http.MethodPost, "/api/layers/missing/move?dir=up", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRun_MissingToolReportsFailedLayer(t *testing.T) {
	e := newTestServer(t)
	dir := t.TempDir()
	ortho := writeRGBA(t, dir)
	project := filepath.Join(dir, "project.yaml")
	require.NoError(t, os.WriteFile(project, []byte("layers:\n  - name: ortho\n    source: ortho.png\n"), 0644))

	body := `{"toolDir":"` + filepath.Join(dir, "no-tools") + `","datastore":"` + filepath.Join(dir, "cdb") + `","projectFile":"` + project + `"}`
	rec := do(t, e, http.MethodPost, "/api/runs", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result struct {
		Run      database.Run `json:"run"`
		Progress []string     `json:"progress"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, database.RunStatusFailed, result.Run.Status)
	require.GreaterOrEqual(t, len(result.Progress), 3)
	assert.Equal(t, "Processing "+ortho, result.Progress[1])
	assert.Equal(t, "Processing imagery file "+ortho, result.Progress[2])

	rec = do(t, e, http.MethodGet, "/api/runs/"+result.Run.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var detail core.RunDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, result.Progress, detail.Progress)

	rec = do(t, e, http.MethodGet, "/api/runs?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []database.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	assert.Len(t, runs, 1)

	rec = do(t, e, http.MethodGet, "/api/runs/"+result.Run.ID+"/live", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestRun_InvalidParameters(t *testing.T) {
	e := newTestServer(t)
	rec := do(t, e, http.MethodPost, "/api/runs", `{"datastore":"/data/cdb"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, e, http.MethodGet, "/api/runs?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, e, http.MethodGet, "/api/runs/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
