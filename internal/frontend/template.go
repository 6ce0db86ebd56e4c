package frontend

import (
	"html/template"
	"io"

	"github.com/labstack/echo/v4"
)

const indexView = `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8">
	<meta name="viewport" content="width=device-width, initial-scale=1">
	<title>cdbgen</title>
	<link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/@picocss/pico@2/css/pico.min.css">
	<script src="https://unpkg.com/htmx.org@2.0.4"></script>
</head>
<body>
<main class="container">
	<h1>cdbgen</h1>
	<section>
		<h2>Layers</h2>
		<form hx-post="/htmx/layers" hx-target="#register-result" hx-swap="innerHTML">
			<fieldset role="group">
				<input name="name" placeholder="Name (optional)">
				<input name="source" placeholder="/data/imagery/ortho.tif" required>
				<select name="kind">
					<option value="raster">raster</option>
					<option value="vector">vector</option>
				</select>
				<button type="submit">Add</button>
			</fieldset>
		</form>
		<div id="register-result"></div>
		<div id="layer-list" hx-get="/htmx/layers" hx-trigger="load" hx-swap="innerHTML"></div>
	</section>
	<section>
		<h2>Run</h2>
		<form hx-post="/htmx/run" hx-target="#run-result" hx-swap="innerHTML" hx-indicator="#run-busy">
			<fieldset role="group">
				<input name="toolDir" placeholder="Tool directory" value="{{.ToolDir}}">
				<input name="datastore" placeholder="CDB datastore" value="{{.Datastore}}">
				<button type="submit">Generate CDB</button>
			</fieldset>
		</form>
		<progress id="run-busy" class="htmx-indicator"></progress>
		<div id="run-result"></div>
		<div id="run-list" hx-get="/htmx/runs" hx-trigger="load" hx-swap="innerHTML"></div>
	</section>
</main>
</body>
</html>`

// indexPage is the data rendered into the index view.
type indexPage struct {
	ToolDir   string
	Datastore string
}

// Template implements echo.Renderer over the parsed views.
type Template struct {
	templates *template.Template
}

func newTemplateRenderer() *Template {
	return &Template{
		templates: template.Must(template.New(MainPageName).Parse(indexView)),
	}
}

func (t *Template) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	return t.templates.ExecuteTemplate(w, name, data)
}
