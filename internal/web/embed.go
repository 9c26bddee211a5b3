// Package web provides the embedded widget page, its script and styles.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html
var templateFiles embed.FS

//go:embed static/*
var staticFiles embed.FS

// WidgetTemplate is the name the page handler renders.
const WidgetTemplate = "widget.html"

// GalleryTemplate renders only the attachment cards, for in-place refreshes.
const GalleryTemplate = "gallery-cards"

// GetFileSystem returns the embedded filesystem with the static folder as root.
func GetFileSystem() (fs.FS, error) {
	return fs.Sub(staticFiles, "static")
}

// RegisterStaticRoutes serves the embedded script and styles under /static.
// The API routes should be registered before calling this function.
func RegisterStaticRoutes(e *echo.Echo) error {
	staticFS, err := GetFileSystem()
	if err != nil {
		return err
	}

	fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
	e.GET("/static/*", func(c echo.Context) error {
		name := strings.TrimPrefix(c.Param("*"), "/")
		if name == "" {
			return echo.NewHTTPError(http.StatusNotFound, "not found")
		}
		if _, err := fs.Stat(staticFS, name); err != nil {
			return echo.NewHTTPError(http.StatusNotFound, "static file not found")
		}
		fileServer.ServeHTTP(c.Response(), c.Request())
		return nil
	})

	return nil
}

// Renderer implements echo.Renderer over the embedded templates.
type Renderer struct {
	templates *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"previewURL": previewURL,
		"linkURL":    linkURL,
	}).ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	return &Renderer{templates: tmpl}, nil
}

// Render implements echo.Renderer.
func (r *Renderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

// previewURL lets embedded image data through html/template's URL filter.
// Anything other than an image data URL is dropped.
func previewURL(s string) template.URL {
	if strings.HasPrefix(s, "data:image/") {
		return template.URL(s)
	}
	return ""
}

// linkURL only passes http and https links.
func linkURL(s string) template.URL {
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return template.URL(s)
	}
	return "#"
}

// HasEmbeddedFiles returns true if the widget assets are embedded.
func HasEmbeddedFiles() bool {
	if _, err := fs.Stat(templateFiles, "templates/"+WidgetTemplate); err != nil {
		return false
	}
	_, err := fs.Stat(staticFiles, "static/widget.js")
	return err == nil
}
