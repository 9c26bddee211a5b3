package web

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/attachdrop/backend/internal/filetype"
	"github.com/attachdrop/backend/internal/models"
	"github.com/attachdrop/backend/internal/presenter"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasEmbeddedFiles(t *testing.T) {
	assert.True(t, HasEmbeddedFiles())
}

func TestRenderer_Widget(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	page := presenter.NewPage(presenter.PageInput{
		User:        models.User{Name: "alice"},
		MaxFileSize: filetype.DefaultMaxFileSize,
		Attachments: []models.FileDescriptor{
			{Name: "photo.png", Content: "data:image/png;base64,iVBORw0KGgo=", SemanticType: models.TypeImage, IsOriginalUpload: true},
			{Name: "handbook.pdf", Content: "https://example.com/handbook.pdf", SemanticType: models.TypePDF},
		},
	})

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, WidgetTemplate, page, nil))
	html := buf.String()

	assert.Contains(t, html, `src="data:image/png;base64,iVBORw0KGgo="`)
	assert.Contains(t, html, `href="https://example.com/handbook.pdf"`)
	assert.Contains(t, html, "Upload Files from Your Device")
	assert.Contains(t, html, `data-user="alice"`)
	assert.Contains(t, html, "📕")
	assert.NotContains(t, html, "ZgotmplZ")
}

func TestURLFilters(t *testing.T) {
	assert.Equal(t, "", string(previewURL("javascript:alert(1)")))
	assert.Equal(t, "", string(previewURL("data:text/html;base64,PGgxPg==")))
	assert.Equal(t, "#", string(linkURL("javascript:alert(1)")))
	assert.Equal(t, "HTTPS://x.test/a", string(linkURL("HTTPS://x.test/a")))
}

func TestRegisterStaticRoutes(t *testing.T) {
	e := echo.New()
	require.NoError(t, RegisterStaticRoutes(e))

	req := httptest.NewRequest(http.MethodGet, "/static/widget.js", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "upload:file")

	req = httptest.NewRequest(http.MethodGet, "/static/missing.js", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
