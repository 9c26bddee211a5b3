package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/attachdrop/backend/internal/filetype"
	"github.com/attachdrop/backend/internal/models"
	"github.com/attachdrop/backend/internal/session"
	"github.com/attachdrop/backend/internal/storage"
	"github.com/attachdrop/backend/internal/testutil"
	"github.com/attachdrop/backend/internal/web"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil/promlint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type testEnv struct {
	e        *echo.Echo
	store    *storage.MemoryStore
	sessions *session.Manager
	source   *testutil.FakeSource
	reg      *prometheus.Registry
}

type envOption func(*Dependencies)

func withoutDeletion() envOption {
	return func(d *Dependencies) { d.AllowDeletion = false }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	store := storage.NewMemoryStore()
	source := testutil.NewFakeSource()
	sessions := session.NewManager(NewIngestorFactory(store, filetype.DefaultPolicy(), source, nil))
	reg := prometheus.NewRegistry()
	metrics := NewHTTPMetrics(reg, sessions)

	deps := &Dependencies{
		Store:         store,
		Sessions:      sessions,
		Metrics:       metrics,
		DefaultUser:   "anonymous",
		GalleryLimit:  50,
		MaxFileSize:   filetype.DefaultMaxFileSize,
		AllowDeletion: true,
		WSReadLimit:   32 << 20,
		Version:       "test",
	}
	for _, opt := range opts {
		opt(deps)
	}

	renderer, err := web.NewRenderer()
	require.NoError(t, err)

	e := echo.New()
	e.Renderer = renderer
	SetupMiddleware(e, metrics)
	handlers := NewHandlers(deps)
	RegisterRoutes(e, handlers)
	RegisterWebSocketRoutes(e, handlers)

	return &testEnv{e: e, store: store, sessions: sessions, source: source, reg: reg}
}

// do serves req and returns the recorder.
func (env *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

// sessionCookieFrom extracts the widget session cookie from a response.
func sessionCookieFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == SessionCookie {
			return ck
		}
	}
	t.Fatalf("response has no %s cookie", SessionCookie)
	return nil
}

func seed(t *testing.T, store storage.Store, descs ...models.FileDescriptor) []*storage.Attachment {
	t.Helper()
	var out []*storage.Attachment
	for _, d := range descs {
		a, err := store.Add(d)
		require.NoError(t, err)
		out = append(out, a)
	}
	return out
}

var (
	handbook = models.FileDescriptor{
		Name: "handbook.pdf", Content: "https://example.com/handbook.pdf",
		SemanticType: models.TypePDF, UploadedBy: "bob",
	}
	notes = models.FileDescriptor{
		Name: "notes.txt", Content: "data:text/plain;base64,aGk=",
		SemanticType: models.TypeDocument, UploadedBy: "alice",
		SizeBytes: models.Int64Ptr(2), IsOriginalUpload: true, MIMEType: "text/plain",
	}
)

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, float64(0), body["sessions"])
}

func TestWidgetPage(t *testing.T) {
	env := newTestEnv(t)
	seed(t, env.store, handbook)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserName, "carol")
	rec := env.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	html := rec.Body.String()
	assert.Contains(t, html, "Upload Files from Your Device")
	assert.Contains(t, html, "handbook.pdf")
	assert.Contains(t, html, `href="https://example.com/handbook.pdf"`)
	assert.Contains(t, html, `data-user="carol"`)

	ck := sessionCookieFrom(t, rec)
	assert.True(t, ck.HttpOnly)
	assert.Equal(t, 1, env.sessions.Count())

	// the cookie keeps the same session
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(ck)
	rec = env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
	assert.Equal(t, 1, env.sessions.Count())
}

func TestWidgetPage_GalleryPartial(t *testing.T) {
	env := newTestEnv(t)
	seed(t, env.store, handbook, notes)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/?partial=gallery", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	html := rec.Body.String()
	assert.Contains(t, html, `<div id="cards">`)
	assert.Equal(t, 2, strings.Count(html, `class="card"`))
	assert.Contains(t, html, "handbook.pdf")
	assert.NotContains(t, html, "<html")
	assert.NotContains(t, html, "drop-zone")

	// no session is created for a refresh
	assert.Empty(t, rec.Result().Cookies())
	assert.Equal(t, 0, env.sessions.Count())
}

func TestAttachmentHandler_List(t *testing.T) {
	env := newTestEnv(t)
	seed(t, env.store, handbook, notes)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantNames  []string
	}{
		{name: "newest first", query: "", wantStatus: http.StatusOK, wantNames: []string{"notes.txt", "handbook.pdf"}},
		{name: "limit", query: "?limit=1", wantStatus: http.StatusOK, wantNames: []string{"notes.txt"}},
		{name: "bad limit", query: "?limit=abc", wantStatus: http.StatusBadRequest},
		{name: "negative limit", query: "?limit=-1", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(httptest.NewRequest(http.MethodGet, "/api/attachments"+tt.query, nil))
			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				var apiErr APIError
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
				assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
				return
			}

			var list []storage.Attachment
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
			var names []string
			for _, a := range list {
				names = append(names, a.Name)
			}
			assert.Equal(t, tt.wantNames, names)
		})
	}
}

func TestAttachmentHandler_Msgpack(t *testing.T) {
	env := newTestEnv(t)
	seed(t, env.store, notes)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/attachments?format=msgpack", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MIMEApplicationMsgpack, rec.Header().Get(echo.HeaderContentType))

	var list []storage.Attachment
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "notes.txt", list[0].Name)
	assert.Equal(t, notes.Content, list[0].Content)
	require.NotNil(t, list[0].SizeBytes)
	assert.Equal(t, int64(2), *list[0].SizeBytes)
}

func TestAttachmentHandler_Delete(t *testing.T) {
	env := newTestEnv(t)
	added := seed(t, env.store, notes)

	rec := env.do(httptest.NewRequest(http.MethodDelete, "/api/attachments/"+added[0].ID, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, env.store.Len())

	rec = env.do(httptest.NewRequest(http.MethodDelete, "/api/attachments/"+added[0].ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
}

func TestAttachmentHandler_DeleteDisabled(t *testing.T) {
	env := newTestEnv(t, withoutDeletion())
	added := seed(t, env.store, notes)

	rec := env.do(httptest.NewRequest(http.MethodDelete, "/api/attachments/"+added[0].ID, nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 1, env.store.Len())
}

func TestErrorHandler(t *testing.T) {
	e := echo.New()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"api error", NewNotFoundError("attachment", "x"), http.StatusNotFound, "NOT_FOUND"},
		{"echo error", echo.NewHTTPError(http.StatusMethodNotAllowed, "nope"), http.StatusMethodNotAllowed, "HTTP_ERROR"},
		{"unknown error", assert.AnError, http.StatusInternalServerError, "UNKNOWN_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			ErrorHandler(tt.err, c)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body APIError
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Code)
		})
	}
}

func TestHTTPMetrics(t *testing.T) {
	env := newTestEnv(t)
	env.do(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	env.do(httptest.NewRequest(http.MethodGet, "/api/attachments?limit=abc", nil))

	families, err := env.reg.Gather()
	require.NoError(t, err)

	found := map[string]bool{}
	for _, mf := range families {
		found[mf.GetName()] = true
		if mf.GetName() != "attachdrop_http_requests_total" {
			continue
		}
		statuses := map[string]bool{}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "status" {
					statuses[lp.GetValue()] = true
				}
			}
		}
		assert.True(t, statuses["200"])
		assert.True(t, statuses["400"])
	}
	assert.True(t, found["attachdrop_http_requests_total"])
	assert.True(t, found["attachdrop_active_sessions"])

	problems, err := promlint.NewWithMetricFamilies(families).Lint()
	require.NoError(t, err)
	for _, p := range problems {
		assert.False(t, strings.Contains(p.Text, "counter metrics should have"), p.Text)
	}
}
