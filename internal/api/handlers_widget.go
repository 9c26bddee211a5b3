// handlers_widget.go - Widget page handler
package api

import (
	"net/http"

	"github.com/attachdrop/backend/internal/presenter"
	"github.com/attachdrop/backend/internal/storage"
	"github.com/attachdrop/backend/internal/web"
	"github.com/labstack/echo/v4"
)

// WidgetHandlerImpl implements the WidgetHandler interface
type WidgetHandlerImpl struct {
	*sessionResolver
	store   storage.Store
	limit   int
	maxSize int64
	version string
}

// NewWidgetHandler creates a new widget page handler
func NewWidgetHandler(sessions SessionManager, store storage.Store, defaultUser string, limit int, maxSize int64, version string) WidgetHandler {
	return &WidgetHandlerImpl{
		sessionResolver: &sessionResolver{sessions: sessions, defaultUser: defaultUser},
		store:           store,
		limit:           limit,
		maxSize:         maxSize,
		version:         version,
	}
}

// PartialGallery asks the page handler for the attachment cards only.
const PartialGallery = "gallery"

// HandleWidgetPage renders the drop zone, in-flight reads, errors and gallery.
// ?partial=gallery renders just the cards.
func (h *WidgetHandlerImpl) HandleWidgetPage(c echo.Context) error {
	list, err := h.store.List(h.limit)
	if err != nil {
		return NewInternalError("failed to list attachments", err)
	}

	if c.QueryParam("partial") == PartialGallery {
		return c.Render(http.StatusOK, web.GalleryTemplate, presenter.Gallery(storage.Descriptors(list)))
	}

	sess := h.resolve(c)

	page := presenter.NewPage(presenter.PageInput{
		User:        sess.User(),
		Version:     h.version,
		MaxFileSize: h.maxSize,
		Progress:    sess.Ingestor.Tracker().Snapshot(),
		Errors:      sess.Ingestor.Errors(),
		Attachments: storage.Descriptors(list),
	})
	return c.Render(http.StatusOK, web.WidgetTemplate, page)
}
