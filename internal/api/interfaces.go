// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"github.com/attachdrop/backend/internal/models"
	"github.com/attachdrop/backend/internal/session"
	"github.com/labstack/echo/v4"
)

// WidgetHandler renders the widget page
type WidgetHandler interface {
	HandleWidgetPage(c echo.Context) error
}

// UploadHandler handles picker uploads and the per-session progress and error state
type UploadHandler interface {
	HandleUploadFiles(c echo.Context) error
	HandleGetProgress(c echo.Context) error
	HandleProgressStream(c echo.Context) error
	HandleGetErrors(c echo.Context) error
	HandleDismissError(c echo.Context) error
	HandleClearErrors(c echo.Context) error
}

// AttachmentHandler handles the caller-side attachment list
type AttachmentHandler interface {
	HandleListAttachments(c echo.Context) error
	HandleDeleteAttachment(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SessionManager defines the interface for session management
// This allows mocking in tests
type SessionManager interface {
	GetOrCreate(id string, user models.User) (*session.Session, bool)
	Count() int
}
