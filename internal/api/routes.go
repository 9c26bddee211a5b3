// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"github.com/attachdrop/backend/internal/storage"
	"github.com/labstack/echo/v4"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store         storage.Store
	Sessions      SessionManager
	Metrics       *HTTPMetrics
	DefaultUser   string
	GalleryLimit  int
	MaxFileSize   int64
	AllowDeletion bool
	WSReadLimit   int64
	Version       string
}

// Handlers holds all handler instances
type Handlers struct {
	Health     HealthHandler
	Widget     WidgetHandler
	Upload     UploadHandler
	Attachment AttachmentHandler
	WebSocket  *WebSocketHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:     NewHealthHandler(deps.Version, deps.Sessions),
		Widget:     NewWidgetHandler(deps.Sessions, deps.Store, deps.DefaultUser, deps.GalleryLimit, deps.MaxFileSize, deps.Version),
		Upload:     NewUploadHandler(deps.Sessions, deps.DefaultUser),
		Attachment: NewAttachmentHandler(deps.Store, deps.GalleryLimit, deps.AllowDeletion),
		WebSocket:  NewWebSocketHandler(deps.Sessions, deps.DefaultUser, deps.WSReadLimit, deps.Metrics),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Widget page
	e.GET("/", handlers.Widget.HandleWidgetPage)

	// Health check
	e.GET("/api/health", handlers.Health.HandleHealth)

	// Picker uploads
	e.POST("/api/files/upload", handlers.Upload.HandleUploadFiles)

	// Progress and error list
	uploadGroup := e.Group("/api/uploads")
	uploadGroup.GET("/progress", handlers.Upload.HandleGetProgress)
	uploadGroup.GET("/progress/stream", handlers.Upload.HandleProgressStream)
	uploadGroup.GET("/errors", handlers.Upload.HandleGetErrors)
	uploadGroup.DELETE("/errors", handlers.Upload.HandleClearErrors)
	uploadGroup.DELETE("/errors/:id", handlers.Upload.HandleDismissError)

	// Attachment list
	attachmentGroup := e.Group("/api/attachments")
	attachmentGroup.GET("", handlers.Attachment.HandleListAttachments)
	attachmentGroup.DELETE("/:id", handlers.Attachment.HandleDeleteAttachment)
}

// RegisterWebSocketRoutes registers WebSocket routes
func RegisterWebSocketRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/api/ws/uploads", handlers.WebSocket.HandleWebSocket)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, metrics *HTTPMetrics) {
	// Use custom error handler
	e.HTTPErrorHandler = ErrorHandler

	if metrics != nil {
		e.Use(metrics.Middleware())
	}
}
