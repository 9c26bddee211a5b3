// handlers_attachments.go - Attachment list handlers
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/attachdrop/backend/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// MIMEApplicationMsgpack is the content type of msgpack responses.
const MIMEApplicationMsgpack = "application/msgpack"

// AttachmentHandlerImpl implements the AttachmentHandler interface
type AttachmentHandlerImpl struct {
	store         storage.Store
	limit         int
	allowDeletion bool
}

// NewAttachmentHandler creates a new attachment handler
func NewAttachmentHandler(store storage.Store, limit int, allowDeletion bool) AttachmentHandler {
	return &AttachmentHandlerImpl{
		store:         store,
		limit:         limit,
		allowDeletion: allowDeletion,
	}
}

// HandleListAttachments returns the newest attachments first.
// ?limit=N overrides the configured limit, ?format=msgpack switches encoding.
func (h *AttachmentHandlerImpl) HandleListAttachments(c echo.Context) error {
	limit := h.limit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return NewValidationError("limit")
		}
		limit = n
	}

	list, err := h.store.List(limit)
	if err != nil {
		return NewInternalError("failed to list attachments", err)
	}

	if c.QueryParam("format") == "msgpack" {
		data, err := msgpack.Marshal(list)
		if err != nil {
			return NewInternalError("failed to encode attachments", err)
		}
		return c.Blob(http.StatusOK, MIMEApplicationMsgpack, data)
	}

	return c.JSON(http.StatusOK, list)
}

// HandleDeleteAttachment removes an attachment when deletion is enabled
func (h *AttachmentHandlerImpl) HandleDeleteAttachment(c echo.Context) error {
	if !h.allowDeletion {
		return NewForbiddenError("attachment deletion is disabled")
	}

	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if err := h.store.Delete(id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return NewNotFoundError("attachment", id)
		}
		return NewInternalError("failed to delete attachment", err)
	}
	return c.NoContent(http.StatusNoContent)
}
