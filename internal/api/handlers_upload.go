// handlers_upload.go - Picker upload, progress and error list handlers
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/attachdrop/backend/internal/models"
	"github.com/attachdrop/backend/internal/upload"
	"github.com/labstack/echo/v4"
)

// UploadFormField is the multipart field the native picker posts files under.
const UploadFormField = "files"

// sseHeartbeat keeps idle progress streams open through proxies.
const sseHeartbeat = 15 * time.Second

// UploadHandlerImpl implements the UploadHandler interface
type UploadHandlerImpl struct {
	*sessionResolver
}

// NewUploadHandler creates a new upload handler instance
func NewUploadHandler(sessions SessionManager, defaultUser string) UploadHandler {
	return &UploadHandlerImpl{
		sessionResolver: &sessionResolver{sessions: sessions, defaultUser: defaultUser},
	}
}

// uploadResponse reports the outcome of one picker submission.
type uploadResponse struct {
	ReadIDs []string             `json:"readIds"`
	Emitted int                  `json:"emitted"`
	Errors  []models.IngestError `json:"errors"`
}

// HandleUploadFiles runs every file of a multipart submission through the
// session's ingestor. It waits for the reads so the form's temp files stay
// valid until they are consumed.
func (h *UploadHandlerImpl) HandleUploadFiles(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return NewBadRequestError("invalid multipart form", err)
	}

	headers := form.File[UploadFormField]
	if len(headers) == 0 {
		return NewValidationError(UploadFormField)
	}

	sess := h.resolve(c)
	files := make([]upload.FileHandle, 0, len(headers))
	for _, fh := range headers {
		files = append(files, &upload.MultipartFile{Header: fh})
	}

	batch := sess.Ingestor.Process(c.Request().Context(), sess.User(), files)
	batch.Wait()

	resp := uploadResponse{
		ReadIDs: batch.ReadIDs,
		Errors:  make([]models.IngestError, 0, len(batch.Rejected)),
	}
	for _, e := range batch.Rejected {
		resp.Errors = append(resp.Errors, *e)
	}

	failed := 0
	inBatch := make(map[string]bool, len(batch.ReadIDs))
	for _, id := range batch.ReadIDs {
		inBatch[id] = true
	}
	for _, e := range sess.Ingestor.Errors() {
		if e.ReadID != "" && inBatch[e.ReadID] {
			resp.Errors = append(resp.Errors, e)
			failed++
		}
	}
	resp.Emitted = len(batch.ReadIDs) - failed

	return c.JSON(http.StatusOK, resp)
}

// HandleGetProgress returns the in-flight reads of the session
func (h *UploadHandlerImpl) HandleGetProgress(c echo.Context) error {
	sess := h.resolve(c)
	return c.JSON(http.StatusOK, sess.Ingestor.Tracker().Snapshot())
}

// HandleProgressStream streams ingestion events via SSE.
// The current snapshot is sent first, then every event until the client goes away.
func (h *UploadHandlerImpl) HandleProgressStream(c echo.Context) error {
	sess := h.resolve(c)
	events, cancel := sess.Events.Subscribe()
	defer cancel()

	// Set SSE headers
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	writeSSE(c, "snapshot", sess.Ingestor.Tracker().Snapshot())

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case <-heartbeat.C:
			fmt.Fprint(c.Response(), ": keep-alive\n\n")
			c.Response().Flush()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			writeSSE(c, string(ev.Type), ev)
		}
	}
}

func writeSSE(c echo.Context, event string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(c.Response(), "event: %s\ndata: %s\n\n", event, data)
	c.Response().Flush()
}

// HandleGetErrors returns the session's error list, oldest first
func (h *UploadHandlerImpl) HandleGetErrors(c echo.Context) error {
	sess := h.resolve(c)
	return c.JSON(http.StatusOK, sess.Ingestor.Errors())
}

// HandleDismissError removes one error from the list
func (h *UploadHandlerImpl) HandleDismissError(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	sess := h.resolve(c)
	if !sess.Ingestor.DismissError(id) {
		return NewNotFoundError("error", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleClearErrors empties the error list
func (h *UploadHandlerImpl) HandleClearErrors(c echo.Context) error {
	sess := h.resolve(c)
	sess.Ingestor.ClearErrors()
	return c.NoContent(http.StatusNoContent)
}
