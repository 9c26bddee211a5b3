package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/attachdrop/backend/internal/session"
	"github.com/attachdrop/backend/internal/upload"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// WebSocket message types for the drop protocol
const (
	// Client -> Server messages
	MsgTypeUploadFile = "upload:file"
	MsgTypePing       = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeAck       = "ack"
	MsgTypeStarted   = "started"
	MsgTypeProgress  = "progress"
	MsgTypeComplete  = "complete"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
)

// WebSocket message structure
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// FileUploadPayload carries one dropped file
type FileUploadPayload struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
	Data string `json:"data"` // Base64 encoded file, empty when the client skipped an oversize file
}

// WSConnectedResponse greets a new connection
type WSConnectedResponse struct {
	SessionID string `json:"sessionId"`
	User      string `json:"user"`
}

// WSAckResponse acknowledges an upload:file message
type WSAckResponse struct {
	ReadIDs  []string `json:"readIds"`
	Rejected int      `json:"rejected"`
}

// WebSocket error response
type WSErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// WebSocketHandler accepts dropped files over a websocket and pushes the
// session's ingestion events back on the same connection.
type WebSocketHandler struct {
	*sessionResolver
	upgrader  websocket.Upgrader
	readLimit int64
	metrics   *HTTPMetrics
}

// NewWebSocketHandler creates a new WebSocket upload handler
func NewWebSocketHandler(sessions SessionManager, defaultUser string, readLimit int64, metrics *HTTPMetrics) *WebSocketHandler {
	return &WebSocketHandler{
		sessionResolver: &sessionResolver{sessions: sessions, defaultUser: defaultUser},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// The widget is embedded by host pages on other origins
				return true
			},
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
		},
		readLimit: readLimit,
		metrics:   metrics,
	}
}

// wsConn serializes writes; gorilla allows one concurrent writer.
type wsConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) send(msg WSMessage) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.ws.WriteJSON(msg); err != nil {
		log.Debugf("[WebSocket] Failed to send message: %v", err)
	}
}

func (w *wsConn) sendError(id, message, code string) {
	w.send(WSMessage{
		Type:      MsgTypeError,
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
		Payload: mustJSON(WSErrorResponse{
			Type:    MsgTypeError,
			Message: message,
			Code:    code,
		}),
	})
}

// HandleWebSocket upgrades HTTP connection to WebSocket and handles the drop protocol
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	sess, created := wsh.lookup(c)
	var header http.Header
	if created {
		header = http.Header{}
		header.Add("Set-Cookie", sessionCookie(sess.ID).String())
	}

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), header)
	if err != nil {
		return err
	}
	defer ws.Close()
	if wsh.readLimit > 0 {
		ws.SetReadLimit(wsh.readLimit)
	}

	wsh.metrics.wsOpened()
	defer wsh.metrics.wsClosed()

	conn := &wsConn{ws: ws}
	log.Infof("[WebSocket] Client connected (%s)", sess)

	events, cancel := sess.Events.Subscribe()
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	go wsh.forwardEvents(conn, events, done)

	conn.send(WSMessage{
		Type:      MsgTypeConnected,
		Timestamp: time.Now().UnixMilli(),
		Payload:   mustJSON(WSConnectedResponse{SessionID: sess.ID, User: sess.User().Name}),
	})

	// Main message loop
	for {
		var msg WSMessage
		err := ws.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnf("[WebSocket] Connection error: %v", err)
			}
			break
		}

		switch msg.Type {
		case MsgTypePing:
			conn.send(WSMessage{Type: MsgTypePong, ID: msg.ID, Timestamp: time.Now().UnixMilli()})
		case MsgTypeUploadFile:
			wsh.handleUploadFile(c, conn, sess, msg)
		default:
			conn.sendError(msg.ID, "Unknown message type: "+msg.Type, "INVALID_TYPE")
		}
	}

	log.Infof("[WebSocket] Client disconnected (%s)", sess)
	return nil
}

// forwardEvents pushes session events to the client until done closes.
func (wsh *WebSocketHandler) forwardEvents(conn *wsConn, events <-chan upload.Event, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			conn.send(WSMessage{
				Type:      string(ev.Type),
				ID:        ev.ReadID,
				Payload:   mustJSON(ev),
				Timestamp: ev.Timestamp,
			})
		}
	}
}

// handleUploadFile decodes one dropped file and hands it to the ingestor.
// Results arrive through the event stream.
func (wsh *WebSocketHandler) handleUploadFile(c echo.Context, conn *wsConn, sess *session.Session, msg WSMessage) {
	var payload FileUploadPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		conn.sendError(msg.ID, "Invalid upload payload: "+err.Error(), "INVALID_PAYLOAD")
		return
	}
	if payload.Name == "" {
		conn.sendError(msg.ID, "File name is required", "INVALID_PAYLOAD")
		return
	}

	data, err := base64.StdEncoding.DecodeString(payload.Data)
	if err != nil {
		conn.sendError(msg.ID, "Invalid base64 data: "+err.Error(), "INVALID_DATA")
		return
	}

	f := &upload.BytesFile{
		FileName: payload.Name,
		MIMEType: payload.Type,
		Data:     data,
	}
	if len(data) == 0 {
		f.DeclaredSize = payload.Size
	}

	// Reads outlive the connection; their results land in the session.
	ctx := context.WithoutCancel(c.Request().Context())
	batch := sess.Ingestor.Process(ctx, sess.User(), []upload.FileHandle{f})
	conn.send(WSMessage{
		Type:      MsgTypeAck,
		ID:        msg.ID,
		Timestamp: time.Now().UnixMilli(),
		Payload:   mustJSON(WSAckResponse{ReadIDs: batch.ReadIDs, Rejected: len(batch.Rejected)}),
	})
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
