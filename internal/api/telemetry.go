package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/roomwatch-core/internal/infrastructure/config"
	"github.com/nerrad567/roomwatch-core/internal/telemetry"
)

// Live feed constants.
const (
	// EventTelemetry names the SSE event and websocket event_type.
	EventTelemetry = "telemetry"

	WSTypeEvent = "event"

	// wsWriteWait bounds a single websocket write.
	wsWriteWait = 10 * time.Second
)

// WSMessage is the websocket frame carrying one telemetry record.
type WSMessage struct {
	Type      string `json:"type"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// upgrader configures the WebSocket upgrader. Origin checking is handled
// by the CORS middleware.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// handleRecentTelemetry returns up to ?limit= records (default 300, 1..1000),
// newest first.
func (s *Server) handleRecentTelemetry(w http.ResponseWriter, r *http.Request) {
	d, ok := s.authorizeDeviceRead(w, r)
	if !ok {
		return
	}

	limit := telemetry.DefaultLimit
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		limit = telemetry.ClampLimit(n)
	}

	records, err := s.telemetry.Recent(r.Context(), d.ID, limit)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if records == nil {
		records = []telemetry.Record{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"device_id": d.ID, "items": records})
}

// handleTelemetryStream serves the device's live feed as Server-Sent Events.
// Records stored before the ": connected" comment are not replayed. The
// stream ends when the client disconnects.
func (s *Server) handleTelemetryStream(w http.ResponseWriter, r *http.Request) {
	d, ok := s.authorizeDeviceRead(w, r)
	if !ok {
		return
	}

	head, err := s.poller.Head(r.Context(), d.ID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	rc := http.NewResponseController(w)
	// The server write timeout would cut the stream; a failure here only
	// means the writer has no deadline to clear.
	_ = rc.SetWriteDeadline(time.Time{}) //nolint:errcheck // see above

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		s.logger.Warn("telemetry stream cannot flush", "device_id", d.ID, "error", err)
		return
	}

	err = s.poller.SubscribeFrom(r.Context(), d.ID, head, func(rec telemetry.Record) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encoding record: %w", err)
		}
		c := telemetry.Of(rec)
		if _, err := fmt.Fprintf(w, "id: %d-%d\nevent: %s\ndata: %s\n\n", c.Timestamp, c.Seq, EventTelemetry, data); err != nil {
			return err
		}
		return rc.Flush()
	})
	if err != nil {
		s.logger.Debug("telemetry stream ended", "device_id", d.ID, "error", err)
	}
}

// handleTelemetryWebSocket serves the same feed over a websocket. The
// subscription is cancelled as soon as the read pump sees the connection
// fail or close.
func (s *Server) handleTelemetryWebSocket(w http.ResponseWriter, r *http.Request) {
	d, ok := s.authorizeDeviceRead(w, r)
	if !ok {
		return
	}

	head, err := s.poller.Head(r.Context(), d.ID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go s.wsReadPump(conn, cancel)
	go s.wsPing(ctx, conn, cancel)

	err = s.poller.SubscribeFrom(ctx, d.ID, head, func(rec telemetry.Record) error {
		//nolint:errcheck // Best-effort deadline; write error caught below
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(WSMessage{
			Type:      WSTypeEvent,
			EventType: EventTelemetry,
			Timestamp: rec.Timestamp.UTC().Format(time.RFC3339Nano),
			Payload:   rec,
		})
	})
	if err != nil {
		s.logger.Debug("telemetry websocket ended", "device_id", d.ID, "error", err)
	}

	//nolint:errcheck // Best-effort close frame
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
}

// wsReadPump discards client frames and cancels the subscription when the
// connection drops. Pongs extend the read deadline.
func (s *Server) wsReadPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	pingInterval, pongWait := wsTimings(s.wsCfg)
	if s.wsCfg.MaxMessageSize > 0 {
		conn.SetReadLimit(int64(s.wsCfg.MaxMessageSize))
	}
	//nolint:errcheck // Best-effort deadline on connection setup
	conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	}
}

// wsPing sends protocol pings. WriteControl may run concurrently with the
// subscription's writes.
func (s *Server) wsPing(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc) {
	pingInterval, pongWait := wsTimings(s.wsCfg)
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(pongWait)); err != nil {
				cancel()
				return
			}
		}
	}
}

func wsTimings(cfg config.WebSocketConfig) (pingInterval, pongWait time.Duration) {
	pingInterval = time.Duration(cfg.PingInterval) * time.Second
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	pongWait = time.Duration(cfg.PongTimeout) * time.Second
	if pongWait <= 0 {
		pongWait = 10 * time.Second
	}
	return pingInterval, pongWait
}
