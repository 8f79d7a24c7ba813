package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"ai-session-insights-service/internal/models"
	"ai-session-insights-service/internal/observability/logging"
	"ai-session-insights-service/internal/service/session"
)

const (
	clientBuffer = 64
	writeTimeout = 5 * time.Second
)

// Controller starts and stops the recording session.
type Controller interface {
	Start(ctx context.Context) (session.StartResult, error)
	Stop(ctx context.Context) (*models.SessionRecord, error)
}

// Command is a client message on the WebSocket.
type Command struct {
	Type string `json:"type"` // start, stop
}

// Reply answers a Command.
type Reply struct {
	Type             string                `json:"type"` // started, stopped, error
	SessionID        string                `json:"sessionId,omitempty"`
	AlreadyRecording bool                  `json:"alreadyRecording,omitempty"`
	Record           *models.SessionRecord `json:"record,omitempty"`
	Message          string                `json:"message,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan any
}

// Hub broadcasts session events to every WebSocket client and accepts
// start/stop commands from them. Each client has one writer goroutine, so
// a client sees events in publish order.
type Hub struct {
	sessions Controller
	logger   zerolog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates a hub. sessions may be nil, which makes commands fail.
func NewHub(sessions Controller) *Hub {
	return &Hub{
		sessions: sessions,
		logger:   logging.WithComponent("ws"),
		clients:  make(map[*client]struct{}),
	}
}

func (h *Hub) UtteranceReady(_ context.Context, ev models.UtteranceReady) { h.broadcast(ev) }
func (h *Hub) SessionEnding(_ context.Context, ev models.SessionEnding)   { h.broadcast(ev) }
func (h *Hub) SessionClosed(_ context.Context, ev models.SessionClosed)   { h.broadcast(ev) }

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// broadcast never blocks; a client whose buffer is full misses the event.
func (h *Hub) broadcast(v any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- v:
		default:
			h.logger.Warn().Msg("WebSocket client too slow, dropping event")
		}
	}
}

// ServeHTTP upgrades the request and serves the client until it leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket accept failed")
		return
	}

	c := &client{conn: conn, send: make(chan any, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Info().Str("remote", r.RemoteAddr).Msg("WebSocket connected")

	ctx, cancel := context.WithCancel(r.Context())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writeLoop(ctx, c)
	}()

	h.readLoop(ctx, c)

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	cancel()
	<-done
	_ = conn.Close(websocket.StatusNormalClosure, "")
	h.logger.Info().Str("remote", r.RemoteAddr).Msg("WebSocket disconnected")
}

func (h *Hub) writeLoop(ctx context.Context, c *client) {
	for {
		select {
		case <-ctx.Done():
			return
		case v := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, c.conn, v)
			cancel()
			if err != nil {
				h.logger.Debug().Err(err).Msg("WebSocket write failed")
				return
			}
		}
	}
}

func (h *Hub) readLoop(ctx context.Context, c *client) {
	for {
		var cmd Command
		if err := wsjson.Read(ctx, c.conn, &cmd); err != nil {
			h.logger.Debug().Err(err).Msg("WebSocket read ended")
			return
		}
		reply := h.handle(ctx, cmd)
		select {
		case c.send <- reply:
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) handle(ctx context.Context, cmd Command) Reply {
	if h.sessions == nil {
		return Reply{Type: "error", Message: "sessions unavailable"}
	}
	switch cmd.Type {
	case "start":
		res, err := h.sessions.Start(ctx)
		if err != nil {
			return Reply{Type: "error", Message: err.Error()}
		}
		return Reply{Type: "started", SessionID: res.SessionID, AlreadyRecording: res.AlreadyRecording}
	case "stop":
		rec, err := h.sessions.Stop(ctx)
		if err != nil {
			return Reply{Type: "error", Message: err.Error()}
		}
		return Reply{Type: "stopped", Record: rec}
	default:
		return Reply{Type: "error", Message: "unknown command: " + cmd.Type}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}
