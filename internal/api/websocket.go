package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/forPelevin/podclips/internal/runstatus"
)

const EventTaskUpdate = "task:update"

// Hub fans run updates out to websocket clients. New clients receive the last
// update of every unfinished run.
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}

	tasksMu     sync.RWMutex
	activeTasks map[string][]byte

	logger zerolog.Logger
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

type WSMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:     make(map[*wsClient]struct{}),
		activeTasks: make(map[string][]byte),
		logger:      logger,
	}
}

// Publish broadcasts a run snapshot. It never blocks; slow clients miss updates.
func (h *Hub) Publish(snap runstatus.Snapshot) {
	msg, err := json.Marshal(WSMessage{Event: EventTaskUpdate, Data: snap})
	if err != nil {
		h.logger.Error().Err(err).Msg("marshal task update")
		return
	}

	h.tasksMu.Lock()
	if snap.State.Terminal() {
		delete(h.activeTasks, snap.ID)
	} else {
		h.activeTasks[snap.ID] = msg
	}
	h.tasksMu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

func (h *Hub) sendActiveTasks(c *wsClient) {
	h.tasksMu.RLock()
	defer h.tasksMu.RUnlock()
	for _, msg := range h.activeTasks {
		select {
		case c.send <- msg:
		default:
		}
	}
}

func (h *Hub) addClient(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) removeClient(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns,
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket accept")
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, 64)}
	s.hub.addClient(c)
	s.hub.sendActiveTasks(c)
	s.logger.Debug().Str("remote", r.RemoteAddr).Msg("websocket client connected")

	ctx := r.Context()
	go func() {
		defer conn.Close(websocket.StatusNormalClosure, "")
		for msg := range c.send {
			if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}()

	// Reads only detect the close; clients have nothing to send.
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			break
		}
	}
	s.hub.removeClient(c)
	s.logger.Debug().Str("remote", r.RemoteAddr).Msg("websocket client disconnected")
}
