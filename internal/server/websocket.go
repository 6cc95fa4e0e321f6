package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// wsHub fans a payload-free refresh signal out to every connection
// subscribed to a game's channel. Clients re-fetch the snapshot on receipt,
// so a missed signal is recoverable and delivery stays best-effort.
type wsHub struct {
	mu     sync.Mutex
	groups map[string]map[*websocket.Conn]struct{}
}

var refreshSignal = []byte(`{"type":"refresh"}`)

const wsWriteTimeout = 5 * time.Second

func newWSHub() *wsHub {
	return &wsHub{
		groups: make(map[string]map[*websocket.Conn]struct{}),
	}
}

func (h *wsHub) Add(gameID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[gameID]
	if group == nil {
		group = make(map[*websocket.Conn]struct{})
		h.groups[gameID] = group
	}
	group[conn] = struct{}{}
}

func (h *wsHub) Remove(gameID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[gameID]
	if group == nil {
		return
	}
	delete(group, conn)
	_ = conn.Close()
	if len(group) == 0 {
		delete(h.groups, gameID)
	}
}

// Broadcast holds the hub lock for the whole fan-out. Broadcasts for one
// game fire concurrently from the round task and from request handlers, and
// a gorilla conn tolerates only a single writer at a time, so the lock is
// what serializes writes per connection. The write deadline keeps a stuck
// peer from wedging the hub.
func (h *wsHub) Broadcast(gameID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[gameID]
	for conn := range group {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, refreshSignal); err != nil {
			delete(group, conn)
			_ = conn.Close()
		}
	}
	if len(group) == 0 {
		delete(h.groups, gameID)
	}
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	gameID, ok := parseWebsocketPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	game, exists := s.store.ResolveGame(gameID)
	if !exists {
		http.NotFound(w, r)
		return
	}
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	log.Info().Str("game_id", game.ID).Str("remote", r.RemoteAddr).Msg("ws connected")
	s.ws.Add(game.ID, conn)
	go s.readWS(game.ID, conn)
}

// readWS drains the connection until the peer goes away; incoming messages
// carry no meaning here, clients talk to the HTTP API.
func (s *Server) readWS(gameID string, conn *websocket.Conn) {
	defer s.ws.Remove(gameID, conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			log.Debug().Str("game_id", gameID).Err(err).Msg("ws disconnected")
			return
		}
	}
}

func (s *Server) broadcastRefresh(gameID string) {
	if s.ws == nil {
		return
	}
	s.ws.Broadcast(gameID)
}
