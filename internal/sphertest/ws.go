package sphertest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func userRoom(userID uint64) string { return fmt.Sprintf("user:%d", userID) }
func listRoom(listID uint64) string { return fmt.Sprintf("list:%d", listID) }

type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex // serialises writes
}

func (w *wsConn) write(env envelope) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return wsjson.Write(ctx, w.conn, env)
}

// roomHub fans events out to every connection joined to a room.
type roomHub struct {
	mu    sync.Mutex
	rooms map[string]map[*wsConn]struct{}
	conns map[*wsConn]struct{}
}

func newRoomHub() *roomHub {
	return &roomHub{
		rooms: make(map[string]map[*wsConn]struct{}),
		conns: make(map[*wsConn]struct{}),
	}
}

func (h *roomHub) join(room string, c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*wsConn]struct{})
	}
	h.rooms[room][c] = struct{}{}
}

func (h *roomHub) leave(room string, c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms[room], c)
}

func (h *roomHub) drop(c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
	for _, members := range h.rooms {
		delete(members, c)
	}
}

func (h *roomHub) size(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[room])
}

func (h *roomHub) emit(room, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	env := envelope{Event: event, Data: data}

	h.mu.Lock()
	targets := make([]*wsConn, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.write(env)
	}
}

func (h *roomHub) closeAll() {
	h.mu.Lock()
	conns := make([]*wsConn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = make(map[*wsConn]struct{})
	h.rooms = make(map[string]map[*wsConn]struct{})
	h.mu.Unlock()

	for _, c := range conns {
		c.conn.Close(websocket.StatusGoingAway, "server closing")
	}
}

// handleSocket upgrades and processes join/leave messages until the
// peer goes away. It is served outside the gin engine because the
// upgrade hijacks the connection.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{})
	if err != nil {
		return
	}
	wc := &wsConn{conn: conn}

	s.rooms.mu.Lock()
	s.rooms.conns[wc] = struct{}{}
	s.rooms.mu.Unlock()

	defer func() {
		s.rooms.drop(wc)
		conn.Close(websocket.StatusNormalClosure, "bye")
	}()

	ctx := context.Background()
	for {
		var env envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			return
		}
		var id uint64
		if err := json.Unmarshal(env.Data, &id); err != nil {
			continue
		}
		switch env.Event {
		case "joinUser":
			s.rooms.join(userRoom(id), wc)
		case "joinTaskList":
			s.rooms.join(listRoom(id), wc)
		case "leaveTaskList":
			s.rooms.leave(listRoom(id), wc)
		}
	}
}
