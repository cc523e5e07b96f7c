// Package realtime is the client side of the server's fan-out channel:
// one logical websocket multiplexing per-user and per-list rooms into
// typed events dispatched to registered handlers.
package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/tasksphere/sphere-client/internal/models"
)

// Inbound event names.
const (
	EventTaskCreated     = "taskCreated"
	EventTaskUpdated     = "taskUpdated"
	EventTaskDeleted     = "taskDeleted"
	EventNewNotification = "newNotification"
)

// Outbound event names.
const (
	eventJoinUser      = "joinUser"
	eventJoinTaskList  = "joinTaskList"
	eventLeaveTaskList = "leaveTaskList"
)

// Envelope is the wire format in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Handler receives the raw payload of one event instance.
type Handler func(data json.RawMessage)

// HandlerID identifies a registration for Off.
type HandlerID uint64

type handlerEntry struct {
	id HandlerID
	fn Handler
}

// Client multiplexes rooms over a single websocket. Handlers may be
// registered before Connect; the registry and joined rooms survive
// Disconnect so a later Connect restores behavior.
type Client struct {
	url         string
	tokenSource func() string

	mu       sync.Mutex
	conn     *websocket.Conn
	cancel   context.CancelFunc
	closed   bool
	nextID   HandlerID
	handlers map[string][]handlerEntry
	rooms    map[roomKey]struct{}
}

type roomKey struct {
	event string
	id    uint64
}

func (k roomKey) envelope() Envelope {
	data, _ := json.Marshal(k.id)
	return Envelope{Event: k.event, Data: data}
}

// NewClient creates a client for the given socket URL. tokenSource
// supplies the bearer token at dial time; it may return "".
func NewClient(socketURL string, tokenSource func() string) *Client {
	return &Client{
		url:         socketURL,
		tokenSource: tokenSource,
		handlers:    make(map[string][]handlerEntry),
		rooms:       make(map[roomKey]struct{}),
	}
}

// On registers a handler. Handlers for the same event run in
// registration order for each event instance.
func (c *Client) On(event string, fn Handler) HandlerID {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.handlers[event] = append(c.handlers[event], handlerEntry{id: id, fn: fn})
	return id
}

// Off removes one handler registration.
func (c *Client) Off(event string, id HandlerID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.handlers[event]
	for i, e := range entries {
		if e.id == id {
			c.handlers[event] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(c.handlers[event]) == 0 {
		delete(c.handlers, event)
	}
}

// OffAll removes every handler for an event.
func (c *Client) OffAll(event string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, event)
}

// Connect dials the socket and starts the read loop. Idempotent while
// connected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.closed = false
	c.mu.Unlock()

	return c.dial(ctx)
}

func (c *Client) dial(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := &websocket.DialOptions{}
	if token := c.tokenSource(); token != "" {
		opts.HTTPHeader = http.Header{"Authorization": []string{"Bearer " + token}}
	}

	conn, _, err := websocket.Dial(dialCtx, c.url, opts)
	if err != nil {
		return err
	}

	loopCtx, loopCancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.conn = conn
	c.cancel = loopCancel
	rooms := make([]roomKey, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	c.mu.Unlock()

	// Rejoin rooms so a reconnect restores the previous fan-out.
	for _, room := range rooms {
		if err := wsjson.Write(loopCtx, conn, room.envelope()); err != nil {
			log.Printf("realtime: rejoin %s: %v", room.event, err)
		}
	}

	go c.readLoop(loopCtx, conn)
	return nil
}

// Disconnect detaches from the socket. The handler registry and room
// set are preserved for a later Connect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	cancel := c.cancel
	c.conn = nil
	c.cancel = nil
	c.closed = true
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "disconnect")
	}
}

// readLoop is the single dispatch goroutine; events are delivered FIFO
// in handler registration order.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var env Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			c.handleReadFailure(ctx, conn)
			return
		}

		c.mu.Lock()
		entries := make([]handlerEntry, len(c.handlers[env.Event]))
		copy(entries, c.handlers[env.Event])
		c.mu.Unlock()

		for _, e := range entries {
			e.fn(env.Data)
		}
	}
}

// handleReadFailure reconnects with backoff unless Disconnect was the
// cause.
func (c *Client) handleReadFailure(ctx context.Context, conn *websocket.Conn) {
	c.mu.Lock()
	stale := c.conn != conn || c.closed
	c.conn = nil
	c.mu.Unlock()
	if stale || ctx.Err() != nil {
		return
	}

	backoff := time.Second
	for {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		if err := c.dial(context.Background()); err == nil {
			return
		}
		time.Sleep(backoff)
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (c *Client) send(env Envelope) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return wsjson.Write(ctx, conn, env)
}

func (c *Client) joinRoom(event string, id uint64) error {
	key := roomKey{event: event, id: id}
	c.mu.Lock()
	c.rooms[key] = struct{}{}
	c.mu.Unlock()
	return c.send(key.envelope())
}

// JoinUser subscribes to the user's personal room.
func (c *Client) JoinUser(userID uint64) error {
	return c.joinRoom(eventJoinUser, userID)
}

// JoinTaskList subscribes to a list's broadcast room.
func (c *Client) JoinTaskList(listID uint64) error {
	return c.joinRoom(eventJoinTaskList, listID)
}

// LeaveTaskList unsubscribes from a list's broadcast room.
func (c *Client) LeaveTaskList(listID uint64) error {
	c.mu.Lock()
	delete(c.rooms, roomKey{event: eventJoinTaskList, id: listID})
	c.mu.Unlock()
	return c.send(roomKey{event: eventLeaveTaskList, id: listID}.envelope())
}

// Typed registration helpers. Malformed payloads are skipped, matching
// the server's at-most-once fan-out contract.

func (c *Client) OnTaskCreated(fn func(models.Task)) HandlerID {
	return c.On(EventTaskCreated, func(data json.RawMessage) {
		var task models.Task
		if err := json.Unmarshal(data, &task); err != nil {
			log.Printf("realtime: bad taskCreated payload: %v", err)
			return
		}
		fn(task)
	})
}

func (c *Client) OnTaskUpdated(fn func(models.Task)) HandlerID {
	return c.On(EventTaskUpdated, func(data json.RawMessage) {
		var task models.Task
		if err := json.Unmarshal(data, &task); err != nil {
			log.Printf("realtime: bad taskUpdated payload: %v", err)
			return
		}
		fn(task)
	})
}

func (c *Client) OnTaskDeleted(fn func(taskID uint64)) HandlerID {
	return c.On(EventTaskDeleted, func(data json.RawMessage) {
		var payload struct {
			ID uint64 `json:"id"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			log.Printf("realtime: bad taskDeleted payload: %v", err)
			return
		}
		fn(payload.ID)
	})
}

func (c *Client) OnNewNotification(fn func(models.Notification)) HandlerID {
	return c.On(EventNewNotification, func(data json.RawMessage) {
		var n models.Notification
		if err := json.Unmarshal(data, &n); err != nil {
			log.Printf("realtime: bad newNotification payload: %v", err)
			return
		}
		fn(n)
	})
}
