// Package stream pushes simulation snapshots to WebSocket clients and
// collects the control commands they send back.
//
// Server to client, every broadcast:
//
//	{"type":"snapshot","t":12.3,"satellites":[...],"isls":[...],...}
//
// Client to server:
//
//	{"type":"toggle_state","satellite":"sat1"}
//	{"type":"speed","value":2}
//
// Invalid or rate-limited commands are answered with
// {"type":"error","error":"..."} on the same connection.
package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/signalsfoundry/orbitlink-sim/internal/logging"
	"github.com/signalsfoundry/orbitlink-sim/internal/observability"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 16
)

// ErrHubClosed is returned by Serve after Close.
var ErrHubClosed = errors.New("stream hub closed")

// Options configures a Hub.
type Options struct {
	// CommandRate and CommandBurst bound how fast one client may send
	// commands. Zero rate means unlimited.
	CommandRate  float64
	CommandBurst int
	// CommandQueue is the capacity of the command channel.
	CommandQueue int

	Metrics *observability.StreamCollector
	Logger  logging.Logger
}

// Hub fans snapshots out to connected clients and funnels their commands
// into a single channel.
type Hub struct {
	upgrader websocket.Upgrader
	opts     Options
	log      logging.Logger

	commands chan Command

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
	nextID  uint64

	latest atomic.Pointer[[]byte]
}

type client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
	done    chan struct{}
	once    sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// NewHub constructs a hub.
func NewHub(opts Options) *Hub {
	if opts.CommandQueue <= 0 {
		opts.CommandQueue = 64
	}
	if opts.CommandBurst <= 0 {
		opts.CommandBurst = 1
	}
	log := opts.Logger
	if log == nil {
		log = logging.Noop()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			// The presentation layer is served from anywhere during demos.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		opts:     opts,
		log:      log,
		commands: make(chan Command, opts.CommandQueue),
		clients:  make(map[*client]struct{}),
	}
}

// Commands returns the channel of validated client commands.
func (h *Hub) Commands() <-chan Command {
	return h.commands
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Latest returns the most recently broadcast message, or nil.
func (h *Hub) Latest() []byte {
	if p := h.latest.Load(); p != nil {
		return *p
	}
	return nil
}

// Broadcast queues msg for every client. Clients whose buffers are full
// miss the message rather than slowing the caller down.
func (h *Hub) Broadcast(msg []byte) {
	h.latest.Store(&msg)

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.opts.Metrics.MessageDropped()
		}
	}
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		c.close()
	}
}

// ServeHTTP upgrades the request to a WebSocket and serves it until the
// client goes away or the hub is closed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", logging.Err(err))
		return
	}
	if err := h.Serve(r.Context(), conn); err != nil && !errors.Is(err, ErrHubClosed) {
		h.log.Debug(r.Context(), "stream client disconnected", logging.Err(err))
	}
}

// Serve runs the read and write loops for an upgraded connection.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	c, err := h.register(conn)
	if err != nil {
		return err
	}
	defer h.unregister(c)

	if latest := h.Latest(); latest != nil {
		c.send <- latest
	}

	go h.writeLoop(c)
	return h.readLoop(ctx, c)
}

func (h *Hub) register(conn *websocket.Conn) (*client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}
	h.nextID++

	limit := rate.Inf
	if h.opts.CommandRate > 0 {
		limit = rate.Limit(h.opts.CommandRate)
	}
	c := &client{
		id:      fmt.Sprintf("client-%d", h.nextID),
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		limiter: rate.NewLimiter(limit, h.opts.CommandBurst),
		done:    make(chan struct{}),
	}
	h.clients[c] = struct{}{}
	h.opts.Metrics.ClientConnected()
	h.log.Info(context.Background(), "stream client connected",
		logging.String("client", c.id),
		logging.String("remote_addr", conn.RemoteAddr().String()),
	)
	return c, nil
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		h.opts.Metrics.ClientDisconnected()
	}
	h.mu.Unlock()
	c.close()
	h.log.Info(context.Background(), "stream client disconnected", logging.String("client", c.id))
}

func (h *Hub) readLoop(ctx context.Context, c *client) error {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return ErrHubClosed
			default:
			}
			return err
		}

		if !c.limiter.Allow() {
			h.opts.Metrics.CommandHandled("unknown", "rate_limited")
			h.reply(c, encodeError(fmt.Errorf("rate limited")))
			continue
		}

		cmd, err := ParseCommand(data)
		if err != nil {
			h.opts.Metrics.CommandHandled("invalid", "rejected")
			h.reply(c, encodeError(err))
			continue
		}
		cmd.ClientID = c.id

		select {
		case h.commands <- cmd:
			h.opts.Metrics.CommandHandled(string(cmd.Type), "queued")
		case <-ctx.Done():
			return ctx.Err()
		default:
			h.opts.Metrics.CommandHandled(string(cmd.Type), "dropped")
			h.reply(c, encodeError(fmt.Errorf("command queue full")))
		}
	}
}

func (h *Hub) reply(c *client, msg []byte) {
	select {
	case c.send <- msg:
	default:
		h.opts.Metrics.MessageDropped()
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
				time.Now().Add(writeWait))
			// Unblock the reader.
			_ = c.conn.SetReadDeadline(time.Now())
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				_ = c.conn.SetReadDeadline(time.Now())
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				_ = c.conn.SetReadDeadline(time.Now())
				return
			}
		}
	}
}
