package api

import (
	"net/http"
	"sync"
	"time"

	"dnaconverter/internal/clock"
	"dnaconverter/internal/converter"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait     = 10 * time.Second
	clientBacklog = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Event types sent to websocket clients.
const (
	EventPlugins = "plugins"
	EventDNA     = "dna"
)

// Event is one change as sent to websocket clients: either a controller
// change or a DNA value change.
type Event struct {
	Type       string            `json:"type"`
	Controller string            `json:"controller,omitempty"`
	Change     *converter.Change `json:"change,omitempty"`
	DNA        *DNAChange        `json:"dna,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// DNAChange is one DNA value moving from Old to New.
type DNAChange struct {
	Name string  `json:"name"`
	Old  float64 `json:"old"`
	New  float64 `json:"new"`
}

// client wraps a websocket connection with its outgoing queue
type client struct {
	conn *websocket.Conn
	send chan Event
}

// Hub fans controller changes out to websocket clients. It implements
// converter.Notifier and is safe for concurrent use.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool

	clock  clock.Clock
	logger *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger, clk clock.Clock) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.NewRealClock()
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		clock:   clk,
		logger:  logger.Named("events"),
	}
}

// NotifyChanged implements converter.Notifier.
func (h *Hub) NotifyChanged(c *converter.Controller, change converter.Change) {
	h.Broadcast(Event{
		Type:       EventPlugins,
		Controller: c.Name(),
		Change:     &change,
		Timestamp:  h.clock.Now(),
	})
}

// DNAChanged is a dna.ChangeHandler forwarding value changes to clients.
func (h *Hub) DNAChanged(name string, oldValue, newValue float64) {
	h.Broadcast(Event{
		Type:      EventDNA,
		DNA:       &DNAChange{Name: name, Old: oldValue, New: newValue},
		Timestamp: h.clock.Now(),
	})
}

// Broadcast queues ev for every client. Clients whose queue is full miss
// the event rather than stall the controller.
func (h *Hub) Broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for cl := range h.clients {
		select {
		case cl.send <- ev:
		default:
			h.logger.Warn("Dropping event for slow client",
				zap.String("remote_addr", cl.conn.RemoteAddr().String()),
				zap.String("type", ev.Type))
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams events until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade connection", zap.Error(err))
		return
	}

	// The server's read timeout still applies to the hijacked connection.
	conn.SetReadDeadline(time.Time{})

	cl := &client{conn: conn, send: make(chan Event, clientBacklog)}
	if !h.register(cl) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}
	h.logger.Debug("Event client connected", zap.String("remote_addr", r.RemoteAddr))

	go h.writeLoop(cl)

	// Reads only detect the close; clients have nothing to say.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.unregister(cl)
	h.logger.Debug("Event client disconnected", zap.String("remote_addr", r.RemoteAddr))
}

func (h *Hub) writeLoop(cl *client) {
	defer cl.conn.Close()
	for ev := range cl.send {
		cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := cl.conn.WriteJSON(ev); err != nil {
			h.logger.Debug("Failed to write event", zap.Error(err))
			return
		}
	}
	cl.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Hub) register(cl *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[cl] = struct{}{}
	return true
}

func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for cl := range h.clients {
		delete(h.clients, cl)
		close(cl.send)
	}
}
