package notifications

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Event is a market event pushed to connected clients
type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Ticker fans market events out to websocket subscribers. Clients only
// listen; inbound frames are drained to keep the connection's control
// messages flowing.
type Ticker struct {
	clients    map[*client]bool
	broadcast  chan Event
	register   chan *client
	unregister chan *client
	stop       chan struct{}
	stopOnce   sync.Once
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

type client struct {
	conn *websocket.Conn
	send chan Event
}

func NewTicker(logger *zap.Logger) *Ticker {
	t := &Ticker{
		clients:    make(map[*client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		stop:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}

	go t.run()

	return t
}

// Broadcast queues an event for all subscribers. Events are dropped when the
// queue is full rather than blocking the caller.
func (t *Ticker) Broadcast(event string, payload interface{}) {
	msg := Event{
		Type:      event,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	select {
	case t.broadcast <- msg:
	default:
		t.logger.Warn("ticker queue full, dropping event", zap.String("type", event))
	}
}

// HandleConnection upgrades an HTTP request to a websocket subscription
func (t *Ticker) HandleConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{
		conn: conn,
		send: make(chan Event, 64),
	}
	t.register <- c

	go t.readPump(c)
	go t.writePump(c)

	return nil
}

func (t *Ticker) run() {
	for {
		select {
		case c := <-t.register:
			t.clients[c] = true
			t.logger.Debug("ticker client connected", zap.Int("clients", len(t.clients)))

		case c := <-t.unregister:
			if _, ok := t.clients[c]; ok {
				delete(t.clients, c)
				close(c.send)
			}

		case event := <-t.broadcast:
			for c := range t.clients {
				select {
				case c.send <- event:
				default:
					close(c.send)
					delete(t.clients, c)
				}
			}

		case <-t.stop:
			for c := range t.clients {
				close(c.send)
				delete(t.clients, c)
			}
			return
		}
	}
}

func (t *Ticker) readPump(c *client) {
	defer func() {
		t.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				t.logger.Debug("ticker read error", zap.Error(err))
			}
			return
		}
	}
}

func (t *Ticker) writePump(c *client) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close shuts the ticker down and disconnects all subscribers
func (t *Ticker) Close() {
	t.stopOnce.Do(func() {
		close(t.stop)
	})
}
