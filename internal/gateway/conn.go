package gateway

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"carbid/pkg/logger"
)

const writeWait = 10 * time.Second

// Conn wraps one websocket connection with a buffered outbound channel. All
// writes go through the channel and a single write loop, so broadcasts from
// many auctions never race on the socket. A full buffer drops the message
// rather than blocking the sender.
type Conn struct {
	id     string
	origin string
	ws     *websocket.Conn
	send   chan any
	done   chan struct{}
	once   sync.Once
	log    *logger.Logger
}

func newConn(ws *websocket.Conn, origin string, sendBuffer int, log *logger.Logger) *Conn {
	return &Conn{
		id:     uuid.New().String(),
		origin: origin,
		ws:     ws,
		send:   make(chan any, sendBuffer),
		done:   make(chan struct{}),
		log:    log,
	}
}

func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) Origin() string {
	return c.origin
}

// Send queues an event for delivery. It never blocks: events to a closed or
// saturated connection are dropped, keeping broadcasts fire-and-forget.
func (c *Conn) Send(event any) {
	select {
	case <-c.done:
	case c.send <- event:
	default:
		c.log.Warn("Dropping event to slow connection", "conn_id", c.id, "origin", c.origin)
	}
}

func (c *Conn) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case event := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(event); err != nil {
				c.log.Debug("Write failed, closing connection", "conn_id", c.id, "error", err)
				c.shutdown()
				return
			}
		}
	}
}

func (c *Conn) shutdown() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}
