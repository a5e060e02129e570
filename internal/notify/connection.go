package notify

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Connection wraps a websocket and serializes outbound writes through a
// buffered channel. Safe for concurrent Send calls.
type Connection struct {
	id string

	ws   *websocket.Conn
	send chan []byte
	once sync.Once
	done chan struct{}
}

func NewConnection(ws *websocket.Conn) *Connection {
	return &Connection{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan []byte, 128),
		done: make(chan struct{}),
	}
}

func (c *Connection) ID() string { return c.id }

// Start launches the write loop. Call exactly once per connection.
func (c *Connection) Start() {
	go c.writeLoop()
}

// Send enqueues payload for delivery. A slow client whose buffer fills is
// closed rather than allowed to stall the publisher: events have no
// durability guarantee, so dropping the connection is the bounded option.
func (c *Connection) Send(payload []byte) error {
	select {
	case <-c.done:
		return errors.New("connection closed")
	case c.send <- payload:
		return nil
	default:
		c.Close(websocket.CloseGoingAway, "send buffer full")
		return errors.New("connection buffer exceeded")
	}
}

// Close terminates the connection and stops the write loop.
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.writeMessage(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.writePing(); err != nil {
				return
			}
		}
	}
}

func (c *Connection) writeMessage(payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *Connection) writePing() error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}
