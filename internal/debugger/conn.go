// Package debugger contains the core of the interactive agent debugger: the
// two websocket channels, the halt/step/continue state machine, and the
// controller that wires them to the run store and summarizer.
package debugger

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const sendBufferSize = 256

func wsControlDeadline() time.Time {
	return time.Now().Add(5 * time.Second)
}

// Conn wraps a single peer websocket connection. Outbound frames go through
// a buffered send channel drained by a writer goroutine so handlers never
// block on peer I/O.
type Conn struct {
	ws   *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func newConn(ws *websocket.Conn) *Conn {
	return &Conn{
		ws:   ws,
		send: make(chan []byte, sendBufferSize),
	}
}

// Send queues a frame for delivery. If the peer cannot drain its buffer the
// connection is closed; a stalled peer must not stall the core.
func (c *Conn) Send(data []byte) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	select {
	case c.send <- data:
		c.mu.Unlock()
	default:
		c.mu.Unlock()
		log.Printf("Connection send buffer full, closing")
		c.Close()
	}
}

// Close tears down the connection. Safe to call more than once.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	c.ws.Close()
}

// CloseWithReason sends a close frame carrying a human-readable reason, then
// tears the connection down.
func (c *Conn) CloseWithReason(reason string, writeTimeout time.Duration) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
	c.Close()
}

// writePump drains the send channel and keeps the peer alive with pings.
// Runs as a goroutine per connection.
func (c *Conn) writePump(pingInterval, writeTimeout time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Failed to write message: %v", err)
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads frames until the connection dies, handing each to handle.
// A missed heartbeat counts as a disconnect through the read deadline.
func (c *Conn) readPump(readTimeout time.Duration, handle func([]byte)) {
	defer c.Close()

	c.ws.SetReadDeadline(time.Now().Add(readTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(readTimeout))
		handle(message)
	}
}
