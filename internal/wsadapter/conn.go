// Package wsadapter is the WebSocket Adapter: the minimum contract the
// Messages Center requires from any WebSocket framework (spec §4.6),
// built on gorilla/websocket and gin-gonic/gin.
package wsadapter

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"msgrelay/pkg/log"
)

// Config holds the WebSocket-level tunables (spec §6 "implementation
// parameters", ambient per SPEC_FULL §1.2 WebSocketConfig).
type Config struct {
	PongWait        time.Duration
	PingPeriod      time.Duration
	WriteWait       time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	MaxConnections  int
}

// Conn wraps a gorilla/websocket connection and exposes exactly the
// three operations base spec §4.6 allows the core to see: Channel,
// Write, and a polled Closed flag.
type Conn struct {
	conn    *websocket.Conn
	channel string
	logger  log.Logger

	cfg  Config
	send chan string
	done chan struct{}

	closed atomic.Bool
}

// NewConn constructs a Conn bound to channel. Call Start to begin its
// read/write pumps.
func NewConn(conn *websocket.Conn, channel string, cfg Config, logger log.Logger) *Conn {
	return &Conn{
		conn:    conn,
		channel: channel,
		logger:  logger,
		cfg:     cfg,
		send:    make(chan string, 256),
		done:    make(chan struct{}),
	}
}

// Channel returns the channel this connection is attached to.
func (c *Conn) Channel() string { return c.channel }

// Closed reports whether the connection has been torn down. Listeners
// poll this between blocking pops to detect shutdown (spec §4.6, §5).
func (c *Conn) Closed() bool { return c.closed.Load() }

// Write enqueues text for delivery on the write pump. It never blocks
// the caller on network I/O.
func (c *Conn) Write(text string) error {
	if c.Closed() {
		return nil
	}
	select {
	case c.send <- text:
		return nil
	case <-c.done:
		return nil
	}
}

// Close tears down the connection idempotently.
func (c *Conn) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	close(c.done)
	c.conn.Close()
}

// Start launches the read and write pumps. onRead is invoked with every
// inbound text frame (the center's Handle); onClose is invoked once,
// when the read pump exits and after the connection has been marked
// closed, so the caller can detach from the queue. The write pump is
// signalled to stop but is not waited for. This is the REDESIGN FLAG from the base spec: the teacher's own
// connection forwards nothing inbound (push-only service), but a chat
// relay must route what it receives.
func (c *Conn) Start(onRead func(text string), onClose func()) {
	go c.writePump()
	go c.readPump(onRead, onClose)
}

func (c *Conn) readPump(onRead func(text string), onClose func()) {
	defer func() {
		c.Close()
		if onClose != nil {
			onClose()
		}
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Errorf(context.Background(), "wsadapter: read error on %s: %v", c.channel, err)
			}
			return
		}
		if onRead != nil {
			onRead(string(frame))
		}
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case text, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}
