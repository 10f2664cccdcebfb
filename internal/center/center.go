// Package center implements the Messages Center: the ingress point that
// multiplexes WebSocket I/O, the routing chain, and the transport-layer
// acknowledgement protocol (spec §4.5).
package center

import (
	"context"

	"golang.org/x/sync/errgroup"

	"msgrelay/internal/protocol"
	"msgrelay/internal/queue"
	"msgrelay/internal/route"
	"msgrelay/pkg/log"
)

// Conn is the connection surface the center needs: enough to answer
// transport messages and identify the attached channel.
type Conn interface {
	Channel() string
	Write(text string) error
	Closed() bool
}

// Center orchestrates attach/detach, route registration, and the main
// ingress algorithm. It holds no per-channel state itself: every piece of
// state that outlives a single Handle call lives in the queue (spec §5
// "no shared in-memory per-channel state").
type Center struct {
	queue  queue.Queue
	chain  *route.Chain
	logger log.Logger

	postProcess *errgroup.Group
}

// New constructs a Center. concurrency bounds how many post_process tasks
// (step 6 of Handle) may run at once; non-positive means unbounded.
func New(q queue.Queue, chain *route.Chain, logger log.Logger, concurrency int) *Center {
	g := &errgroup.Group{}
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	return &Center{queue: q, chain: chain, logger: logger, postProcess: g}
}

// Attach delegates to the queue's Subscribe.
func (c *Center) Attach(ctx context.Context, channel string, conn Conn) {
	c.queue.Subscribe(ctx, channel, queueConn{conn})
}

// Detach delegates to the queue's Unsubscribe.
func (c *Center) Detach(channel string, conn Conn) {
	c.queue.Unsubscribe(channel, queueConn{conn})
}

// AddRoute appends route r to the chain.
func (c *Center) AddRoute(r route.Route) {
	c.chain.Add(r)
}

// RemoveRoute removes the route named name from the chain.
func (c *Center) RemoveRoute(name string) {
	c.chain.Remove(name)
}

// Handle is the main ingress algorithm (spec §4.5). raw is parsed first;
// conn may be nil when replaying a message with no live connection
// context (e.g. from a test harness), in which case step 2 is skipped.
func (c *Center) Handle(ctx context.Context, raw string, conn Conn) {
	msg, err := protocol.Parse(raw)
	if err != nil {
		c.logger.Warnf(ctx, "center: dropping malformed frame: %v", err)
		return
	}
	c.HandleMessage(ctx, msg, conn)
}

// HandleMessage runs the ingress algorithm against an already-parsed
// message, for callers (like queue resumption or internal re-dispatch)
// that never held a raw frame to begin with.
func (c *Center) HandleMessage(ctx context.Context, msg *protocol.Message, conn Conn) {
	if conn != nil {
		if stop := c.handleTransport(ctx, msg, conn); stop {
			return
		}
	}

	if msg.Kind() == protocol.KindTransport {
		return
	}

	walked, _ := c.chain.Walk(ctx, msg, chainConn{conn})
	if len(walked) == 0 {
		return
	}

	channels := make([]string, 0, len(walked))
	seen := make(map[string]bool, len(walked))
	for _, w := range walked {
		if seen[w.Channel] {
			continue
		}
		seen[w.Channel] = true
		channels = append(channels, w.Channel)
	}

	from := ""
	if conn != nil {
		from = conn.Channel()
	}
	if err := c.queue.Enqueue(ctx, channels, msg, from); err != nil {
		c.logger.Errorf(ctx, "center: enqueue to %v failed: %v", channels, err)
	}

	for _, w := range walked {
		w := w
		c.postProcess.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Errorf(ctx, "center: post_process for route %s panicked: %v", w.Route.Name(), r)
				}
			}()
			w.Route.PostProcess(ctx, msg, w.Channel, queueQueue{c.queue})
			return nil
		})
	}
}

// handleTransport implements step 2 of Handle: answering transport-layer
// messages synchronously from the connection context. It returns true
// when the caller should stop processing entirely (ping/ack handled
// here; data messages fall through so step 3 can still observe them).
func (c *Center) handleTransport(ctx context.Context, msg *protocol.Message, conn Conn) bool {
	if msg.Kind() != protocol.KindTransport {
		// Data message with a live connection: acknowledge receipt.
		accepted, err := protocol.Encode(protocol.Accepted(msg.ID))
		if err != nil {
			c.logger.Errorf(ctx, "center: encode accepted frame: %v", err)
			return false
		}
		if err := conn.Write(accepted); err != nil {
			c.logger.Warnf(ctx, "center: write accepted frame: %v", err)
		}
		return false
	}

	switch msg.TransportType() {
	case protocol.TypePing:
		pong, err := protocol.Encode(protocol.Pong())
		if err == nil {
			_ = conn.Write(pong)
		}
	case protocol.TypeAck:
		msgID := msg.DataString()
		channel := conn.Channel()
		delivered, from, err := c.queue.Ack(ctx, channel, msgID)
		if err != nil {
			c.logger.Errorf(ctx, "center: ack %s on %s: %v", msgID, channel, err)
			return true
		}
		if delivered == nil || from == "" {
			return true
		}
		confirmation := protocol.Delivered(delivered.ID)
		if err := c.queue.Enqueue(ctx, []string{from}, confirmation, ""); err != nil {
			c.logger.Errorf(ctx, "center: enqueue delivered confirmation to %s: %v", from, err)
		}
	}
	return true
}

// queueConn adapts center.Conn to queue.Conn. The method sets are
// identical; this wrapper exists so the two packages keep independent
// interface declarations without an import cycle.
type queueConn struct{ Conn }

// chainConn adapts center.Conn to route.Conn. A nil Conn still needs to
// satisfy route.Conn (routes may run with no live connection, e.g. for
// test harnesses re-dispatching a message), so Channel returns "".
type chainConn struct{ Conn }

func (c chainConn) Channel() string {
	if c.Conn == nil {
		return ""
	}
	return c.Conn.Channel()
}

// queueQueue adapts queue.Queue to route.Queue (just Enqueue) for
// PostProcess calls.
type queueQueue struct{ queue.Queue }
