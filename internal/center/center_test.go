package center

import (
	"context"
	"testing"

	"msgrelay/internal/protocol"
	"msgrelay/internal/queue"
	"msgrelay/internal/route"
)

// fakeConn is a minimal Conn for center tests: it records every frame
// written to it, mirroring the fakeConn pattern used in the queue and
// route packages' own tests.
type fakeConn struct {
	channel string
	frames  []string
}

func (c *fakeConn) Channel() string { return c.channel }
func (c *fakeConn) Write(text string) error {
	c.frames = append(c.frames, text)
	return nil
}
func (c *fakeConn) Closed() bool { return false }

// fakeQueue is a minimal queue.Queue for center tests: it records every
// Enqueue call and lets a test supply a canned Ack response.
type fakeQueue struct {
	enqueued []enqueueCall
	ackFunc  func(ctx context.Context, channel, msgID string) (*protocol.Message, string, error)
}

type enqueueCall struct {
	channels []string
	msg      *protocol.Message
	from     string
}

func (q *fakeQueue) Subscribe(ctx context.Context, channel string, conn queue.Conn) {}
func (q *fakeQueue) Unsubscribe(channel string, conn queue.Conn)                    {}

func (q *fakeQueue) Enqueue(ctx context.Context, channels []string, msg *protocol.Message, from string) error {
	q.enqueued = append(q.enqueued, enqueueCall{channels: channels, msg: msg, from: from})
	return nil
}

func (q *fakeQueue) Ack(ctx context.Context, channel, msgID string) (*protocol.Message, string, error) {
	if q.ackFunc != nil {
		return q.ackFunc(ctx, channel, msgID)
	}
	return nil, "", nil
}

func (q *fakeQueue) CheckDelivered(ctx context.Context, channel, msgID string) (bool, error) {
	return true, nil
}

// fixedRoute nominates a fixed destination for every message, for driving
// the routing chain deterministically.
type fixedRoute struct {
	name string
	dest route.Destination
}

func (r *fixedRoute) Name() string { return r.name }
func (r *fixedRoute) Process(_ context.Context, _ *protocol.Message, _ route.Conn) (route.Destination, error) {
	return r.dest, nil
}
func (r *fixedRoute) PostProcess(_ context.Context, _ *protocol.Message, _ string, _ route.Queue) {}

// fakeLogger discards everything; center.Handle/HandleMessage call the
// logger unconditionally (unlike route.Chain, which tolerates nil), so
// tests need a concrete no-op instead of passing nil.
type fakeLogger struct{}

func (fakeLogger) Debug(context.Context, ...any)           {}
func (fakeLogger) Debugf(context.Context, string, ...any)  {}
func (fakeLogger) Info(context.Context, ...any)            {}
func (fakeLogger) Infof(context.Context, string, ...any)   {}
func (fakeLogger) Warn(context.Context, ...any)            {}
func (fakeLogger) Warnf(context.Context, string, ...any)   {}
func (fakeLogger) Error(context.Context, ...any)           {}
func (fakeLogger) Errorf(context.Context, string, ...any)  {}
func (fakeLogger) DPanic(context.Context, ...any)          {}
func (fakeLogger) DPanicf(context.Context, string, ...any) {}
func (fakeLogger) Panic(context.Context, ...any)           {}
func (fakeLogger) Panicf(context.Context, string, ...any)  {}
func (fakeLogger) Fatal(context.Context, ...any)           {}
func (fakeLogger) Fatalf(context.Context, string, ...any)  {}

func TestHandleMessagePingRepliesPong(t *testing.T) {
	q := &fakeQueue{}
	c := New(q, route.NewChain(nil), fakeLogger{}, 0)
	conn := &fakeConn{channel: "alice"}

	msg := protocol.Build(protocol.WithTransportType(protocol.TypePing))
	c.HandleMessage(context.Background(), msg, conn)

	if len(conn.frames) != 1 {
		t.Fatalf("expected exactly one pong frame, got %v", conn.frames)
	}
	got, err := protocol.Parse(conn.frames[0])
	if err != nil {
		t.Fatalf("parse pong frame: %v", err)
	}
	if got.TransportType() != protocol.TypePong {
		t.Fatalf("expected pong transport type, got %d", got.TransportType())
	}
	if len(q.enqueued) != 0 {
		t.Fatalf("ping must not enqueue anything, got %v", q.enqueued)
	}
}

func TestHandleMessageAckEnqueuesDeliveredToFrom(t *testing.T) {
	delivered := protocol.Build(protocol.WithID("m1"), protocol.WithDataType("chat"))
	q := &fakeQueue{
		ackFunc: func(ctx context.Context, channel, msgID string) (*protocol.Message, string, error) {
			return delivered, "alice", nil
		},
	}
	c := New(q, route.NewChain(nil), fakeLogger{}, 0)
	conn := &fakeConn{channel: "bob"}

	msg := protocol.Build(protocol.WithTransportType(protocol.TypeAck), protocol.WithData("m1"))
	c.HandleMessage(context.Background(), msg, conn)

	if len(q.enqueued) != 1 {
		t.Fatalf("expected exactly one enqueue call, got %d", len(q.enqueued))
	}
	call := q.enqueued[0]
	if len(call.channels) != 1 || call.channels[0] != "alice" {
		t.Fatalf("expected delivered confirmation routed to alice, got %v", call.channels)
	}
	if call.msg.TransportType() != protocol.TypeDelivered {
		t.Fatalf("expected a delivered transport message, got %+v", call.msg)
	}
}

func TestHandleMessageAckWithEmptyFromSkipsEnqueue(t *testing.T) {
	delivered := protocol.Build(protocol.WithID("m1"))
	q := &fakeQueue{
		ackFunc: func(ctx context.Context, channel, msgID string) (*protocol.Message, string, error) {
			return delivered, "", nil
		},
	}
	c := New(q, route.NewChain(nil), fakeLogger{}, 0)
	conn := &fakeConn{channel: "bob"}

	msg := protocol.Build(protocol.WithTransportType(protocol.TypeAck), protocol.WithData("m1"))
	c.HandleMessage(context.Background(), msg, conn)

	if len(q.enqueued) != 0 {
		t.Fatalf("expected no enqueue when from is empty, got %v", q.enqueued)
	}
}

func TestHandleMessageDataWritesAcceptedBeforeRouting(t *testing.T) {
	q := &fakeQueue{}
	chain := route.NewChain(nil)
	chain.Add(&fixedRoute{name: "direct", dest: route.ChannelDest("carol")})
	c := New(q, chain, fakeLogger{}, 0)
	conn := &fakeConn{channel: "bob"}

	msg := protocol.Build(protocol.WithID("m1"), protocol.WithDataType("chat"), protocol.WithData("hi"))
	c.HandleMessage(context.Background(), msg, conn)

	if len(conn.frames) != 1 {
		t.Fatalf("expected exactly one accepted frame written to the sender, got %v", conn.frames)
	}
	accepted, err := protocol.Parse(conn.frames[0])
	if err != nil {
		t.Fatalf("parse accepted frame: %v", err)
	}
	if accepted.TransportType() != protocol.TypeAccepted || accepted.DataString() != "m1" {
		t.Fatalf("expected accepted frame for m1, got %+v", accepted)
	}

	if len(q.enqueued) != 1 || len(q.enqueued[0].channels) != 1 || q.enqueued[0].channels[0] != "carol" {
		t.Fatalf("expected routed enqueue to carol, got %v", q.enqueued)
	}
}

func TestHandleMessageFanOutDedupesChannels(t *testing.T) {
	q := &fakeQueue{}
	chain := route.NewChain(nil)
	chain.Add(&fixedRoute{name: "a", dest: route.ChannelDest("dana")})
	chain.Add(&fixedRoute{name: "b", dest: route.ChannelDest("dana")})
	c := New(q, chain, fakeLogger{}, 0)
	conn := &fakeConn{channel: "bob"}

	msg := protocol.Build(protocol.WithDataType("chat"), protocol.WithData("hi"))
	c.HandleMessage(context.Background(), msg, conn)

	if len(q.enqueued) != 1 {
		t.Fatalf("expected exactly one enqueue call despite two nominations, got %d", len(q.enqueued))
	}
	if got := q.enqueued[0].channels; len(got) != 1 || got[0] != "dana" {
		t.Fatalf("expected deduped channel list [dana], got %v", got)
	}
}
