package queue

import (
	"context"
	"testing"
	"time"

	"msgrelay/internal/protocol"
)

func TestReliableEnqueueAckRoundTrip(t *testing.T) {
	broker := newFakeBroker()
	q := newReliableQueue(broker.mustDial(t), broker.dial, testOptions(), nil)
	conn := newFakeConn("dave")

	q.Subscribe(context.Background(), "dave", conn)
	waitForFrames(t, conn, 1) // ready frame

	msg := protocol.Build(
		protocol.WithID("msg-1"),
		protocol.WithDataType("chat"),
		protocol.WithDest("dave"),
		protocol.WithData("hello"),
	)
	if err := q.Enqueue(context.Background(), []string{"dave"}, msg, "carol"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	frames := waitForFrames(t, conn, 2)
	got, err := protocol.Parse(frames[1])
	if err != nil {
		t.Fatalf("parse delivered frame: %v", err)
	}
	if got.ID != "msg-1" || got.DataString() != "hello" {
		t.Fatalf("unexpected delivered message: %+v", got)
	}

	delivered, err := q.CheckDelivered(context.Background(), "dave", "msg-1")
	if err != nil {
		t.Fatalf("check delivered: %v", err)
	}
	if delivered {
		t.Fatalf("expected not yet delivered before ack")
	}

	acked, from, err := q.Ack(context.Background(), "dave", "msg-1")
	if err != nil {
		t.Fatalf("ack: %v", err)
	}
	if acked == nil || acked.ID != "msg-1" {
		t.Fatalf("expected acked message echoed back, got %+v", acked)
	}
	if from != "carol" {
		t.Fatalf("expected sender carol, got %q", from)
	}

	delivered, err = q.CheckDelivered(context.Background(), "dave", "msg-1")
	if err != nil {
		t.Fatalf("check delivered after ack: %v", err)
	}
	if !delivered {
		t.Fatalf("expected delivered after ack")
	}

	conn.close()
}

func TestReliableDoubleAckIsHarmless(t *testing.T) {
	broker := newFakeBroker()
	q := newReliableQueue(broker.mustDial(t), broker.dial, testOptions(), nil)
	conn := newFakeConn("erin")

	q.Subscribe(context.Background(), "erin", conn)
	waitForFrames(t, conn, 1)

	msg := protocol.Build(protocol.WithID("m2"), protocol.WithDataType("chat"), protocol.WithData("x"))
	if err := q.Enqueue(context.Background(), []string{"erin"}, msg, ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitForFrames(t, conn, 2)

	if _, _, err := q.Ack(context.Background(), "erin", "m2"); err != nil {
		t.Fatalf("first ack: %v", err)
	}
	second, from, err := q.Ack(context.Background(), "erin", "m2")
	if err != nil {
		t.Fatalf("second ack: %v", err)
	}
	if second != nil || from != "" {
		t.Fatalf("expected second ack to be a no-op, got %+v %q", second, from)
	}
	conn.close()
}

func TestReliableResumesInFlightMessagesOnResubscribe(t *testing.T) {
	broker := newFakeBroker()
	opts := testOptions()

	q1 := newReliableQueue(broker.mustDial(t), broker.dial, opts, nil)
	conn1 := newFakeConn("frank")
	q1.Subscribe(context.Background(), "frank", conn1)
	waitForFrames(t, conn1, 1)

	msg := protocol.Build(protocol.WithID("m3"), protocol.WithDataType("chat"), protocol.WithData("resume"))
	if err := q1.Enqueue(context.Background(), []string{"frank"}, msg, "gail"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitForFrames(t, conn1, 2) // ready + delivered, never acked

	// Simulate the connection/process dying without acking: close conn1's
	// listener but leave the message key and its C:wait entry behind.
	conn1.close()
	time.Sleep(30 * time.Millisecond)

	// A fresh listener on the same channel should redeliver the
	// still-in-flight message before blocking on new arrivals.
	q2 := newReliableQueue(broker.mustDial(t), broker.dial, opts, nil)
	conn2 := newFakeConn("frank")
	q2.Subscribe(context.Background(), "frank", conn2)

	frames := waitForFrames(t, conn2, 2) // ready + resumed delivery
	got, err := protocol.Parse(frames[1])
	if err != nil {
		t.Fatalf("parse resumed frame: %v", err)
	}
	if got.ID != "m3" {
		t.Fatalf("expected resumed message m3, got %+v", got)
	}

	if _, _, err := q2.Ack(context.Background(), "frank", "m3"); err != nil {
		t.Fatalf("ack after resume: %v", err)
	}
	conn2.close()
}

func TestReliableIDLessMessageNeedsNoAck(t *testing.T) {
	broker := newFakeBroker()
	q := newReliableQueue(broker.mustDial(t), broker.dial, testOptions(), nil)
	conn := newFakeConn("henry")

	q.Subscribe(context.Background(), "henry", conn)
	waitForFrames(t, conn, 1)

	msg := protocol.Build(protocol.WithTransportType(protocol.TypePing))
	if err := q.Enqueue(context.Background(), []string{"henry"}, msg, ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitForFrames(t, conn, 2)

	n, err := broker.mustDial(t).LLen(context.Background(), waitKey("henry"))
	if err != nil {
		t.Fatalf("llen: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected id-less delivery to leave nothing in-flight, got %d", n)
	}
	conn.close()
}
