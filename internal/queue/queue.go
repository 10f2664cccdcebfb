// Package queue implements the best-effort and reliable delivery queues
// backed by Redis lists (spec §4.3, §4.4).
package queue

import (
	"context"
	"errors"

	"msgrelay/internal/protocol"
)

// Conn is the connection surface both queue modes need: enough to post a
// frame, detect shutdown, and identify the channel it is attached to
// (spec §4.6).
type Conn interface {
	Channel() string
	Write(text string) error
	Closed() bool
}

// Queue is the polymorphic delivery surface the Messages Center depends
// on. BestEffortQueue and ReliableQueue both implement it (spec §4.3/4.4,
// §9 "tagged variants are adequate").
type Queue interface {
	// Subscribe registers conn against channel: writes a 1000 "ready"
	// frame, then starts a dedicated listener task.
	Subscribe(ctx context.Context, channel string, conn Conn)

	// Unsubscribe wakes conn's listener by posting the close sentinel onto
	// channel. It does not mark conn closed; the caller does that before
	// calling it, and the listener exits once it sees conn.Closed().
	Unsubscribe(channel string, conn Conn)

	// Enqueue encodes msg if necessary and delivers it to every channel
	// in channels. from is the sender's own channel, used by reliable
	// mode to remember who to notify on delivery.
	Enqueue(ctx context.Context, channels []string, msg *protocol.Message, from string) error

	// Ack acknowledges receipt of msgID on channel. Only meaningful in
	// reliable mode; returns (nil, "", nil) when there is nothing to ack.
	Ack(ctx context.Context, channel, msgID string) (*protocol.Message, string, error)

	// CheckDelivered reports whether msgID on channel has been fully
	// delivered (reliable mode) or always true (best-effort mode).
	CheckDelivered(ctx context.Context, channel, msgID string) (bool, error)
}

var (
	// ErrChannelRequired is returned when an empty channel is passed to
	// an operation that requires one.
	ErrChannelRequired = errors.New("queue: channel must not be empty")
)
