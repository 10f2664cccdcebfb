package queue

import (
	"context"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"msgrelay/internal/protocol"
	"msgrelay/pkg/log"
)

// ReliableQueue adds at-least-once delivery tracking on top of the same
// per-channel Redis lists BestEffortQueue uses. Each channel C gets a
// companion in-flight list C:wait, and every message enqueued with an ID
// gets its own two-element key C:<id> holding [frame, from_channel] (spec §4.4).
type ReliableQueue struct {
	write  lister
	dial   func() (lister, error)
	opts   Options
	logger log.Logger
}

// NewReliableQueue constructs a ReliableQueue. See NewBestEffortQueue for
// the write/dial split rationale.
func NewReliableQueue(write *goredis.Client, dial func() (*goredis.Client, error), opts Options, logger log.Logger) *ReliableQueue {
	return newReliableQueue(
		newGoredisLister(write, false),
		func() (lister, error) {
			c, err := dial()
			if err != nil {
				return nil, err
			}
			return newGoredisLister(c, true), nil
		},
		opts, logger,
	)
}

func newReliableQueue(write lister, dial func() (lister, error), opts Options, logger log.Logger) *ReliableQueue {
	return &ReliableQueue{write: write, dial: dial, opts: opts, logger: logger}
}

func waitKey(channel string) string { return channel + ":wait" }

func messageKey(channel, id string) string { return channel + ":" + id }

// Subscribe writes a 1000-ready frame, drains whatever is already
// in-flight for this channel (crash/restart resumption), then starts the
// blocking main loop (spec §4.4).
func (q *ReliableQueue) Subscribe(ctx context.Context, channel string, conn Conn) {
	frame, err := protocol.Encode(protocol.Subscribed())
	if err == nil {
		_ = conn.Write(frame)
	}

	dedicated, err := q.dial()
	if err != nil {
		if q.logger != nil {
			q.logger.Errorf(ctx, "reliable: dial listener connection for %s: %v", channel, err)
		}
		return
	}

	go q.listen(channel, conn, dedicated)
}

// Unsubscribe posts the close sentinel onto C so the listener's
// BRPOPLPUSH unblocks and exits (spec §4.4).
func (q *ReliableQueue) Unsubscribe(channel string, conn Conn) {
	_ = q.write.LPush(context.Background(), channel, q.opts.CloseSentinel)
}

// Enqueue delivers msg to every channel in channels. Messages bearing a
// non-empty ID are tracked for acknowledgement: the frame and sender are
// stashed under a message key, and only that key is pushed onto the
// channel's list. ID-less messages (and all transport messages without
// one) are pushed inline with no tracking (spec §4.4).
func (q *ReliableQueue) Enqueue(ctx context.Context, channels []string, msg *protocol.Message, from string) error {
	frame, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("queue: encode: %w", err)
	}

	for _, ch := range channels {
		if ch == "" {
			continue
		}
		if msg.ID == "" {
			if err := q.write.LPush(ctx, ch, frame); err != nil {
				return fmt.Errorf("queue: enqueue to %s: %w", ch, err)
			}
			continue
		}

		key := messageKey(ch, msg.ID)
		if err := q.write.RPush(ctx, key, frame); err != nil {
			return fmt.Errorf("queue: stash frame for %s: %w", key, err)
		}
		if err := q.write.RPush(ctx, key, from); err != nil {
			return fmt.Errorf("queue: stash sender for %s: %w", key, err)
		}
		if err := q.write.LPush(ctx, ch, key); err != nil {
			return fmt.Errorf("queue: enqueue key to %s: %w", ch, err)
		}
	}
	return nil
}

// Ack acknowledges msgID on channel: it pops the stashed frame and
// sender off the message key and removes the key from the in-flight
// list. A second or late ack for the same ID finds the key already
// drained and returns (nil, "", nil) (spec §4.4).
func (q *ReliableQueue) Ack(ctx context.Context, channel, msgID string) (*protocol.Message, string, error) {
	if channel == "" {
		return nil, "", ErrChannelRequired
	}
	key := messageKey(channel, msgID)

	frame, frameOK, err := q.write.LPop(ctx, key)
	if err != nil {
		return nil, "", fmt.Errorf("queue: pop frame for %s: %w", key, err)
	}
	from, _, err := q.write.LPop(ctx, key)
	if err != nil {
		return nil, "", fmt.Errorf("queue: pop sender for %s: %w", key, err)
	}

	if err := q.write.LRem(ctx, waitKey(channel), 1, key); err != nil {
		return nil, "", fmt.Errorf("queue: remove %s from in-flight list: %w", key, err)
	}

	if !frameOK {
		return nil, "", nil
	}
	msg, err := protocol.Parse(frame)
	if err != nil {
		return nil, "", fmt.Errorf("queue: decode acked frame for %s: %w", key, err)
	}
	return msg, from, nil
}

// CheckDelivered reports whether the message key for msgID on channel
// still holds anything. An empty key means it was already acked (or was
// never stashed to begin with) (spec §4.4).
func (q *ReliableQueue) CheckDelivered(ctx context.Context, channel, msgID string) (bool, error) {
	n, err := q.write.LLen(ctx, messageKey(channel, msgID))
	if err != nil {
		return false, fmt.Errorf("queue: check delivered: %w", err)
	}
	return n == 0, nil
}

// listen drains whatever is already in C:wait (oldest first) before
// entering the atomic pop-push main loop. This is what lets a listener
// resume cleanly after a crash or restart without losing in-flight
// messages (spec §4.4, §7).
func (q *ReliableQueue) listen(channel string, conn Conn, dedicated lister) {
	defer dedicated.Close()

	ctx := context.Background()
	q.drainInFlight(ctx, channel, conn, dedicated)

	for {
		if conn.Closed() {
			return
		}

		popped, ok, err := dedicated.BRPopLPush(ctx, channel, waitKey(channel), q.opts.BlockTimeout)
		if err != nil {
			if q.logger != nil {
				q.logger.Errorf(ctx, "reliable: listener for %s: %v", channel, err)
			}
			return
		}
		if !ok {
			continue // timeout, loop back to re-check closed flag
		}

		if popped == q.opts.CloseSentinel {
			_ = dedicated.LRem(ctx, waitKey(channel), 0, popped)
			return
		}

		if strings.HasPrefix(popped, channel+":") {
			q.deliverKey(ctx, channel, conn, dedicated, popped)
			continue
		}

		// Inline, untracked frame: no ack is ever coming, so drop it
		// from the in-flight list before delivering it.
		_, _, _ = dedicated.LPop(ctx, waitKey(channel))
		if conn.Closed() {
			continue
		}
		if err := conn.Write(popped); err != nil {
			if q.logger != nil {
				q.logger.Warnf(ctx, "reliable: write to %s failed: %v", channel, err)
			}
			return
		}
	}
}

// drainInFlight walks C:wait oldest-first (the list grows at the head,
// so the tail is oldest) and resends every message key found. Every
// other entry, a leftover close sentinel included, is discarded.
func (q *ReliableQueue) drainInFlight(ctx context.Context, channel string, conn Conn, dedicated lister) {
	entries, err := dedicated.LRange(ctx, waitKey(channel), 0, -1)
	if err != nil {
		if q.logger != nil {
			q.logger.Errorf(ctx, "reliable: drain %s: %v", channel, err)
		}
		return
	}

	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		if strings.HasPrefix(entry, channel+":") {
			q.deliverKey(ctx, channel, conn, dedicated, entry)
			continue
		}
		// Not a recognizable key: a leftover from a previous close
		// sentinel or a format this listener no longer writes. Drop it.
		_ = dedicated.LRem(ctx, waitKey(channel), 1, entry)
	}
}

// deliverKey resends the frame stored under a message key without
// touching the key itself; it stays in C:wait until acked.
func (q *ReliableQueue) deliverKey(ctx context.Context, channel string, conn Conn, dedicated lister, key string) {
	frame, ok, err := dedicated.LIndex(ctx, key, 0)
	if err != nil {
		if q.logger != nil {
			q.logger.Errorf(ctx, "reliable: look up %s: %v", key, err)
		}
		return
	}
	if !ok {
		// Key already acked/expired between the pop and this lookup.
		return
	}
	if conn.Closed() {
		return
	}
	if err := conn.Write(frame); err != nil {
		if q.logger != nil {
			q.logger.Warnf(ctx, "reliable: write to %s failed: %v", channel, err)
		}
	}
}
