package queue

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"msgrelay/internal/protocol"
	"msgrelay/pkg/log"
)

// Options configures either queue mode's listener behavior.
type Options struct {
	// BlockTimeout bounds each blocking pop so the connection-closed flag
	// is polled regularly even without the close sentinel (spec §5).
	BlockTimeout time.Duration
	// CloseSentinel is the reserved token posted to wake a listener for
	// shutdown (spec §4.4, §9). Best-effort mode also uses it to wake a
	// blocked listener faster than waiting out the timeout.
	CloseSentinel string
}

// BestEffortQueue fans messages in and out through per-channel Redis
// lists with no acknowledgement tracking (spec §4.3).
type BestEffortQueue struct {
	write  lister
	dial   func() (lister, error)
	opts   Options
	logger log.Logger
}

// NewBestEffortQueue constructs a BestEffortQueue. write is the shared
// client used for enqueue operations; dial creates a fresh dedicated
// client for each subscribed listener's blocking pops, so blocking
// commands never share a connection with write traffic (spec §4.3
// rationale, §5).
func NewBestEffortQueue(write *goredis.Client, dial func() (*goredis.Client, error), opts Options, logger log.Logger) *BestEffortQueue {
	return newBestEffortQueue(
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

func newBestEffortQueue(write lister, dial func() (lister, error), opts Options, logger log.Logger) *BestEffortQueue {
	return &BestEffortQueue{write: write, dial: dial, opts: opts, logger: logger}
}

// Subscribe writes a 1000-ready frame then starts a dedicated listener
// goroutine for (channel, conn).
func (q *BestEffortQueue) Subscribe(ctx context.Context, channel string, conn Conn) {
	frame, err := protocol.Encode(protocol.Subscribed())
	if err == nil {
		_ = conn.Write(frame)
	}

	dedicated, err := q.dial()
	if err != nil {
		if q.logger != nil {
			q.logger.Errorf(ctx, "best-effort: dial listener connection for %s: %v", channel, err)
		}
		return
	}

	go q.listen(channel, conn, dedicated)
}

// Unsubscribe posts the close sentinel to wake the listener's blocking
// pop. The caller is expected to have already made conn.Closed() report
// true; this only accelerates shutdown (spec §4.3, §5).
func (q *BestEffortQueue) Unsubscribe(channel string, conn Conn) {
	_ = q.write.LPush(context.Background(), channel, q.opts.CloseSentinel)
}

// Enqueue left-pushes the encoded frame onto every target channel's list.
// Per-channel pushes are independent; no cross-channel atomicity is
// implied (spec §4.3).
func (q *BestEffortQueue) Enqueue(ctx context.Context, channels []string, msg *protocol.Message, _ string) error {
	frame, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("queue: encode: %w", err)
	}
	for _, ch := range channels {
		if ch == "" {
			continue
		}
		if err := q.write.LPush(ctx, ch, frame); err != nil {
			return fmt.Errorf("queue: enqueue to %s: %w", ch, err)
		}
	}
	return nil
}

// Ack is a no-op in best-effort mode: delivery is not tracked.
func (q *BestEffortQueue) Ack(_ context.Context, _, _ string) (*protocol.Message, string, error) {
	return nil, "", nil
}

// CheckDelivered always reports true: best-effort mode makes no delivery
// guarantee to verify.
func (q *BestEffortQueue) CheckDelivered(_ context.Context, _, _ string) (bool, error) {
	return true, nil
}

// listen is the per-(channel,conn) blocking-pop loop. It owns a dedicated
// Redis connection for the duration of the subscription (spec §4.3, §5).
func (q *BestEffortQueue) listen(channel string, conn Conn, dedicated lister) {
	defer dedicated.Close()

	ctx := context.Background()
	for {
		if conn.Closed() {
			return
		}

		frame, ok, err := dedicated.BRPop(ctx, q.opts.BlockTimeout, channel)
		if err != nil {
			if q.logger != nil {
				q.logger.Errorf(ctx, "best-effort: listener for %s: %v", channel, err)
			}
			return
		}

		if conn.Closed() {
			return
		}
		if !ok {
			continue // timeout, loop back to re-check closed flag
		}
		if err := conn.Write(frame); err != nil {
			if q.logger != nil {
				q.logger.Warnf(ctx, "best-effort: write to %s failed: %v", channel, err)
			}
			return
		}
	}
}
