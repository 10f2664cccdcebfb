package queue

import (
	"context"
	"sync"
	"time"
)

// fakeLister is an in-memory stand-in for a Redis connection, implementing
// just enough list semantics to exercise BestEffortQueue and ReliableQueue
// without a live server. Lists are shared across every fakeLister built
// from the same fakeBroker, the way multiple Redis clients share the same
// keyspace.
type fakeBroker struct {
	mu     sync.Mutex
	lists  map[string][]string // index 0 = left/head
	closed bool
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{lists: make(map[string][]string)}
}

func (b *fakeBroker) dial() (lister, error) {
	return &fakeLister{broker: b}, nil
}

type fakeLister struct {
	broker *fakeBroker
	closed bool
}

func (l *fakeLister) LPush(_ context.Context, key, value string) error {
	b := l.broker
	b.mu.Lock()
	b.lists[key] = append([]string{value}, b.lists[key]...)
	b.mu.Unlock()
	return nil
}

func (l *fakeLister) RPush(_ context.Context, key, value string) error {
	b := l.broker
	b.mu.Lock()
	b.lists[key] = append(b.lists[key], value)
	b.mu.Unlock()
	return nil
}

func (l *fakeLister) RPop(_ context.Context, key string) (string, bool, error) {
	b := l.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.popRightLocked(key)
}

func (b *fakeBroker) popRightLocked(key string) (string, bool, error) {
	vs := b.lists[key]
	if len(vs) == 0 {
		return "", false, nil
	}
	v := vs[len(vs)-1]
	b.lists[key] = vs[:len(vs)-1]
	return v, true, nil
}

func (l *fakeLister) BRPop(ctx context.Context, timeout time.Duration, key string) (string, bool, error) {
	return l.blockingPopRight(ctx, timeout, key, func(b *fakeBroker) (string, bool, error) {
		return b.popRightLocked(key)
	})
}

func (l *fakeLister) BRPopLPush(ctx context.Context, source, dest string, timeout time.Duration) (string, bool, error) {
	return l.blockingPopRight(ctx, timeout, source, func(b *fakeBroker) (string, bool, error) {
		v, ok, err := b.popRightLocked(source)
		if ok {
			b.lists[dest] = append([]string{v}, b.lists[dest]...)
		}
		return v, ok, err
	})
}

// blockingPopRight polls key at a short interval until it becomes
// non-empty, the broker closes, or timeout elapses. Good enough to drive
// the listener loops under test without the complexity of condition
// variables racing against a timer.
func (l *fakeLister) blockingPopRight(ctx context.Context, timeout time.Duration, key string, pop func(*fakeBroker) (string, bool, error)) (string, bool, error) {
	b := l.broker
	deadline := time.Now().Add(timeout)
	const pollInterval = time.Millisecond

	for {
		b.mu.Lock()
		if len(b.lists[key]) > 0 {
			v, ok, err := pop(b)
			b.mu.Unlock()
			return v, ok, err
		}
		closed := b.closed
		b.mu.Unlock()

		if closed {
			return "", false, nil
		}
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		if time.Now().After(deadline) {
			return "", false, nil
		}
		time.Sleep(pollInterval)
	}
}

func (l *fakeLister) LPop(_ context.Context, key string) (string, bool, error) {
	b := l.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	vs := b.lists[key]
	if len(vs) == 0 {
		return "", false, nil
	}
	v := vs[0]
	b.lists[key] = vs[1:]
	return v, true, nil
}

func (l *fakeLister) LIndex(_ context.Context, key string, index int64) (string, bool, error) {
	b := l.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	vs := b.lists[key]
	if index < 0 || int(index) >= len(vs) {
		return "", false, nil
	}
	return vs[index], true, nil
}

func (l *fakeLister) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	b := l.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	vs := b.lists[key]
	n := int64(len(vs))
	if n == 0 {
		return nil, nil
	}
	if stop < 0 {
		stop = n + stop
	}
	if start < 0 {
		start = n + start
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop {
		return nil, nil
	}
	out := make([]string, stop-start+1)
	copy(out, vs[start:stop+1])
	return out, nil
}

func (l *fakeLister) LLen(_ context.Context, key string) (int64, error) {
	b := l.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(len(b.lists[key])), nil
}

func (l *fakeLister) LRem(_ context.Context, key string, count int64, value string) error {
	b := l.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	vs := b.lists[key]
	out := vs[:0]
	removed := int64(0)
	for _, v := range vs {
		if v == value && (count <= 0 || removed < count) {
			removed++
			continue
		}
		out = append(out, v)
	}
	b.lists[key] = out
	return nil
}

func (l *fakeLister) Close() error {
	l.closed = true
	return nil
}

// closeBroker makes every blocked pop return immediately so listener
// goroutines can exit promptly at the end of a test.
func (b *fakeBroker) closeBroker() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}
