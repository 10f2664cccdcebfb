package queue

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// lister is the narrow Redis command surface both queue modes need —
// the commands spec §6 enumerates (LPUSH, RPUSH, BRPOP, BRPOPLPUSH, LPOP,
// LINDEX, LRANGE, LLEN, LREM) plus RPOP. Isolating it behind an
// interface lets tests exercise the queue logic against an in-memory fake
// instead of a live Redis server, the same way the teacher hand-rolls
// fakes for its own dependencies rather than pulling in a mock framework.
type lister interface {
	LPush(ctx context.Context, key string, value string) error
	RPush(ctx context.Context, key string, value string) error
	RPop(ctx context.Context, key string) (string, bool, error)
	BRPop(ctx context.Context, timeout time.Duration, key string) (string, bool, error)
	BRPopLPush(ctx context.Context, source, dest string, timeout time.Duration) (string, bool, error)
	LPop(ctx context.Context, key string) (string, bool, error)
	LIndex(ctx context.Context, key string, index int64) (string, bool, error)
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LLen(ctx context.Context, key string) (int64, error)
	LRem(ctx context.Context, key string, count int64, value string) error
	Close() error
}

// goredisLister adapts a *goredis.Client to the lister interface.
type goredisLister struct {
	client *goredis.Client
	owned  bool // true if this lister owns the client and must Close it
}

func newGoredisLister(client *goredis.Client, owned bool) *goredisLister {
	return &goredisLister{client: client, owned: owned}
}

func (l *goredisLister) LPush(ctx context.Context, key, value string) error {
	return l.client.LPush(ctx, key, value).Err()
}

func (l *goredisLister) RPush(ctx context.Context, key, value string) error {
	return l.client.RPush(ctx, key, value).Err()
}

func (l *goredisLister) RPop(ctx context.Context, key string) (string, bool, error) {
	v, err := l.client.RPop(ctx, key).Result()
	return present(v, err)
}

func (l *goredisLister) BRPop(ctx context.Context, timeout time.Duration, key string) (string, bool, error) {
	res, err := l.client.BRPop(ctx, timeout, key).Result()
	if err == goredis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	// BRPop returns [key, value].
	if len(res) < 2 {
		return "", false, nil
	}
	return res[1], true, nil
}

func (l *goredisLister) BRPopLPush(ctx context.Context, source, dest string, timeout time.Duration) (string, bool, error) {
	v, err := l.client.BRPopLPush(ctx, source, dest, timeout).Result()
	return present(v, err)
}

func (l *goredisLister) LPop(ctx context.Context, key string) (string, bool, error) {
	v, err := l.client.LPop(ctx, key).Result()
	return present(v, err)
}

func (l *goredisLister) LIndex(ctx context.Context, key string, index int64) (string, bool, error) {
	v, err := l.client.LIndex(ctx, key, index).Result()
	return present(v, err)
}

func (l *goredisLister) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return l.client.LRange(ctx, key, start, stop).Result()
}

func (l *goredisLister) LLen(ctx context.Context, key string) (int64, error) {
	return l.client.LLen(ctx, key).Result()
}

func (l *goredisLister) LRem(ctx context.Context, key string, count int64, value string) error {
	return l.client.LRem(ctx, key, count, value).Err()
}

func (l *goredisLister) Close() error {
	if !l.owned {
		return nil
	}
	return l.client.Close()
}

func present(v string, err error) (string, bool, error) {
	if err == goredis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}
