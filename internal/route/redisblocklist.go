package route

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// RedisBlocklist is a Blocklist backed by a single Redis set. Channels
// present in the set are blocked. This is the delegate a BlocklistRoute
// wraps with its TTL cache.
type RedisBlocklist struct {
	client *goredis.Client
	key    string
}

// NewRedisBlocklist constructs a RedisBlocklist. key is the Redis set
// holding blocked channel identifiers.
func NewRedisBlocklist(client *goredis.Client, key string) *RedisBlocklist {
	return &RedisBlocklist{client: client, key: key}
}

// IsBlocked reports whether senderChannel is a member of the blocklist set.
func (b *RedisBlocklist) IsBlocked(ctx context.Context, senderChannel string) (bool, error) {
	blocked, err := b.client.SIsMember(ctx, b.key, senderChannel).Result()
	if err != nil {
		return false, fmt.Errorf("route: check blocklist membership: %w", err)
	}
	return blocked, nil
}

// Block adds senderChannel to the blocklist set.
func (b *RedisBlocklist) Block(ctx context.Context, senderChannel string) error {
	return b.client.SAdd(ctx, b.key, senderChannel).Err()
}

// Unblock removes senderChannel from the blocklist set.
func (b *RedisBlocklist) Unblock(ctx context.Context, senderChannel string) error {
	return b.client.SRem(ctx, b.key, senderChannel).Err()
}
