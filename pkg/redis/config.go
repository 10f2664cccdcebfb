package redis

import "time"

// Config holds the connection and pool parameters for a Redis client,
// mirroring config.RedisConfig one-to-one (spec §6 "redis.address").
type Config struct {
	Host     string
	Password string
	DB       int
	UseTLS   bool

	MaxRetries      int
	MinIdleConns    int
	PoolSize        int
	PoolTimeout     time.Duration
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}
