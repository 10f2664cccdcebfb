package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
)

// Config is the root configuration, parsed from the environment via
// struct tags (spec SPEC_FULL §1.2).
type Config struct {
	Server ServerConfig
	Logger LoggerConfig

	Redis RedisConfig
	Relay RelayConfig

	WebSocket WebSocketConfig
	CORS      CORSConfig

	JWT JWTConfig
}

// ServerConfig is the configuration for the HTTP/WebSocket server.
type ServerConfig struct {
	Host string `env:"WS_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"WS_PORT" envDefault:"8081"`
	Mode string `env:"WS_MODE" envDefault:"release"`
}

// RedisConfig is the configuration for Redis.
// Note: only standalone mode is supported.
type RedisConfig struct {
	Host     string `env:"REDIS_HOST" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	UseTLS   bool   `env:"REDIS_USE_TLS" envDefault:"false"`

	MaxRetries      int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	MinIdleConns    int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"10"`
	PoolSize        int           `env:"REDIS_POOL_SIZE" envDefault:"100"`
	PoolTimeout     time.Duration `env:"REDIS_POOL_TIMEOUT" envDefault:"4s"`
	ConnMaxIdleTime time.Duration `env:"REDIS_CONN_MAX_IDLE_TIME" envDefault:"5m"`
	ConnMaxLifetime time.Duration `env:"REDIS_CONN_MAX_LIFETIME" envDefault:"30m"`
}

// RelayConfig is the configuration for the queue/routing core: which
// delivery mode to run, how long a listener blocks before re-polling its
// connection-closed flag, the close sentinel, and the query parameter
// used to resolve a channel when no JWT authenticator is configured.
type RelayConfig struct {
	Reliable          bool          `env:"RELAY_RELIABLE" envDefault:"true"`
	BlockTimeout      time.Duration `env:"RELAY_BLOCK_TIMEOUT" envDefault:"10s"`
	CloseSentinel     string        `env:"RELAY_CLOSE_SENTINEL" envDefault:"!"`
	ChannelQueryParam string        `env:"RELAY_CHANNEL_QUERY_PARAM" envDefault:"channel"`
	PostProcessLimit  int           `env:"RELAY_POST_PROCESS_LIMIT" envDefault:"64"`
	BlocklistTTL      time.Duration `env:"RELAY_BLOCKLIST_TTL" envDefault:"1m"`
	RoutesManifest    string        `env:"RELAY_ROUTES_MANIFEST"`
}

// WebSocketConfig is the configuration for WebSocket connections.
type WebSocketConfig struct {
	PingPeriod      time.Duration `env:"WS_PING_PERIOD" envDefault:"30s"`
	PongWait        time.Duration `env:"WS_PONG_WAIT" envDefault:"60s"`
	WriteWait       time.Duration `env:"WS_WRITE_WAIT" envDefault:"10s"`
	MaxMessageSize  int64         `env:"WS_MAX_MESSAGE_SIZE" envDefault:"4096"`
	ReadBufferSize  int           `env:"WS_READ_BUFFER_SIZE" envDefault:"1024"`
	WriteBufferSize int           `env:"WS_WRITE_BUFFER_SIZE" envDefault:"1024"`
	MaxConnections  int           `env:"WS_MAX_CONNECTIONS" envDefault:"10000"`
}

// CORSConfig is the origin allowlist for the WebSocket upgrade, read from
// the environment instead of the teacher's hardcoded domain list.
type CORSConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	AllowLocalhost bool     `env:"CORS_ALLOW_LOCALHOST" envDefault:"true"`
	PrivateSubnets []string `env:"CORS_PRIVATE_SUBNETS" envSeparator:","`
}

// JWTConfig is the configuration for the optional JWT-based authenticate
// hook. Only consulted when JWT.SecretKey is non-empty.
type JWTConfig struct {
	SecretKey string `env:"JWT_SECRET_KEY"`
}

// LoggerConfig is the configuration for the structured logger.
type LoggerConfig struct {
	Level        string `env:"LOGGER_LEVEL" envDefault:"info"`
	Mode         string `env:"LOGGER_MODE" envDefault:"production"`
	Encoding     string `env:"LOGGER_ENCODING" envDefault:"json"`
	ColorEnabled bool   `env:"LOGGER_COLOR_ENABLED" envDefault:"true"`
}

// Load parses the configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: load: %w", err)
	}
	return cfg, nil
}
