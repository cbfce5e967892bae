package state

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection settings for the Redis watermark store.
type RedisConfig struct {
	Addr       string        `yaml:"addr" validate:"required"`
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
	KeyPrefix  string        `yaml:"key_prefix"`
	TLSEnabled bool          `yaml:"tls_enabled"`
	Timeout    time.Duration `yaml:"timeout"`
}

// DefaultRedisConfig returns the default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "unifi-report",
		Timeout:   5 * time.Second,
	}
}

// RedisStore persists the watermark in Redis so multiple reporter
// instances pointed at the same controller share collection progress.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	opts := &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "unifi-report"
	}
	return &RedisStore{
		client: client,
		key:    prefix + ":watermark",
	}, nil
}

// Load reads the stored watermark. A missing key returns a zero time and
// no error, matching the file store's first-run behavior.
func (s *RedisStore) Load(ctx context.Context) (time.Time, error) {
	val, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("failed to load watermark: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return time.Time{}, fmt.Errorf("stored watermark %q is not a timestamp: %w", val, err)
	}
	return t, nil
}

// Store writes the watermark.
func (s *RedisStore) Store(ctx context.Context, t time.Time) error {
	val := t.UTC().Format(time.RFC3339Nano)
	if err := s.client.Set(ctx, s.key, val, 0).Err(); err != nil {
		return fmt.Errorf("failed to store watermark: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
