// Package redis stores the progress blob in Redis so several devices or
// server replicas can share one profile.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wastewise/core"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// KeyPrefix namespaces every key written by the store.
	KeyPrefix string
	// Key names the progress blob under KeyPrefix.
	Key string
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		KeyPrefix:    "wastewise:",
		Key:          core.DefaultProgressKey,
	}
}

// Store implements engine.Storage on a Redis hash:
//
//	{prefix}{key} -> {blob: JSON UserProgress, updated: unix nanos}
//
// Writes older than the stored one are ignored, so replicas racing on the
// same profile converge on the newest state.
type Store struct {
	client *redis.Client
	key    string
}

// New creates a new Redis-backed storage with the provided configuration
func New(config Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewWithClient(client, config.KeyPrefix, config.Key), nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client, prefix, key string) *Store {
	if key == "" {
		key = core.DefaultProgressKey
	}
	return &Store{client: client, key: prefix + key}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Key returns the full Redis key of the blob.
func (s *Store) Key() string { return s.key }

// saveIfNewer writes the blob unless a newer one is already stored.
// Returns 1 when written, 0 when the write was stale.
var saveIfNewer = redis.NewScript(`
	local key = KEYS[1]
	local updated = tonumber(ARGV[2])
	local current = tonumber(redis.call('HGET', key, 'updated') or '0')

	if current > updated then
		return 0
	end

	redis.call('HSET', key, 'blob', ARGV[1], 'updated', ARGV[2])
	return 1
`)

func (s *Store) LoadProgress(ctx context.Context) (core.UserProgress, error) {
	data, err := s.client.HGet(ctx, s.key, "blob").Bytes()
	if errors.Is(err, redis.Nil) {
		return core.UserProgress{}, core.ErrNotFound
	}
	if err != nil {
		return core.UserProgress{}, fmt.Errorf("failed to load progress: %w", err)
	}
	var p core.UserProgress
	if err := json.Unmarshal(data, &p); err != nil {
		return core.UserProgress{}, fmt.Errorf("failed to decode progress: %w", err)
	}
	return p, nil
}

func (s *Store) SaveProgress(ctx context.Context, p core.UserProgress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}
	// a stale write is dropped, not retried
	if err := saveIfNewer.Run(ctx, s.client, []string{s.key}, data, p.Updated.UnixNano()).Err(); err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}
