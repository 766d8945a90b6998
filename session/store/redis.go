package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sweetpotato0/docqa/session"
)

// RedisStore implements session.Store on a Redis list per session.
type RedisStore struct {
	client *redis.Client
	prefix string // Key prefix for namespacing
	ttl    time.Duration
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string        // Redis server address (e.g., "localhost:6379")
	Password string        // Redis password (if any)
	DB       int           // Redis database number
	Prefix   string        // Key prefix for namespacing
	TTL      time.Duration // Time-to-live per session (0 means no expiration)
}

// NewRedisStore creates a Redis-backed transcript store.
func NewRedisStore(config *RedisConfig) *RedisStore {
	if config == nil {
		config = &RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "docqa:session:",
			TTL:    0,
		}
	}
	if config.Prefix == "" {
		config.Prefix = "docqa:session:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	return &RedisStore{
		client: client,
		prefix: config.Prefix,
		ttl:    config.TTL,
	}
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + sessionID
}

// Append pushes a turn onto the session's list and refreshes the TTL.
func (s *RedisStore) Append(ctx context.Context, sessionID string, turn session.Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}

	key := s.key(sessionID)
	if err := s.client.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("store turn in redis: %w", err)
	}
	if s.ttl > 0 {
		if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
			return fmt.Errorf("refresh session ttl: %w", err)
		}
	}
	return nil
}

// History returns the session's turns in append order.
func (s *RedisStore) History(ctx context.Context, sessionID string) ([]session.Turn, error) {
	entries, err := s.client.LRange(ctx, s.key(sessionID), 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return []session.Turn{}, nil
		}
		return nil, fmt.Errorf("read session from redis: %w", err)
	}

	turns := make([]session.Turn, 0, len(entries))
	for _, entry := range entries {
		var turn session.Turn
		if err := json.Unmarshal([]byte(entry), &turn); err != nil {
			return nil, fmt.Errorf("unmarshal turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// Clear drops the session's transcript.
func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete session from redis: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
